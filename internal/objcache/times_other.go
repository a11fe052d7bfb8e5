//go:build !linux && !darwin

package objcache

import (
	"os"
	"time"
)

// statTimes falls back to mtime-for-both on platforms (notably Windows)
// where atime is not reliably tracked by default.
func statTimes(path string) (atime, mtime time.Time, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return info.ModTime(), info.ModTime(), nil
}
