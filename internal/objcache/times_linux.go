//go:build linux

package objcache

import (
	"time"

	"golang.org/x/sys/unix"
)

// statTimes returns the atime/mtime pair of path, used to synchronize a
// freshly stored cache file's times with its source file (spec.md §4.2).
func statTimes(path string) (atime, mtime time.Time, err error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return time.Time{}, time.Time{}, err
	}
	return time.Unix(st.Atim.Sec, st.Atim.Nsec), time.Unix(st.Mtim.Sec, st.Mtim.Nsec), nil
}
