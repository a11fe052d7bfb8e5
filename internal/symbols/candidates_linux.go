//go:build linux

package symbols

// hostLibraryCandidates lists shared libraries tried in order, mirroring
// the teacher's getSocketCandidates ordered-list-of-paths shape.
func hostLibraryCandidates() []string {
	return []string{
		"libc.so.6",
		"libm.so.6",
		"libpthread.so.0",
		"libdl.so.2",
	}
}
