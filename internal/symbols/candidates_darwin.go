//go:build darwin

package symbols

func hostLibraryCandidates() []string {
	return []string{
		"/usr/lib/libSystem.B.dylib",
		"/usr/lib/libc++.1.dylib",
	}
}
