//go:build windows

package symbols

func hostLibraryCandidates() []string {
	return []string{
		"kernel32.dll",
		"msvcrt.dll",
		"ucrtbase.dll",
	}
}
