package symbols

import "fmt"

// NullLoader is the default NativeLoader: every Open call fails, so host-
// library resolution always falls through cleanly to "not found" instead
// of panicking on a nil loader. A real loader wraps dlopen/dlsym or
// LoadLibrary/GetProcAddress, which this repo does not ship (spec.md §1).
type NullLoader struct{}

func (NullLoader) Open(name string) (uintptr, error) {
	return 0, fmt.Errorf("symbols: no native loader configured, cannot open %s", name)
}

func (NullLoader) Sym(handle uintptr, name string) (uintptr, bool) {
	return 0, false
}
