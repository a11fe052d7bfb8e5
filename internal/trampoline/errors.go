package trampoline

import "errors"

var (
	errUnsupportedOnArch = errors.New("trampoline: stub kind unsupported on this architecture")
	errBadFixedArity     = errors.New("trampoline: fixedArity must be 1, 2, or 3")
)
