//go:build windows

package trampoline

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// allocExecutable reserves and commits a RW page via VirtualAlloc, copies
// code in, then flips it to RX via VirtualProtect — the Windows analog of
// the POSIX mmap/mprotect W^X flip (spec.md §9).
func allocExecutable(code []byte) (uintptr, error) {
	size := uintptr(len(code))
	if size == 0 {
		size = 1
	}

	addr, err := windows.VirtualAlloc(0, size, windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return 0, err
	}

	dst := unsafe.Slice((*byte)(unsafe.Pointer(addr)), len(code))
	copy(dst, code)

	var oldProtect uint32
	if err := windows.VirtualProtect(addr, size, windows.PAGE_EXECUTE_READ, &oldProtect); err != nil {
		windows.VirtualFree(addr, 0, windows.MEM_RELEASE)
		return 0, err
	}

	return addr, nil
}
