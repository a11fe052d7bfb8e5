//go:build linux

package trampoline

import (
	"golang.org/x/sys/unix"
)

// allocExecutable maps a fresh page RW, copies code into it, then flips the
// page to RX (W^X — never RWX at once), per spec.md §9.
func allocExecutable(code []byte) (uintptr, error) {
	size := pageAlign(len(code))

	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return 0, err
	}
	copy(mem, code)

	if err := unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		unix.Munmap(mem)
		return 0, err
	}

	return uintptr(bytesAt(mem, 0)), nil
}

func pageAlign(n int) int {
	const pageSize = 4096
	if n == 0 {
		return pageSize
	}
	return (n + pageSize - 1) / pageSize * pageSize
}
