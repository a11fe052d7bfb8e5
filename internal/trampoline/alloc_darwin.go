//go:build darwin

package trampoline

import (
	"golang.org/x/sys/unix"
)

// allocExecutable mirrors the Linux path: map RW, copy, flip to RX. On
// Apple Silicon under the hardened runtime this additionally requires
// MAP_JIT; plain mmap/mprotect is sufficient for a process that has not
// opted into that entitlement, which matches this package's scope.
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
	const pageSize = 16384 // Apple Silicon's native page size
	if n == 0 {
		return pageSize
	}
	return (n + pageSize - 1) / pageSize * pageSize
}
