//go:build amd64

package trampoline

import "encoding/binary"

// buildABIBridgeStub emits the x86-64 SysV→Win64 ABI bridge (spec.md §4.3):
// load the callee into a scratch register, load the bridge routine into a
// second scratch register, then tail-jump through the bridge. Two 64-bit
// immediate slots are patched; everything else is fixed.
//
//	48 b8 <callee-imm64>   mov rax, callee
//	49 bb <bridge-imm64>   mov r11, bridge
//	41 ff e3               jmp r11
func buildABIBridgeStub(callee, bridge uintptr) ([]byte, error) {
	code := []byte{
		0x48, 0xb8, 0, 0, 0, 0, 0, 0, 0, 0, // mov rax, imm64 (callee)
		0x49, 0xbb, 0, 0, 0, 0, 0, 0, 0, 0, // mov r11, imm64 (bridge)
		0x41, 0xff, 0xe3, // jmp r11
	}
	binary.LittleEndian.PutUint64(code[2:10], uint64(callee))
	binary.LittleEndian.PutUint64(code[12:20], uint64(bridge))
	return code, nil
}

// buildVariadicThunk has no amd64 analog in spec.md §4.3 — the variadic
// thunk is AArch64-specific; the SysV ABI already forwards variadic calls
// without a spilling thunk.
func buildVariadicThunk(variantCallee uintptr, fixedArity int) ([]byte, error) {
	return nil, errUnsupportedOnArch
}
