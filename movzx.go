// Completion: 100% - Instruction implementation complete
package main

import (
	"fmt"
	"os"
)

// MovzxRegReg emits MOVZX dst, src (zero-extend an 8-bit register into a 64-bit one)
// Example: movzx rdi, dil
func (o *Out) MovzxRegReg(dst, src string) {
	destReg, ok := GetRegister(dst)
	if !ok {
		panic("invalid destination register: " + dst)
	}

	srcReg, ok := GetRegister(src)
	if !ok || srcReg.Size != 8 {
		panic("invalid source register: " + src)
	}

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "movzx %s, %s:", dst, src)
	}

	rex, _ := rexPrefix(true, destReg.Encoding, srcReg.Encoding, false)
	o.Write(rex)

	// MOVZX opcode: 0x0F 0xB6 for byte
	o.Write(0x0F)
	o.Write(0xB6)
	o.Write(0xC0 | (destReg.Encoding&7)<<3 | srcReg.Encoding&7)

	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

// MovzxMem8ToReg emits MOVZX dst, byte [base + disp]
// Example: movzx rdi, byte [r13] loads the current cell as a call argument
func (o *Out) MovzxMem8ToReg(dst, base string, disp int32) {
	destReg, ok := GetRegister(dst)
	if !ok {
		panic("invalid destination register: " + dst)
	}

	baseReg, ok := GetRegister(base)
	if !ok {
		panic("invalid base register: " + base)
	}

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "movzx %s, byte [%s%+d]:", dst, base, disp)
	}

	rex, _ := rexPrefix(true, destReg.Encoding, baseReg.Encoding, false)
	o.Write(rex)
	o.Write(0x0F)
	o.Write(0xB6)
	o.memOperand(destReg.Encoding, baseReg, disp)

	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}
