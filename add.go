// Completion: 100% - Instruction implementation complete
package main

import (
	"fmt"
	"os"
)

// ADD and SUB instructions
// Used for:
//   - Data pointer motion: add r13, n / sub r13, n
//   - Cell arithmetic: add byte [r13], n / sub byte [r13], n
//   - Stack frame setup and teardown: sub rsp, n / add rsp, n
//   - Address computation in IR lowering: add rax, rcx

// AddRegToReg generates ADD dst, src (dst = dst + src)
func (o *Out) AddRegToReg(dst, src string) {
	dstReg, dstOk := GetRegister(dst)
	srcReg, srcOk := GetRegister(src)
	if !dstOk || !srcOk {
		return
	}

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "add %s, %s:", dst, src)
	}

	rex, _ := rexPrefix(true, srcReg.Encoding, dstReg.Encoding, false)
	o.Write(rex)

	// ADD opcode (0x01 for r/m64, r64)
	o.Write(0x01)

	// ModR/M: 11 (register direct) | reg (src) | r/m (dst)
	o.Write(0xC0 | (srcReg.Encoding&7)<<3 | dstReg.Encoding&7)

	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

// AddImmToReg generates ADD dst, imm (dst = dst + imm)
func (o *Out) AddImmToReg(dst string, imm int32) {
	o.arithImmToReg("add", 0, dst, imm)
}

// SubImmFromReg generates SUB dst, imm (dst = dst - imm)
func (o *Out) SubImmFromReg(dst string, imm int32) {
	o.arithImmToReg("sub", 5, dst, imm)
}

// arithImmToReg encodes the 0x81/0x83 group with opcode extension ext
func (o *Out) arithImmToReg(name string, ext uint8, dst string, imm int32) {
	dstReg, ok := GetRegister(dst)
	if !ok {
		return
	}

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "%s %s, %d:", name, dst, imm)
	}

	rex, _ := rexPrefix(true, 0, dstReg.Encoding, false)
	o.Write(rex)

	// Check if immediate fits in 8 bits
	if imm >= -128 && imm <= 127 {
		o.Write(0x83) // r/m64, imm8 (sign-extended)
		o.Write(0xC0 | ext<<3 | dstReg.Encoding&7)
		o.Write(uint8(int8(imm)))
	} else {
		o.Write(0x81) // r/m64, imm32
		o.Write(0xC0 | ext<<3 | dstReg.Encoding&7)
		o.WriteUnsigned(uint(uint32(imm)))
	}

	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

// AddImmToMem8 generates ADD byte [base + disp], imm8
func (o *Out) AddImmToMem8(base string, disp int32, imm uint8) {
	o.arithImmToMem8("add", 0, base, disp, imm)
}

// SubImmFromMem8 generates SUB byte [base + disp], imm8
func (o *Out) SubImmFromMem8(base string, disp int32, imm uint8) {
	o.arithImmToMem8("sub", 5, base, disp, imm)
}

func (o *Out) arithImmToMem8(name string, ext uint8, base string, disp int32, imm uint8) {
	baseReg, ok := GetRegister(base)
	if !ok {
		return
	}

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "%s byte [%s%+d], %d:", name, base, disp, imm)
	}

	if rex, need := rexPrefix(false, 0, baseReg.Encoding, false); need {
		o.Write(rex)
	}
	o.Write(0x80) // r/m8, imm8
	o.memOperand(ext, baseReg, disp)
	o.Write(imm)

	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}
