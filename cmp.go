// Completion: 100% - Instruction implementation complete
package main

import (
	"fmt"
	"os"
)

// CMP and TEST instructions
// Loop brackets compare the current cell with zero before branching;
// lowered IR tests a register holding the branch condition.

// CmpMem8ToImm generates CMP byte [base + disp], imm8
func (o *Out) CmpMem8ToImm(base string, disp int32, imm uint8) {
	baseReg, ok := GetRegister(base)
	if !ok {
		return
	}

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "cmp byte [%s%+d], %d:", base, disp, imm)
	}

	if rex, need := rexPrefix(false, 0, baseReg.Encoding, false); need {
		o.Write(rex)
	}
	o.Write(0x80) // CMP r/m8, imm8 (/7)
	o.memOperand(7, baseReg, disp)
	o.Write(imm)

	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

// TestRegWithReg generates TEST dst, src (performs dst & src and sets flags).
// 8-bit register names select the byte form.
func (o *Out) TestRegWithReg(dst, src string) {
	dstReg, dstOk := GetRegister(dst)
	srcReg, srcOk := GetRegister(src)
	if !dstOk || !srcOk || dstReg.Size != srcReg.Size {
		return
	}

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "test %s, %s:", dst, src)
	}

	if dstReg.Size == 8 {
		force := (dstReg.Encoding >= 4 && dstReg.Encoding <= 7) || (srcReg.Encoding >= 4 && srcReg.Encoding <= 7)
		if rex, need := rexPrefix(false, srcReg.Encoding, dstReg.Encoding, force); need {
			o.Write(rex)
		}
		o.Write(0x84) // TEST r/m8, r8
	} else {
		rex, _ := rexPrefix(true, srcReg.Encoding, dstReg.Encoding, false)
		o.Write(rex)
		o.Write(0x85) // TEST r/m64, r64
	}
	o.Write(0xC0 | (srcReg.Encoding&7)<<3 | dstReg.Encoding&7)

	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}
