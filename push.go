// Completion: 100% - Instruction implementation complete
package main

import (
	"fmt"
	"os"
)

// PUSH/POP instructions for stack management
// Used for:
//   - Function prologue/epilogue (rbp frame, callee-saved registers)
//   - Parallel moves of block arguments in lowered IR

// PushReg pushes a register value onto the stack
func (o *Out) PushReg(reg string) {
	regInfo, regOk := GetRegister(reg)
	if !regOk {
		return
	}

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "push %s:", reg)
	}

	// PUSH uses compact encoding: 0x50 + reg
	// For extended registers (R8-R15), need REX prefix
	if regInfo.Encoding >= 8 {
		o.Write(0x41) // REX.B
	}
	o.Write(0x50 + regInfo.Encoding&7)

	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

// PopReg pops a value from the stack into a register
func (o *Out) PopReg(reg string) {
	regInfo, regOk := GetRegister(reg)
	if !regOk {
		return
	}

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "pop %s:", reg)
	}

	if regInfo.Encoding >= 8 {
		o.Write(0x41) // REX.B
	}
	o.Write(0x58 + regInfo.Encoding&7)

	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

// PushMem generates PUSH qword [base + disp]
func (o *Out) PushMem(base string, disp int32) {
	baseReg, ok := GetRegister(base)
	if !ok {
		return
	}

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "push qword [%s%+d]:", base, disp)
	}

	if baseReg.Encoding >= 8 {
		o.Write(0x41)
	}
	o.Write(0xFF) // PUSH r/m64 (/6)
	o.memOperand(6, baseReg, disp)

	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

// PopMem generates POP qword [base + disp]
func (o *Out) PopMem(base string, disp int32) {
	baseReg, ok := GetRegister(base)
	if !ok {
		return
	}

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "pop qword [%s%+d]:", base, disp)
	}

	if baseReg.Encoding >= 8 {
		o.Write(0x41)
	}
	o.Write(0x8F) // POP r/m64 (/0)
	o.memOperand(0, baseReg, disp)

	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}
