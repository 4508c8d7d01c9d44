// Completion: 100% - Instruction implementation complete
package main

import (
	"fmt"
	"os"
)

// Conditional and unconditional jumps.
// All jumps use the near rel32 form so that an instruction's length never
// depends on its displacement; a placeholder can be patched later without
// moving any code.

// Condition codes for jumps
type JumpCondition int

const (
	JumpEqual    JumpCondition = iota // JE/JZ - equal/zero
	JumpNotEqual                      // JNE/JNZ - not equal/not zero
)

// rel32Placeholder marks a displacement that has not been patched yet
const rel32Placeholder int32 = 0

// JumpConditional generates a conditional jump instruction.
// offset is the relative offset to jump to (signed, from the end of the instruction).
func (o *Out) JumpConditional(condition JumpCondition, offset int32) {
	var opcode uint8
	var name string

	switch condition {
	case JumpEqual:
		opcode = 0x84
		name = "je"
	case JumpNotEqual:
		opcode = 0x85
		name = "jne"
	default:
		return
	}

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "%s %d:", name, offset)
	}

	// Near jump (32-bit offset) with 0x0F prefix
	o.Write(0x0F)
	o.Write(opcode)
	o.WriteUnsigned(uint(uint32(offset)))

	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

// JumpUnconditional generates JMP rel32
func (o *Out) JumpUnconditional(offset int32) {
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "jmp %d:", offset)
	}

	o.Write(0xE9)
	o.WriteUnsigned(uint(uint32(offset)))

	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}
