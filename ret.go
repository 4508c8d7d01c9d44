// Completion: 100% - Instruction implementation complete
package main

import (
	"fmt"
	"os"
)

// Ret generates RET
func (o *Out) Ret() {
	if VerboseMode {
		fmt.Fprint(os.Stderr, "ret:")
	}

	o.Write(0xC3)

	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

// XorRegWithReg generates XOR dst, src. With dst == src it clears the register.
func (o *Out) XorRegWithReg(dst, src string) {
	dstReg, dstOk := GetRegister(dst)
	srcReg, srcOk := GetRegister(src)
	if !dstOk || !srcOk {
		return
	}

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "xor %s, %s:", dst, src)
	}

	// The 32-bit form zero-extends, so it is enough to clear a 64-bit register
	if rex, need := rexPrefix(false, srcReg.Encoding, dstReg.Encoding, false); need {
		o.Write(rex)
	}
	o.Write(0x31)
	o.Write(0xC0 | (srcReg.Encoding&7)<<3 | dstReg.Encoding&7)

	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}
