// Completion: 100% - Module complete
package main

import (
	"fmt"
	"os"
)

// CALL instruction for calls into the host.
// The host routines live at absolute addresses that are only known when the
// process runs, so calls go through a register loaded with MOVABS.

// CallRegister generates a CALL to address in register (indirect call)
func (o *Out) CallRegister(reg string) {
	regInfo, regOk := GetRegister(reg)
	if !regOk {
		return
	}

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "call %s:", reg)
	}

	// CALL r/m64 (opcode 0xFF /2); no REX.W needed, 64-bit is the default
	if regInfo.Encoding >= 8 {
		o.Write(0x41) // REX.B
	}
	o.Write(0xFF)
	o.Write(0xD0 | regInfo.Encoding&7)

	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

// CallAbsolute loads addr into scratch and calls it. It is always 12 bytes
// for a legacy scratch register.
func (o *Out) CallAbsolute(scratch string, addr uintptr) {
	o.MovAbsToReg(scratch, uint64(addr))
	o.CallRegister(scratch)
}
