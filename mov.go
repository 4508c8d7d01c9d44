// Completion: 100% - Instruction implementation complete
package main

import (
	"fmt"
	"os"
)

// Out encodes x86_64 instructions into a Writer.
// Registers are named the way an assembler listing names them.
type Out struct {
	writer Writer
}

// NewOut creates a new Out writing to the given Writer
func NewOut(writer Writer) *Out {
	return &Out{writer: writer}
}

func (o *Out) Write(b uint8) {
	o.writer.Write(b)
}

func (o *Out) WriteUnsigned(i uint) {
	o.writer.WriteUnsigned(i)
}

// Len returns the number of bytes written so far
func (o *Out) Len() int {
	return o.writer.Len()
}

// rexPrefix builds a REX prefix. force is needed for spl/bpl/sil/dil.
func rexPrefix(w bool, reg, base uint8, force bool) (uint8, bool) {
	rex := uint8(0x40)
	if w {
		rex |= 0x08 // REX.W
	}
	if reg&8 != 0 {
		rex |= 0x04 // REX.R
	}
	if base&8 != 0 {
		rex |= 0x01 // REX.B
	}
	return rex, rex != 0x40 || force
}

// memOperand writes ModR/M (+SIB) (+displacement) for [base + disp]
func (o *Out) memOperand(reg uint8, base Register, disp int32) {
	var mod uint8
	switch {
	case disp == 0 && base.Encoding&7 != 5:
		mod = 0x00
	case disp >= -128 && disp <= 127:
		mod = 0x40
	default:
		mod = 0x80
	}
	o.Write(mod | (reg&7)<<3 | base.Encoding&7)
	if base.Encoding&7 == 4 {
		o.Write(0x24) // SIB: base only
	}
	switch mod {
	case 0x40:
		o.Write(uint8(int8(disp)))
	case 0x80:
		o.WriteUnsigned(uint(uint32(disp)))
	}
}

// MovRegToReg generates MOV dst, src (64-bit)
func (o *Out) MovRegToReg(dst, src string) {
	dstReg, dstOk := GetRegister(dst)
	srcReg, srcOk := GetRegister(src)
	if !dstOk || !srcOk {
		return
	}

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "mov %s, %s:", dst, src)
	}

	rex, _ := rexPrefix(true, srcReg.Encoding, dstReg.Encoding, false)
	o.Write(rex)
	o.Write(0x89) // MOV r/m64, r64
	o.Write(0xC0 | (srcReg.Encoding&7)<<3 | dstReg.Encoding&7)

	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

// MovImmToReg generates the shortest MOV dst, imm for a 64-bit destination
func (o *Out) MovImmToReg(dst string, imm int64) {
	if imm < -2147483648 || imm > 2147483647 {
		o.MovAbsToReg(dst, uint64(imm))
		return
	}

	dstReg, ok := GetRegister(dst)
	if !ok {
		return
	}

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "mov %s, %d:", dst, imm)
	}

	rex, _ := rexPrefix(true, 0, dstReg.Encoding, false)
	o.Write(rex)
	o.Write(0xC7) // MOV r/m64, imm32 (sign-extended)
	o.Write(0xC0 | dstReg.Encoding&7)
	o.WriteUnsigned(uint(uint32(int32(imm))))

	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

// MovAbsToReg generates MOVABS dst, imm64. It is always 10 bytes long.
func (o *Out) MovAbsToReg(dst string, imm uint64) {
	dstReg, ok := GetRegister(dst)
	if !ok {
		return
	}

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "movabs %s, 0x%x:", dst, imm)
	}

	rex, _ := rexPrefix(true, 0, dstReg.Encoding, false)
	o.Write(rex)
	o.Write(0xB8 + dstReg.Encoding&7)
	o.writer.Write8u(imm)

	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

// MovMemToReg generates MOV dst, [base + disp]
func (o *Out) MovMemToReg(dst, base string, disp int32) {
	dstReg, dstOk := GetRegister(dst)
	baseReg, baseOk := GetRegister(base)
	if !dstOk || !baseOk {
		return
	}

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "mov %s, [%s%+d]:", dst, base, disp)
	}

	rex, _ := rexPrefix(true, dstReg.Encoding, baseReg.Encoding, false)
	o.Write(rex)
	o.Write(0x8B) // MOV r64, r/m64
	o.memOperand(dstReg.Encoding, baseReg, disp)

	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

// MovRegToMem generates MOV [base + disp], src
func (o *Out) MovRegToMem(src, base string, disp int32) {
	srcReg, srcOk := GetRegister(src)
	baseReg, baseOk := GetRegister(base)
	if !srcOk || !baseOk {
		return
	}

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "mov [%s%+d], %s:", base, disp, src)
	}

	rex, _ := rexPrefix(true, srcReg.Encoding, baseReg.Encoding, false)
	o.Write(rex)
	o.Write(0x89) // MOV r/m64, r64
	o.memOperand(srcReg.Encoding, baseReg, disp)

	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

// MovByteRegToMem generates MOV byte [base + disp], src8
func (o *Out) MovByteRegToMem(src8, base string, disp int32) {
	srcReg, srcOk := GetRegister(src8)
	baseReg, baseOk := GetRegister(base)
	if !srcOk || !baseOk || srcReg.Size != 8 {
		return
	}

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "mov byte [%s%+d], %s:", base, disp, src8)
	}

	// spl, bpl, sil and dil are only reachable with a REX prefix
	force := srcReg.Encoding >= 4 && srcReg.Encoding <= 7
	if rex, need := rexPrefix(false, srcReg.Encoding, baseReg.Encoding, force); need {
		o.Write(rex)
	}
	o.Write(0x88) // MOV r/m8, r8
	o.memOperand(srcReg.Encoding, baseReg, disp)

	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}
