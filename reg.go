// Completion: 100% - Utility module complete
package main

// Register definitions for x86_64

type Register struct {
	Name     string
	Size     int   // Size in bits
	Encoding uint8 // Encoding for instruction generation
}

// x86_64 registers
var x86_64Registers = map[string]Register{
	// 64-bit general purpose registers
	"rax": {Name: "rax", Size: 64, Encoding: 0},
	"rcx": {Name: "rcx", Size: 64, Encoding: 1},
	"rdx": {Name: "rdx", Size: 64, Encoding: 2},
	"rbx": {Name: "rbx", Size: 64, Encoding: 3},
	"rsp": {Name: "rsp", Size: 64, Encoding: 4},
	"rbp": {Name: "rbp", Size: 64, Encoding: 5},
	"rsi": {Name: "rsi", Size: 64, Encoding: 6},
	"rdi": {Name: "rdi", Size: 64, Encoding: 7},
	"r8":  {Name: "r8", Size: 64, Encoding: 8},
	"r9":  {Name: "r9", Size: 64, Encoding: 9},
	"r10": {Name: "r10", Size: 64, Encoding: 10},
	"r11": {Name: "r11", Size: 64, Encoding: 11},
	"r12": {Name: "r12", Size: 64, Encoding: 12},
	"r13": {Name: "r13", Size: 64, Encoding: 13},
	"r14": {Name: "r14", Size: 64, Encoding: 14},
	"r15": {Name: "r15", Size: 64, Encoding: 15},

	// 8-bit registers (low byte)
	"al":   {Name: "al", Size: 8, Encoding: 0},
	"cl":   {Name: "cl", Size: 8, Encoding: 1},
	"dl":   {Name: "dl", Size: 8, Encoding: 2},
	"bl":   {Name: "bl", Size: 8, Encoding: 3},
	"spl":  {Name: "spl", Size: 8, Encoding: 4},
	"bpl":  {Name: "bpl", Size: 8, Encoding: 5},
	"sil":  {Name: "sil", Size: 8, Encoding: 6},
	"dil":  {Name: "dil", Size: 8, Encoding: 7},
	"r8b":  {Name: "r8b", Size: 8, Encoding: 8},
	"r9b":  {Name: "r9b", Size: 8, Encoding: 9},
	"r10b": {Name: "r10b", Size: 8, Encoding: 10},
	"r11b": {Name: "r11b", Size: 8, Encoding: 11},
	"r12b": {Name: "r12b", Size: 8, Encoding: 12},
	"r13b": {Name: "r13b", Size: 8, Encoding: 13},
	"r14b": {Name: "r14b", Size: 8, Encoding: 14},
	"r15b": {Name: "r15b", Size: 8, Encoding: 15},
}

// System V integer argument registers, in order
var argRegisters = []string{"rdi", "rsi", "rdx", "rcx", "r8", "r9"}

// GetRegister returns register info for the given register name
func GetRegister(regName string) (Register, bool) {
	reg, ok := x86_64Registers[regName]
	return reg, ok
}

// lowByteRegister returns the 8-bit register sharing an encoding with reg
func lowByteRegister(reg string) string {
	r, ok := GetRegister(reg)
	if !ok {
		return ""
	}
	for name, candidate := range x86_64Registers {
		if candidate.Size == 8 && candidate.Encoding == r.Encoding {
			return name
		}
	}
	return ""
}
