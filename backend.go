// Completion: 100% - Utility module complete
package main

import (
	"fmt"
	"strings"
)

// CompiledCode is a finished buffer of x86_64 machine code.
// Its entry point is the first byte; it takes the tape base address as its only
// argument and returns 0.
type CompiledCode []byte

// Hooks holds the process addresses of the two host routines generated code calls
type Hooks struct {
	EmitByte uintptr // void emit(uint8 value)
	ReadByte uintptr // void read(uint8 *cell)
}

// Backend lowers a resolved program to machine code
type Backend interface {
	Name() string
	Lower(program Program) (CompiledCode, error)
}

// Backend names accepted by NewBackend
const (
	BackendDirect = "direct"
	BackendIR     = "ir"
	BackendInterp = "interp"
)

// NewBackend creates the backend with the given name.
// The interpreter is not a Backend since it produces no code.
func NewBackend(name string, hooks Hooks) (Backend, error) {
	switch strings.ToLower(name) {
	case BackendDirect, "x86", "x86_64":
		return NewX86_64CodeGen(hooks), nil
	case BackendIR, "ssa":
		return NewIRBackend(hooks), nil
	default:
		return nil, fmt.Errorf("unknown backend: %s (supported: direct, ir, interp)", name)
	}
}

// Compile parses source and lowers it with the given backend
func Compile(source string, backend Backend) (Program, CompiledCode, error) {
	program, err := Parse(source)
	if err != nil {
		return nil, nil, err
	}
	code, err := backend.Lower(program)
	if err != nil {
		return program, nil, fmt.Errorf("%s backend: %w", backend.Name(), err)
	}
	return program, code, nil
}
