// Completion: 100% - Direct backend complete
package main

import (
	"fmt"
	"math"
	"os"
)

// X86_64CodeGen is the direct backend. Every operation is encoded from a
// fixed template into a buffer of its own, then loop branches are patched
// once all buffer lengths are known.
//
// Register use:
//
//	r13  cell pointer, loaded from rdi in the prologue (callee-saved)
//	rdi  argument to the host hooks
//	rax  scratch for the absolute hook address
type X86_64CodeGen struct {
	hooks Hooks
}

const cellPointer = "r13"

// NewX86_64CodeGen creates a direct backend calling the given hooks
func NewX86_64CodeGen(hooks Hooks) *X86_64CodeGen {
	return &X86_64CodeGen{hooks: hooks}
}

func (x *X86_64CodeGen) Name() string {
	return BackendDirect
}

// opCode is the encoding of one operation
type opCode struct {
	bytes  []byte
	relPos int // position of the rel32 inside bytes, -1 if there is none
}

// Lower encodes program into machine code
func (x *X86_64CodeGen) Lower(program Program) (CompiledCode, error) {
	if err := program.Validate(); err != nil {
		return nil, err
	}
	if x.hooks.EmitByte == 0 || x.hooks.ReadByte == 0 {
		return nil, fmt.Errorf("direct backend: host hooks are not set")
	}

	stack := NewStackValidator()
	prologue := x.prologue(stack)
	ops := make([]opCode, len(program))
	for i, op := range program {
		ops[i] = x.encode(op)
	}

	// Offsets are final from here on, no buffer may change length.
	ends := make([]int, len(ops))
	offset := len(prologue)
	for i := range ops {
		offset += len(ops[i].bytes)
		ends[i] = offset
	}

	for i, op := range program {
		if !op.Kind.IsLoop() {
			continue
		}
		disp := ends[op.Target()] - ends[i]
		if disp < math.MinInt32 || disp > math.MaxInt32 {
			return nil, fmt.Errorf("direct backend: branch at operation %d is out of rel32 range", i)
		}
		patchRel32(ops[i].bytes, ops[i].relPos, int32(disp))
		if VerboseMode {
			fmt.Fprintf(os.Stderr, "patch %s at %d: rel32=%d -> %d\n", op.Kind, ends[i]-4, disp, ends[op.Target()])
		}
	}

	epilogue, err := x.epilogue(stack)
	if err != nil {
		return nil, fmt.Errorf("direct backend: %w", err)
	}
	if err := stack.Validate(0, "return"); err != nil {
		return nil, fmt.Errorf("direct backend: %w", err)
	}
	code := make(CompiledCode, 0, offset+len(epilogue))
	code = append(code, prologue...)
	for i := range ops {
		code = append(code, ops[i].bytes...)
	}
	code = append(code, epilogue...)
	return code, nil
}

func (x *X86_64CodeGen) prologue(stack *StackValidator) []byte {
	w := NewBufferWrapper()
	out := NewOut(w)
	out.PushReg("rbp")
	stack.Push("rbp")
	out.MovRegToReg("rbp", "rsp")
	out.PushReg(cellPointer)
	stack.Push(cellPointer)
	out.SubImmFromReg("rsp", 8) // keep rsp 16-byte aligned at host calls
	stack.Sub(8)
	out.MovRegToReg(cellPointer, "rdi")
	return w.Bytes()
}

func (x *X86_64CodeGen) epilogue(stack *StackValidator) ([]byte, error) {
	w := NewBufferWrapper()
	out := NewOut(w)
	out.AddImmToReg("rsp", 8)
	out.PopReg(cellPointer)
	out.PopReg("rbp")
	out.XorRegWithReg("rax", "rax")
	out.Ret()

	if err := stack.Add(8); err != nil {
		return nil, err
	}
	if err := stack.Pop(cellPointer); err != nil {
		return nil, err
	}
	if err := stack.Pop("rbp"); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// encode produces the template for a single operation
func (x *X86_64CodeGen) encode(op Op) opCode {
	w := NewBufferWrapper()
	out := NewOut(w)
	code := opCode{relPos: -1}

	switch op.Kind {
	case OpMoveRight, OpMoveLeft:
		n := op.Count()
		for n > 0 {
			step := n
			if step > math.MaxInt32 {
				step = math.MaxInt32
			}
			if op.Kind == OpMoveRight {
				out.AddImmToReg(cellPointer, int32(step))
			} else {
				out.SubImmFromReg(cellPointer, int32(step))
			}
			n -= step
		}
	case OpIncrement, OpDecrement:
		// Cells wrap, so only the count modulo 256 matters
		if n := uint8(op.Count() % 256); n != 0 {
			if op.Kind == OpIncrement {
				out.AddImmToMem8(cellPointer, 0, n)
			} else {
				out.SubImmFromMem8(cellPointer, 0, n)
			}
		}
	case OpEmit:
		out.MovzxMem8ToReg("rdi", cellPointer, 0)
		out.CallAbsolute("rax", x.hooks.EmitByte)
	case OpRead:
		out.MovRegToReg("rdi", cellPointer)
		out.CallAbsolute("rax", x.hooks.ReadByte)
	case OpLoopStart, OpLoopEnd:
		out.CmpMem8ToImm(cellPointer, 0, 0)
		cond := JumpEqual
		if op.Kind == OpLoopEnd {
			cond = JumpNotEqual
		}
		out.JumpConditional(cond, rel32Placeholder)
		code.relPos = w.Len() - 4
	}

	code.bytes = w.Bytes()
	return code
}
