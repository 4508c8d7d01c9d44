// Completion: 100% - IR backend complete
package main

import (
	"fmt"
	"os"

	"github.com/xyproto/tapejit/internal/ir"
)

// IRBackend builds an SSA function with basic blocks from the program and
// hands it to the lowering pass for instruction selection and register
// allocation.
type IRBackend struct {
	hooks Hooks
}

// NewIRBackend creates an IR backend calling the given hooks
func NewIRBackend(hooks Hooks) *IRBackend {
	return &IRBackend{hooks: hooks}
}

func (b *IRBackend) Name() string {
	return BackendIR
}

// The data pointer, as an offset from the tape base
const dataPointer = ir.Variable(0)

var (
	tapeSignature = ir.Signature{Params: []ir.Type{ir.I64}, Returns: []ir.Type{ir.I64}}
	emitSignature = ir.Signature{Params: []ir.Type{ir.I8}}
	readSignature = ir.Signature{Params: []ir.Type{ir.I64}}
)

type loopBlocks struct {
	body, after ir.Block
}

// Build translates program into an IR function
func (b *IRBackend) Build(program Program) (*ir.Function, error) {
	if err := program.Validate(); err != nil {
		return nil, err
	}

	fb := ir.NewBuilder("tape", tapeSignature)
	entry := fb.CreateBlock()
	fb.SealBlock(entry)
	fb.AppendBlockParamsForFunctionParams(entry)
	fb.SwitchToBlock(entry)

	emitAddr := fb.Iconst(ir.I64, int64(b.hooks.EmitByte))
	readAddr := fb.Iconst(ir.I64, int64(b.hooks.ReadByte))
	base := fb.BlockParams(entry)[0]

	fb.DeclareVar(dataPointer, ir.I64)
	zero := fb.Iconst(ir.I64, 0)
	fb.DefVar(dataPointer, zero)

	cellAddr := func() ir.Value {
		return fb.Iadd(base, fb.UseVar(dataPointer))
	}

	var loops []loopBlocks
	for _, op := range program {
		switch op.Kind {
		case OpMoveRight, OpMoveLeft:
			delta := int64(op.Count())
			if op.Kind == OpMoveLeft {
				delta = -delta
			}
			fb.DefVar(dataPointer, fb.IaddImm(fb.UseVar(dataPointer), delta))
		case OpIncrement, OpDecrement:
			delta := int64(op.Count() % 256)
			if op.Kind == OpDecrement {
				delta = -delta
			}
			addr := cellAddr()
			cell := fb.Load(ir.I8, addr, 0)
			fb.Store(fb.IaddImm(cell, delta), addr, 0)
		case OpEmit:
			cell := fb.Load(ir.I8, cellAddr(), 0)
			fb.CallIndirect(&emitSignature, emitAddr, cell)
		case OpRead:
			fb.CallIndirect(&readSignature, readAddr, cellAddr())
		case OpLoopStart:
			loop := loopBlocks{body: fb.CreateBlock(), after: fb.CreateBlock()}
			loops = append(loops, loop)
			cell := fb.Load(ir.I8, cellAddr(), 0)
			fb.Brif(cell, loop.body, nil, loop.after, nil)
			fb.SwitchToBlock(loop.body)
		case OpLoopEnd:
			if len(loops) == 0 {
				return nil, fmt.Errorf("ir backend: %s at %d without an open loop", op.Kind, op.Pos)
			}
			loop := loops[len(loops)-1]
			loops = loops[:len(loops)-1]
			cell := fb.Load(ir.I8, cellAddr(), 0)
			fb.Brif(cell, loop.body, nil, loop.after, nil)
			// Every edge into both blocks exists now
			fb.SealBlock(loop.body)
			fb.SealBlock(loop.after)
			// Blocks end up in source order and the return block comes last
			fb.MoveBlockToEnd(loop.after)
			fb.SwitchToBlock(loop.after)
		}
	}
	if len(loops) != 0 {
		return nil, fmt.Errorf("ir backend: %s", msgUnbalanced)
	}

	fb.Return(zero)
	return fb.Finalize()
}

// Lower builds the IR function for program and compiles it to machine code
func (b *IRBackend) Lower(program Program) (CompiledCode, error) {
	if b.hooks.EmitByte == 0 || b.hooks.ReadByte == 0 {
		return nil, fmt.Errorf("ir backend: host hooks are not set")
	}
	f, err := b.Build(program)
	if err != nil {
		return nil, err
	}
	if VerboseMode {
		fmt.Fprint(os.Stderr, f.String())
	}
	return LowerFunction(f)
}
