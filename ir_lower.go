// Completion: 100% - IR lowering complete
package main

import (
	"fmt"
	"math"
	"os"

	"github.com/xyproto/tapejit/internal/ir"
)

// Scratch registers used by instruction selection. None of them are ever
// handed out by the register allocator.
const (
	scratchA = "rax"
	scratchB = "rcx"
)

// label is a branch target: a block, or an edge stub holding the moves
// for the else edge of a brif
type label int

type branchFixup struct {
	pos    int // position of the rel32
	target label
}

// lowering holds the state for lowering one function
type lowering struct {
	f      *ir.Function
	ra     *RegisterAllocator
	w      *BufferWrapper
	out    *Out
	labels map[label]int
	fixups []branchFixup
	stubs  label
	stack  *StackValidator
}

// LowerFunction performs instruction selection and register allocation on
// f and returns x86_64 machine code following the System V calling convention
func LowerFunction(f *ir.Function) (CompiledCode, error) {
	if len(f.Sig.Params) > len(argRegisters) {
		return nil, fmt.Errorf("ir lowering: %d parameters are not supported", len(f.Sig.Params))
	}
	lw := &lowering{
		f:      f,
		ra:     NewRegisterAllocator(),
		w:      NewBufferWrapper(),
		labels: make(map[label]int),
		stubs:  label(f.NumBlocks()),
		stack:  NewStackValidator(),
	}
	lw.out = NewOut(lw.w)
	lw.computeIntervals()
	lw.ra.AllocateRegisters()
	if VerboseMode {
		lw.ra.PrintAllocation(os.Stderr)
	}
	if err := lw.emit(); err != nil {
		return nil, err
	}
	return CompiledCode(append([]byte(nil), lw.w.Bytes()...)), nil
}

// computeIntervals numbers every block start and instruction in layout
// order, runs liveness over the blocks and feeds the allocator one
// interval per value
func (lw *lowering) computeIntervals() {
	f := lw.f
	layout := f.Layout()
	start := make(map[ir.Block]int, len(layout))
	end := make(map[ir.Block]int, len(layout))
	pos := 0
	for _, b := range layout {
		start[b] = pos
		pos += 2
		for range f.Insts(b) {
			pos += 2
		}
		end[b] = pos - 2
	}

	liveIn := lw.liveness()
	ra := lw.ra

	for _, b := range layout {
		ra.SetPosition(start[b])
		for _, p := range f.Params(b) {
			ra.DefValue(p)
		}
		for i, inst := range f.Insts(b) {
			ra.SetPosition(start[b] + 2 + 2*i)
			for _, a := range inst.Args {
				ra.UseValue(a)
			}
			for _, d := range inst.Dests {
				for j, a := range d.Args {
					ra.UseValue(a)
					// The edge writes the parameter here
					ra.Extend(f.Params(d.Block)[j], start[b]+2+2*i)
				}
			}
			if inst.Result != ir.NoValue {
				ra.DefValue(inst.Result)
			}
		}
	}

	for _, b := range layout {
		for v := range liveIn[b] {
			ra.Extend(v, start[b])
		}
		for _, s := range f.Succs(b) {
			for v := range liveIn[s] {
				ra.Extend(v, end[b])
			}
		}
	}
}

// liveness computes the values live on entry to each block.
// Block parameters are defined by the block and are never live-in; branch
// arguments count as uses in the branching block.
func (lw *lowering) liveness() map[ir.Block]map[ir.Value]bool {
	f := lw.f
	layout := f.Layout()
	uses := make(map[ir.Block]map[ir.Value]bool, len(layout))
	defs := make(map[ir.Block]map[ir.Value]bool, len(layout))
	liveIn := make(map[ir.Block]map[ir.Value]bool, len(layout))

	for _, b := range layout {
		u := make(map[ir.Value]bool)
		d := make(map[ir.Value]bool)
		for _, p := range f.Params(b) {
			d[p] = true
		}
		for _, inst := range f.Insts(b) {
			for _, a := range inst.Args {
				if !d[a] {
					u[a] = true
				}
			}
			for _, dest := range inst.Dests {
				for _, a := range dest.Args {
					if !d[a] {
						u[a] = true
					}
				}
			}
			if inst.Result != ir.NoValue {
				d[inst.Result] = true
			}
		}
		uses[b], defs[b] = u, d
		liveIn[b] = make(map[ir.Value]bool)
	}

	for changed := true; changed; {
		changed = false
		for i := len(layout) - 1; i >= 0; i-- {
			b := layout[i]
			in := liveIn[b]
			add := func(v ir.Value) {
				if !in[v] {
					in[v] = true
					changed = true
				}
			}
			for v := range uses[b] {
				add(v)
			}
			for _, s := range f.Succs(b) {
				for v := range liveIn[s] {
					if !defs[b][v] {
						add(v)
					}
				}
			}
		}
	}
	return liveIn
}

// location describes where a value lives
type location struct {
	reg  string
	disp int32 // rbp-relative, when reg is empty
}

func (lw *lowering) loc(v ir.Value) location {
	if lw.ra.IsSpilled(v) {
		slot, _ := lw.ra.GetSpillSlot(v)
		return location{disp: lw.ra.SpillDisplacement(slot)}
	}
	reg, _ := lw.ra.GetRegister(v)
	return location{reg: reg}
}

// use returns a register holding v, loading it into scratch if v is spilled
func (lw *lowering) use(v ir.Value, scratch string) string {
	l := lw.loc(v)
	if l.reg != "" {
		return l.reg
	}
	lw.out.MovMemToReg(scratch, "rbp", l.disp)
	return scratch
}

// useInto copies v into reg
func (lw *lowering) useInto(v ir.Value, reg string) {
	l := lw.loc(v)
	if l.reg == "" {
		lw.out.MovMemToReg(reg, "rbp", l.disp)
	} else if l.reg != reg {
		lw.out.MovRegToReg(reg, l.reg)
	}
}

// define stores reg into the location of v
func (lw *lowering) define(v ir.Value, reg string) {
	l := lw.loc(v)
	if l.reg == "" {
		lw.out.MovRegToMem(reg, "rbp", l.disp)
	} else if l.reg != reg {
		lw.out.MovRegToReg(l.reg, reg)
	}
}

func (lw *lowering) emit() error {
	f := lw.f
	lw.ra.GeneratePrologue(lw.out)
	lw.stack.Push("rbp")
	for _, reg := range lw.ra.GetUsedCalleeSaved() {
		lw.stack.Push(reg)
	}
	lw.stack.Sub(lw.ra.GetStackFrameSize())
	frame := lw.stack.Checkpoint("frame")

	for i, p := range f.Params(f.Entry()) {
		lw.define(p, argRegisters[i])
	}

	layout := f.Layout()
	for i, b := range layout {
		next := ir.Block(-1)
		if i+1 < len(layout) {
			next = layout[i+1]
		}
		lw.labels[label(b)] = lw.w.Len()
		if VerboseMode {
			fmt.Fprintf(os.Stderr, "%s:\n", b)
		}
		for _, inst := range f.Insts(b) {
			if err := lw.lowerInst(inst, next); err != nil {
				return fmt.Errorf("ir lowering: %s: %s: %w", b, f.FormatInst(inst), err)
			}
			if err := lw.stack.Validate(frame, f.FormatInst(inst)); err != nil {
				return fmt.Errorf("ir lowering: %s: %w", b, err)
			}
		}
	}

	code := lw.w.Bytes()
	for _, fx := range lw.fixups {
		target, ok := lw.labels[fx.target]
		if !ok {
			return fmt.Errorf("ir lowering: branch to unplaced label %d", fx.target)
		}
		patchRel32(code, fx.pos, int32(target-(fx.pos+4)))
	}
	return nil
}

func (lw *lowering) jumpTo(cond *JumpCondition, target label) {
	if cond == nil {
		lw.out.JumpUnconditional(rel32Placeholder)
	} else {
		lw.out.JumpConditional(*cond, rel32Placeholder)
	}
	lw.fixups = append(lw.fixups, branchFixup{pos: lw.w.Len() - 4, target: target})
}

func (lw *lowering) lowerInst(inst *ir.Inst, next ir.Block) error {
	out := lw.out
	switch inst.Op {
	case ir.OpIconst:
		l := lw.loc(inst.Result)
		if l.reg != "" {
			out.MovImmToReg(l.reg, inst.Imm)
		} else {
			out.MovImmToReg(scratchA, inst.Imm)
			lw.define(inst.Result, scratchA)
		}

	case ir.OpIadd:
		lw.useInto(inst.Args[0], scratchA)
		out.AddRegToReg(scratchA, lw.use(inst.Args[1], scratchB))
		lw.define(inst.Result, scratchA)

	case ir.OpIaddImm:
		lw.useInto(inst.Args[0], scratchA)
		imm := inst.Imm
		if inst.Type == ir.I8 {
			imm = int64(int8(uint8(imm)))
		}
		if imm >= math.MinInt32 && imm <= math.MaxInt32 {
			if imm != 0 {
				out.AddImmToReg(scratchA, int32(imm))
			}
		} else {
			out.MovImmToReg(scratchB, imm)
			out.AddRegToReg(scratchA, scratchB)
		}
		lw.define(inst.Result, scratchA)

	case ir.OpLoad:
		addr := lw.use(inst.Args[0], scratchB)
		switch inst.Type {
		case ir.I8:
			out.MovzxMem8ToReg(scratchA, addr, inst.Offset)
		case ir.I64:
			out.MovMemToReg(scratchA, addr, inst.Offset)
		default:
			return fmt.Errorf("cannot load %s", inst.Type)
		}
		lw.define(inst.Result, scratchA)

	case ir.OpStore:
		val := lw.use(inst.Args[0], scratchA)
		addr := lw.use(inst.Args[1], scratchB)
		switch inst.Type {
		case ir.I8:
			out.MovByteRegToMem(lowByteRegister(val), addr, inst.Offset)
		case ir.I64:
			out.MovRegToMem(val, addr, inst.Offset)
		default:
			return fmt.Errorf("cannot store %s", inst.Type)
		}

	case ir.OpCallIndirect:
		args := inst.Args[1:]
		if len(args) > len(argRegisters) {
			return fmt.Errorf("%d call arguments are not supported", len(args))
		}
		// Allocated values live only in callee-saved registers or stack
		// slots, so filling the argument registers cannot clobber a source.
		for i, a := range args {
			reg := argRegisters[i]
			lw.useInto(a, reg)
			if lw.f.ValueType(a) == ir.I8 {
				out.MovzxRegReg(reg, lowByteRegister(reg))
			}
		}
		lw.useInto(inst.Args[0], scratchA)
		out.CallRegister(scratchA)
		if inst.Result != ir.NoValue {
			lw.define(inst.Result, "rax")
		}

	case ir.OpBrif:
		cond := inst.Args[0]
		reg := lw.use(cond, scratchA)
		if lw.f.ValueType(cond) == ir.I8 {
			low := lowByteRegister(reg)
			out.TestRegWithReg(low, low)
		} else {
			out.TestRegWithReg(reg, reg)
		}
		then, els := inst.Dests[0], inst.Dests[1]
		elseMoves := lw.edgeMoves(els)
		je := JumpEqual
		var stub label
		if len(elseMoves) == 0 {
			lw.jumpTo(&je, label(els.Block))
		} else {
			stub = lw.stubs
			lw.stubs++
			lw.jumpTo(&je, stub)
		}
		if err := lw.parallelMove(lw.edgeMoves(then)); err != nil {
			return err
		}
		if len(elseMoves) == 0 {
			if then.Block != next {
				lw.jumpTo(nil, label(then.Block))
			}
			return nil
		}
		lw.jumpTo(nil, label(then.Block))
		lw.labels[stub] = lw.w.Len()
		if err := lw.parallelMove(elseMoves); err != nil {
			return err
		}
		if els.Block != next {
			lw.jumpTo(nil, label(els.Block))
		}

	case ir.OpJump:
		dest := inst.Dests[0]
		if err := lw.parallelMove(lw.edgeMoves(dest)); err != nil {
			return err
		}
		if dest.Block != next {
			lw.jumpTo(nil, label(dest.Block))
		}

	case ir.OpReturn:
		if len(inst.Args) > 1 {
			return fmt.Errorf("multiple return values are not supported")
		}
		if len(inst.Args) == 1 {
			lw.useInto(inst.Args[0], "rax")
		}
		lw.ra.GenerateEpilogue(out)

	default:
		return fmt.Errorf("no instruction selection for %s", inst.Op)
	}
	return nil
}

type move struct {
	src, dst location
}

// edgeMoves returns the copies from branch arguments to the destination's
// parameters, leaving out those that are already in place
func (lw *lowering) edgeMoves(bc ir.BlockCall) []move {
	params := lw.f.Params(bc.Block)
	var moves []move
	for i, a := range bc.Args {
		src, dst := lw.loc(a), lw.loc(params[i])
		if src != dst {
			moves = append(moves, move{src: src, dst: dst})
		}
	}
	return moves
}

// parallelMove performs all moves at once by pushing every source before
// writing any destination
func (lw *lowering) parallelMove(moves []move) error {
	out := lw.out
	if len(moves) == 1 {
		m := moves[0]
		switch {
		case m.src.reg != "" && m.dst.reg != "":
			out.MovRegToReg(m.dst.reg, m.src.reg)
		case m.src.reg != "":
			out.MovRegToMem(m.src.reg, "rbp", m.dst.disp)
		case m.dst.reg != "":
			out.MovMemToReg(m.dst.reg, "rbp", m.src.disp)
		default:
			out.MovMemToReg(scratchA, "rbp", m.src.disp)
			out.MovRegToMem(scratchA, "rbp", m.dst.disp)
		}
		return nil
	}
	for _, m := range moves {
		if m.src.reg != "" {
			out.PushReg(m.src.reg)
			lw.stack.Push(m.src.reg)
		} else {
			out.PushMem("rbp", m.src.disp)
			lw.stack.Push(fmt.Sprintf("[rbp%+d]", m.src.disp))
		}
	}
	for i := len(moves) - 1; i >= 0; i-- {
		d := moves[i].dst
		what := d.reg
		if d.reg != "" {
			out.PopReg(d.reg)
		} else {
			out.PopMem("rbp", d.disp)
			what = fmt.Sprintf("[rbp%+d]", d.disp)
		}
		if err := lw.stack.Pop(what); err != nil {
			return err
		}
	}
	return nil
}
