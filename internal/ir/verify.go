// Completion: 100% - Verifier complete
package ir

import (
	"errors"
	"fmt"
)

// ErrInvalid wraps every verifier failure
var ErrInvalid = errors.New("invalid function")

// VerifyError reports the first problem Verify found
type VerifyError struct {
	Block   Block
	Inst    string
	Message string
}

func (e *VerifyError) Error() string {
	if e.Inst != "" {
		return fmt.Sprintf("%s: %s: %s", e.Block, e.Inst, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Block, e.Message)
}

func (e *VerifyError) Unwrap() error {
	return ErrInvalid
}

type verifier struct {
	f      *Function
	rpo    []Block
	order  map[Block]int
	idom   map[Block]Block
	placed map[Value]int // position of a defining instruction within its block
}

// Verify checks the structural and type invariants of f:
// every block ends in exactly one terminator, branch arguments match the
// destination's parameters, operand types agree, and every use is
// dominated by its definition.
func Verify(f *Function) error {
	if len(f.layout) == 0 {
		return &VerifyError{Block: -1, Message: "function has no blocks"}
	}
	v := &verifier{f: f, placed: make(map[Value]int)}
	entry := f.Entry()
	if len(f.blocks[entry].preds) != 0 {
		return &VerifyError{Block: entry, Message: "entry block has predecessors"}
	}
	params := f.blocks[entry].params
	if len(params) != len(f.Sig.Params) {
		return &VerifyError{Block: entry, Message: fmt.Sprintf("entry has %d params, signature has %d", len(params), len(f.Sig.Params))}
	}
	for i, p := range params {
		if f.values[p].typ != f.Sig.Params[i] {
			return &VerifyError{Block: entry, Message: fmt.Sprintf("entry param %s has type %s, signature says %s", p, f.values[p].typ, f.Sig.Params[i])}
		}
	}
	for _, blk := range f.layout {
		for i, inst := range f.blocks[blk].insts {
			if inst.Result != NoValue {
				v.placed[inst.Result] = i
			}
		}
	}
	v.computeDominators()
	for _, blk := range f.layout {
		if err := v.checkBlock(blk); err != nil {
			return err
		}
	}
	return nil
}

func (v *verifier) fail(blk Block, inst *Inst, format string, args ...any) error {
	e := &VerifyError{Block: blk, Message: fmt.Sprintf(format, args...)}
	if inst != nil {
		e.Inst = v.f.FormatInst(inst)
	}
	return e
}

func (v *verifier) checkBlock(blk Block) error {
	insts := v.f.blocks[blk].insts
	if len(insts) == 0 {
		return v.fail(blk, nil, "empty block")
	}
	for i, inst := range insts {
		last := i == len(insts)-1
		if inst.Op.IsTerminator() != last {
			if last {
				return v.fail(blk, inst, "block does not end in a terminator")
			}
			return v.fail(blk, inst, "terminator in the middle of a block")
		}
		for _, arg := range inst.Args {
			if err := v.checkUse(blk, i, inst, arg); err != nil {
				return err
			}
		}
		for _, d := range inst.Dests {
			if !v.f.validBlock(d.Block) {
				return v.fail(blk, inst, "unknown destination %s", d.Block)
			}
			params := v.f.blocks[d.Block].params
			if len(d.Args) != len(params) {
				return v.fail(blk, inst, "%s expects %d arguments, got %d", d.Block, len(params), len(d.Args))
			}
			for j, arg := range d.Args {
				if err := v.checkUse(blk, i, inst, arg); err != nil {
					return err
				}
				if v.f.values[arg].typ != v.f.values[params[j]].typ {
					return v.fail(blk, inst, "argument %s does not match parameter %s", arg, params[j])
				}
			}
		}
		if err := v.checkTypes(blk, inst); err != nil {
			return err
		}
	}
	return nil
}

func (v *verifier) checkUse(blk Block, pos int, inst *Inst, arg Value) error {
	if !v.f.validValue(arg) {
		return v.fail(blk, inst, "use of unknown value %s", arg)
	}
	def := v.f.values[arg]
	if _, reachable := v.order[blk]; !reachable {
		return nil
	}
	if def.block == blk {
		if def.inst != nil && v.placed[arg] >= pos {
			return v.fail(blk, inst, "%s used before its definition", arg)
		}
		return nil
	}
	if !v.dominates(def.block, blk) {
		return v.fail(blk, inst, "%s is defined in %s which does not dominate %s", arg, def.block, blk)
	}
	return nil
}

func (v *verifier) checkTypes(blk Block, inst *Inst) error {
	typeOf := v.f.ValueType
	switch inst.Op {
	case OpIconst:
		if inst.Type == TypeInvalid {
			return v.fail(blk, inst, "constant without a type")
		}
	case OpIadd:
		if len(inst.Args) != 2 || typeOf(inst.Args[0]) != typeOf(inst.Args[1]) {
			return v.fail(blk, inst, "iadd operands must have the same type")
		}
	case OpIaddImm:
		if len(inst.Args) != 1 {
			return v.fail(blk, inst, "iadd_imm takes one operand")
		}
	case OpLoad:
		if len(inst.Args) != 1 || typeOf(inst.Args[0]) != I64 {
			return v.fail(blk, inst, "load address must be i64")
		}
	case OpStore:
		if len(inst.Args) != 2 || typeOf(inst.Args[1]) != I64 {
			return v.fail(blk, inst, "store address must be i64")
		}
	case OpCallIndirect:
		if inst.Sig == nil || len(inst.Args) == 0 || typeOf(inst.Args[0]) != I64 {
			return v.fail(blk, inst, "call_indirect needs a signature and an i64 callee")
		}
		args := inst.Args[1:]
		if len(args) != len(inst.Sig.Params) {
			return v.fail(blk, inst, "call passes %d arguments, signature has %d", len(args), len(inst.Sig.Params))
		}
		for i, a := range args {
			if typeOf(a) != inst.Sig.Params[i] {
				return v.fail(blk, inst, "call argument %s has type %s, expected %s", a, typeOf(a), inst.Sig.Params[i])
			}
		}
		if len(inst.Sig.Returns) > 1 {
			return v.fail(blk, inst, "calls return at most one value")
		}
	case OpBrif:
		if len(inst.Args) != 1 || len(inst.Dests) != 2 {
			return v.fail(blk, inst, "brif needs a condition and two destinations")
		}
	case OpJump:
		if len(inst.Dests) != 1 {
			return v.fail(blk, inst, "jump needs one destination")
		}
	case OpReturn:
		if len(inst.Args) != len(v.f.Sig.Returns) {
			return v.fail(blk, inst, "return of %d values, signature has %d", len(inst.Args), len(v.f.Sig.Returns))
		}
		for i, a := range inst.Args {
			if typeOf(a) != v.f.Sig.Returns[i] {
				return v.fail(blk, inst, "returned %s has type %s, expected %s", a, typeOf(a), v.f.Sig.Returns[i])
			}
		}
	}
	return nil
}

// computeDominators uses the iterative algorithm of Cooper, Harvey and Kennedy
func (v *verifier) computeDominators() {
	v.rpo = ReversePostorder(v.f)
	v.order = make(map[Block]int, len(v.rpo))
	for i, b := range v.rpo {
		v.order[b] = i
	}
	entry := v.f.Entry()
	v.idom = map[Block]Block{entry: entry}
	for changed := true; changed; {
		changed = false
		for _, b := range v.rpo[1:] {
			newIdom := Block(-1)
			for _, p := range v.f.Preds(b) {
				if _, ok := v.idom[p]; !ok {
					continue
				}
				if newIdom < 0 {
					newIdom = p
				} else {
					newIdom = v.intersect(p, newIdom)
				}
			}
			if newIdom < 0 {
				continue
			}
			if old, ok := v.idom[b]; !ok || old != newIdom {
				v.idom[b] = newIdom
				changed = true
			}
		}
	}
}

func (v *verifier) intersect(a, b Block) Block {
	for a != b {
		for v.order[a] > v.order[b] {
			a = v.idom[a]
		}
		for v.order[b] > v.order[a] {
			b = v.idom[b]
		}
	}
	return a
}

func (v *verifier) dominates(a, b Block) bool {
	for {
		if a == b {
			return true
		}
		next, ok := v.idom[b]
		if !ok || next == b {
			return false
		}
		b = next
	}
}

// ReversePostorder returns the blocks reachable from the entry in reverse postorder
func ReversePostorder(f *Function) []Block {
	if len(f.layout) == 0 {
		return nil
	}
	visited := make([]bool, len(f.blocks))
	var post []Block
	var walk func(b Block)
	walk = func(b Block) {
		visited[b] = true
		for _, s := range f.Succs(b) {
			if !visited[s] {
				walk(s)
			}
		}
		post = append(post, b)
	}
	walk(f.Entry())
	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post
}
