// Completion: 100% - SSA builder complete
package ir

import (
	"errors"
	"fmt"
)

// Variable is a mutable frontend variable that the Builder turns into SSA values
type Variable int

type incompleteParam struct {
	v     Variable
	param Value
}

// Builder constructs a Function one block at a time.
//
// Variables are resolved to SSA values on demand following Braun et al.,
// "Simple and Efficient Construction of Static Single Assignment Form":
// reading a variable in a block whose predecessors are not all known yet
// creates a block parameter whose branch arguments are filled in when the
// block is sealed.
type Builder struct {
	f          *Function
	cur        Block
	sealed     []bool
	varTypes   map[Variable]Type
	defs       map[Variable]map[Block]Value
	incomplete map[Block][]incompleteParam
}

// NewBuilder starts building a new function
func NewBuilder(name string, sig Signature) *Builder {
	return &Builder{
		f:          NewFunction(name, sig),
		cur:        -1,
		varTypes:   make(map[Variable]Type),
		defs:       make(map[Variable]map[Block]Value),
		incomplete: make(map[Block][]incompleteParam),
	}
}

// Func returns the function under construction
func (b *Builder) Func() *Function {
	return b.f
}

// CreateBlock adds a new empty block at the end of the layout
func (b *Builder) CreateBlock() Block {
	b.f.blocks = append(b.f.blocks, &blockData{})
	b.sealed = append(b.sealed, false)
	blk := Block(len(b.f.blocks) - 1)
	b.f.layout = append(b.f.layout, blk)
	return blk
}

// MoveBlockToEnd moves blk to the end of the layout.
// The entry block stays first.
func (b *Builder) MoveBlockToEnd(blk Block) {
	if !b.f.validBlock(blk) {
		panic(fmt.Sprintf("ir: move of unknown block %d", blk))
	}
	layout := b.f.layout
	for i, l := range layout {
		if l != blk {
			continue
		}
		if i == 0 {
			return
		}
		copy(layout[i:], layout[i+1:])
		layout[len(layout)-1] = blk
		return
	}
}

// SwitchToBlock makes blk the insertion point
func (b *Builder) SwitchToBlock(blk Block) {
	if !b.f.validBlock(blk) {
		panic(fmt.Sprintf("ir: switch to unknown block %d", blk))
	}
	b.cur = blk
}

// CurrentBlock returns the insertion point
func (b *Builder) CurrentBlock() Block {
	return b.cur
}

// IsSealed reports whether blk has been sealed
func (b *Builder) IsSealed(blk Block) bool {
	return b.sealed[blk]
}

// AppendBlockParam adds an explicit parameter to blk
func (b *Builder) AppendBlockParam(blk Block, t Type) Value {
	data := b.f.blocks[blk]
	v := b.f.newValue(t, blk, nil, len(data.params))
	data.params = append(data.params, v)
	return v
}

// AppendBlockParamsForFunctionParams gives blk one parameter per function parameter
func (b *Builder) AppendBlockParamsForFunctionParams(blk Block) {
	for _, t := range b.f.Sig.Params {
		b.AppendBlockParam(blk, t)
	}
}

// BlockParams returns the parameters of blk
func (b *Builder) BlockParams(blk Block) []Value {
	return b.f.blocks[blk].params
}

// DeclareVar declares a variable and its type
func (b *Builder) DeclareVar(v Variable, t Type) {
	if _, ok := b.varTypes[v]; ok {
		panic(fmt.Sprintf("ir: variable %d declared twice", v))
	}
	b.varTypes[v] = t
	b.defs[v] = make(map[Block]Value)
}

// DefVar assigns val to v in the current block
func (b *Builder) DefVar(v Variable, val Value) {
	t, ok := b.varTypes[v]
	if !ok {
		panic(fmt.Sprintf("ir: variable %d is not declared", v))
	}
	if b.f.ValueType(val) != t {
		panic(fmt.Sprintf("ir: variable %d has type %s, not %s", v, t, b.f.ValueType(val)))
	}
	b.defs[v][b.cur] = val
}

// UseVar returns the value v has at the current insertion point
func (b *Builder) UseVar(v Variable) Value {
	if _, ok := b.varTypes[v]; !ok {
		panic(fmt.Sprintf("ir: variable %d is not declared", v))
	}
	return b.useVarInBlock(v, b.cur)
}

func (b *Builder) useVarInBlock(v Variable, blk Block) Value {
	if val, ok := b.defs[v][blk]; ok {
		return val
	}
	t := b.varTypes[v]
	var val Value
	preds := b.f.blocks[blk].preds
	switch {
	case !b.sealed[blk]:
		val = b.AppendBlockParam(blk, t)
		b.incomplete[blk] = append(b.incomplete[blk], incompleteParam{v: v, param: val})
	case len(preds) == 0:
		// Read before any definition
		val = b.zeroAtBlockStart(blk, t)
	case len(preds) == 1:
		val = b.useVarInBlock(v, preds[0].from)
	default:
		val = b.AppendBlockParam(blk, t)
		b.defs[v][blk] = val
		b.addPredArgs(v, blk)
	}
	b.defs[v][blk] = val
	return val
}

// addPredArgs appends the value v has in each predecessor to the branch
// arguments flowing into blk
func (b *Builder) addPredArgs(v Variable, blk Block) {
	preds := b.f.blocks[blk].preds
	args := make([]Value, len(preds))
	for i, e := range preds {
		args[i] = b.useVarInBlock(v, e.from)
	}
	for i, e := range preds {
		dest := &e.inst.Dests[e.dest]
		dest.Args = append(dest.Args, args[i])
	}
}

func (b *Builder) zeroAtBlockStart(blk Block, t Type) Value {
	inst := &Inst{Op: OpIconst, Type: t}
	inst.Result = b.f.newValue(t, blk, inst, -1)
	data := b.f.blocks[blk]
	data.insts = append([]*Inst{inst}, data.insts...)
	return inst.Result
}

// SealBlock declares that every predecessor of blk is known
func (b *Builder) SealBlock(blk Block) {
	if b.sealed[blk] {
		return
	}
	for len(b.incomplete[blk]) > 0 {
		p := b.incomplete[blk][0]
		b.incomplete[blk] = b.incomplete[blk][1:]
		b.addPredArgs(p.v, blk)
	}
	delete(b.incomplete, blk)
	b.sealed[blk] = true
}

// SealAllBlocks seals every block that is still open
func (b *Builder) SealAllBlocks() {
	for _, blk := range b.f.layout {
		b.SealBlock(blk)
	}
}

func (b *Builder) append(inst *Inst, result Type) Value {
	if b.cur < 0 {
		panic("ir: no current block")
	}
	data := b.f.blocks[b.cur]
	if n := len(data.insts); n > 0 && data.insts[n-1].Op.IsTerminator() {
		panic(fmt.Sprintf("ir: %s appended after the terminator of %s", inst.Op, b.cur))
	}
	inst.Result = NoValue
	if result != TypeInvalid {
		inst.Result = b.f.newValue(result, b.cur, inst, -1)
	}
	data.insts = append(data.insts, inst)
	for i, d := range inst.Dests {
		if b.sealed[d.Block] {
			panic(fmt.Sprintf("ir: branch to sealed block %s", d.Block))
		}
		dest := b.f.blocks[d.Block]
		dest.preds = append(dest.preds, predEdge{from: b.cur, inst: inst, dest: i})
	}
	return inst.Result
}

// Iconst creates an integer constant
func (b *Builder) Iconst(t Type, imm int64) Value {
	return b.append(&Inst{Op: OpIconst, Type: t, Imm: imm}, t)
}

// Iadd adds two values of the same type
func (b *Builder) Iadd(x, y Value) Value {
	t := b.f.ValueType(x)
	return b.append(&Inst{Op: OpIadd, Type: t, Args: []Value{x, y}}, t)
}

// IaddImm adds a constant to x, wrapping at the width of x's type
func (b *Builder) IaddImm(x Value, imm int64) Value {
	t := b.f.ValueType(x)
	return b.append(&Inst{Op: OpIaddImm, Type: t, Args: []Value{x}, Imm: imm}, t)
}

// Load reads a value of type t from addr+offset
func (b *Builder) Load(t Type, addr Value, offset int32) Value {
	return b.append(&Inst{Op: OpLoad, Type: t, Args: []Value{addr}, Offset: offset}, t)
}

// Store writes val to addr+offset
func (b *Builder) Store(val, addr Value, offset int32) {
	b.append(&Inst{Op: OpStore, Type: b.f.ValueType(val), Args: []Value{val, addr}, Offset: offset}, TypeInvalid)
}

// CallIndirect calls the function whose address is callee. It returns the
// call's result, or NoValue when sig has no returns.
func (b *Builder) CallIndirect(sig *Signature, callee Value, args ...Value) Value {
	result := TypeInvalid
	if len(sig.Returns) > 0 {
		result = sig.Returns[0]
	}
	all := append([]Value{callee}, args...)
	return b.append(&Inst{Op: OpCallIndirect, Type: result, Args: all, Sig: sig}, result)
}

// Brif branches to thenBlk if cond is nonzero and to elseBlk otherwise
func (b *Builder) Brif(cond Value, thenBlk Block, thenArgs []Value, elseBlk Block, elseArgs []Value) {
	b.append(&Inst{
		Op:   OpBrif,
		Args: []Value{cond},
		Dests: []BlockCall{
			{Block: thenBlk, Args: append([]Value(nil), thenArgs...)},
			{Block: elseBlk, Args: append([]Value(nil), elseArgs...)},
		},
	}, TypeInvalid)
}

// Jump branches unconditionally to dest
func (b *Builder) Jump(dest Block, args ...Value) {
	b.append(&Inst{
		Op:    OpJump,
		Dests: []BlockCall{{Block: dest, Args: append([]Value(nil), args...)}},
	}, TypeInvalid)
}

// Return returns from the function
func (b *Builder) Return(vals ...Value) {
	b.append(&Inst{Op: OpReturn, Args: append([]Value(nil), vals...)}, TypeInvalid)
}

// ErrUnsealed is returned by Finalize when a block was never sealed
var ErrUnsealed = errors.New("unsealed block")

// Finalize checks that construction is complete and returns the verified function
func (b *Builder) Finalize() (*Function, error) {
	for _, blk := range b.f.layout {
		if !b.sealed[blk] {
			return nil, fmt.Errorf("%w: %s", ErrUnsealed, blk)
		}
	}
	if err := Verify(b.f); err != nil {
		return nil, err
	}
	return b.f, nil
}
