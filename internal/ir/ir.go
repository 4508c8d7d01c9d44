// Completion: 100% - IR data model complete
package ir

import (
	"fmt"
	"strings"
)

// Type is the type of an SSA value
type Type uint8

const (
	TypeInvalid Type = iota
	I8
	I64
)

func (t Type) String() string {
	switch t {
	case I8:
		return "i8"
	case I64:
		return "i64"
	default:
		return "invalid"
	}
}

// Bits returns the width of the type
func (t Type) Bits() int {
	switch t {
	case I8:
		return 8
	case I64:
		return 64
	default:
		return 0
	}
}

// Value names an SSA value. Values are numbered densely from 0.
type Value int32

// NoValue is returned by instructions without a result
const NoValue Value = -1

func (v Value) String() string {
	if v == NoValue {
		return "-"
	}
	return fmt.Sprintf("v%d", int32(v))
}

// Block names a basic block
type Block int32

func (b Block) String() string {
	return fmt.Sprintf("block%d", int32(b))
}

// Opcode identifies an instruction
type Opcode uint8

const (
	OpIconst Opcode = iota
	OpIadd
	OpIaddImm
	OpLoad
	OpStore
	OpCallIndirect
	OpBrif
	OpJump
	OpReturn
)

var opcodeNames = map[Opcode]string{
	OpIconst:       "iconst",
	OpIadd:         "iadd",
	OpIaddImm:      "iadd_imm",
	OpLoad:         "load",
	OpStore:        "store",
	OpCallIndirect: "call_indirect",
	OpBrif:         "brif",
	OpJump:         "jump",
	OpReturn:       "return",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("op%d", uint8(op))
}

// IsTerminator reports whether op ends a block
func (op Opcode) IsTerminator() bool {
	return op == OpBrif || op == OpJump || op == OpReturn
}

// Signature describes a function or an indirect call target.
// Only the System V calling convention is modelled.
type Signature struct {
	Params  []Type
	Returns []Type
}

func (s Signature) String() string {
	params := make([]string, len(s.Params))
	for i, t := range s.Params {
		params[i] = t.String()
	}
	str := "(" + strings.Join(params, ", ") + ")"
	if len(s.Returns) > 0 {
		rets := make([]string, len(s.Returns))
		for i, t := range s.Returns {
			rets[i] = t.String()
		}
		str += " -> " + strings.Join(rets, ", ")
	}
	return str + " system_v"
}

// BlockCall is a branch destination together with the arguments passed
// to the destination's block parameters
type BlockCall struct {
	Block Block
	Args  []Value
}

func (bc BlockCall) String() string {
	if len(bc.Args) == 0 {
		return bc.Block.String()
	}
	return bc.Block.String() + "(" + joinValues(bc.Args) + ")"
}

// Inst is a single instruction.
//
//	iconst         Imm
//	iadd           Args[0] + Args[1]
//	iadd_imm       Args[0] + Imm
//	load           [Args[0] + Offset]
//	store          Args[0] -> [Args[1] + Offset]
//	call_indirect  Args[0] is the callee, the rest are call arguments
//	brif           Args[0] != 0 ? Dests[0] : Dests[1]
//	jump           Dests[0]
//	return         Args
type Inst struct {
	Op     Opcode
	Type   Type  // result type, or the accessed type for load/store
	Result Value // NoValue when the instruction defines nothing
	Args   []Value
	Imm    int64
	Offset int32
	Sig    *Signature // call_indirect only
	Dests  []BlockCall
}

type valueDef struct {
	typ   Type
	block Block
	inst  *Inst // nil for block parameters
	param int
}

type blockData struct {
	params []Value
	insts  []*Inst
	preds  []predEdge
}

// predEdge is one branch edge into a block
type predEdge struct {
	from Block
	inst *Inst
	dest int // index into inst.Dests
}

// Function is a function in SSA form built from basic blocks with block
// parameters instead of phi nodes
type Function struct {
	Name   string
	Sig    Signature
	values []valueDef
	blocks []*blockData
	layout []Block
}

// NewFunction creates an empty function
func NewFunction(name string, sig Signature) *Function {
	return &Function{Name: name, Sig: sig}
}

func (f *Function) newValue(t Type, blk Block, inst *Inst, param int) Value {
	f.values = append(f.values, valueDef{typ: t, block: blk, inst: inst, param: param})
	return Value(len(f.values) - 1)
}

// NumValues returns the number of values ever created
func (f *Function) NumValues() int {
	return len(f.values)
}

// NumBlocks returns the number of blocks ever created
func (f *Function) NumBlocks() int {
	return len(f.blocks)
}

// ValueType returns the type of v
func (f *Function) ValueType(v Value) Type {
	if !f.validValue(v) {
		return TypeInvalid
	}
	return f.values[v].typ
}

// ValueBlock returns the block that defines v
func (f *Function) ValueBlock(v Value) Block {
	return f.values[v].block
}

// DefiningInst returns the instruction that defines v, or nil for a block parameter
func (f *Function) DefiningInst(v Value) *Inst {
	return f.values[v].inst
}

func (f *Function) validValue(v Value) bool {
	return v >= 0 && int(v) < len(f.values)
}

func (f *Function) validBlock(b Block) bool {
	return b >= 0 && int(b) < len(f.blocks)
}

// Entry returns the first block in layout order
func (f *Function) Entry() Block {
	if len(f.layout) == 0 {
		return -1
	}
	return f.layout[0]
}

// Layout returns the blocks in layout order
func (f *Function) Layout() []Block {
	return f.layout
}

// Params returns the block parameters of b
func (f *Function) Params(b Block) []Value {
	return f.blocks[b].params
}

// Insts returns the instructions of b
func (f *Function) Insts(b Block) []*Inst {
	return f.blocks[b].insts
}

// Terminator returns the last instruction of b if it is a terminator
func (f *Function) Terminator(b Block) *Inst {
	insts := f.blocks[b].insts
	if len(insts) == 0 || !insts[len(insts)-1].Op.IsTerminator() {
		return nil
	}
	return insts[len(insts)-1]
}

// Preds returns the predecessor blocks of b, one entry per edge
func (f *Function) Preds(b Block) []Block {
	preds := make([]Block, len(f.blocks[b].preds))
	for i, e := range f.blocks[b].preds {
		preds[i] = e.from
	}
	return preds
}

// Succs returns the successor blocks of b, one entry per edge
func (f *Function) Succs(b Block) []Block {
	term := f.Terminator(b)
	if term == nil {
		return nil
	}
	succs := make([]Block, len(term.Dests))
	for i, d := range term.Dests {
		succs[i] = d.Block
	}
	return succs
}

// InstCount returns the total number of instructions
func (f *Function) InstCount() int {
	n := 0
	for _, b := range f.layout {
		n += len(f.blocks[b].insts)
	}
	return n
}

func joinValues(vs []Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

// String prints the function in a textual form close to Cranelift's
func (f *Function) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "function %%%s%s {\n", f.Name, f.Sig)
	for _, b := range f.layout {
		sb.WriteString(b.String())
		if params := f.blocks[b].params; len(params) > 0 {
			parts := make([]string, len(params))
			for i, p := range params {
				parts[i] = fmt.Sprintf("%s: %s", p, f.values[p].typ)
			}
			sb.WriteString("(" + strings.Join(parts, ", ") + ")")
		}
		sb.WriteString(":\n")
		for _, inst := range f.blocks[b].insts {
			sb.WriteString("    ")
			sb.WriteString(f.FormatInst(inst))
			sb.WriteByte('\n')
		}
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n") + "\n}\n"
}

// FormatInst prints a single instruction
func (f *Function) FormatInst(inst *Inst) string {
	var lhs string
	if inst.Result != NoValue {
		lhs = inst.Result.String() + " = "
	}
	switch inst.Op {
	case OpIconst:
		return fmt.Sprintf("%siconst.%s %d", lhs, inst.Type, inst.Imm)
	case OpIadd:
		return fmt.Sprintf("%siadd %s", lhs, joinValues(inst.Args))
	case OpIaddImm:
		return fmt.Sprintf("%siadd_imm %s, %d", lhs, inst.Args[0], inst.Imm)
	case OpLoad:
		return fmt.Sprintf("%sload.%s %s%+d", lhs, inst.Type, inst.Args[0], inst.Offset)
	case OpStore:
		return fmt.Sprintf("store %s, %s%+d", inst.Args[0], inst.Args[1], inst.Offset)
	case OpCallIndirect:
		sig := ""
		if inst.Sig != nil {
			sig = inst.Sig.String() + " "
		}
		return fmt.Sprintf("%scall_indirect %s%s(%s)", lhs, sig, inst.Args[0], joinValues(inst.Args[1:]))
	case OpBrif:
		return fmt.Sprintf("brif %s, %s, %s", inst.Args[0], inst.Dests[0], inst.Dests[1])
	case OpJump:
		return fmt.Sprintf("jump %s", inst.Dests[0])
	case OpReturn:
		return fmt.Sprintf("return %s", joinValues(inst.Args))
	default:
		return lhs + inst.Op.String()
	}
}
