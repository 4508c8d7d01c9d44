// Completion: 100% - Lexer complete, all eight operators recognized
package main

import (
	"fmt"
	"strings"
)

// OpKind is the kind of a tape machine operation
type OpKind int

const (
	OpMoveRight OpKind = iota // >
	OpMoveLeft                // <
	OpIncrement               // +
	OpDecrement               // -
	OpEmit                    // .
	OpRead                    // ,
	OpLoopStart               // [
	OpLoopEnd                 // ]
)

// operatorChars maps each operator character to its kind
var operatorChars = map[byte]OpKind{
	'>': OpMoveRight,
	'<': OpMoveLeft,
	'+': OpIncrement,
	'-': OpDecrement,
	'.': OpEmit,
	',': OpRead,
	'[': OpLoopStart,
	']': OpLoopEnd,
}

func (k OpKind) String() string {
	switch k {
	case OpMoveRight:
		return "right"
	case OpMoveLeft:
		return "left"
	case OpIncrement:
		return "inc"
	case OpDecrement:
		return "dec"
	case OpEmit:
		return "emit"
	case OpRead:
		return "read"
	case OpLoopStart:
		return "loop"
	case OpLoopEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Char returns the source character for the kind
func (k OpKind) Char() byte {
	return "><+-.,[]"[k]
}

// Foldable reports whether adjacent operations of this kind can be coalesced
func (k OpKind) Foldable() bool {
	return k == OpMoveRight || k == OpMoveLeft || k == OpIncrement || k == OpDecrement
}

// IsLoop reports whether the kind is a loop bracket
func (k OpKind) IsLoop() bool {
	return k == OpLoopStart || k == OpLoopEnd
}

// Op is a single operation.
// Arg is the repeat count for foldable kinds and the index of the matching
// bracket for loop kinds. Pos is the byte offset of the operation in the source.
type Op struct {
	Kind OpKind
	Arg  int
	Pos  int
}

// Count returns the repeat count of a foldable operation
func (op Op) Count() int {
	return op.Arg
}

// Target returns the index of the matching bracket of a resolved loop operation
func (op Op) Target() int {
	return op.Arg
}

func (op Op) String() string {
	switch {
	case op.Kind.Foldable():
		return fmt.Sprintf("%s %d", op.Kind, op.Arg)
	case op.Kind.IsLoop():
		return fmt.Sprintf("%s -> %d", op.Kind, op.Arg)
	default:
		return op.Kind.String()
	}
}

// Program is an ordered sequence of operations, addressed by index
type Program []Op

// String returns a listing with one operation per line
func (p Program) String() string {
	var sb strings.Builder
	for i, op := range p {
		fmt.Fprintf(&sb, "%04d  %s\n", i, op)
	}
	return sb.String()
}

// Source renders the program back into operator characters
func (p Program) Source() string {
	var sb strings.Builder
	for _, op := range p {
		n := 1
		if op.Kind.Foldable() {
			n = op.Arg
		}
		for i := 0; i < n; i++ {
			sb.WriteByte(op.Kind.Char())
		}
	}
	return sb.String()
}

// Lex turns source text into unit-count operations.
// Characters that are not operators are dropped. Loop targets are left unresolved.
func Lex(source string) Program {
	ops := make(Program, 0, len(source))
	for i := 0; i < len(source); i++ {
		kind, ok := operatorChars[source[i]]
		if !ok {
			continue
		}
		op := Op{Kind: kind, Pos: i}
		if kind.Foldable() {
			op.Arg = 1
		}
		ops = append(ops, op)
	}
	return ops
}
