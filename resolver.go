// Completion: 100% - Bracket matching complete
package main

import (
	"errors"
	"fmt"
	"os"
)

const (
	msgUnpaired   = "unpaired brackets"
	msgUnbalanced = "unbalanced brackets"
)

// Resolve matches loop brackets and stores direct index targets.
// A LoopEnd's target is its LoopStart and the LoopStart's target is that LoopEnd.
// The input is not modified.
func Resolve(ops Program) (Program, error) {
	resolved := make(Program, len(ops))
	copy(resolved, ops)

	var pending []int
	for i := range resolved {
		switch resolved[i].Kind {
		case OpLoopStart:
			pending = append(pending, i)
		case OpLoopEnd:
			if len(pending) == 0 {
				return nil, CompilerError{
					Level:    LevelFatal,
					Category: CategorySyntax,
					Message:  msgUnpaired,
					Location: SourceLocation{Offset: resolved[i].Pos},
				}
			}
			start := pending[len(pending)-1]
			pending = pending[:len(pending)-1]
			resolved[i].Arg = start
			resolved[start].Arg = i
		}
	}

	if len(pending) > 0 {
		// Report the innermost bracket left open
		return nil, CompilerError{
			Level:    LevelFatal,
			Category: CategorySyntax,
			Message:  msgUnbalanced,
			Location: SourceLocation{Offset: resolved[pending[len(pending)-1]].Pos},
		}
	}

	return resolved, nil
}

// Parse runs the front end: lexing, folding and bracket resolution
func Parse(source string) (Program, error) {
	program, err := Resolve(Fold(Lex(source)))
	if err != nil {
		var ce CompilerError
		if errors.As(err, &ce) {
			return nil, BracketError(source, ce.Message, ce.Location.Offset)
		}
		return nil, err
	}

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "parse: %d bytes of source -> %d operations\n", len(source), len(program))
	}
	return program, nil
}

// Validate checks the symmetric pairing of a resolved program
func (p Program) Validate() error {
	for i, op := range p {
		if !op.Kind.IsLoop() {
			if op.Kind.Foldable() && op.Arg <= 0 {
				return fmt.Errorf("operation %d (%s) has non-positive count %d", i, op.Kind, op.Arg)
			}
			continue
		}
		t := op.Arg
		if t < 0 || t >= len(p) {
			return fmt.Errorf("operation %d (%s) targets %d, outside the program", i, op.Kind, t)
		}
		want := OpLoopEnd
		if op.Kind == OpLoopEnd {
			want = OpLoopStart
		}
		if p[t].Kind != want || p[t].Arg != i {
			return fmt.Errorf("operation %d (%s) and %d (%s) are not paired", i, op.Kind, t, p[t].Kind)
		}
	}
	return nil
}
