// Completion: 100% - Peephole folding implemented and working
package main

import (
	"fmt"
	"os"
)

// optimizer.go - Peephole folding
//
// Every maximal run of adjacent identical pointer moves or cell
// increments/decrements becomes one operation carrying the run length.
// I/O and loop operations are copied through unchanged, so the result is
// never longer than the input and folding a folded program is a no-op.

// Fold coalesces repeated operations into counted operations
func Fold(ops Program) Program {
	folded := make(Program, 0, len(ops))
	for _, op := range ops {
		if n := len(folded); n > 0 && op.Kind.Foldable() && folded[n-1].Kind == op.Kind {
			folded[n-1].Arg += op.Arg
			continue
		}
		folded = append(folded, op)
	}

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "fold: %d operations -> %d\n", len(ops), len(folded))
	}
	return folded
}
