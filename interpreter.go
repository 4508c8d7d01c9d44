// Completion: 100% - Reference interpreter complete
package main

import "fmt"

// Interpret walks a resolved program over the tape.
// It is the reference the native backends are checked against. Unlike native
// code it refuses to touch a cell outside the tape.
func Interpret(program Program, tape []byte, host *Host) error {
	dp := 0
	for pc := 0; pc < len(program); pc++ {
		op := program[pc]
		switch op.Kind {
		case OpMoveRight:
			dp += op.Arg
			continue
		case OpMoveLeft:
			dp -= op.Arg
			continue
		}

		if dp < 0 || dp >= len(tape) {
			return fmt.Errorf("%w: cell %d at operation %d (%s)", ErrPointerOutOfRange, dp, pc, op.Kind)
		}

		switch op.Kind {
		case OpIncrement:
			tape[dp] += byte(op.Arg)
		case OpDecrement:
			tape[dp] -= byte(op.Arg)
		case OpEmit:
			host.Emit(tape[dp])
		case OpRead:
			tape[dp] = host.Input(tape[dp])
		case OpLoopStart:
			if tape[dp] == 0 {
				pc = op.Arg
			}
		case OpLoopEnd:
			if tape[dp] != 0 {
				pc = op.Arg
			}
		}
	}
	return host.Err()
}
