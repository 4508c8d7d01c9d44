// stack_validator.go - Track stack operations to detect corruption
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrStackImbalance is returned when generated code would leave rsp somewhere
// other than where it started
var ErrStackImbalance = errors.New("stack imbalance")

// StackValidator mirrors the pushes, pops and rsp adjustments a code
// generator emits
type StackValidator struct {
	depth      int      // Current stack depth (in 8-byte words)
	operations []string // History of operations for error messages
}

func NewStackValidator() *StackValidator {
	return &StackValidator{
		operations: make([]string, 0, 32),
	}
}

func (sv *StackValidator) record(format string, args ...any) {
	op := fmt.Sprintf(format, args...)
	sv.operations = append(sv.operations, op)
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "STACK: %s\n", op)
	}
}

func (sv *StackValidator) Push(what string) {
	sv.depth++
	sv.record("push %s (depth=%d)", what, sv.depth)
}

func (sv *StackValidator) Pop(what string) error {
	if sv.depth <= 0 {
		return sv.fail("pop %s with depth %d", what, sv.depth)
	}
	sv.depth--
	sv.record("pop %s (depth=%d)", what, sv.depth)
	return nil
}

func (sv *StackValidator) Sub(amount int) {
	sv.depth += amount / 8
	sv.record("sub rsp, %d (depth=%d)", amount, sv.depth)
}

func (sv *StackValidator) Add(amount int) error {
	words := amount / 8
	if sv.depth < words {
		return sv.fail("add rsp, %d with depth %d", amount, sv.depth)
	}
	sv.depth -= words
	sv.record("add rsp, %d (depth=%d)", amount, sv.depth)
	return nil
}

// Depth returns the number of 8-byte words currently pushed
func (sv *StackValidator) Depth() int {
	return sv.depth
}

func (sv *StackValidator) Checkpoint(label string) int {
	sv.record("checkpoint %s (depth=%d)", label, sv.depth)
	return sv.depth
}

// Validate returns an error unless the depth is back at checkpointDepth
func (sv *StackValidator) Validate(checkpointDepth int, label string) error {
	if sv.depth != checkpointDepth {
		return sv.fail("at %s: expected depth %d, got %d", label, checkpointDepth, sv.depth)
	}
	return nil
}

// fail builds an error carrying the most recent operations
func (sv *StackValidator) fail(format string, args ...any) error {
	start := max(len(sv.operations)-10, 0)
	return fmt.Errorf("%w: %s\nrecent operations:\n  %s", ErrStackImbalance,
		fmt.Sprintf(format, args...), strings.Join(sv.operations[start:], "\n  "))
}

func (sv *StackValidator) Reset() {
	sv.depth = 0
	sv.operations = sv.operations[:0]
}
