// Completion: 100% - Backend cross-check complete
package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"
)

// checkResult is what one backend did with the program
type checkResult struct {
	backend string
	output  []byte
	tape    []byte
	err     error
}

// cmdCheck runs a program with the interpreter and every native backend,
// feeding each the same input, and compares output, final tape and error
func cmdCheck(ctx *CommandContext, args []string) error {
	source, name, err := loadSource(ctx, args)
	if err != nil {
		return err
	}
	program, err := parseSource(source, name)
	if err != nil {
		return err
	}
	input, err := io.ReadAll(ctx.Stdin)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	reference := checkRun(ctx, BackendInterp, input, func(tape []byte, host *Host) error {
		return Interpret(program, tape, host)
	})
	fmt.Fprintf(ctx.Stdout, "%-7s %d bytes written, %s\n", reference.backend, len(reference.output), errText(reference.err))

	if errors.Is(reference.err, ErrPointerOutOfRange) {
		fmt.Fprintf(ctx.Stdout, "native backends skipped: the data pointer leaves the tape\n")
		return nil
	}
	if !ctx.Platform.CanExecute() {
		fmt.Fprintf(ctx.Stdout, "native backends skipped: %v\n", ErrUnsupportedPlatform)
		return nil
	}

	codes, err := lowerAll(program, []string{BackendDirect, BackendIR})
	if err != nil {
		return err
	}

	mismatches := 0
	for _, backend := range []string{BackendDirect, BackendIR} {
		code := codes[backend]
		result := checkRun(ctx, backend, input, func(tape []byte, host *Host) error {
			return Run(code, tape, host)
		})
		problem := compareResults(reference, result)
		if problem == "" {
			fmt.Fprintf(ctx.Stdout, "%-7s %d bytes of code, same result\n", backend, len(code))
			continue
		}
		mismatches++
		fmt.Fprintf(ctx.Stdout, "%-7s %d bytes of code, %s\n", backend, len(code), problem)
	}
	if mismatches > 0 {
		return fmt.Errorf("%w: %d of 2 native backends", ErrBackendMismatch, mismatches)
	}
	return nil
}

// lowerAll compiles program with every named backend in parallel
func lowerAll(program Program, names []string) (map[string]CompiledCode, error) {
	hooks, err := HostHooks()
	if err != nil {
		return nil, err
	}
	codes := make([]CompiledCode, len(names))
	var g errgroup.Group
	for i, backendName := range names {
		i, backendName := i, backendName
		g.Go(func() error {
			backend, err := NewBackend(backendName, hooks)
			if err != nil {
				return err
			}
			code, err := backend.Lower(program)
			if err != nil {
				return fmt.Errorf("%s backend: %w", backend.Name(), err)
			}
			codes[i] = code
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	byName := make(map[string]CompiledCode, len(names))
	for i, backendName := range names {
		byName[backendName] = codes[i]
	}
	return byName, nil
}

func checkRun(ctx *CommandContext, backend string, input []byte, run func([]byte, *Host) error) checkResult {
	var out bytes.Buffer
	tape := make([]byte, ctx.Config.TapeSize)
	host := NewHost(bytes.NewReader(input), &out, ctx.Config.EOF)
	err := run(tape, host)
	return checkResult{backend: backend, output: out.Bytes(), tape: tape, err: err}
}

// compareResults describes how got differs from want, or returns ""
func compareResults(want, got checkResult) string {
	if !bytes.Equal(want.output, got.output) {
		n := 0
		for n < len(want.output) && n < len(got.output) && want.output[n] == got.output[n] {
			n++
		}
		return fmt.Sprintf("output differs at byte %d (%d vs %d bytes)", n, len(got.output), len(want.output))
	}
	if (want.err == nil) != (got.err == nil) {
		return fmt.Sprintf("error differs: %s vs %s", errText(got.err), errText(want.err))
	}
	for i := range want.tape {
		if want.tape[i] != got.tape[i] {
			return fmt.Sprintf("cell %d is %d, expected %d", i, got.tape[i], want.tape[i])
		}
	}
	return ""
}

func errText(err error) string {
	if err == nil {
		return "no error"
	}
	return err.Error()
}
