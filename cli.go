// Completion: 100% - Utility module complete
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xyproto/tapejit/internal/engine"
)

// cli.go - command-line interface for tapejit
//
// Subcommands:
// - tapejit run [file|-]   (default: compile and execute)
// - tapejit dump [file|-]  (print or save the generated machine code)
// - tapejit ir [file|-]    (print the IR function)
// - tapejit check [file|-] (run every backend and compare the results)
// - tapejit watch file     (run again every time the file is saved)
// - tapejit version | help
//
// Without a file (and without -e) the built-in demo program is used.

// CommandContext holds the execution context for a CLI command
type CommandContext struct {
	Args     []string
	Config   Config
	Platform engine.Platform
	Stdin    io.Reader
	Stdout   io.Writer
	Stderr   io.Writer
}

var commands = []string{"run", "dump", "ir", "check", "watch", "version", "help"}

// RunCLI is the main entry point for the command-line interface.
// It determines which command to run based on arguments.
func RunCLI(args []string, cfg Config, stdin io.Reader, stdout, stderr io.Writer) error {
	ctx := &CommandContext{
		Args:     args,
		Config:   cfg,
		Platform: engine.Host(),
		Stdin:    stdin,
		Stdout:   stdout,
		Stderr:   stderr,
	}

	if len(args) == 0 {
		return cmdRun(ctx, nil)
	}

	subcmd := args[0]
	switch subcmd {
	case "run":
		return cmdRun(ctx, args[1:])
	case "dump":
		return cmdDump(ctx, args[1:])
	case "ir":
		return cmdIR(ctx, args[1:])
	case "check":
		return cmdCheck(ctx, args[1:])
	case "watch":
		return cmdWatch(ctx, args[1:])
	case "help", "--help", "-h":
		return cmdHelp(ctx)
	case "version", "--version", "-V":
		fmt.Fprintln(ctx.Stdout, versionString)
		return nil
	}

	// A readable file is shorthand for run
	if info, err := os.Stat(subcmd); err == nil && !info.IsDir() {
		return cmdRun(ctx, args)
	}

	msg := fmt.Sprintf("unknown command: %s", subcmd)
	if suggestions := engine.Suggest(subcmd, commands, 2); len(suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(suggestions, " or "))
	}
	return fmt.Errorf("%s\n\nRun 'tapejit help' for usage information", msg)
}

// loadSource returns the program text and a name for it in diagnostics
func loadSource(ctx *CommandContext, args []string) (string, string, error) {
	if ctx.Config.Source != "" {
		return ctx.Config.Source, "<command line>", nil
	}
	if len(args) == 0 {
		return demoSource, "<demo>", nil
	}
	if len(args) > 1 {
		return "", "", fmt.Errorf("expected one source file, got %d", len(args))
	}
	name := args[0]
	if name == "-" {
		data, err := io.ReadAll(ctx.Stdin)
		if err != nil {
			return "", "", fmt.Errorf("reading program from stdin: %w", err)
		}
		return string(data), "<stdin>", nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return "", "", err
	}
	return string(data), name, nil
}

// parseSource parses source and names the file in syntax errors
func parseSource(source, name string) (Program, error) {
	program, err := Parse(source)
	if err != nil {
		var ce CompilerError
		if errors.As(err, &ce) {
			ce.Location.File = name
			return nil, ce
		}
		return nil, err
	}
	return program, nil
}

// cmdRun compiles a program with the configured backend and executes it
func cmdRun(ctx *CommandContext, args []string) error {
	source, name, err := loadSource(ctx, args)
	if err != nil {
		return err
	}
	program, err := parseSource(source, name)
	if err != nil {
		return err
	}

	tape := make([]byte, ctx.Config.TapeSize)
	host := NewHost(ctx.Stdin, ctx.Stdout, ctx.Config.EOF)

	if ctx.Config.Backend == BackendInterp {
		return Interpret(program, tape, host)
	}

	if !ctx.Platform.CanExecute() {
		return fmt.Errorf("%w (this is %s), use -backend interp", ErrUnsupportedPlatform, ctx.Platform.FullString())
	}
	hooks, err := HostHooks()
	if err != nil {
		return err
	}
	backend, err := NewBackend(ctx.Config.Backend, hooks)
	if err != nil {
		return err
	}
	code, err := backend.Lower(program)
	if err != nil {
		return fmt.Errorf("%s backend: %w", backend.Name(), err)
	}
	if VerboseMode {
		fmt.Fprintf(ctx.Stderr, "%s: %d operations, %d bytes of code from the %s backend\n", name, len(program), len(code), backend.Name())
	}
	return Run(code, tape, host)
}

// placeholderHooks stand in for the host routines when code is only dumped
// on a host that cannot run it
var placeholderHooks = Hooks{EmitByte: 0x1000, ReadByte: 0x2000}

// cmdDump prints the generated machine code, or writes it to -o
func cmdDump(ctx *CommandContext, args []string) error {
	source, name, err := loadSource(ctx, args)
	if err != nil {
		return err
	}
	program, err := parseSource(source, name)
	if err != nil {
		return err
	}
	if ctx.Config.Backend == BackendInterp {
		return fmt.Errorf("the interp backend generates no code")
	}

	hooks, err := HostHooks()
	if err != nil {
		hooks = placeholderHooks
	}
	backend, err := NewBackend(ctx.Config.Backend, hooks)
	if err != nil {
		return err
	}
	code, err := backend.Lower(program)
	if err != nil {
		return fmt.Errorf("%s backend: %w", backend.Name(), err)
	}

	if ctx.Config.Output != "" {
		if err := os.WriteFile(ctx.Config.Output, code, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(ctx.Stderr, "wrote %d bytes to %s\n", len(code), ctx.Config.Output)
		return nil
	}
	fmt.Fprint(ctx.Stdout, hexListing(code))
	return nil
}

// hexListing formats code as offset-prefixed lines of 16 bytes
func hexListing(code []byte) string {
	var sb strings.Builder
	for off := 0; off < len(code); off += 16 {
		end := min(off+16, len(code))
		fmt.Fprintf(&sb, "%08x ", off)
		for _, b := range code[off:end] {
			fmt.Fprintf(&sb, " %02x", b)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// cmdIR prints the IR function built for the program
func cmdIR(ctx *CommandContext, args []string) error {
	source, name, err := loadSource(ctx, args)
	if err != nil {
		return err
	}
	program, err := parseSource(source, name)
	if err != nil {
		return err
	}
	hooks, err := HostHooks()
	if err != nil {
		hooks = placeholderHooks
	}
	f, err := NewIRBackend(hooks).Build(program)
	if err != nil {
		return err
	}
	fmt.Fprint(ctx.Stdout, f.String())
	return nil
}

func cmdHelp(ctx *CommandContext) error {
	fmt.Fprintf(ctx.Stdout, `%s - ahead-of-execution compiler for the eight-operator tape language

USAGE:
    tapejit [flags] <command> [file|-]

COMMANDS:
    run [file]      Compile and execute a program (default command)
    dump [file]     Print the generated x86_64 machine code as hex
    ir [file]       Print the IR function the ir backend lowers
    check [file]    Run the program with every backend and compare the results
    watch <file>    Run the program again every time the file is saved (Ctrl-C stops)
    help            Show this help message
    version         Show version information

    Without a file the built-in demo program is used. "-" reads the program
    from stdin. A file name alone is the same as 'tapejit run <file>'.

FLAGS (must come before the command):
    -backend <name>    Code generator: direct, ir or interp (default: direct)
    -tape <cells>      Number of tape cells (default: %d)
    -eof <policy>      End of input: unchanged, zero or error (default: unchanged)
    -e <source>        Program source given on the command line
    -o <file>          Write dumped machine code to a file
    -v, -verbose       Trace parsing, emitted bytes and register allocation

ENVIRONMENT:
    TAPEJIT_BACKEND, TAPEJIT_TAPE_SIZE, TAPEJIT_EOF, TAPEJIT_VERBOSE
    provide defaults for the flags above.

EXAMPLES:
    tapejit
    tapejit -e '++++++++[>++++++++<-]>+.' run
    tapejit -backend ir hello.b
    tapejit -backend ir dump -o hello.bin hello.b
    echo 'abc' | tapejit -e ',[.,]' -eof zero

`, versionString, DefaultTapeSize)
	return nil
}
