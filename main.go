// Completion: 100% - CLI interface complete, all flags working
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tebeka/atexit"
)

// An ahead-of-execution compiler from the eight-operator tape language to x86_64

const versionString = "tapejit 1.0.0"

// demoSource prints "Hello World!\n"
const demoSource = "++++++++[>++++[>++>+++>+++>+<<<<-]>+>+>->>+[<]<-]>>.>---.+++++++..+++.>>.<-.<.+++.------.--------.>>+.>++."

// VerboseMode turns on tracing to stderr
var VerboseMode bool

func main() {
	cfg, err := DefaultConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		atexit.Exit(2)
	}

	// NOTE: Go's flag package stops parsing at the first non-flag argument,
	// so flags must come before the command: tapejit -backend ir run prog.b
	cfg.RegisterFlags(flag.CommandLine)
	var version = flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *version {
		fmt.Println(versionString)
		atexit.Exit(0)
	}

	cfg.Backend = normalizeBackend(cfg.Backend)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		atexit.Exit(2)
	}
	VerboseMode = cfg.Verbose
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "----=[ %s ]=----\n", versionString)
		fmt.Fprintf(os.Stderr, "backend=%s tape=%d eof=%s\n", cfg.Backend, cfg.TapeSize, cfg.EOF)
	}

	stdout := bufio.NewWriter(os.Stdout)
	atexit.Register(func() {
		stdout.Flush()
	})

	if err := RunCLI(flag.Args(), cfg, os.Stdin, stdout, os.Stderr); err != nil {
		stdout.Flush()
		reportError(os.Stderr, err, useColor())
		atexit.Exit(1)
	}
	atexit.Exit(0)
}

// normalizeBackend maps accepted aliases to the canonical backend names
func normalizeBackend(name string) string {
	switch name {
	case "x86", "x86_64":
		return BackendDirect
	case "ssa":
		return BackendIR
	case "interpreter":
		return BackendInterp
	}
	return name
}

// reportError prints err, with source context for syntax errors
func reportError(w io.Writer, err error, color bool) {
	var ce CompilerError
	if errors.As(err, &ce) {
		fmt.Fprint(w, ce.Format(color))
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}
