// Completion: 100% - Configuration complete
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/xyproto/env/v2"
)

// DefaultTapeSize is the number of cells given to a program
const DefaultTapeSize = 30000

// Environment variables that provide defaults for the command-line flags
const (
	envBackend  = "TAPEJIT_BACKEND"
	envTapeSize = "TAPEJIT_TAPE_SIZE"
	envEOF      = "TAPEJIT_EOF"
	envVerbose  = "TAPEJIT_VERBOSE"
)

// Config holds everything that can be chosen from the command line
type Config struct {
	Backend  string
	TapeSize int
	EOF      EOFPolicy
	Verbose  bool
	Source   string // program text given with -e
	Output   string // file written by dump
}

// DefaultConfig returns the built-in defaults overridden by the environment
func DefaultConfig() (Config, error) {
	cfg := Config{
		Backend:  strings.ToLower(env.Str(envBackend, BackendDirect)),
		TapeSize: env.Int(envTapeSize, DefaultTapeSize),
		Verbose:  env.Bool(envVerbose),
	}
	eof, err := ParseEOFPolicy(env.Str(envEOF, EOFUnchanged.String()))
	if err != nil {
		return cfg, fmt.Errorf("%s: %w", envEOF, err)
	}
	cfg.EOF = eof
	return cfg, cfg.Validate()
}

// Set makes EOFPolicy usable as a flag.Value
func (p *EOFPolicy) Set(s string) error {
	policy, err := ParseEOFPolicy(s)
	if err != nil {
		return err
	}
	*p = policy
	return nil
}

// RegisterFlags binds the configuration to fs, using the current values as defaults
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Backend, "backend", c.Backend, "code generator: direct, ir or interp")
	fs.IntVar(&c.TapeSize, "tape", c.TapeSize, "number of tape cells")
	fs.Var(&c.EOF, "eof", "end of input policy: unchanged, zero or error")
	fs.BoolVar(&c.Verbose, "v", c.Verbose, "verbose mode (trace emitted code and allocation)")
	fs.BoolVar(&c.Verbose, "verbose", c.Verbose, "verbose mode (trace emitted code and allocation)")
	fs.StringVar(&c.Source, "e", c.Source, "program source given on the command line")
	fs.StringVar(&c.Output, "o", c.Output, "write dumped machine code to this file")
}

// Validate checks the configuration for values that cannot work
func (c Config) Validate() error {
	switch c.Backend {
	case BackendDirect, BackendIR, BackendInterp:
	default:
		return fmt.Errorf("unknown backend %q (supported: direct, ir, interp)", c.Backend)
	}
	if c.TapeSize <= 0 {
		return fmt.Errorf("tape size must be positive, got %d", c.TapeSize)
	}
	return nil
}

// useColor reports whether diagnostics on stderr should be colored
func useColor() bool {
	if env.Has("NO_COLOR") {
		return false
	}
	fi, err := os.Stderr.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
