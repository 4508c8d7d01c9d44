// Completion: 100% - Error handling complete, clear and helpful messages
package main

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorLevel indicates the severity of an error
type ErrorLevel int

const (
	LevelWarning ErrorLevel = iota
	LevelError
	LevelFatal
)

func (l ErrorLevel) String() string {
	switch l {
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal error"
	default:
		return "unknown"
	}
}

// ErrorCategory classifies the type of error
type ErrorCategory int

const (
	CategorySyntax ErrorCategory = iota
	CategoryCodegen
	CategoryResource
	CategoryRuntime
	CategoryInternal
)

func (c ErrorCategory) String() string {
	switch c {
	case CategorySyntax:
		return "syntax"
	case CategoryCodegen:
		return "codegen"
	case CategoryResource:
		return "resource"
	case CategoryRuntime:
		return "runtime"
	case CategoryInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// SourceLocation represents a position in source code
type SourceLocation struct {
	File   string
	Offset int // Byte offset into the source text
	Line   int
	Column int
}

func (loc SourceLocation) String() string {
	if loc.File == "" {
		return fmt.Sprintf("%d:%d", loc.Line, loc.Column)
	}
	return fmt.Sprintf("%s:%d:%d", loc.File, loc.Line, loc.Column)
}

// locate turns a byte offset into a line/column location
func locate(source string, offset int) SourceLocation {
	if offset > len(source) {
		offset = len(source)
	}
	before := source[:offset]
	line := strings.Count(before, "\n") + 1
	column := offset - strings.LastIndexByte(before, '\n')
	return SourceLocation{Offset: offset, Line: line, Column: column}
}

// CompilerError represents a single compilation error
type CompilerError struct {
	Level      ErrorLevel
	Category   ErrorCategory
	Message    string
	Location   SourceLocation
	SourceLine string // The source line holding the problem, if known
	HelpText   string
}

// Error implements the error interface
func (e CompilerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Location, e.Message)
}

// Format returns a nicely formatted error message with context
func (e CompilerError) Format(useColor bool) string {
	var sb strings.Builder

	if useColor {
		sb.WriteString("\033[1;31m") // Bold red
	}
	sb.WriteString(e.Level.String())
	sb.WriteString(": ")
	if useColor {
		sb.WriteString("\033[0m")
	}
	sb.WriteString(e.Message)
	sb.WriteString("\n")

	if useColor {
		sb.WriteString("\033[1;34m") // Bold blue
	}
	sb.WriteString("  --> ")
	sb.WriteString(e.Location.String())
	if useColor {
		sb.WriteString("\033[0m")
	}
	sb.WriteString("\n")

	if e.SourceLine != "" {
		lineNum := fmt.Sprintf("%d", e.Location.Line)
		padding := strings.Repeat(" ", len(lineNum)+1)

		sb.WriteString(padding)
		sb.WriteString("|\n")
		sb.WriteString(lineNum)
		sb.WriteString(" | ")
		sb.WriteString(e.SourceLine)
		sb.WriteString("\n")
		sb.WriteString(padding)
		sb.WriteString("| ")
		if e.Location.Column > 0 {
			sb.WriteString(strings.Repeat(" ", e.Location.Column-1))
			if useColor {
				sb.WriteString("\033[1;31m")
			}
			sb.WriteString("^")
			if useColor {
				sb.WriteString("\033[0m")
			}
		}
		sb.WriteString("\n")
	}

	if e.HelpText != "" {
		if useColor {
			sb.WriteString("\033[1;36m") // Bold cyan
		}
		sb.WriteString("   note: ")
		if useColor {
			sb.WriteString("\033[0m")
		}
		sb.WriteString(e.HelpText)
		sb.WriteString("\n")
	}

	return sb.String()
}

// BracketError creates a syntax error for a loop bracket at the given offset
func BracketError(source, message string, offset int) CompilerError {
	loc := locate(source, offset)
	lines := strings.Split(source, "\n")
	sourceLine := ""
	if loc.Line-1 < len(lines) {
		sourceLine = lines[loc.Line-1]
	}
	return CompilerError{
		Level:      LevelFatal,
		Category:   CategorySyntax,
		Message:    message,
		Location:   loc,
		SourceLine: sourceLine,
		HelpText:   "every '[' needs a matching ']' later in the source",
	}
}

// ResourceError creates a fatal error for failed memory operations
func ResourceError(message string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrResource, message, err)
}

var (
	// ErrResource marks failures to allocate or protect executable memory
	ErrResource = errors.New("resource error")

	// ErrUnsupportedPlatform is returned when native code cannot run on this host
	ErrUnsupportedPlatform = errors.New("native execution requires an amd64 host running Linux or macOS")

	// ErrPointerOutOfRange is reported when a cell outside the tape is accessed
	// by the reference interpreter, or read into through the host
	ErrPointerOutOfRange = errors.New("data pointer moved outside the tape")

	// ErrBackendMismatch is returned by check when a backend disagrees with the interpreter
	ErrBackendMismatch = errors.New("backends disagree")
)

// IsSyntaxError reports whether err is a malformed-source error
func IsSyntaxError(err error) bool {
	var ce CompilerError
	return errors.As(err, &ce) && ce.Category == CategorySyntax
}
