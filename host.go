// Completion: 100% - Host I/O complete
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// EOFPolicy decides what a read does to the current cell once input is exhausted
type EOFPolicy int

const (
	EOFUnchanged EOFPolicy = iota // leave the cell as it was
	EOFZero                       // store 0 in the cell
	EOFError                      // leave the cell as it was and fail the run
)

func (p EOFPolicy) String() string {
	switch p {
	case EOFUnchanged:
		return "unchanged"
	case EOFZero:
		return "zero"
	case EOFError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseEOFPolicy parses a policy name as used by the -eof flag
func ParseEOFPolicy(s string) (EOFPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unchanged", "keep":
		return EOFUnchanged, nil
	case "zero", "0":
		return EOFZero, nil
	case "error", "fail":
		return EOFError, nil
	default:
		return 0, fmt.Errorf("unknown EOF policy: %s (supported: unchanged, zero, error)", s)
	}
}

// WriteFlusher is a flush-able io.Writer
type WriteFlusher interface {
	io.Writer
	Flush() error
}

type nopFlusher struct{ io.Writer }

func (nf nopFlusher) Flush() error { return nil }

// newWriteFlusher returns w itself if it can flush, a no-op flusher for
// in-memory buffers, and a bufio.Writer otherwise
func newWriteFlusher(w io.Writer) WriteFlusher {
	if wf, ok := w.(WriteFlusher); ok {
		return wf
	}
	type buffer interface {
		io.Writer
		Len() int
		Reset()
	}
	if _, ok := w.(buffer); ok {
		return nopFlusher{w}
	}
	return bufio.NewWriter(w)
}

// Host implements the two foreign routines generated code calls:
// writing one byte (flushed immediately) and reading one byte.
// Errors are sticky: the first one is kept and later output is dropped.
type Host struct {
	in  io.ByteReader
	out WriteFlusher
	eof EOFPolicy
	err error

	written int
	read    int
}

// NewHost binds the foreign routines to a reader and a writer
func NewHost(in io.Reader, out io.Writer, eof EOFPolicy) *Host {
	h := &Host{
		out: newWriteFlusher(out),
		eof: eof,
	}
	if in != nil {
		if br, ok := in.(io.ByteReader); ok {
			h.in = br
		} else {
			h.in = bufio.NewReaderSize(in, 1)
		}
	}
	return h
}

// Emit writes and flushes exactly one byte
func (h *Host) Emit(b byte) {
	if h.err != nil {
		return
	}
	if _, err := h.out.Write([]byte{b}); err != nil {
		h.fail(fmt.Errorf("write: %w", err))
		return
	}
	if err := h.out.Flush(); err != nil {
		h.fail(fmt.Errorf("flush: %w", err))
		return
	}
	h.written++
}

// Input blocks until one byte is available and returns the new cell value.
// On end of input the EOF policy decides the value.
func (h *Host) Input(current byte) byte {
	if h.in == nil {
		return h.atEOF(current)
	}
	b, err := h.in.ReadByte()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return h.atEOF(current)
		}
		h.fail(fmt.Errorf("read: %w", err))
		return current
	}
	h.read++
	return b
}

func (h *Host) atEOF(current byte) byte {
	switch h.eof {
	case EOFZero:
		return 0
	case EOFError:
		h.fail(io.ErrUnexpectedEOF)
	}
	return current
}

func (h *Host) fail(err error) {
	if h.err == nil {
		h.err = err
	}
}

// Err returns the first I/O error seen, if any
func (h *Host) Err() error {
	return h.err
}

// Stats returns the number of bytes written and read so far
func (h *Host) Stats() (written, read int) {
	return h.written, h.read
}
