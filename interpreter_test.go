package main

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// interpret parses and runs source on a fresh tape, returning the output
func interpret(t *testing.T, source, input string, eof EOFPolicy) (string, []byte, error) {
	t.Helper()
	program, err := Parse(source)
	require.NoError(t, err)
	tape := make([]byte, DefaultTapeSize)
	var out bytes.Buffer
	err = Interpret(program, tape, NewHost(strings.NewReader(input), &out, eof))
	return out.String(), tape, err
}

func TestInterpret(t *testing.T) {
	tests := []struct {
		name   string
		source string
		input  string
		want   string
	}{
		{"empty", "", "", ""},
		{"comment only", "no operators here", "", ""},
		{"three", "+++.", "", "\x03"},
		{"wrap down", "-.", "", "\xff"},
		{"wrap up", strings.Repeat("+", 257) + ".", "", "\x01"},
		{"clear", "+[-]", "", ""},
		{"echo", ",.", "A", "A"},
		{"cat", ",[.,]", "tape", "tape"},
		{"hello", demoSource, "", "Hello World!\n"},
		{"nested", "++[>++[>+<-]<-]>>.", "", "\x04"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := interpret(t, tt.source, tt.input, EOFZero)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInterpretLeavesTape(t *testing.T) {
	_, tape, err := interpret(t, "+[-]>++>+++<", "", EOFUnchanged)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 2, 3, 0}, tape[:4])
}

func TestInterpretEOF(t *testing.T) {
	// The cell holds 5 when the read finds no input
	out, tape, err := interpret(t, "+++++,", "", EOFUnchanged)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, byte(5), tape[0])

	_, tape, err = interpret(t, "+++++,", "", EOFZero)
	require.NoError(t, err)
	assert.Equal(t, byte(0), tape[0])

	_, tape, err = interpret(t, "+++++,", "", EOFError)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, byte(5), tape[0])
}

func TestInterpretPointerOutOfRange(t *testing.T) {
	program, err := Parse("<+")
	require.NoError(t, err)
	err = Interpret(program, make([]byte, 8), NewHost(nil, io.Discard, EOFZero))
	assert.ErrorIs(t, err, ErrPointerOutOfRange)

	program, err = Parse(">>>>>>>>.")
	require.NoError(t, err)
	err = Interpret(program, make([]byte, 8), NewHost(nil, io.Discard, EOFZero))
	assert.ErrorIs(t, err, ErrPointerOutOfRange)

	// Moving away and back without touching a cell is fine
	program, err = Parse("<<<>>>+")
	require.NoError(t, err)
	assert.NoError(t, Interpret(program, make([]byte, 8), NewHost(nil, io.Discard, EOFZero)))
}
