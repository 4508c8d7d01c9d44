package main

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readsByte fills the first byte of the read buffer with b
func readsByte(b byte) func([]byte) (int, error) {
	return func(p []byte) (int, error) {
		p[0] = b
		return 1, nil
	}
}

func TestHostEmitFlushesEveryByte(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	out := NewMockWriteFlusher(ctrl)
	gomock.InOrder(
		out.EXPECT().Write([]byte{'h'}).Return(1, nil),
		out.EXPECT().Flush().Return(nil),
		out.EXPECT().Write([]byte{'i'}).Return(1, nil),
		out.EXPECT().Flush().Return(nil),
	)

	host := NewHost(nil, out, EOFUnchanged)
	host.Emit('h')
	host.Emit('i')

	require.NoError(t, host.Err())
	written, read := host.Stats()
	assert.Equal(t, 2, written)
	assert.Equal(t, 0, read)
}

func TestHostWriteErrorIsSticky(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	broken := errors.New("broken pipe")
	out := NewMockWriteFlusher(ctrl)
	out.EXPECT().Write([]byte{1}).Return(0, broken)

	host := NewHost(nil, out, EOFUnchanged)
	host.Emit(1)
	host.Emit(2) // dropped, no second Write is expected

	assert.ErrorIs(t, host.Err(), broken)
	written, _ := host.Stats()
	assert.Equal(t, 0, written)
}

func TestHostFlushError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	full := errors.New("disk full")
	out := NewMockWriteFlusher(ctrl)
	out.EXPECT().Write(gomock.Any()).Return(1, nil)
	out.EXPECT().Flush().Return(full)

	host := NewHost(nil, out, EOFUnchanged)
	host.Emit('x')
	assert.ErrorIs(t, host.Err(), full)
	assert.Contains(t, host.Err().Error(), "flush")
}

func TestHostInput(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	in := NewMockReader(ctrl)
	gomock.InOrder(
		in.EXPECT().Read(gomock.Any()).DoAndReturn(readsByte('A')),
		in.EXPECT().Read(gomock.Any()).Return(0, io.EOF),
	)

	host := NewHost(in, &bytes.Buffer{}, EOFZero)
	assert.Equal(t, byte('A'), host.Input(7))
	assert.Equal(t, byte(0), host.Input(7))
	require.NoError(t, host.Err())
	_, read := host.Stats()
	assert.Equal(t, 1, read)
}

func TestHostEOFPolicies(t *testing.T) {
	tests := []struct {
		policy  EOFPolicy
		want    byte
		wantErr error
	}{
		{EOFUnchanged, 42, nil},
		{EOFZero, 0, nil},
		{EOFError, 42, io.ErrUnexpectedEOF},
	}

	for _, tt := range tests {
		t.Run(tt.policy.String(), func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			in := NewMockReader(ctrl)
			in.EXPECT().Read(gomock.Any()).Return(0, io.EOF)

			host := NewHost(in, &bytes.Buffer{}, tt.policy)
			assert.Equal(t, tt.want, host.Input(42))
			if tt.wantErr == nil {
				assert.NoError(t, host.Err())
			} else {
				assert.ErrorIs(t, host.Err(), tt.wantErr)
			}
		})
	}
}

func TestHostReadError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	bad := errors.New("device gone")
	in := NewMockReader(ctrl)
	in.EXPECT().Read(gomock.Any()).Return(0, bad)

	host := NewHost(in, &bytes.Buffer{}, EOFZero)
	assert.Equal(t, byte(9), host.Input(9))
	assert.ErrorIs(t, host.Err(), bad)
}

func TestHostWithoutInput(t *testing.T) {
	host := NewHost(nil, &bytes.Buffer{}, EOFZero)
	assert.Equal(t, byte(0), host.Input(5))
	assert.NoError(t, host.Err())
}

func TestHostPlainReader(t *testing.T) {
	// A reader without ReadByte gets buffered
	var out bytes.Buffer
	host := NewHost(io.LimitReader(strings.NewReader("xyz"), 2), &out, EOFZero)
	assert.Equal(t, byte('x'), host.Input(0))
	assert.Equal(t, byte('y'), host.Input(0))
	assert.Equal(t, byte(0), host.Input(1))
}

func TestNewWriteFlusher(t *testing.T) {
	var buf bytes.Buffer
	_, isNop := newWriteFlusher(&buf).(nopFlusher)
	assert.True(t, isNop, "in-memory buffers need no flushing")

	bw := bufio.NewWriter(&buf)
	assert.Same(t, bw, newWriteFlusher(bw))

	_, isBuffered := newWriteFlusher(io.MultiWriter(&buf)).(*bufio.Writer)
	assert.True(t, isBuffered)
}

func TestParseEOFPolicy(t *testing.T) {
	tests := map[string]EOFPolicy{
		"":          EOFUnchanged,
		"unchanged": EOFUnchanged,
		"ZERO":      EOFZero,
		" error ":   EOFError,
	}
	for in, want := range tests {
		got, err := ParseEOFPolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseEOFPolicy("explode")
	assert.Error(t, err)
}
