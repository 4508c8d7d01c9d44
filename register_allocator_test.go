package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xyproto/tapejit/internal/ir"
)

// live gives v an interval from def to lastUse
func live(ra *RegisterAllocator, v ir.Value, def, lastUse int) {
	ra.SetPosition(def)
	ra.DefValue(v)
	ra.SetPosition(lastUse)
	ra.UseValue(v)
}

func TestRegisterAllocatorReusesRegisters(t *testing.T) {
	ra := NewRegisterAllocator()
	live(ra, 0, 0, 2)
	live(ra, 1, 4, 6)
	live(ra, 2, 8, 10)
	ra.AllocateRegisters()

	for v := ir.Value(0); v < 3; v++ {
		reg, ok := ra.GetRegister(v)
		require.True(t, ok, "%s", v)
		assert.Equal(t, "rbx", reg, "non-overlapping values share the first register")
		assert.False(t, ra.IsSpilled(v))
	}
	assert.Equal(t, []string{"rbx"}, ra.GetUsedCalleeSaved())
}

func TestRegisterAllocatorOverlapping(t *testing.T) {
	ra := NewRegisterAllocator()
	for v := ir.Value(0); v < 5; v++ {
		live(ra, v, int(v), 20)
	}
	ra.AllocateRegisters()

	seen := map[string]bool{}
	for v := ir.Value(0); v < 5; v++ {
		reg, ok := ra.GetRegister(v)
		require.True(t, ok)
		assert.False(t, seen[reg], "%s handed out twice", reg)
		seen[reg] = true
	}
	assert.Equal(t, []string{"rbx", "r12", "r13", "r14", "r15"}, ra.GetUsedCalleeSaved())
	// Five pushes leave rsp 8 bytes off alignment
	assert.Equal(t, 8, ra.GetStackFrameSize())
}

func TestRegisterAllocatorSpillsLongestLived(t *testing.T) {
	ra := NewRegisterAllocator()
	for v := ir.Value(0); v < 5; v++ {
		live(ra, v, int(v), 20+int(v))
	}
	// Ends before every active interval, so the one ending last is spilled
	live(ra, 5, 5, 10)
	ra.AllocateRegisters()

	assert.True(t, ra.IsSpilled(4))
	slot, ok := ra.GetSpillSlot(4)
	require.True(t, ok)
	assert.Equal(t, 0, slot)
	_, ok = ra.GetRegister(4)
	assert.False(t, ok)

	reg, ok := ra.GetRegister(5)
	require.True(t, ok)
	assert.Equal(t, "r15", reg, "takes over the register of the spilled value")
}

func TestRegisterAllocatorSpillsNewInterval(t *testing.T) {
	ra := NewRegisterAllocator()
	for v := ir.Value(0); v < 5; v++ {
		live(ra, v, int(v), 20+int(v))
	}
	live(ra, 5, 5, 40)
	ra.AllocateRegisters()

	assert.True(t, ra.IsSpilled(5))
	for v := ir.Value(0); v < 5; v++ {
		assert.False(t, ra.IsSpilled(v))
	}

	// 5 pushes + 1 slot = 48 bytes below rbp, already aligned
	assert.Equal(t, 8, ra.GetStackFrameSize())
	assert.Equal(t, int32(-48), ra.SpillDisplacement(0))

	var sb bytes.Buffer
	ra.PrintAllocation(&sb)
	assert.Contains(t, sb.String(), "v5: SPILLED to slot 0")
	assert.Contains(t, sb.String(), "v0: rbx")
}

func TestRegisterAllocatorFrameAlignment(t *testing.T) {
	tests := []struct {
		values int
		frame  int
	}{
		{0, 0},
		{1, 8},
		{2, 0},
		{3, 8},
	}
	for _, tt := range tests {
		ra := NewRegisterAllocator()
		for v := 0; v < tt.values; v++ {
			live(ra, ir.Value(v), v, 10)
		}
		ra.AllocateRegisters()
		assert.Equal(t, tt.frame, ra.GetStackFrameSize(), "%d values", tt.values)
		assert.Zero(t, (len(ra.GetUsedCalleeSaved())*8+ra.GetStackFrameSize())%16)
	}
}

func TestRegisterAllocatorPrologueEpilogue(t *testing.T) {
	ra := NewRegisterAllocator()
	live(ra, 0, 0, 4)
	ra.AllocateRegisters()

	w := NewBufferWrapper()
	out := NewOut(w)
	ra.GeneratePrologue(out)
	assert.Equal(t, []byte{0x55, 0x48, 0x89, 0xE5, 0x53, 0x48, 0x83, 0xEC, 0x08}, w.Bytes())

	w = NewBufferWrapper()
	out = NewOut(w)
	ra.GenerateEpilogue(out)
	assert.Equal(t, []byte{0x48, 0x83, 0xC4, 0x08, 0x5B, 0x5D, 0xC3}, w.Bytes())
}

func TestRegisterAllocatorReset(t *testing.T) {
	ra := NewRegisterAllocator()
	live(ra, 0, 0, 4)
	ra.AllocateRegisters()
	ra.Reset()

	_, ok := ra.GetRegister(0)
	assert.False(t, ok)
	assert.False(t, ra.IsSpilled(0))
	assert.Empty(t, ra.GetUsedCalleeSaved())
	assert.Equal(t, 0, ra.GetStackFrameSize())
}
