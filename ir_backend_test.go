package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xyproto/tapejit/internal/ir"
)

func buildIR(t *testing.T, source string) *ir.Function {
	t.Helper()
	program, err := Parse(source)
	require.NoError(t, err)
	f, err := NewIRBackend(testHooks).Build(program)
	require.NoError(t, err)
	return f
}

func TestIRBuildStraightLine(t *testing.T) {
	f := buildIR(t, "+>.")
	require.NoError(t, ir.Verify(f))
	assert.Equal(t, 1, f.NumBlocks())

	text := f.String()
	assert.True(t, strings.HasPrefix(text, "function %tape(i64) -> i64 system_v {\n"), text)
	assert.Contains(t, text, "load.i8")
	assert.Contains(t, text, "iadd_imm")
	assert.Contains(t, text, "store ")
	assert.Contains(t, text, "call_indirect (i8) system_v")
	assert.Contains(t, text, "return ")
	assert.NotContains(t, text, "brif")
}

func TestIRBuildLoops(t *testing.T) {
	f := buildIR(t, "+[>[-]<-]")
	require.NoError(t, ir.Verify(f))
	// entry plus a body and an exit block per loop
	assert.Equal(t, 5, f.NumBlocks())
	assert.Equal(t, 4, strings.Count(f.String(), "brif"))

	// The data pointer flows through block parameters
	params := 0
	for _, b := range f.Layout() {
		params += len(f.Params(b))
	}
	assert.Greater(t, params, 1)
}

func TestIRBuildCallsPerIO(t *testing.T) {
	f := buildIR(t, ".,.,,")
	assert.Equal(t, 5, strings.Count(f.String(), "call_indirect"))
	assert.Equal(t, 3, strings.Count(f.String(), "call_indirect (i64) system_v"))
}

func TestIRBuildWrapsCellCounts(t *testing.T) {
	f := buildIR(t, strings.Repeat("-", 258))
	assert.Contains(t, f.String(), "iadd_imm")
	assert.Contains(t, f.String(), ", -2\n")
}

func TestIRBuildRejectsUnresolved(t *testing.T) {
	_, err := NewIRBackend(testHooks).Build(Program{{Kind: OpLoopEnd, Arg: 0}})
	assert.Error(t, err)
}

func TestIRLowerFrame(t *testing.T) {
	for _, source := range []string{"", "+", "+[-]", "[>>+.<<-]", demoSource, ",[.,]"} {
		_, code, err := Compile(source, NewIRBackend(testHooks))
		require.NoError(t, err, source)
		require.Greater(t, len(code), 5)
		assert.Equal(t, []byte{0x55, 0x48, 0x89, 0xE5}, []byte(code[:4]), "%q starts with push rbp; mov rbp, rsp", source)
		assert.Equal(t, byte(0xC3), code[len(code)-1], "%q ends with ret", source)
	}
}

func TestIRLowerLoops(t *testing.T) {
	for _, source := range []string{"[]", "+[-]", "++[>+<-]>.", "+[>[-]<-]", "[-][-]"} {
		program, err := Parse(source)
		require.NoError(t, err)
		f, err := NewIRBackend(testHooks).Build(program)
		require.NoError(t, err, source)
		require.NoError(t, ir.Verify(f), source)
		_, err = NewIRBackend(testHooks).Lower(program)
		assert.NoError(t, err, source)
	}
}

func TestIRBuildLayoutEndsWithReturn(t *testing.T) {
	for _, source := range []string{"+[>[-]<-]", "[-][-]>", demoSource} {
		f := buildIR(t, source)
		layout := f.Layout()
		require.NotEmpty(t, layout)
		assert.Equal(t, f.Entry(), layout[0], source)
		for i, b := range layout {
			isReturn := f.Terminator(b).Op == ir.OpReturn
			assert.Equal(t, i == len(layout)-1, isReturn, "%q: %s", source, b)
		}
	}
}

func TestIRLowerNeedsHooks(t *testing.T) {
	_, err := NewIRBackend(Hooks{}).Lower(Program{})
	assert.Error(t, err)
}

func TestIRLowerHandBuiltLoop(t *testing.T) {
	// Counts a parameter down to zero through a block parameter
	sig := ir.Signature{Params: []ir.Type{ir.I64}, Returns: []ir.Type{ir.I64}}
	b := ir.NewBuilder("countdown", sig)
	entry := b.CreateBlock()
	loop := b.CreateBlock()
	exit := b.CreateBlock()

	b.AppendBlockParamsForFunctionParams(entry)
	b.SwitchToBlock(entry)
	n := b.BlockParams(entry)[0]
	b.Jump(loop, n)

	counter := b.AppendBlockParam(loop, ir.I64)
	b.SwitchToBlock(loop)
	next := b.IaddImm(counter, -1)
	b.Brif(next, loop, []ir.Value{next}, exit, nil)

	b.SwitchToBlock(exit)
	b.Return(b.Iconst(ir.I64, 0))
	b.SealAllBlocks()

	f, err := b.Finalize()
	require.NoError(t, err)
	code, err := LowerFunction(f)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x55, 0x48, 0x89, 0xE5}, []byte(code[:4]))
	assert.Equal(t, byte(0xC3), code[len(code)-1])
}

func TestNewBackend(t *testing.T) {
	for name, want := range map[string]string{
		"direct": BackendDirect,
		"X86_64": BackendDirect,
		"ir":     BackendIR,
		"ssa":    BackendIR,
	} {
		backend, err := NewBackend(name, testHooks)
		require.NoError(t, err, name)
		assert.Equal(t, want, backend.Name())
	}
	_, err := NewBackend(BackendInterp, testHooks)
	assert.Error(t, err, "the interpreter generates no code")
}

func TestCompileReportsSyntaxErrors(t *testing.T) {
	_, _, err := Compile("[[", NewX86_64CodeGen(testHooks))
	assert.True(t, IsSyntaxError(err))
}
