package engine

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArch(t *testing.T) {
	tests := []struct {
		in   string
		want Arch
	}{
		{"amd64", ArchX86_64},
		{"x86-64", ArchX86_64},
		{"arm64", ArchARM64},
		{"rv64", ArchRiscv64},
	}
	for _, tt := range tests {
		got, err := ParseArch(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseArch("mips")
	assert.Error(t, err)
}

func TestHostCanExecute(t *testing.T) {
	host := Host()
	want := runtime.GOARCH == "amd64" && (runtime.GOOS == "linux" || runtime.GOOS == "darwin")
	assert.Equal(t, want, host.CanExecute(), host.FullString())

	assert.True(t, Platform{Arch: ArchX86_64, OS: OSLinux}.CanExecute())
	assert.False(t, Platform{Arch: ArchARM64, OS: OSLinux}.CanExecute())
	assert.False(t, Platform{Arch: ArchX86_64, OS: OSWindows}.CanExecute())
	assert.Equal(t, "x86_64-linux", Platform{Arch: ArchX86_64, OS: OSLinux}.String())
}

func TestSuggest(t *testing.T) {
	commands := []string{"run", "dump", "ir", "version", "help"}
	assert.Equal(t, "dump", Suggest("dmp", commands, 3)[0])
	assert.Equal(t, []string{"version"}, Suggest("verison", commands, 1))
	assert.NotContains(t, Suggest("run", commands, 5), "run")
	assert.Empty(t, Suggest("completely-different", commands, 3))
}
