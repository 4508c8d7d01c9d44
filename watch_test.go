//go:build linux || darwin

package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xyproto/tapejit/internal/engine"
)

// syncBuffer is a bytes.Buffer that can be read while another goroutine writes
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestFileWatcherReportsWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watched.b")
	require.NoError(t, os.WriteFile(path, []byte("+"), 0o644))

	fw, err := NewFileWatcher(10 * time.Millisecond)
	require.NoError(t, err)
	defer fw.Close()
	require.NoError(t, fw.AddFile(path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fw.Watch(ctx)

	require.NoError(t, os.WriteFile(path, []byte("++"), 0o644))
	select {
	case changed := <-fw.Changes():
		want, err := filepath.Abs(path)
		require.NoError(t, err)
		assert.Equal(t, want, changed)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestWatchFileRunsAgainOnChange(t *testing.T) {
	saved := watchDebounce
	watchDebounce = 10 * time.Millisecond
	t.Cleanup(func() { watchDebounce = saved })

	path := filepath.Join(t.TempDir(), "prog.b")
	require.NoError(t, os.WriteFile(path, []byte("+++."), 0o644))

	out := &syncBuffer{}
	cc := &CommandContext{
		Config:   testConfig(BackendInterp),
		Platform: engine.Host(),
		Stdin:    strings.NewReader(""),
		Stdout:   out,
		Stderr:   io.Discard,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watchFile(ctx, cc, path) }()

	require.Eventually(t, func() bool { return out.String() == "\x03" }, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("++++."), 0o644))
	assert.Eventually(t, func() bool { return strings.HasPrefix(out.String(), "\x03\x04") }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestWatchNeedsAFile(t *testing.T) {
	_, _, err := runCLI(t, testConfig(BackendInterp), "", "watch")
	assert.Error(t, err)

	cfg := testConfig(BackendInterp)
	cfg.Source = "+"
	_, _, err = runCLI(t, cfg, "", "watch", "prog.b")
	assert.Error(t, err)
}
