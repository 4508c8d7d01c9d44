// Completion: 100% - Platform-specific module complete
//go:build (linux || darwin) && amd64

package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/ebitengine/purego"
	"golang.org/x/sys/unix"
)

// CodePage is a private anonymous mapping holding generated code.
// It is writable while the code is copied in and executable afterwards,
// never both at once.
type CodePage struct {
	mem  []byte
	size int
}

// NewCodePage maps code into executable memory
func NewCodePage(code []byte) (*CodePage, error) {
	if len(code) == 0 {
		return nil, ResourceError("map code", errors.New("no code"))
	}
	pageSize := unix.Getpagesize()
	allocSize := ((len(code) + pageSize - 1) / pageSize) * pageSize

	mem, err := unix.Mmap(-1, 0, allocSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, ResourceError("mmap", err)
	}
	page := &CodePage{mem: mem, size: len(code)}
	copy(mem, code)

	if err := unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		page.Free()
		return nil, ResourceError("mprotect", err)
	}
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "mapped %d bytes of code at 0x%x (%d bytes reserved)\n", len(code), page.Address(), allocSize)
	}
	return page, nil
}

// Address returns the entry point
func (page *CodePage) Address() uintptr {
	return uintptr(unsafe.Pointer(&page.mem[0]))
}

// Free unmaps the page
func (page *CodePage) Free() error {
	if page.mem == nil {
		return nil
	}
	if err := unix.Munmap(page.mem); err != nil {
		return ResourceError("munmap", err)
	}
	page.mem = nil
	return nil
}

// activeRun is what the host callbacks operate on during one invocation
type activeRun struct {
	host *Host
	tape []byte
	base uintptr
	// a read through a pointer outside the tape
	stray uintptr
}

var (
	hooksOnce sync.Once
	hostHooks Hooks
	runMu     sync.Mutex
	current   atomic.Pointer[activeRun]
)

// Called from generated code. Must not panic.
func emitCallback(value uintptr) {
	if r := current.Load(); r != nil {
		r.host.Emit(byte(value))
	}
}

// Called from generated code with the address of the cell to fill. Must not panic.
func readCallback(cell uintptr) {
	r := current.Load()
	if r == nil {
		return
	}
	off := cell - r.base
	if cell < r.base || off >= uintptr(len(r.tape)) {
		if r.stray == 0 {
			r.stray = cell
		}
		return
	}
	r.tape[off] = r.host.Input(r.tape[off])
}

// HostHooks returns the addresses of the process-wide host routines.
// They are created once and stay valid for the life of the process.
func HostHooks() (Hooks, error) {
	hooksOnce.Do(func() {
		hostHooks = Hooks{
			EmitByte: purego.NewCallback(emitCallback),
			ReadByte: purego.NewCallback(readCallback),
		}
	})
	return hostHooks, nil
}

// Run maps code, calls it with the base address of tape and unmaps it again.
// The host routines write to and read from host while the code runs.
// Runs are serialized.
func Run(code CompiledCode, tape []byte, host *Host) error {
	if len(tape) == 0 {
		return fmt.Errorf("run: empty tape")
	}
	if _, err := HostHooks(); err != nil {
		return err
	}
	page, err := NewCodePage(code)
	if err != nil {
		return err
	}
	defer page.Free()

	runMu.Lock()
	defer runMu.Unlock()

	run := &activeRun{
		host: host,
		tape: tape,
		base: uintptr(unsafe.Pointer(&tape[0])),
	}
	current.Store(run)
	defer current.Store(nil)

	ret, _, _ := purego.SyscallN(page.Address(), run.base)
	runtime.KeepAlive(tape)

	if VerboseMode {
		written, read := host.Stats()
		fmt.Fprintf(os.Stderr, "run: returned %d, %d bytes written, %d bytes read\n", ret, written, read)
	}
	if run.stray != 0 {
		return fmt.Errorf("%w: read into 0x%x", ErrPointerOutOfRange, run.stray)
	}
	return host.Err()
}
