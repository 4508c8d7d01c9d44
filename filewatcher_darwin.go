// Completion: 100% - Platform-specific module complete
//go:build darwin

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// FileWatcher reports writes to watched files through kqueue.
// Bursts of events for one file are debounced into a single notification.
type FileWatcher struct {
	kq          int
	watchMap    map[int]string
	mu          sync.Mutex
	debounce    time.Duration
	debounceMap map[string]*time.Timer
	changes     chan string
}

func NewFileWatcher(debounce time.Duration) (*FileWatcher, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, ResourceError("kqueue", err)
	}

	return &FileWatcher{
		kq:          kq,
		watchMap:    make(map[int]string),
		debounce:    debounce,
		debounceMap: make(map[string]*time.Timer),
		changes:     make(chan string, 1),
	}, nil
}

// AddFile starts watching path
func (fw *FileWatcher) AddFile(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	fd, err := unix.Open(absPath, unix.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", absPath, err)
	}

	event := unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: unix.EVFILT_VNODE,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
		Fflags: unix.NOTE_WRITE | unix.NOTE_ATTRIB,
	}

	if _, err := unix.Kevent(fw.kq, []unix.Kevent_t{event}, nil, nil); err != nil {
		unix.Close(fd)
		return fmt.Errorf("failed to add kevent for %s: %w", absPath, err)
	}

	fw.mu.Lock()
	fw.watchMap[fd] = absPath
	fw.mu.Unlock()

	return nil
}

// Changes delivers the path of a file after it has been written
func (fw *FileWatcher) Changes() <-chan string {
	return fw.changes
}

// Watch waits for events until ctx is done
func (fw *FileWatcher) Watch(ctx context.Context) {
	events := make([]unix.Kevent_t, 10)
	timeout := unix.NsecToTimespec(int64(100 * time.Millisecond))

	for ctx.Err() == nil {
		n, err := unix.Kevent(fw.kq, nil, events, &timeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			if VerboseMode {
				fmt.Fprintf(os.Stderr, "Error reading kevent: %v\n", err)
			}
			time.Sleep(100 * time.Millisecond)
			continue
		}

		for i := 0; i < n; i++ {
			fw.mu.Lock()
			path := fw.watchMap[int(events[i].Ident)]
			fw.mu.Unlock()

			if path != "" {
				fw.debouncedNotify(path)
			}
		}
	}
}

func (fw *FileWatcher) debouncedNotify(path string) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if timer, exists := fw.debounceMap[path]; exists {
		timer.Stop()
	}

	fw.debounceMap[path] = time.AfterFunc(fw.debounce, func() {
		fw.mu.Lock()
		delete(fw.debounceMap, path)
		fw.mu.Unlock()
		select {
		case fw.changes <- path:
		default: // a notification is already pending
		}
	})
}

// Close releases the watched descriptors and the kqueue
func (fw *FileWatcher) Close() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	for _, timer := range fw.debounceMap {
		timer.Stop()
	}
	for fd := range fw.watchMap {
		unix.Close(fd)
	}

	return unix.Close(fw.kq)
}
