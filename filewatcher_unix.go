// Completion: 100% - Platform-specific module complete
//go:build linux

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// FileWatcher reports writes to watched files through inotify.
// Bursts of events for one file are debounced into a single notification.
type FileWatcher struct {
	fd          int
	watchMap    map[int]string
	mu          sync.Mutex
	debounce    time.Duration
	debounceMap map[string]*time.Timer
	changes     chan string
}

func NewFileWatcher(debounce time.Duration) (*FileWatcher, error) {
	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return nil, ResourceError("inotify_init", err)
	}

	return &FileWatcher{
		fd:          fd,
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

	wd, err := unix.InotifyAddWatch(fw.fd, absPath, unix.IN_MODIFY|unix.IN_CLOSE_WRITE|unix.IN_ATTRIB)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", absPath, err)
	}

	fw.mu.Lock()
	fw.watchMap[wd] = absPath
	fw.mu.Unlock()

	return nil
}

// Changes delivers the path of a file after it has been written
func (fw *FileWatcher) Changes() <-chan string {
	return fw.changes
}

// Watch reads events until ctx is done
func (fw *FileWatcher) Watch(ctx context.Context) {
	buf := make([]byte, (unix.SizeofInotifyEvent+256)*4)

	for ctx.Err() == nil {
		n, err := unix.Read(fw.fd, buf)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				time.Sleep(50 * time.Millisecond)
				continue
			}
			if VerboseMode {
				fmt.Fprintf(os.Stderr, "Error reading inotify events: %v\n", err)
			}
			time.Sleep(50 * time.Millisecond)
			continue
		}

		offset := 0
		for offset+unix.SizeofInotifyEvent <= n {
			event := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
			offset += unix.SizeofInotifyEvent + int(event.Len)

			if event.Mask&(unix.IN_MODIFY|unix.IN_CLOSE_WRITE|unix.IN_ATTRIB) != 0 {
				fw.mu.Lock()
				path := fw.watchMap[int(event.Wd)]
				fw.mu.Unlock()

				if path != "" {
					fw.debouncedNotify(path)
				}
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

// Close stops the pending notifications and releases the inotify descriptor
func (fw *FileWatcher) Close() error {
	fw.mu.Lock()
	for _, timer := range fw.debounceMap {
		timer.Stop()
	}
	fw.mu.Unlock()
	return unix.Close(fw.fd)
}
