// Completion: 100% - Platform-specific module complete
//go:build !linux && !darwin

package main

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// FileWatcher is not available without inotify or kqueue
type FileWatcher struct{}

func NewFileWatcher(debounce time.Duration) (*FileWatcher, error) {
	return nil, fmt.Errorf("watching files: %w", errors.ErrUnsupported)
}

func (fw *FileWatcher) AddFile(path string) error { return errors.ErrUnsupported }

func (fw *FileWatcher) Changes() <-chan string { return nil }

func (fw *FileWatcher) Watch(ctx context.Context) {}

func (fw *FileWatcher) Close() error { return nil }
