// Completion: 100% - Watch mode complete
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"
)

// watchDebounce is how long a file must stay quiet before it is run again
var watchDebounce = 300 * time.Millisecond

// cmdWatch runs a program file and runs it again every time it is saved,
// until interrupted
func cmdWatch(cc *CommandContext, args []string) error {
	if cc.Config.Source != "" {
		return fmt.Errorf("watch needs a source file, not -e")
	}
	if len(args) != 1 || args[0] == "-" {
		return fmt.Errorf("watch needs exactly one source file")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return watchFile(ctx, cc, args[0])
}

// watchFile runs path once and after every change until ctx is done.
// Failing runs are reported without ending the watch.
func watchFile(ctx context.Context, cc *CommandContext, path string) error {
	fw, err := NewFileWatcher(watchDebounce)
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.AddFile(path); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go fw.Watch(ctx)

	runs := 0
	runOnce := func() {
		runs++
		if VerboseMode {
			fmt.Fprintf(cc.Stderr, "watch: run %d of %s\n", runs, path)
		}
		if err := cmdRun(cc, []string{path}); err != nil {
			reportError(cc.Stderr, err, false)
		}
	}

	runOnce()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-fw.Changes():
			runOnce()
		}
	}
}
