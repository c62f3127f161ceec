// Package watch turns raw fsnotify events into per-tick batches.
//
// A [Watcher] recursively watches a directory tree and coalesces rapid
// successive events into one [Batch] per debounce window. Interrupt requests
// (context cancellation) surface as a batch with Interrupt set, so consumers
// observe exactly one ordered stream.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/onsave/onsave/pkg/log"
)

// DefaultDebounce is the default event coalescing window.
const DefaultDebounce = 50 * time.Millisecond

// Watcher produces [Batch] values for a directory tree.
type Watcher struct {
	fsw      *fsnotify.Watcher
	batches  chan Batch
	root     string
	debounce time.Duration
}

// WatcherOpt configures a [Watcher].
type WatcherOpt func(*Watcher)

// WithDebounce sets the coalescing window for event batches.
func WithDebounce(d time.Duration) WatcherOpt {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a [Watcher] rooted at the given directory. The root and
// all its non-hidden subdirectories are watched recursively; directories
// created later are picked up as they appear.
func NewWatcher(root string, opts ...WatcherOpt) (*Watcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %q: %w", root, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		fsw:      fsw,
		root:     absRoot,
		debounce: DefaultDebounce,
		batches:  make(chan Batch, 1),
	}
	for _, opt := range opts {
		opt(w)
	}

	err = w.addTree(absRoot)
	if err != nil {
		_ = fsw.Close()

		return nil, err
	}

	return w, nil
}

// Root returns the absolute path of the watched root.
func (w *Watcher) Root() string {
	return w.root
}

// Batches returns the channel batches are delivered on. The channel is closed
// after [Watcher.Run] returns.
func (w *Watcher) Batches() <-chan Batch {
	return w.batches
}

// Run delivers batches until the context is canceled. Cancellation emits one
// final batch with Interrupt set before returning.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.batches)

	logger := log.WithContext(ctx)

	var (
		pending []Notification
		timer   *time.Timer
		timerC  <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}

			w.batches <- Batch{Interrupt: true}

			return

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return
			}

			if evt.Op.Has(fsnotify.Create) {
				w.maybeWatchDir(ctx, evt.Name)
			}

			pending = append(pending, Notification{Path: evt.Name, Op: evt.Op})
			if timerC == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}

			logger.WarnContext(ctx, "watch error", slog.Any("err", err))

		case <-timerC:
			batch := Batch{Notifications: pending}
			pending = nil
			timerC = nil

			w.batches <- batch
		}
	}
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close() //nolint:wrapcheck // Return the original error.
}

func (w *Watcher) addTree(dir string) error {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}

		return w.fsw.Add(path)
	})
	if err != nil {
		return fmt.Errorf("watch tree %q: %w", dir, err)
	}

	return nil
}

// maybeWatchDir adds newly created directories to the watch set.
func (w *Watcher) maybeWatchDir(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if strings.HasPrefix(filepath.Base(path), ".") {
		return
	}

	err = w.addTree(path)
	if err != nil {
		log.WithContext(ctx).DebugContext(ctx, "watch new directory",
			slog.String("path", path),
			slog.Any("err", err),
		)
	}
}
