package watch_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onsave/onsave/pkg/watch"
)

func collectBatch(t *testing.T, batches <-chan watch.Batch) watch.Batch {
	t.Helper()

	select {
	case b := <-batches:
		return b
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a batch")

		return watch.Batch{}
	}
}

func TestWatcher_DeliversContentChanges(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "run.sh")
	require.NoError(t, os.WriteFile(file, []byte("#!/bin/sh\n"), 0o755))

	w, err := watch.NewWatcher(dir, watch.WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	t.Cleanup(func() { _ = w.Close() })

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	go w.Run(ctx)

	require.NoError(t, os.WriteFile(file, []byte("#!/bin/sh\necho hi\n"), 0o755))

	b := collectBatch(t, w.Batches())
	require.False(t, b.Interrupt)
	require.NotEmpty(t, b.Notifications)

	var sawContentChange bool
	for _, n := range b.Notifications {
		if n.Path == file && n.ContentChanged() {
			sawContentChange = true
		}
	}

	assert.True(t, sawContentChange, "expected a content change for %s", file)
}

func TestWatcher_InterruptOnCancel(t *testing.T) {
	t.Parallel()

	w, err := watch.NewWatcher(t.TempDir())
	require.NoError(t, err)

	t.Cleanup(func() { _ = w.Close() })

	ctx, cancel := context.WithCancel(t.Context())

	go w.Run(ctx)
	cancel()

	b := collectBatch(t, w.Batches())
	assert.True(t, b.Interrupt)

	// The batch channel closes once Run returns.
	select {
	case _, ok := <-w.Batches():
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("batch channel was not closed")
	}
}

func TestWatcher_WatchesNewDirectories(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	w, err := watch.NewWatcher(dir, watch.WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	t.Cleanup(func() { _ = w.Close() })

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	go w.Run(ctx)

	sub := filepath.Join(dir, "scripts")
	require.NoError(t, os.Mkdir(sub, 0o755))

	// The mkdir itself produces a batch.
	collectBatch(t, w.Batches())

	// Give the watcher a moment to register the new directory.
	time.Sleep(100 * time.Millisecond)

	file := filepath.Join(sub, "run.sh")
	require.NoError(t, os.WriteFile(file, []byte("#!/bin/sh\n"), 0o755))

	b := collectBatch(t, w.Batches())

	var sawFile bool
	for _, n := range b.Notifications {
		if n.Path == file {
			sawFile = true
		}
	}

	assert.True(t, sawFile, "expected an event for %s", file)
}

func TestNotification_ContentChanged(t *testing.T) {
	t.Parallel()

	assert.True(t, watch.Notification{Op: fsnotify.Write}.ContentChanged())
	assert.True(t, watch.Notification{Op: fsnotify.Write | fsnotify.Chmod}.ContentChanged())
	assert.False(t, watch.Notification{Op: fsnotify.Chmod}.ContentChanged())
	assert.False(t, watch.Notification{Op: fsnotify.Create}.ContentChanged())
	assert.False(t, watch.Notification{Op: fsnotify.Rename}.ContentChanged())
}
