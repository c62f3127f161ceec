package runner_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onsave/onsave/pkg/runner"
	"github.com/onsave/onsave/pkg/watch"
)

func TestLoop_OnTick(t *testing.T) {
	t.Parallel()

	t.Run("interrupt quits", func(t *testing.T) {
		t.Parallel()

		loop := runner.NewLoop(runner.NewSelector(), runner.NewSupervisor())
		got := loop.OnTick(t.Context(), watch.Batch{Interrupt: true})
		assert.Equal(t, runner.Quit, got)
	})

	t.Run("content change starts a job", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		marker := filepath.Join(dir, "marker")
		script := writeScriptBody(t, dir, "task.sh", "touch "+marker)

		loop := runner.NewLoop(runner.NewSelector(), runner.NewSupervisor())
		got := loop.OnTick(t.Context(), watch.Batch{Notifications: []watch.Notification{
			{Path: script, Op: fsnotify.Write},
		}})

		assert.Equal(t, runner.Continue, got)
		require.Eventually(t, fileExists(marker), 5*time.Second, 10*time.Millisecond)
	})

	t.Run("inert batch leaves running job alone", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		slow := writeScriptBody(t, dir, "slow.sh", "sleep 5")

		sup := runner.NewSupervisor()
		loop := runner.NewLoop(runner.NewSelector(), sup)

		ctx := t.Context()
		require.Equal(t, runner.Continue, loop.OnTick(ctx, watch.Batch{Notifications: []watch.Notification{
			{Path: slow, Op: fsnotify.Write},
		}}))
		require.True(t, sup.Running())

		got := loop.OnTick(ctx, watch.Batch{Notifications: []watch.Notification{
			{Path: slow, Op: fsnotify.Chmod},
		}})

		assert.Equal(t, runner.Continue, got)
		assert.True(t, sup.Running(), "inert batch must not disturb the running job")
	})
}

func TestLoop_Run(t *testing.T) {
	t.Parallel()

	t.Run("stops on interrupt and kills jobs", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		marker := filepath.Join(dir, "marker")
		slow := writeScriptBody(t, dir, "slow.sh", "sleep 5\ntouch "+marker)

		sup := runner.NewSupervisor()
		loop := runner.NewLoop(runner.NewSelector(), sup)

		batches := make(chan watch.Batch, 2)
		batches <- watch.Batch{Notifications: []watch.Notification{
			{Path: slow, Op: fsnotify.Write},
		}}
		batches <- watch.Batch{Interrupt: true}

		loop.Run(t.Context(), batches)

		assert.False(t, sup.Running())
		time.Sleep(300 * time.Millisecond)
		assert.NoFileExists(t, marker)
	})

	t.Run("stops when the channel closes", func(t *testing.T) {
		t.Parallel()

		loop := runner.NewLoop(runner.NewSelector(), runner.NewSupervisor())

		batches := make(chan watch.Batch)
		close(batches)

		done := make(chan struct{})
		go func() {
			loop.Run(t.Context(), batches)
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("Run did not return after channel close")
		}
	})
}
