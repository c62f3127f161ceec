package runner_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onsave/onsave/pkg/rule"
	"github.com/onsave/onsave/pkg/runner"
	"github.com/onsave/onsave/pkg/watch"
)

// writeScript creates an executable script and returns its canonical path.
func writeScript(t *testing.T, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755)) //nolint:gosec // Scripts must be executable.

	canonical, err := filepath.EvalSymlinks(path)
	require.NoError(t, err)

	return canonical
}

func contentChange(path string) watch.Batch {
	return watch.Batch{Notifications: []watch.Notification{
		{Path: path, Op: fsnotify.Write},
	}}
}

func TestSelector_Select(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	script := writeScript(t, dir, "build.sh")
	thenScript := writeScript(t, dir, "deploy.sh")

	plain := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(plain, []byte("data"), 0o644))

	backup := writeScript(t, dir, "build.sh~")

	hiddenDir := filepath.Join(dir, ".git")
	require.NoError(t, os.Mkdir(hiddenDir, 0o755))
	hidden := writeScript(t, hiddenDir, "hook.sh")

	tcs := map[string]struct {
		selector *runner.Selector
		batch    watch.Batch
		want     *runner.Target
	}{
		"content change on executable script": {
			selector: runner.NewSelector(),
			batch:    contentChange(script),
			want: &runner.Target{
				Path:       script,
				Dir:        dir,
				Invocation: "./build.sh",
				Kind:       runner.TargetPrimary,
			},
		},
		"non-content operations are ignored": {
			selector: runner.NewSelector(),
			batch: watch.Batch{Notifications: []watch.Notification{
				{Path: script, Op: fsnotify.Chmod},
				{Path: script, Op: fsnotify.Create},
				{Path: script, Op: fsnotify.Rename},
			}},
			want: nil,
		},
		"non-executable file is skipped": {
			selector: runner.NewSelector(),
			batch:    contentChange(plain),
			want:     nil,
		},
		"editor backup suffix is skipped": {
			selector: runner.NewSelector(),
			batch:    contentChange(backup),
			want:     nil,
		},
		"hidden path component is skipped": {
			selector: runner.NewSelector(),
			batch:    contentChange(hidden),
			want:     nil,
		},
		"vanished file is skipped": {
			selector: runner.NewSelector(),
			batch:    contentChange(filepath.Join(dir, "gone.sh")),
			want:     nil,
		},
		"exclusion rule discards candidate": {
			selector: runner.NewSelector(
				runner.WithExcludes(rule.MustNew(`path.endsWith("build.sh")`)),
			),
			batch: contentChange(script),
			want:  nil,
		},
		"first candidate in order wins": {
			selector: runner.NewSelector(),
			batch: watch.Batch{Notifications: []watch.Notification{
				{Path: thenScript, Op: fsnotify.Write},
				{Path: script, Op: fsnotify.Write},
			}},
			want: &runner.Target{
				Path:       thenScript,
				Dir:        dir,
				Invocation: "./deploy.sh",
				Kind:       runner.TargetPrimary,
			},
		},
		"skipped candidate falls through to the next": {
			selector: runner.NewSelector(),
			batch: watch.Batch{Notifications: []watch.Notification{
				{Path: plain, Op: fsnotify.Write},
				{Path: script, Op: fsnotify.Write},
			}},
			want: &runner.Target{
				Path:       script,
				Dir:        dir,
				Invocation: "./build.sh",
				Kind:       runner.TargetPrimary,
			},
		},
		"then-script edit is tagged": {
			selector: runner.NewSelector(runner.WithThenPath(thenScript)),
			batch:    contentChange(thenScript),
			want: &runner.Target{
				Path:       thenScript,
				Dir:        dir,
				Invocation: "./deploy.sh",
				Kind:       runner.TargetThen,
			},
		},
		"other script stays primary with then-path set": {
			selector: runner.NewSelector(runner.WithThenPath(thenScript)),
			batch:    contentChange(script),
			want: &runner.Target{
				Path:       script,
				Dir:        dir,
				Invocation: "./build.sh",
				Kind:       runner.TargetPrimary,
			},
		},
		"empty batch": {
			selector: runner.NewSelector(),
			batch:    watch.Batch{},
			want:     nil,
		},
	}
	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := tc.selector.Select(t.Context(), tc.batch)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSelector_SelectResolvesSymlinks(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	script := writeScript(t, dir, "task.sh")

	link := filepath.Join(dir, "alias.sh")
	require.NoError(t, os.Symlink(script, link))

	sel := runner.NewSelector(runner.WithThenPath(script))
	got := sel.Select(t.Context(), contentChange(link))

	require.NotNil(t, got)
	assert.Equal(t, script, got.Path)
	assert.Equal(t, runner.TargetThen, got.Kind, "symlinked edit must resolve to the then-script")
}
