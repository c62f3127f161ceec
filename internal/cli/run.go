package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/onsave/onsave/pkg/config"
	"github.com/onsave/onsave/pkg/execs"
	"github.com/onsave/onsave/pkg/runner"
	"github.com/onsave/onsave/pkg/watch"
)

const (
	cmdExamples = `  # Watch the current directory:
  onsave

  # Watch a specific directory:
  onsave ./scripts

  # Run ./deploy.sh after any script finishes successfully:
  onsave --then ./deploy.sh

  # Use a different shell:
  onsave --shell "zsh -c"

  # Ignore generated scripts:
  onsave --exclude 'path.contains("/build/")'`
)

type RunArgs struct {
	*RootArgs

	Path       string
	ConfigPath string
	Then       string
	Shell      string
	Debounce   time.Duration
	Exclude    []string
}

func NewRunArgs(rootArgs *RootArgs) *RunArgs {
	return &RunArgs{
		RootArgs: rootArgs,
	}
}

func (ra *RunArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&ra.ConfigPath, "config", "", "Path to the onsave configuration file")
	cmd.Flags().StringVarP(&ra.Then, "then", "t", "", "Script to run after any successful run")
	cmd.Flags().StringVar(&ra.Shell, "shell", "", `Shell used to run scripts (default "`+config.DefaultShell+`")`)
	cmd.Flags().DurationVar(&ra.Debounce, "debounce", 0, "Batching window for filesystem events")
	cmd.Flags().StringArrayVar(&ra.Exclude, "exclude", nil, "CEL expression excluding matching paths, repeatable")

	err := cmd.MarkFlagFilename("config", "yaml", "yml")
	if err != nil {
		panic(fmt.Errorf("mark config flag: %w", err))
	}

	err = cmd.MarkFlagFilename("then")
	if err != nil {
		panic(fmt.Errorf("mark then flag: %w", err))
	}
}

func run(cmd *cobra.Command, rc *RunArgs) error {
	ctx := cmd.Context()

	root, err := filepath.Abs(rc.Path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	shutdownTracing, err := setupTracing(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err := shutdownTracing(context.Background())
		if err != nil {
			slog.Debug("shutdown tracing", slog.Any("err", err))
		}
	}()

	cfg, err := loadConfig(rc)
	if err != nil {
		return err
	}

	sh, err := execs.NewShell(cfg.Shell)
	if err != nil {
		return fmt.Errorf("invalid shell: %w", err)
	}

	debounce, err := cfg.GetDebounce()
	if err != nil {
		return fmt.Errorf("invalid debounce: %w", err)
	}
	if rc.Debounce > 0 {
		debounce = rc.Debounce
	}

	excludes, err := cfg.CompileExcludes()
	if err != nil {
		return fmt.Errorf("invalid exclude: %w", err)
	}

	thenPath, err := resolveThen(cfg.Then)
	if err != nil {
		return err
	}

	watcher, err := watch.NewWatcher(root, watch.WithDebounce(debounce))
	if err != nil {
		return fmt.Errorf("watch %q: %w", root, err)
	}
	defer watcher.Close() //nolint:errcheck // Best-effort cleanup on exit.

	sup := runner.NewSupervisor(
		runner.WithShell(sh),
		runner.WithThenScript(thenPath),
	)
	sel := runner.NewSelector(
		runner.WithThenPath(thenPath),
		runner.WithExcludes(excludes...),
	)
	loop := runner.NewLoop(sel, sup)

	events := make(chan runner.Event, 64)
	sup.Subscribe(events)

	go logEvents(events)

	slog.InfoContext(ctx, "watching",
		slog.String("path", watcher.Root()),
		slog.String("shell", sh.String()),
		slog.Duration("debounce", debounce),
	)
	if thenPath != "" {
		slog.InfoContext(ctx, "chaining", slog.String("then", thenPath))
	}

	go watcher.Run(ctx)
	loop.Run(ctx, watcher.Batches())

	slog.InfoContext(ctx, "shutting down")

	return nil
}

// loadConfig loads the config file and layers flag overrides on top. A
// missing file is fine; a broken one is not.
func loadConfig(rc *RunArgs) (*config.Config, error) {
	configPath := rc.ConfigPath
	if configPath == "" {
		configPath = config.GetPath()
	}

	cfg, err := config.LoadFile(configPath)
	if err != nil {
		if !errors.Is(err, config.ErrConfigNotFound) {
			return nil, fmt.Errorf("config %q: %w", configPath, err)
		}

		slog.Debug("no config file, using defaults", slog.String("path", configPath))

		cfg = config.NewConfig()
	}

	if rc.Then != "" {
		cfg.Then = rc.Then
	}
	if rc.Shell != "" {
		cfg.Shell = rc.Shell
	}

	cfg.Exclude = append(cfg.Exclude, rc.Exclude...)
	cfg.EnsureDefaults()

	return cfg, nil
}

// resolveThen canonicalizes the then-script path and refuses to start unless
// it is runnable. A bad chain target should fail loudly at startup, not
// silently after the first successful run.
func resolveThen(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve then-script: %w", err)
	}

	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("resolve then-script %q: %w", path, err)
	}

	info, err := os.Stat(canonical)
	if err != nil {
		return "", fmt.Errorf("stat then-script %q: %w", path, err)
	}
	if !info.Mode().IsRegular() || info.Mode().Perm()&0o111 == 0 {
		return "", fmt.Errorf("then-script %q is not an executable file", path)
	}

	return canonical, nil
}

func logEvents(events <-chan runner.Event) {
	for event := range events {
		switch e := event.(type) {
		case runner.EventStart:
			slog.Info("run",
				slog.String("script", e.Job.Script),
				slog.String("kind", e.Job.Kind.String()),
			)

		case runner.EventEnd:
			if e.Status == execs.StatusSuccess {
				slog.Info("done",
					slog.String("script", e.Job.Script),
					slog.Duration("took", e.Duration),
				)
			} else {
				slog.Warn("failed",
					slog.String("script", e.Job.Script),
					slog.String("status", e.Status.String()),
					slog.Duration("took", e.Duration),
				)
			}

		case runner.EventCancel:
			slog.Debug("superseded", slog.String("script", e.Job.Script))
		}
	}
}
