package execs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/onsave/onsave/pkg/log"
)

// ErrStartProcess is returned when a process cannot be started.
var ErrStartProcess = errors.New("start process")

// Status is the observed state of a [Process].
type Status int

const (
	// StatusRunning means the process has not reached a terminal state yet.
	StatusRunning Status = iota
	// StatusSuccess means the process exited with code zero.
	StatusSuccess
	// StatusFailure means the process exited non-zero (or failed to run).
	StatusFailure
	// StatusKilled means the process was forcibly stopped via [Process.Kill].
	StatusKilled
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	case StatusKilled:
		return "killed"
	}

	return "unknown"
}

// Process is a handle to a started subprocess. All methods are safe for
// concurrent use.
type Process struct {
	cmd     *exec.Cmd
	done    chan struct{}
	started time.Time
	status  atomic.Int32
	killed  atomic.Bool
}

// Start launches the given invocation through the shell, in dir, with the
// process in its own group so [Process.Kill] also reaps grandchildren.
// Stdout and stderr pass through to the parent's streams.
func (sh Shell) Start(ctx context.Context, dir, invocation string) (*Process, error) {
	if invocation == "" {
		return nil, ErrEmptyInvocation
	}

	ctx, span := otel.Tracer("execs").Start(ctx, "process", trace.WithAttributes(
		attribute.String("invocation", invocation),
		attribute.String("dir", dir),
	))

	argv := sh.Argv(invocation)

	//nolint:gosec // G204: Subprocess launched with a potential tainted input or cmd arguments.
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	setProcessGroup(cmd)

	err := cmd.Start()
	if err != nil {
		span.End()

		return nil, fmt.Errorf("%w: %w", ErrStartProcess, err)
	}

	p := &Process{
		cmd:     cmd,
		done:    make(chan struct{}),
		started: time.Now(),
	}

	go p.watch(ctx, span)

	return p, nil
}

func (p *Process) watch(ctx context.Context, span trace.Span) {
	defer span.End()

	err := p.cmd.Wait()

	status := StatusSuccess
	switch {
	case p.killed.Load():
		status = StatusKilled
	case err != nil:
		status = StatusFailure
	}

	p.status.Store(int32(status))
	close(p.done)

	log.WithContext(ctx).DebugContext(ctx, "process finished",
		slog.String("status", status.String()),
		slog.Duration("duration", time.Since(p.started)),
	)
}

// Kill forcibly stops the process group. It never blocks on process exit;
// callers observe termination via [Process.Wait].
func (p *Process) Kill() {
	if p.Dead() {
		return
	}

	p.killed.Store(true)

	err := killProcessGroup(p.cmd)
	if err != nil {
		// The process may have exited between the liveness check and the
		// signal. Nothing to do either way.
		slog.Debug("kill process", slog.Any("err", err))
	}
}

// Wait blocks until the process reaches a terminal state and returns it.
func (p *Process) Wait() Status {
	<-p.done

	return Status(p.status.Load())
}

// Dead reports whether the process has reached a terminal state.
func (p *Process) Dead() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Status returns the current observed status without blocking.
func (p *Process) Status() Status {
	if !p.Dead() {
		return StatusRunning
	}

	return Status(p.status.Load())
}
