package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/onsave/onsave/pkg/execs"
	"github.com/onsave/onsave/pkg/log"
)

// ErrStartJob is returned when a job's process could not be started.
var ErrStartJob = fmt.Errorf("start job")

// Supervisor owns all running jobs. At most one job is live at any time;
// starting a new one force-stops whatever came before it.
type Supervisor struct {
	tracer      trace.Tracer
	shell       execs.Shell
	thenPath    string
	jobs        map[uint64]*Job
	subscribers []chan<- Event
	nextID      uint64
	mu          sync.Mutex
}

// SupervisorOpt configures a [Supervisor].
type SupervisorOpt func(*Supervisor)

// WithShell sets the shell used to run scripts.
func WithShell(sh execs.Shell) SupervisorOpt {
	return func(s *Supervisor) {
		s.shell = sh
	}
}

// WithThenScript sets the canonical path of the script chained after a
// successful primary job. Empty disables chaining.
func WithThenScript(path string) SupervisorOpt {
	return func(s *Supervisor) {
		s.thenPath = path
	}
}

// NewSupervisor creates a [Supervisor].
func NewSupervisor(opts ...SupervisorOpt) *Supervisor {
	s := &Supervisor{
		tracer: otel.Tracer("runner"),
		shell:  execs.MustNewShell(execs.DefaultShell),
		jobs:   map[uint64]*Job{},
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Subscribe registers a channel to receive [Event]s. Sends are non-blocking;
// a full channel drops events rather than stalling job supervision.
//
// Within one replacement, [EventCancel] for every killed job is delivered
// before [EventStart] for the job replacing them. Events from unrelated jobs
// carry no ordering guarantee.
func (s *Supervisor) Subscribe(ch chan<- Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscribers = append(s.subscribers, ch)
}

// ReplaceAndStart kills every live job and starts one new job for the target.
// Killing and starting happen under one lock acquisition, so two concurrent
// calls can never leave two live jobs behind.
//
// A target whose directory no longer exists is dropped without error.
func (s *Supervisor) ReplaceAndStart(ctx context.Context, target Target) error {
	ctx, span := s.tracer.Start(ctx, "replace_and_start")
	defer span.End()

	logger := log.WithContext(ctx)

	if _, err := os.Stat(target.Dir); err != nil {
		logger.DebugContext(ctx, "target directory vanished",
			slog.String("dir", target.Dir),
			slog.Any("err", err),
		)

		return nil
	}

	s.mu.Lock()
	cancelled := s.killAllLocked()

	job, err := s.startLocked(ctx, target)
	s.mu.Unlock()

	for _, info := range cancelled {
		s.broadcast(EventCancel{Job: info})
	}

	if err != nil {
		return err
	}

	s.broadcast(EventStart{Job: jobInfo(job)})

	go s.supervise(ctx, job)

	return nil
}

// KillAll force-stops every live job and forgets it. Pending chains keyed to
// the forgotten jobs are implicitly cancelled.
func (s *Supervisor) KillAll() {
	s.mu.Lock()
	cancelled := s.killAllLocked()
	s.mu.Unlock()

	for _, info := range cancelled {
		s.broadcast(EventCancel{Job: info})
	}
}

// Running reports whether any job is currently tracked.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.jobs) > 0
}

// Wait blocks until every currently tracked job has terminated. Jobs started
// after the snapshot is taken (including chained then-jobs) are not waited
// on.
func (s *Supervisor) Wait() {
	s.mu.Lock()
	jobs := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mu.Unlock()

	for _, j := range jobs {
		j.Wait()
	}
}

// startLocked starts a process for the target and tracks it. Callers must
// hold s.mu.
func (s *Supervisor) startLocked(ctx context.Context, target Target) (*Job, error) {
	proc, err := s.shell.Start(ctx, target.Dir, target.Invocation)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStartJob, err)
	}

	s.nextID++
	job := &Job{
		id:      s.nextID,
		target:  target,
		proc:    proc,
		started: time.Now(),
	}
	s.jobs[job.id] = job

	return job, nil
}

// killAllLocked force-stops and forgets every tracked job, returning info for
// the jobs that were actually killed so the caller can announce them. Jobs
// that already finished are only forgotten; their own supervise goroutine
// reports the outcome. Callers must hold s.mu.
func (s *Supervisor) killAllLocked() []JobInfo {
	var cancelled []JobInfo

	for id, job := range s.jobs {
		if !job.Dead() {
			job.Kill()
			cancelled = append(cancelled, jobInfo(job))
		}

		delete(s.jobs, id)
	}

	return cancelled
}

// supervise waits for the job to finish, reports the outcome, and chains the
// then-script when the job warrants it. A killed job is not reported here;
// whoever killed it already broadcast the cancellation.
func (s *Supervisor) supervise(ctx context.Context, job *Job) {
	status := job.Wait()

	if status == execs.StatusKilled {
		return
	}

	s.broadcast(EventEnd{
		Job:      jobInfo(job),
		Status:   status,
		Duration: time.Since(job.started),
	})

	if status == execs.StatusSuccess && job.target.Kind == TargetPrimary && s.thenPath != "" {
		s.startThen(ctx, job.id)

		return
	}

	s.forget(job.id)
}

// startThen chains the then-script after the given primary job. The job must
// still be tracked; a replacement that already forgot it cancels the chain.
func (s *Supervisor) startThen(ctx context.Context, after uint64) {
	ctx, span := s.tracer.Start(ctx, "start_then")
	defer span.End()

	logger := log.WithContext(ctx)

	target := Target{
		Path:       s.thenPath,
		Dir:        filepath.Dir(s.thenPath),
		Invocation: "./" + filepath.Base(s.thenPath),
		Kind:       TargetThen,
	}

	if _, err := os.Stat(target.Dir); err != nil {
		logger.DebugContext(ctx, "then directory vanished",
			slog.String("dir", target.Dir),
			slog.Any("err", err),
		)
		s.forget(after)

		return
	}

	s.mu.Lock()

	if _, ok := s.jobs[after]; !ok {
		// A newer job replaced us between Wait returning and now. The chain is
		// stale, drop it.
		s.mu.Unlock()

		return
	}

	delete(s.jobs, after)
	cancelled := s.killAllLocked()

	job, err := s.startLocked(ctx, target)
	s.mu.Unlock()

	for _, info := range cancelled {
		s.broadcast(EventCancel{Job: info})
	}

	if err != nil {
		logger.ErrorContext(ctx, "start then-script", slog.Any("err", err))

		return
	}

	s.broadcast(EventStart{Job: jobInfo(job)})

	go s.supervise(ctx, job)
}

// forget drops a finished job from tracking if it is still there.
func (s *Supervisor) forget(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.jobs, id)
}

func (s *Supervisor) broadcast(evt Event) {
	s.mu.Lock()
	subs := make([]chan<- Event, len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- evt:
		default:
		}
	}
}
