package runner

import (
	"context"
	"log/slog"

	"github.com/onsave/onsave/pkg/log"
	"github.com/onsave/onsave/pkg/watch"
)

// Decision tells the caller whether to keep ticking.
type Decision int

const (
	// Continue means keep processing batches.
	Continue Decision = iota

	// Quit means stop the loop and shut down.
	Quit
)

func (d Decision) String() string {
	switch d {
	case Continue:
		return "continue"
	case Quit:
		return "quit"
	}

	return "unknown"
}

// Loop wires a [Selector] and [Supervisor] into the batch stream.
type Loop struct {
	selector   *Selector
	supervisor *Supervisor
}

// NewLoop creates a [Loop].
func NewLoop(sel *Selector, sup *Supervisor) *Loop {
	return &Loop{
		selector:   sel,
		supervisor: sup,
	}
}

// OnTick handles one batch. An interrupt batch yields [Quit]; everything
// else yields [Continue], whether or not the batch produced a job. A batch
// with no actionable candidate leaves running jobs untouched.
func (l *Loop) OnTick(ctx context.Context, batch watch.Batch) Decision {
	if batch.Interrupt {
		return Quit
	}

	target := l.selector.Select(ctx, batch)
	if target == nil {
		return Continue
	}

	if err := l.supervisor.ReplaceAndStart(ctx, *target); err != nil {
		// The script may have been deleted or made unrunnable right after the
		// event fired. Stay alive for the next save.
		log.WithContext(ctx).DebugContext(ctx, "start job",
			slog.String("target", target.String()),
			slog.Any("err", err),
		)
	}

	return Continue
}

// Run consumes batches until one yields [Quit] or the channel closes, then
// kills any remaining jobs.
func (l *Loop) Run(ctx context.Context, batches <-chan watch.Batch) {
	defer l.supervisor.KillAll()

	for batch := range batches {
		if l.OnTick(ctx, batch) == Quit {
			return
		}
	}
}
