package runner

import (
	"time"

	"github.com/onsave/onsave/pkg/execs"
)

// Job is a supervised handle to one running (or finished) script process.
// Jobs are owned exclusively by a [Supervisor].
type Job struct {
	proc    *execs.Process
	started time.Time
	target  Target
	id      uint64
}

// ID returns the opaque job identifier.
func (j *Job) ID() uint64 {
	return j.id
}

// Target returns the target the job was started for.
func (j *Job) Target() Target {
	return j.target
}

// Wait blocks until the job reaches a terminal status.
func (j *Job) Wait() execs.Status {
	return j.proc.Wait()
}

// Dead reports whether the job's process has terminated.
func (j *Job) Dead() bool {
	return j.proc.Dead()
}

// Status returns the job's current status without blocking.
func (j *Job) Status() execs.Status {
	return j.proc.Status()
}

// Kill force-stops the job. It never blocks on process exit.
func (j *Job) Kill() {
	j.proc.Kill()
}
