package runner

import (
	"time"

	"github.com/onsave/onsave/pkg/execs"
)

// Event represents an event related to job execution.
type Event any

// JobInfo describes a job in an event.
type JobInfo struct {
	Script string
	Dir    string
	Kind   TargetKind
	ID     uint64
}

type (
	// EventStart indicates that a job has started.
	EventStart struct {
		Job JobInfo
	}

	// EventEnd indicates that a job reached a terminal status on its own.
	EventEnd struct {
		Job      JobInfo
		Status   execs.Status
		Duration time.Duration
	}

	// EventCancel indicates that a job was force-stopped by a replacement.
	EventCancel struct {
		Job JobInfo
	}
)

func jobInfo(j *Job) JobInfo {
	return JobInfo{
		ID:     j.id,
		Script: j.target.Path,
		Dir:    j.target.Dir,
		Kind:   j.target.Kind,
	}
}
