package engine

import (
	"context"
	"time"

	"clipbot/internal/clip"
)

// Job is one admitted clip request waiting for (or owned by) a worker.
// Exactly one worker owns a popped job until its terminal event.
type Job struct {
	Request    clip.Request
	EnqueuedAt time.Time
}

// Runner executes one job to a terminal state. The returned error is the
// job's terminal failure; user-facing reporting has already happened inside,
// so the engine only logs it and records history.
type Runner interface {
	Run(ctx context.Context, job Job) error
}

// Releaser frees a user's in-flight slot. Implemented by admission.Ledger.
type Releaser interface {
	Release(userID int64)
}

type Config struct {
	Workers int // default 5
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 5
	}
	return c
}

// JobEvent is the payload for job.* events on the bus.
type JobEvent struct {
	ID           string
	UserID       int64
	ChatID       int64
	URL          string
	StartSeconds int
	EndSeconds   int
	Started      time.Time
	Duration     time.Duration
	Error        string
}

func jobEvent(job Job) JobEvent {
	return JobEvent{
		ID:           job.Request.ID,
		UserID:       job.Request.RequesterID,
		ChatID:       job.Request.ChatID,
		URL:          job.Request.SourceURL,
		StartSeconds: job.Request.Start.Seconds(),
		EndSeconds:   job.Request.End.Seconds(),
	}
}
