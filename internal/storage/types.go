package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures the job history store.
//
// Driver values:
//   - "file": dependency-free file backend (jsonl)
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", history is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// JobRecord is one completed clip job. Keep it compact and schema-stable.
type JobRecord struct {
	At           time.Time
	JobID        string
	UserID       int64
	ChatID       int64
	URL          string
	StartSeconds int
	EndSeconds   int
	Outcome      string // "ok" or "failed"
	Error        string
	TookMS       int64
}
