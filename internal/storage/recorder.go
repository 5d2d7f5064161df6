package storage

import (
	"context"

	"clipbot/internal/engine"
	"clipbot/internal/eventbus"
	logx "clipbot/pkg/logx"
)

// Recorder subscribes to job events and appends a history record for each
// terminal one. Dropped events lose history lines, never correctness.
type Recorder struct {
	store Store
	bus   eventbus.Bus
	log   logx.Logger
}

func NewRecorder(store Store, bus eventbus.Bus, log logx.Logger) *Recorder {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Recorder{store: store, bus: bus, log: log}
}

// Run consumes events until ctx is cancelled. Call in its own goroutine.
func (r *Recorder) Run(ctx context.Context) {
	if r.store == nil || r.bus == nil {
		return
	}
	ch, unsub := r.bus.Subscribe(64)
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			r.record(ctx, ev)
		}
	}
}

func (r *Recorder) record(ctx context.Context, ev eventbus.Event) {
	var outcome string
	switch ev.Type {
	case eventbus.EventJobFinished:
		outcome = "ok"
	case eventbus.EventJobFailed:
		outcome = "failed"
	default:
		return
	}

	je, ok := ev.Data.(engine.JobEvent)
	if !ok {
		return
	}

	rec := JobRecord{
		At:           ev.Time,
		JobID:        je.ID,
		UserID:       je.UserID,
		ChatID:       je.ChatID,
		URL:          je.URL,
		StartSeconds: je.StartSeconds,
		EndSeconds:   je.EndSeconds,
		Outcome:      outcome,
		Error:        je.Error,
		TookMS:       je.Duration.Milliseconds(),
	}
	if err := r.store.AppendJob(ctx, rec); err != nil {
		r.log.Warn("job history append failed", logx.String("job", je.ID), logx.Err(err))
	}
}
