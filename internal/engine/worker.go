package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"clipbot/internal/eventbus"
	"clipbot/pkg/logx"
)

func (s *Service) worker(ctx context.Context, stopCh <-chan struct{}, queue *Queue, idx int) {
	for {
		// Fast-exit check so a closed stopCh wins over queued work.
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		job, err := queue.Pop(ctx)
		if err != nil {
			// Queue closed or run context cancelled.
			return
		}
		s.execOne(ctx, job, idx)
	}
}

func (s *Service) execOne(ctx context.Context, job Job, idx int) {
	start := time.Now()
	log := s.log.With(
		logx.Int("worker", idx),
		logx.String("job", job.Request.ID),
		logx.Int64("user", job.Request.RequesterID),
	)

	if s.bus != nil {
		ev := jobEvent(job)
		ev.Started = start
		s.bus.Publish(eventbus.Event{Type: eventbus.EventJobStarted, Time: start, Data: ev})
	}

	// The in-flight slot is freed exactly once per job, whatever happens
	// inside the pipeline.
	defer s.release.Release(job.Request.RequesterID)

	err := s.runContained(ctx, job, log)

	dur := time.Since(start)
	ev := jobEvent(job)
	ev.Started = start
	ev.Duration = dur
	if err != nil {
		ev.Error = err.Error()
		log.Warn("job failed", logx.Err(err), logx.Duration("dur", dur))
		if s.bus != nil {
			s.bus.Publish(eventbus.Event{Type: eventbus.EventJobFailed, Data: ev})
		}
		return
	}
	log.Info("job completed", logx.Duration("dur", dur))
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.EventJobFinished, Data: ev})
	}
}

// runContained runs the pipeline with a panic barrier: a crash in one job is
// converted to an error and never escapes to the worker loop.
func (s *Service) runContained(ctx context.Context, job Job, log logx.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic in job pipeline", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()
	return s.runner.Run(ctx, job)
}
