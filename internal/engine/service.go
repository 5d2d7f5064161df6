// Package engine owns the job queue and the fixed worker pool that runs
// clip jobs to completion.
package engine

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	"clipbot/internal/eventbus"
	"clipbot/pkg/logx"
)

var ErrStopped = errors.New("engine stopped")

// Service executes clip jobs from an unbounded FIFO queue using a fixed
// worker pool.
//
// It is panic-safe (a failure inside one job never takes down a worker) and
// cooperates with shutdown via Start/Stop: on Stop, intake is rejected,
// in-flight jobs get a grace period to finish, and queued-but-unstarted jobs
// are dropped.
type Service struct {
	mu sync.Mutex

	log     logx.Logger
	bus     eventbus.Bus
	cfg     Config
	runner  Runner
	release Releaser

	queue     *Queue
	stopCh    chan struct{}
	stopDone  chan struct{}
	runCtx    context.Context
	runCancel context.CancelFunc
	workerWG  sync.WaitGroup
}

func New(cfg Config, runner Runner, release Releaser, log logx.Logger, bus eventbus.Bus) *Service {
	return &Service{
		cfg:     cfg.withDefaults(),
		runner:  runner,
		release: release,
		log:     log,
		bus:     bus,
	}
}

func (s *Service) Start(ctx context.Context) {
	// If a Stop() is in progress, wait for it (prevents double worker pools).
	for {
		s.mu.Lock()
		if s.stopCh == nil {
			break
		}
		done := s.stopDone
		if done == nil {
			// already running
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
		select {
		case <-done:
			// loop
		case <-ctx.Done():
			return
		}
	}
	defer s.mu.Unlock()

	s.stopCh = make(chan struct{})
	s.runCtx, s.runCancel = context.WithCancel(ctx)
	// Fresh queue per run to avoid executing stale items after a stop/start toggle.
	s.queue = NewQueue()

	workers := s.cfg.Workers
	runCtx := s.runCtx
	stopCh := s.stopCh
	queue := s.queue

	s.workerWG.Add(workers)
	for i := 0; i < workers; i++ {
		idx := i
		go func() {
			defer s.workerWG.Done()
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("panic in engine worker", logx.Int("worker", idx), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
				}
			}()
			s.log.Debug("worker started", logx.Int("worker", idx))
			s.worker(runCtx, stopCh, queue, idx)
			s.log.Debug("worker stopped", logx.Int("worker", idx))
		}()
	}

	s.log.Info("engine started", logx.Int("workers", workers))
}

// Stop closes intake, wakes idle workers and waits for in-flight jobs until
// ctx expires; after that the run context is cancelled so stuck subprocesses
// unwind too.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}

	done := make(chan struct{})
	s.stopDone = done
	stopCh := s.stopCh
	cancel := s.runCancel
	queue := s.queue
	s.runCancel = nil
	s.mu.Unlock()

	close(stopCh)
	if dropped := queue.Len(); dropped > 0 {
		s.log.Warn("dropping queued jobs on shutdown", logx.Int("count", dropped))
	}
	queue.Close()

	go func() {
		s.workerWG.Wait()
		if cancel != nil {
			cancel()
		}
		s.mu.Lock()
		s.stopCh = nil
		s.runCtx = nil
		s.queue = nil
		s.stopDone = nil
		s.mu.Unlock()
		close(done)
		s.log.Info("engine stopped", logx.Duration("took", time.Since(start)))
	}()

	select {
	case <-done:
	case <-ctx.Done():
		// Grace elapsed: abort in-flight pipelines and let the stop finish in
		// the background.
		if cancel != nil {
			cancel()
		}
	}
}

// Enqueue submits an admitted job. Never blocks: the queue is unbounded.
// Returns the job's 1-based queue position.
func (s *Service) Enqueue(job Job) (int, error) {
	s.mu.Lock()
	q := s.queue
	s.mu.Unlock()

	if q == nil {
		return 0, ErrStopped
	}
	job.EnqueuedAt = time.Now()
	pos, err := q.Push(job)
	if err != nil {
		return 0, ErrStopped
	}

	s.log.Info("job queued",
		logx.String("job", job.Request.ID),
		logx.Int64("user", job.Request.RequesterID),
		logx.Int("position", pos))
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.EventJobQueued, Data: jobEvent(job)})
	}
	return pos, nil
}

// QueueLen reports the number of jobs waiting for a worker.
func (s *Service) QueueLen() int {
	s.mu.Lock()
	q := s.queue
	s.mu.Unlock()
	if q == nil {
		return 0
	}
	return q.Len()
}
