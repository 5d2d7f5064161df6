package core

import (
	"context"
	"testing"
	"time"

	"clipbot/internal/clip"
	"clipbot/internal/engine"
	"clipbot/internal/janitor"
	"clipbot/internal/runtime/supervisor"
	logx "clipbot/pkg/logx"
)

type noopReleaser struct{}

func (noopReleaser) Release(int64) {}

// drainRunner stands in for the clip pipeline: it needs a moment to finish
// and reports whether its context was still live at completion.
type drainRunner struct {
	popped chan struct{}
	result chan error
}

func (r *drainRunner) Run(ctx context.Context, _ engine.Job) error {
	close(r.popped)
	select {
	case <-time.After(200 * time.Millisecond):
		r.result <- ctx.Err()
	case <-ctx.Done():
		r.result <- ctx.Err()
	}
	return nil
}

func testClipJob(t *testing.T) engine.Job {
	t.Helper()
	start, err := clip.ParseTimeSpec("0:00")
	if err != nil {
		t.Fatal(err)
	}
	end, err := clip.ParseTimeSpec("0:10")
	if err != nil {
		t.Fatal(err)
	}
	req, err := clip.NewRequest(1, 2, "https://example/video", start, end)
	if err != nil {
		t.Fatal(err)
	}
	return engine.Job{Request: req}
}

func TestStopDrainsInFlightJobs(t *testing.T) {
	t.Parallel()

	runner := &drainRunner{popped: make(chan struct{}), result: make(chan error, 1)}
	eng := engine.New(engine.Config{Workers: 1}, runner, noopReleaser{}, logx.Nop(), nil)

	parent, parentCancel := context.WithCancel(context.Background())
	defer parentCancel()

	a := &App{
		log: logx.Nop(),
		eng: eng,
		jan: janitor.New(janitor.Config{}, logx.Nop()),
	}
	a.sup = supervisor.New(parent, supervisor.WithLogger(logx.Nop()))
	a.startEngine()

	if _, err := eng.Enqueue(testClipJob(t)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	select {
	case <-runner.popped:
	case <-time.After(5 * time.Second):
		t.Fatal("worker never picked up the job")
	}

	// A signal cancels the supervisor's parent before Stop is called.
	parentCancel()

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Stop(stopCtx, StopSignal); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	select {
	case got := <-runner.result:
		if got != nil {
			t.Fatalf("in-flight job lost its context during shutdown: %v", got)
		}
	default:
		t.Fatal("Stop returned before the in-flight job finished")
	}
}
