package intake

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"clipbot/internal/admission"
	"clipbot/internal/engine"
	"clipbot/internal/transport"
	"clipbot/pkg/logx"
)

type captureSender struct {
	mu    sync.Mutex
	texts []string
}

func (s *captureSender) SendText(ctx context.Context, chatID int64, text string) error {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()
	return nil
}

func (s *captureSender) last(t *testing.T) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.texts) == 0 {
		t.Fatal("no reply sent")
	}
	return s.texts[len(s.texts)-1]
}

type captureEngine struct {
	mu   sync.Mutex
	jobs []engine.Job
	err  error
}

func (e *captureEngine) Enqueue(job engine.Job) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return 0, e.err
	}
	e.jobs = append(e.jobs, job)
	return len(e.jobs), nil
}

func msg(text string) transport.Update {
	return transport.Update{Message: &transport.Message{ID: 1, ChatID: 100, FromID: 5, Text: text}}
}

func newTestHandler(eng *captureEngine) (*Handler, *captureSender, *admission.Ledger) {
	sender := &captureSender{}
	ledger := admission.NewLedger(admission.Config{Cooldown: 5 * time.Minute, DailyLimit: 10}, logx.Nop())
	h := NewHandler(sender, ledger, eng, logx.Nop())
	return h, sender, ledger
}

func TestHandleStart(t *testing.T) {
	t.Parallel()
	h, sender, _ := newTestHandler(&captureEngine{})
	h.Handle(context.Background(), msg("/start"))
	if !strings.Contains(sender.last(t), "Welcome") {
		t.Fatalf("reply = %q, want welcome text", sender.last(t))
	}
}

func TestHandleWrongTokenCount(t *testing.T) {
	t.Parallel()
	h, sender, _ := newTestHandler(&captureEngine{})
	for _, text := range []string{"https://example/video", "https://example/video 00:37", "a b c d"} {
		h.Handle(context.Background(), msg(text))
		if !strings.Contains(sender.last(t), "not quite right") {
			t.Fatalf("reply to %q = %q, want usage help", text, sender.last(t))
		}
	}
}

func TestHandleInvalidTime(t *testing.T) {
	t.Parallel()
	h, sender, _ := newTestHandler(&captureEngine{})
	h.Handle(context.Background(), msg("https://example/video abc 00:44"))
	if !strings.Contains(sender.last(t), "not a valid time") {
		t.Fatalf("reply = %q, want time format error", sender.last(t))
	}
}

func TestHandleInvalidRange(t *testing.T) {
	t.Parallel()
	eng := &captureEngine{}
	h, sender, _ := newTestHandler(eng)
	h.Handle(context.Background(), msg("https://example/video 00:44 00:37"))
	if !strings.Contains(sender.last(t), "end time must be greater") {
		t.Fatalf("reply = %q, want range error", sender.last(t))
	}
	if len(eng.jobs) != 0 {
		t.Fatal("rejected request must not be enqueued")
	}
}

func TestHandleAcceptedEnqueues(t *testing.T) {
	t.Parallel()
	eng := &captureEngine{}
	h, sender, _ := newTestHandler(eng)

	h.Handle(context.Background(), msg("https://example/video 00:37 00:44"))

	if len(eng.jobs) != 1 {
		t.Fatalf("enqueued %d jobs, want 1", len(eng.jobs))
	}
	job := eng.jobs[0]
	if job.Request.SourceURL != "https://example/video" {
		t.Fatalf("url = %q", job.Request.SourceURL)
	}
	if job.Request.Duration() != 7 {
		t.Fatalf("duration = %d, want 7", job.Request.Duration())
	}
	if !strings.Contains(sender.last(t), "queued") {
		t.Fatalf("reply = %q, want queued confirmation", sender.last(t))
	}
}

func TestHandleRejectionsReported(t *testing.T) {
	t.Parallel()
	eng := &captureEngine{}
	h, sender, ledger := newTestHandler(eng)

	// First request accepted and in flight.
	h.Handle(context.Background(), msg("https://example/video 00:37 00:44"))
	// Second one while in flight.
	h.Handle(context.Background(), msg("https://example/video 00:37 00:44"))
	if !strings.Contains(sender.last(t), "still working") {
		t.Fatalf("reply = %q, want in-flight rejection", sender.last(t))
	}

	// After release, the cooldown applies.
	ledger.Release(5)
	h.Handle(context.Background(), msg("https://example/video 00:37 00:44"))
	if !strings.Contains(sender.last(t), "wait another") {
		t.Fatalf("reply = %q, want cooldown rejection", sender.last(t))
	}

	if len(eng.jobs) != 1 {
		t.Fatalf("enqueued %d jobs, want 1", len(eng.jobs))
	}
}

func TestHandleEnqueueFailureReleasesSlot(t *testing.T) {
	t.Parallel()
	eng := &captureEngine{err: engine.ErrStopped}
	h, sender, ledger := newTestHandler(eng)

	h.Handle(context.Background(), msg("https://example/video 00:37 00:44"))
	if !strings.Contains(sender.last(t), "shutting down") {
		t.Fatalf("reply = %q, want shutdown notice", sender.last(t))
	}
	if got := ledger.ActiveJobs(5); got != 0 {
		t.Fatalf("ActiveJobs = %d, want 0 (slot rolled back)", got)
	}
}

func TestFormatRemaining(t *testing.T) {
	t.Parallel()
	tests := []struct {
		d    time.Duration
		want string
	}{
		{d: 3 * time.Minute, want: "3m 00s"},
		{d: 272 * time.Second, want: "4m 32s"},
		{d: 500 * time.Millisecond, want: "0m 01s"},
	}
	for _, tt := range tests {
		if got := formatRemaining(tt.d); got != tt.want {
			t.Fatalf("formatRemaining(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
