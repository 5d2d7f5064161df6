package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"clipbot/internal/engine"
	"clipbot/internal/eventbus"
	logx "clipbot/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	t.Parallel()

	for _, driver := range []string{"", "none", "NONE"} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil {
			t.Fatalf("Open(%q): %v", driver, err)
		}
		if st != nil {
			t.Fatalf("Open(%q) returned a store", driver)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()

	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestFileStoreAppendAndRecent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.db")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		rec := JobRecord{
			At:           base.Add(time.Duration(i) * time.Minute),
			JobID:        string(rune('a' + i)),
			UserID:       100,
			ChatID:       200,
			URL:          "https://example.com/v",
			StartSeconds: 37,
			EndSeconds:   44,
			Outcome:      "ok",
			TookMS:       1500,
		}
		if err := st.AppendJob(ctx, rec); err != nil {
			t.Fatalf("AppendJob %d: %v", i, err)
		}
	}

	got, err := st.RecentJobs(ctx, 3)
	if err != nil {
		t.Fatalf("RecentJobs: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	// newest first
	if got[0].JobID != "e" || got[2].JobID != "c" {
		t.Errorf("order = [%s %s %s], want [e d c]", got[0].JobID, got[1].JobID, got[2].JobID)
	}
	if got[0].StartSeconds != 37 || got[0].EndSeconds != 44 {
		t.Errorf("range = %d..%d, want 37..44", got[0].StartSeconds, got[0].EndSeconds)
	}
}

func TestFileStoreRecentEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.db")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	got, err := st.RecentJobs(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentJobs: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d records from empty store", len(got))
	}
}

func TestRecorderWritesTerminalEvents(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.db")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	bus := eventbus.New()
	rec := NewRecorder(st, bus, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rec.Run(ctx)
		close(done)
	}()

	// Give the recorder a moment to subscribe before publishing.
	time.Sleep(20 * time.Millisecond)

	bus.Publish(eventbus.Event{Type: eventbus.EventJobQueued, Data: engine.JobEvent{ID: "q1"}})
	bus.Publish(eventbus.Event{Type: eventbus.EventJobFinished, Data: engine.JobEvent{
		ID: "j1", UserID: 7, ChatID: 7, URL: "u", StartSeconds: 1, EndSeconds: 3,
		Duration: 2 * time.Second,
	}})
	bus.Publish(eventbus.Event{Type: eventbus.EventJobFailed, Data: engine.JobEvent{
		ID: "j2", UserID: 8, Error: "fetch failed",
	}})

	deadline := time.Now().Add(2 * time.Second)
	var got []JobRecord
	for time.Now().Before(deadline) {
		got, err = st.RecentJobs(context.Background(), 10)
		if err != nil {
			t.Fatalf("RecentJobs: %v", err)
		}
		if len(got) == 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2 (queued events must not be recorded)", len(got))
	}
	if got[0].JobID != "j2" || got[0].Outcome != "failed" || got[0].Error != "fetch failed" {
		t.Errorf("newest record = %+v", got[0])
	}
	if got[1].JobID != "j1" || got[1].Outcome != "ok" || got[1].TookMS != 2000 {
		t.Errorf("oldest record = %+v", got[1])
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("recorder did not stop")
	}
}
