package admission

import (
	"sync"
	"testing"
	"time"

	"clipbot/pkg/logx"
)

func newTestLedger(cfg Config) *Ledger {
	return NewLedger(cfg, logx.Nop())
}

func TestAdmitLifecycle(t *testing.T) {
	t.Parallel()
	l := newTestLedger(Config{Cooldown: 5 * time.Minute, DailyLimit: 10})
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if d := l.Admit(1, now); d.Verdict != Accepted {
		t.Fatalf("first admit = %v, want Accepted", d.Verdict)
	}

	// Same user again while the job is in flight.
	if d := l.Admit(1, now.Add(time.Second)); d.Verdict != AlreadyInFlight {
		t.Fatalf("second admit = %v, want AlreadyInFlight", d.Verdict)
	}

	l.Release(1)

	// Released, but still inside the cooldown window.
	d := l.Admit(1, now.Add(2*time.Minute))
	if d.Verdict != CooldownActive {
		t.Fatalf("admit during cooldown = %v, want CooldownActive", d.Verdict)
	}
	if d.Remaining != 3*time.Minute {
		t.Fatalf("Remaining = %v, want 3m", d.Remaining)
	}

	// Cooldown elapsed.
	if d := l.Admit(1, now.Add(5*time.Minute)); d.Verdict != Accepted {
		t.Fatalf("admit after cooldown = %v, want Accepted", d.Verdict)
	}
}

func TestAdmitIndependentUsers(t *testing.T) {
	t.Parallel()
	l := newTestLedger(Config{})
	now := time.Now()

	if d := l.Admit(1, now); d.Verdict != Accepted {
		t.Fatalf("user 1 = %v, want Accepted", d.Verdict)
	}
	if d := l.Admit(2, now); d.Verdict != Accepted {
		t.Fatalf("user 2 = %v, want Accepted", d.Verdict)
	}
}

func TestDailyLimitAndRollover(t *testing.T) {
	t.Parallel()
	limit := 3
	l := newTestLedger(Config{Cooldown: time.Minute, DailyLimit: limit})
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	for i := 0; i < limit; i++ {
		if d := l.Admit(7, now); d.Verdict != Accepted {
			t.Fatalf("admit %d = %v, want Accepted", i+1, d.Verdict)
		}
		l.Release(7)
		now = now.Add(time.Minute)
	}

	d := l.Admit(7, now)
	if d.Verdict != DailyLimitReached {
		t.Fatalf("over limit = %v, want DailyLimitReached", d.Verdict)
	}
	if d.Limit != limit {
		t.Fatalf("Limit = %d, want %d", d.Limit, limit)
	}

	// Next calendar day resets the counter.
	nextDay := time.Date(2025, 6, 2, 0, 0, 1, 0, time.UTC)
	if d := l.Admit(7, nextDay); d.Verdict != Accepted {
		t.Fatalf("next day = %v, want Accepted", d.Verdict)
	}
}

func TestAdmitSingleInFlightUnderConcurrency(t *testing.T) {
	t.Parallel()
	l := newTestLedger(Config{Cooldown: time.Minute, DailyLimit: 100})
	now := time.Now()

	const attempts = 64
	var wg sync.WaitGroup
	accepted := make(chan struct{}, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d := l.Admit(42, now); d.Verdict == Accepted {
				accepted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(accepted)

	n := 0
	for range accepted {
		n++
	}
	if n != 1 {
		t.Fatalf("accepted %d concurrent requests for one user, want exactly 1", n)
	}
	if got := l.ActiveJobs(42); got != 1 {
		t.Fatalf("ActiveJobs = %d, want 1", got)
	}
}

func TestReleaseNeverGoesNegative(t *testing.T) {
	t.Parallel()
	l := newTestLedger(Config{})
	l.Release(9)
	if got := l.ActiveJobs(9); got != 0 {
		t.Fatalf("ActiveJobs = %d, want 0", got)
	}
}
