// Package admission gates clip requests before they reach the worker pool.
//
// The ledger is the only state shared between the intake path and the
// workers: intake calls Admit, the owning worker calls Release exactly once
// when the job reaches a terminal state. Entries use a per-user mutex so
// unrelated users never serialize on each other.
package admission

import (
	"sync"
	"time"

	"clipbot/pkg/logx"
)

type Verdict int

const (
	Accepted Verdict = iota
	AlreadyInFlight
	CooldownActive
	DailyLimitReached
)

// Decision is the outcome of one Admit call.
//
// Remaining is set for CooldownActive; Limit is set for DailyLimitReached.
type Decision struct {
	Verdict   Verdict
	Remaining time.Duration
	Limit     int
}

type Config struct {
	Cooldown   time.Duration
	DailyLimit int
}

func (c Config) withDefaults() Config {
	if c.Cooldown <= 0 {
		c.Cooldown = 5 * time.Minute
	}
	if c.DailyLimit <= 0 {
		c.DailyLimit = 10
	}
	return c
}

type entry struct {
	mu sync.Mutex

	lastAcceptedAt time.Time // zero = never accepted
	acceptedToday  int
	activeJobs     int
	dayBoundary    time.Time // midnight of the day acceptedToday counts for
}

// Ledger tracks per-user admission state for the process lifetime.
// Entries are created lazily and never destroyed (in-memory, single process).
type Ledger struct {
	mu  sync.Mutex
	cfg Config
	log logx.Logger

	usersMu sync.RWMutex
	users   map[int64]*entry
}

func NewLedger(cfg Config, log logx.Logger) *Ledger {
	return &Ledger{
		cfg:   cfg.withDefaults(),
		log:   log,
		users: map[int64]*entry{},
	}
}

// Apply updates limits at runtime. In-flight counters are untouched.
func (l *Ledger) Apply(cfg Config) {
	l.mu.Lock()
	l.cfg = cfg.withDefaults()
	l.mu.Unlock()
}

func (l *Ledger) entryFor(userID int64) *entry {
	l.usersMu.RLock()
	e := l.users[userID]
	l.usersMu.RUnlock()
	if e != nil {
		return e
	}

	l.usersMu.Lock()
	defer l.usersMu.Unlock()
	if e = l.users[userID]; e == nil {
		e = &entry{}
		l.users[userID] = e
	}
	return e
}

// Admit decides atomically whether a request from userID may enter the queue.
//
// Check order: day rollover reset, single-in-flight, cooldown, daily limit.
// On acceptance it records the acceptance time, bumps the daily counter and
// the in-flight counter in the same critical section, so two concurrent
// messages from the same user can never both be admitted.
func (l *Ledger) Admit(userID int64, now time.Time) Decision {
	l.mu.Lock()
	cfg := l.cfg
	l.mu.Unlock()

	e := l.entryFor(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	day := midnight(now)
	if !e.dayBoundary.Equal(day) {
		e.dayBoundary = day
		e.acceptedToday = 0
	}

	if e.activeJobs > 0 {
		return Decision{Verdict: AlreadyInFlight}
	}
	if !e.lastAcceptedAt.IsZero() {
		if since := now.Sub(e.lastAcceptedAt); since < cfg.Cooldown {
			return Decision{Verdict: CooldownActive, Remaining: cfg.Cooldown - since}
		}
	}
	if e.acceptedToday >= cfg.DailyLimit {
		return Decision{Verdict: DailyLimitReached, Limit: cfg.DailyLimit}
	}

	e.lastAcceptedAt = now
	e.acceptedToday++
	e.activeJobs++
	return Decision{Verdict: Accepted}
}

// Release decrements the user's in-flight counter. Called exactly once per
// admitted job by the worker that owned it, success or failure alike.
func (l *Ledger) Release(userID int64) {
	e := l.entryFor(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.activeJobs <= 0 {
		// Double release is a bug in the caller; clamp and log rather than
		// corrupting the counter.
		l.log.Error("ledger release without matching admit", logx.Int64("user", userID))
		e.activeJobs = 0
		return
	}
	e.activeJobs--
}

// ActiveJobs reports the user's current in-flight count (for diagnostics).
func (l *Ledger) ActiveJobs(userID int64) int {
	e := l.entryFor(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeJobs
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
