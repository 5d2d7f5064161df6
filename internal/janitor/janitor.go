// Package janitor sweeps orphaned pipeline artifacts out of the work
// directory. The pipeline cleans up after itself; the janitor covers crashes
// and kills that skipped the deferred cleanup.
package janitor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	logx "clipbot/pkg/logx"
)

type Config struct {
	Enabled  bool
	Schedule string        // cron spec; default "30 4 * * *"
	MaxAge   time.Duration // default 6h
	WorkDir  string
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Schedule) == "" {
		c.Schedule = "30 4 * * *"
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 6 * time.Hour
	}
	if strings.TrimSpace(c.WorkDir) == "" {
		c.WorkDir = os.TempDir()
	}
	return c
}

type Service struct {
	cfg Config
	log logx.Logger

	mu sync.Mutex
	c  *cron.Cron
}

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg.withDefaults(), log: log}
}

func (s *Service) Start(ctx context.Context) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.Enabled || s.c != nil {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(s.cfg.Schedule, func() { s.Sweep() }); err != nil {
		return err
	}
	c.Start()
	s.c = c
	s.log.Info("janitor started",
		logx.String("schedule", s.cfg.Schedule),
		logx.String("dir", s.cfg.WorkDir),
		logx.Duration("max_age", s.cfg.MaxAge))
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}
}

// isArtifact reports whether name follows the pipeline's artifact naming,
// "<job uuid>.mp4" or "<job uuid>.download.mp4". The work directory defaults
// to the system temp dir, so anything else in it is not ours to delete.
func isArtifact(name string) bool {
	base, ok := strings.CutSuffix(name, ".mp4")
	if !ok {
		return false
	}
	base = strings.TrimSuffix(base, ".download")
	_, err := uuid.Parse(base)
	return err == nil
}

// Sweep removes stale clip artifacts from the work directory. Only files
// matching the pipeline's job-id naming are considered; other tenants of
// the directory are left alone.
func (s *Service) Sweep() {
	cutoff := time.Now().Add(-s.cfg.MaxAge)

	entries, err := os.ReadDir(s.cfg.WorkDir)
	if err != nil {
		s.log.Warn("janitor sweep failed", logx.String("dir", s.cfg.WorkDir), logx.Err(err))
		return
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || !isArtifact(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.cfg.WorkDir, e.Name())
		if err := os.Remove(path); err != nil {
			s.log.Warn("janitor remove failed", logx.String("path", path), logx.Err(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		s.log.Info("janitor swept stale artifacts",
			logx.Int("removed", removed), logx.String("dir", s.cfg.WorkDir))
	}
}
