package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "clipbot/pkg/logx"
)

// fileStore is a dependency-free history backend: an append-only JSON Lines
// file at <prefix>.jobs.jsonl.
type fileStore struct {
	log logx.Logger

	mu   sync.Mutex
	file *os.File
	path string
}

type jobLine struct {
	At           int64  `json:"at"` // unix milli
	JobID        string `json:"job_id"`
	UserID       int64  `json:"user_id"`
	ChatID       int64  `json:"chat_id"`
	URL          string `json:"url"`
	StartSeconds int    `json:"start_s"`
	EndSeconds   int    `json:"end_s"`
	Outcome      string `json:"outcome"`
	Error        string `json:"error,omitempty"`
	TookMS       int64  `json:"took_ms"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(filepath.Base(path)))
	jobsPath := filepath.Join(dir, base) + ".jobs.jsonl"

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(jobsPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	return &fileStore{log: log, file: f, path: jobsPath}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func (s *fileStore) AppendJob(ctx context.Context, r JobRecord) error {
	_ = ctx
	if r.At.IsZero() {
		r.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return errors.New("jobs file closed")
	}
	return json.NewEncoder(s.file).Encode(toLine(r))
}

// RecentJobs returns the newest records first, at most limit of them.
// The whole file is scanned; history files stay small enough for that.
func (s *fileStore) RecentJobs(ctx context.Context, limit int) ([]JobRecord, error) {
	_ = ctx
	if limit <= 0 {
		limit = 20
	}

	s.mu.Lock()
	path := s.path
	s.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var all []JobRecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var l jobLine
		if err := json.Unmarshal(sc.Bytes(), &l); err != nil {
			continue
		}
		all = append(all, fromLine(l))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	// newest first
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all, nil
}

func toLine(r JobRecord) jobLine {
	return jobLine{
		At:           r.At.UnixMilli(),
		JobID:        r.JobID,
		UserID:       r.UserID,
		ChatID:       r.ChatID,
		URL:          r.URL,
		StartSeconds: r.StartSeconds,
		EndSeconds:   r.EndSeconds,
		Outcome:      r.Outcome,
		Error:        r.Error,
		TookMS:       r.TookMS,
	}
}

func fromLine(l jobLine) JobRecord {
	return JobRecord{
		At:           time.UnixMilli(l.At),
		JobID:        l.JobID,
		UserID:       l.UserID,
		ChatID:       l.ChatID,
		URL:          l.URL,
		StartSeconds: l.StartSeconds,
		EndSeconds:   l.EndSeconds,
		Outcome:      l.Outcome,
		Error:        l.Error,
		TookMS:       l.TookMS,
	}
}
