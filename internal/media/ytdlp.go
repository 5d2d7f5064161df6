package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"clipbot/pkg/logx"
)

type YtDlpConfig struct {
	Binary         string        // default "yt-dlp"
	ProbeBinary    string        // default "ffprobe"
	QualityCeiling int           // max video height, default 480
	Timeout        time.Duration // per-fetch, default 10m
}

func (c YtDlpConfig) withDefaults() YtDlpConfig {
	if strings.TrimSpace(c.Binary) == "" {
		c.Binary = "yt-dlp"
	}
	if strings.TrimSpace(c.ProbeBinary) == "" {
		c.ProbeBinary = "ffprobe"
	}
	if c.QualityCeiling <= 0 {
		c.QualityCeiling = 480
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Minute
	}
	return c
}

// YtDlpFetcher downloads videos with the local yt-dlp binary.
type YtDlpFetcher struct {
	cfg YtDlpConfig
	log logx.Logger
}

func NewYtDlpFetcher(cfg YtDlpConfig, log logx.Logger) *YtDlpFetcher {
	return &YtDlpFetcher{cfg: cfg.withDefaults(), log: log}
}

func (f *YtDlpFetcher) Fetch(ctx context.Context, req FetchRequest) (Info, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, f.cfg.Binary, fetchArgs(f.cfg, req)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Info{}, fmt.Errorf("yt-dlp: %w: %s", err, tail(stderr.String(), 400))
	}
	if _, err := os.Stat(req.DestPath); err != nil {
		return Info{}, fmt.Errorf("yt-dlp produced no output file: %w", err)
	}

	dur, err := probeDuration(ctx, f.cfg.ProbeBinary, req.DestPath)
	if err != nil {
		return Info{}, fmt.Errorf("probe downloaded file: %w", err)
	}

	f.log.Debug("fetch finished",
		logx.String("url", req.URL),
		logx.Float64("duration_s", dur),
		logx.Duration("took", time.Since(start)))
	return Info{DurationSeconds: dur}, nil
}

func fetchArgs(cfg YtDlpConfig, req FetchRequest) []string {
	// Cap resolution to bound bandwidth and the later re-encode cost.
	format := fmt.Sprintf("bestvideo[height<=%d]+bestaudio/best[height<=%d]",
		cfg.QualityCeiling, cfg.QualityCeiling)

	return []string{
		"-f", format,
		"--merge-output-format", "mp4",
		"--no-playlist",
		"--no-warnings",
		"--quiet",
		// Section download lets capable extractors pre-trim server-side; the
		// pipeline still verifies the duration afterwards.
		"--download-sections", fmt.Sprintf("*%d-%d", req.StartSeconds, req.EndSeconds),
		"-o", req.DestPath,
		req.URL,
	}
}

// probeDuration reads the container duration via ffprobe.
func probeDuration(ctx context.Context, binary, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, binary,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	out, err := cmd.Output()
	if err != nil {
		return 0, err
	}
	s := strings.TrimSpace(string(out))
	if s == "" {
		return 0, errors.New("ffprobe returned empty duration")
	}
	return strconv.ParseFloat(s, 64)
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
