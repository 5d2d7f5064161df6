package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"clipbot/pkg/logx"
)

type FFmpegConfig struct {
	Binary       string        // default "ffmpeg"
	CRF          int           // default 23
	Preset       string        // default "slow"
	AudioCodec   string        // default "aac"
	AudioBitrate string        // default "128k"
	Timeout      time.Duration // per-trim, default 15m
}

func (c FFmpegConfig) withDefaults() FFmpegConfig {
	if strings.TrimSpace(c.Binary) == "" {
		c.Binary = "ffmpeg"
	}
	if c.CRF <= 0 {
		c.CRF = 23
	}
	if strings.TrimSpace(c.Preset) == "" {
		c.Preset = "slow"
	}
	if strings.TrimSpace(c.AudioCodec) == "" {
		c.AudioCodec = "aac"
	}
	if strings.TrimSpace(c.AudioBitrate) == "" {
		c.AudioBitrate = "128k"
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Minute
	}
	return c
}

// FFmpegTranscoder trims and re-encodes clips with the local ffmpeg binary.
type FFmpegTranscoder struct {
	cfg FFmpegConfig
	log logx.Logger
}

func NewFFmpegTranscoder(cfg FFmpegConfig, log logx.Logger) *FFmpegTranscoder {
	return &FFmpegTranscoder{cfg: cfg.withDefaults(), log: log}
}

func (t *FFmpegTranscoder) Trim(ctx context.Context, srcPath string, startSeconds, durationSeconds int, destPath string) error {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, t.cfg.Binary, trimArgs(t.cfg, srcPath, startSeconds, durationSeconds, destPath)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, tail(stderr.String(), 400))
	}

	t.log.Debug("trim finished",
		logx.String("src", srcPath),
		logx.Int("start_s", startSeconds),
		logx.Int("duration_s", durationSeconds),
		logx.Duration("took", time.Since(start)))
	return nil
}

func trimArgs(cfg FFmpegConfig, srcPath string, startSeconds, durationSeconds int, destPath string) []string {
	return []string{
		"-i", srcPath,
		"-ss", strconv.Itoa(startSeconds),
		"-t", strconv.Itoa(durationSeconds),
		"-c:v", "libx264",
		"-crf", strconv.Itoa(cfg.CRF),
		"-preset", cfg.Preset,
		"-c:a", cfg.AudioCodec,
		"-b:a", cfg.AudioBitrate,
		"-y",
		destPath,
	}
}
