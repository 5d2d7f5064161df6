// Package pipeline runs one clip job through its stages: fetch, duration
// check, optional trim, size check, delivery with bounded retries, and a
// cleanup that runs on every exit path.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"clipbot/internal/clip"
	"clipbot/internal/engine"
	"clipbot/internal/media"
	"clipbot/internal/transport"
	"clipbot/pkg/logx"
)

// Abort kinds. Each terminates the current job only and maps to exactly one
// user-facing message.
var (
	ErrFetchFailed     = errors.New("fetch failed")
	ErrTranscodeFailed = errors.New("transcode failed")
	ErrTooLarge        = errors.New("clip exceeds the delivery size limit")
	ErrDeliveryFailed  = errors.New("delivery failed")
)

// Notifier is the outbound messaging capability the pipeline consumes.
// Satisfied by transport.Adapter.
type Notifier interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendVideo(ctx context.Context, chatID int64, filePath string) error
}

type Config struct {
	WorkDir          string
	SizeLimitMB      int // default 50
	ToleranceSeconds int // default 5
	DeliveryAttempts int // default 3
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.WorkDir) == "" {
		c.WorkDir = os.TempDir()
	}
	if c.SizeLimitMB <= 0 {
		c.SizeLimitMB = 50
	}
	if c.ToleranceSeconds <= 0 {
		c.ToleranceSeconds = 5
	}
	if c.DeliveryAttempts <= 0 {
		c.DeliveryAttempts = 3
	}
	return c
}

type Pipeline struct {
	cfg        Config
	fetcher    media.Fetcher
	transcoder media.Transcoder
	notifier   Notifier
	log        logx.Logger
}

func New(cfg Config, fetcher media.Fetcher, transcoder media.Transcoder, notifier Notifier, log logx.Logger) *Pipeline {
	return &Pipeline{
		cfg:        cfg.withDefaults(),
		fetcher:    fetcher,
		transcoder: transcoder,
		notifier:   notifier,
		log:        log,
	}
}

// Run executes the job to a terminal state. The returned error (nil on
// success) has already been reported to the user; artifacts are removed on
// every exit path.
func (p *Pipeline) Run(ctx context.Context, job engine.Job) error {
	req := job.Request
	tempPath := filepath.Join(p.cfg.WorkDir, req.ID+".download.mp4")
	outPath := filepath.Join(p.cfg.WorkDir, req.ID+".mp4")

	defer p.cleanup(tempPath, outPath)

	err := p.runStages(ctx, req, tempPath, outPath)
	if err != nil {
		p.sendText(ctx, req.ChatID, userMessage(err, p.cfg.SizeLimitMB))
		return err
	}
	p.sendText(ctx, req.ChatID, "🎉 All done! Your clip is ready. Enjoy!")
	return nil
}

// runStages runs the stage sequence behind a panic barrier: a crash inside
// any stage becomes a terminal error, so the failure report in Run above is
// never skipped.
func (p *Pipeline) runStages(ctx context.Context, req clip.Request, tempPath, outPath string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("panic in pipeline stage",
				logx.String("job", req.ID),
				logx.Any("panic", r),
				logx.Stack(string(debug.Stack())))
			err = fmt.Errorf("stage panic: %v", r)
		}
	}()
	return p.run(ctx, req, tempPath, outPath)
}

func (p *Pipeline) run(ctx context.Context, req clip.Request, tempPath, outPath string) error {
	log := p.log.With(logx.String("job", req.ID))

	// Validate: the request was checked at intake, but the duration
	// arithmetic is recomputed here at the pipeline boundary.
	duration := req.End.Seconds() - req.Start.Seconds()
	if duration <= 0 {
		return clip.ErrInvalidRange
	}

	// Fetch.
	p.sendText(ctx, req.ChatID, "⬇️ Downloading your video now... hang tight!")
	info, err := p.fetcher.Fetch(ctx, media.FetchRequest{
		URL:          req.SourceURL,
		DestPath:     tempPath,
		StartSeconds: req.Start.Seconds(),
		EndSeconds:   req.End.Seconds(),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	// Duration check: if the fetch tool already pre-trimmed to roughly the
	// requested length, skip the expensive re-encode.
	if info.DurationSeconds <= float64(duration+p.cfg.ToleranceSeconds) {
		log.Info("fetched media already trimmed; skipping transcode",
			logx.Float64("media_s", info.DurationSeconds),
			logx.Int("requested_s", duration))
		if err := os.Rename(tempPath, outPath); err != nil {
			return fmt.Errorf("%w: move output: %v", ErrTranscodeFailed, err)
		}
	} else {
		p.sendText(ctx, req.ChatID, fmt.Sprintf("✂️ Trimming and compressing your clip from %s to %s...", req.Start, req.End))
		if err := p.transcoder.Trim(ctx, tempPath, req.Start.Seconds(), duration, outPath); err != nil {
			return fmt.Errorf("%w: %v", ErrTranscodeFailed, err)
		}
	}

	// Size check.
	fi, err := os.Stat(outPath)
	if err != nil {
		return fmt.Errorf("%w: stat output: %v", ErrTranscodeFailed, err)
	}
	sizeMB := float64(fi.Size()) / (1024 * 1024)
	log.Info("output ready", logx.Float64("size_mb", sizeMB))
	if fi.Size() > int64(p.cfg.SizeLimitMB)*1024*1024 {
		return fmt.Errorf("%w: %.1f MB", ErrTooLarge, sizeMB)
	}

	// Deliver with bounded retries; only timeout-class failures are retried.
	p.sendText(ctx, req.ChatID, "🚀 Uploading your clip now... almost there!")
	err = retry(ctx, p.cfg.DeliveryAttempts, transport.IsTimeout,
		func(attempt int, err error) {
			log.Warn("upload attempt timed out; retrying", logx.Int("attempt", attempt), logx.Err(err))
			p.sendText(ctx, req.ChatID, "⏳ Upload timed out, retrying... please wait!")
		},
		func(ctx context.Context) error {
			return p.notifier.SendVideo(ctx, req.ChatID, outPath)
		})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return nil
}

// cleanup removes the job's artifacts. Runs on every exit path, so a
// completed job never leaves files behind.
func (p *Pipeline) cleanup(paths ...string) {
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			p.log.Warn("failed to remove artifact", logx.String("path", path), logx.Err(err))
		}
	}
}

func (p *Pipeline) sendText(ctx context.Context, chatID int64, text string) {
	// Progress messages are best-effort; a failed notice never fails the job.
	if err := p.notifier.SendText(ctx, chatID, text); err != nil {
		p.log.Debug("progress message failed", logx.Err(err))
	}
}

// userMessage maps a terminal pipeline error to the single message the
// requester sees. Unknown errors get the generic wording.
func userMessage(err error, sizeLimitMB int) string {
	switch {
	case errors.Is(err, clip.ErrInvalidRange):
		return "⏰ Oops! The end time must be greater than the start time. Try again!"
	case errors.Is(err, ErrFetchFailed):
		return fmt.Sprintf("😓 I couldn't download that video: %s\nCheck the link and try again!", cause(err))
	case errors.Is(err, ErrTranscodeFailed):
		return "😓 Trimming the clip failed on my end. Let's try again later!"
	case errors.Is(err, ErrTooLarge):
		return fmt.Sprintf("📏 Oh no! The clip is too big to deliver (over %d MB). Try a shorter clip!", sizeLimitMB)
	case errors.Is(err, ErrDeliveryFailed):
		return "😓 Uploading the clip kept failing. Please try again in a bit!"
	default:
		return fmt.Sprintf("😓 Sorry, something went wrong: %s\nLet's try again!", err)
	}
}

// cause strips the abort-kind prefix so users see only the underlying reason.
func cause(err error) string {
	s := err.Error()
	if i := strings.Index(s, ": "); i >= 0 {
		return s[i+2:]
	}
	return s
}
