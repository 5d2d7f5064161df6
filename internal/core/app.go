// Package core wires the bot together: config, logging, transport, admission,
// the worker engine and the supporting services.
package core

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"clipbot/internal/admission"
	"clipbot/internal/config"
	"clipbot/internal/engine"
	"clipbot/internal/eventbus"
	"clipbot/internal/intake"
	"clipbot/internal/janitor"
	"clipbot/internal/media"
	"clipbot/internal/pipeline"
	"clipbot/internal/runtime/supervisor"
	"clipbot/internal/storage"
	"clipbot/internal/transport"
	"clipbot/internal/transport/telegram"
	logx "clipbot/pkg/logx"
)

// StopReason labels why the app is shutting down (signal, fatal error, ...).
type StopReason string

const (
	StopSignal StopReason = "signal"
	StopFatal  StopReason = "fatal"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log    logx.Logger
	logSvc *logx.Service

	adapter *telegram.Adapter
	ledger  *admission.Ledger
	bus     eventbus.Bus
	eng     *engine.Service
	handler *intake.Handler
	store   storage.Store
	jan     *janitor.Service

	updates chan transport.Update
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	// Token may come from the environment (.env) instead of the config file.
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		cfg.Telegram.Token = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole(cfg.Logging.Level).With(logx.String("comp", "telegram"))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, bootLog)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ChatID:     cfg.Telegram.LogChatID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}, adapter)
	log = log.With(logx.String("comp", "app"))

	cooldown, err := config.ParseDurationField("admission.cooldown", cfg.Admission.Cooldown)
	if err != nil {
		return nil, err
	}
	ledger := admission.NewLedger(admission.Config{
		Cooldown:   cooldown,
		DailyLimit: cfg.Admission.DailyLimit,
	}, log.With(logx.String("comp", "admission")))

	fetchTimeout, err := config.ParseDurationField("media.fetch_timeout", cfg.Media.FetchTimeout)
	if err != nil {
		return nil, err
	}
	trimTimeout, err := config.ParseDurationField("media.trim_timeout", cfg.Media.TrimTimeout)
	if err != nil {
		return nil, err
	}
	fetcher := media.NewYtDlpFetcher(media.YtDlpConfig{
		Binary:         cfg.Media.YtDlpBinary,
		ProbeBinary:    cfg.Media.FFprobeBinary,
		QualityCeiling: cfg.Media.QualityCeiling,
		Timeout:        fetchTimeout,
	}, log.With(logx.String("comp", "ytdlp")))
	transcoder := media.NewFFmpegTranscoder(media.FFmpegConfig{
		Binary:  cfg.Media.FFmpegBinary,
		Timeout: trimTimeout,
	}, log.With(logx.String("comp", "ffmpeg")))

	pipe := pipeline.New(pipeline.Config{
		WorkDir:          cfg.Media.WorkDir,
		SizeLimitMB:      cfg.Media.SizeLimitMB,
		ToleranceSeconds: cfg.Media.ToleranceSeconds,
		DeliveryAttempts: cfg.Media.DeliveryAttempts,
	}, fetcher, transcoder, adapter, log.With(logx.String("comp", "pipeline")))

	bus := eventbus.New()
	eng := engine.New(engine.Config{Workers: cfg.Engine.Workers},
		pipe, ledger, log.With(logx.String("comp", "engine")), bus)

	handler := intake.NewHandler(adapter, ledger, eng, log.With(logx.String("comp", "intake")))

	var store storage.Store
	if cfg.Storage != nil {
		busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
		if err != nil {
			return nil, err
		}
		store, err = storage.Open(storage.Config{
			Driver:      cfg.Storage.Driver,
			Path:        cfg.Storage.Path,
			BusyTimeout: busy,
		}, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
	}

	maxAge, err := config.ParseDurationField("janitor.max_age", cfg.Janitor.MaxAge)
	if err != nil {
		return nil, err
	}
	jan := janitor.New(janitor.Config{
		Enabled:  cfg.Janitor.Enabled,
		Schedule: cfg.Janitor.Schedule,
		MaxAge:   maxAge,
		WorkDir:  cfg.Media.WorkDir,
	}, log.With(logx.String("comp", "janitor")))

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logSvc:  logSvc,
		adapter: adapter,
		ledger:  ledger,
		bus:     bus,
		eng:     eng,
		handler: handler,
		store:   store,
		jan:     jan,
		updates: make(chan transport.Update, 256),
	}, nil
}

// Done is closed when the app context is cancelled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log),
		supervisor.WithCancelOnError(true))

	// Transactional hot reload: validate before commit/publish.
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		// Same env fallback as NewApp so a token-less file stays reloadable.
		if strings.TrimSpace(cfg.Telegram.Token) == "" {
			cfg.Telegram.Token = os.Getenv("TELEGRAM_BOT_TOKEN")
		}
		return cfg.Validate()
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}

	a.startEngine()

	if err := a.jan.Start(a.sup.Context()); err != nil {
		return err
	}

	if a.store != nil {
		rec := storage.NewRecorder(a.store, a.bus, a.log.With(logx.String("comp", "history")))
		a.sup.Go0("history.record", rec.Run)
	}

	a.sup.Go("intake.dispatch", func(c context.Context) error {
		return a.handler.DispatchLoop(c, a.updates)
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

// startEngine runs the worker pool on a context that survives supervisor
// cancellation: shutdown begins by cancelling the supervisor (signal or
// fatal error), and the engine must still drain in-flight jobs afterwards.
// Engine.Stop cancels the run context once the drain grace elapses.
func (a *App) startEngine() {
	a.eng.Start(context.WithoutCancel(a.sup.Context()))
}

// reloadLoop applies the subset of config that supports live updates.
// Worker count and the media stack stay fixed until restart.
func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config.
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						cfg = newer
					}
				default:
					goto APPLY
				}
			}
		APPLY:
			a.logSvc.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console,
				File: logx.FileConfig{
					Enabled: cfg.Logging.File.Enabled,
					Path:    cfg.Logging.File.Path,
				},
				Telegram: logx.TelegramConfig{
					Enabled:    cfg.Logging.Telegram.Enabled,
					ChatID:     cfg.Telegram.LogChatID,
					MinLevel:   cfg.Logging.Telegram.MinLevel,
					RatePerSec: cfg.Logging.Telegram.RatePerSec,
				},
			})

			cooldown, err := config.ParseDurationField("admission.cooldown", cfg.Admission.Cooldown)
			if err != nil {
				// Validator should have caught this; keep the old limits.
				a.log.Warn("invalid admission.cooldown on reload", logx.Err(err))
			} else {
				a.ledger.Apply(admission.Config{
					Cooldown:   cooldown,
					DailyLimit: cfg.Admission.DailyLimit,
				})
			}

			a.log.Info("config reloaded")
		}
	}
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Each shutdown step gets an upper bound so one component can't stall
	// the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			// respect the caller's deadline; never extend it
			if dl, ok := ctx.Deadline(); ok {
				rem := time.Until(dl)
				if rem <= 0 {
					max = 0
				} else if rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)))
		}
	}

	// Stop intake first so no new messages arrive, then drain in-flight jobs
	// while the engine run context is still live. The supervisor is cancelled
	// only after the drain; cancelling earlier would tear down the history
	// recorder before the drain's terminal events reach it.
	if a.adapter != nil {
		step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	}
	step("engine", 30*time.Second, func(c context.Context) error { a.eng.Stop(c); return nil })

	a.sup.Cancel()

	step("janitor", 2*time.Second, func(c context.Context) error { a.jan.Stop(c); return nil })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("closing job history failed", logx.Err(err))
		}
	}
	a.log.Info("stopped")
	if a.logSvc != nil {
		_ = a.logSvc.Close()
	}
	return nil
}
