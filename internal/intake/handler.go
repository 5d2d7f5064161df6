// Package intake turns inbound chat messages into admitted clip jobs.
//
// It runs concurrently with the workers but only ever validates, admits and
// enqueues; it never touches pipeline internals.
package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clipbot/internal/admission"
	"clipbot/internal/clip"
	"clipbot/internal/engine"
	"clipbot/internal/transport"
	"clipbot/pkg/logx"
)

const welcomeText = `🎉 Hey there! Welcome to ClipBot! 🎥
I grab specific clips from online videos for you.
Just send me a message like this:
📌 <video URL> <start time> <end time>
For example: https://www.youtube.com/watch?v=PVGeM40dABA 00:37 00:44
Let's get started!`

const usageText = `🤔 Hmm, that's not quite right! Please use this format:
📌 <video URL> <start time> <end time>
For example: https://www.youtube.com/watch?v=PVGeM40dABA 00:37 00:44
Give it another shot!`

// Enqueuer submits admitted jobs. Implemented by engine.Service.
type Enqueuer interface {
	Enqueue(job engine.Job) (int, error)
}

// Admitter is the admission boundary. Implemented by admission.Ledger;
// Release is needed to roll back an admission the engine refused.
type Admitter interface {
	Admit(userID int64, now time.Time) admission.Decision
	Release(userID int64)
}

type TextSender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

type Handler struct {
	sender TextSender
	ledger Admitter
	engine Enqueuer
	log    logx.Logger

	now func() time.Time // injectable for tests
}

func NewHandler(sender TextSender, ledger Admitter, eng Enqueuer, log logx.Logger) *Handler {
	return &Handler{
		sender: sender,
		ledger: ledger,
		engine: eng,
		log:    log,
		now:    time.Now,
	}
}

// DispatchLoop consumes transport updates until ctx is cancelled.
func (h *Handler) DispatchLoop(ctx context.Context, updates <-chan transport.Update) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			h.Handle(ctx, up)
		}
	}
}

// Handle processes one update. Every outcome produces exactly one reply.
func (h *Handler) Handle(ctx context.Context, up transport.Update) {
	m := up.Message
	if m == nil {
		return
	}
	text := strings.TrimSpace(m.Text)
	if text == "" {
		return
	}

	if text == "/start" || strings.HasPrefix(text, "/start ") {
		h.reply(ctx, m.ChatID, welcomeText)
		return
	}

	tokens := strings.Fields(text)
	if len(tokens) != 3 {
		h.reply(ctx, m.ChatID, usageText)
		return
	}

	url, startRaw, endRaw := tokens[0], tokens[1], tokens[2]

	start, err := clip.ParseTimeSpec(startRaw)
	if err != nil {
		h.reply(ctx, m.ChatID, fmt.Sprintf("⏰ %q is not a valid time. Use SS, MM:SS or HH:MM:SS (e.g. 5:00 or 1:05:30).", startRaw))
		return
	}
	end, err := clip.ParseTimeSpec(endRaw)
	if err != nil {
		h.reply(ctx, m.ChatID, fmt.Sprintf("⏰ %q is not a valid time. Use SS, MM:SS or HH:MM:SS (e.g. 5:00 or 1:05:30).", endRaw))
		return
	}

	req, err := clip.NewRequest(m.FromID, m.ChatID, url, start, end)
	if err != nil {
		if errors.Is(err, clip.ErrInvalidRange) {
			h.reply(ctx, m.ChatID, "⏰ Oops! The end time must be greater than the start time. Try again!")
		} else {
			h.reply(ctx, m.ChatID, usageText)
		}
		return
	}

	decision := h.ledger.Admit(m.FromID, h.now())
	switch decision.Verdict {
	case admission.AlreadyInFlight:
		h.reply(ctx, m.ChatID, "🛠 I'm still working on your previous clip. One at a time, please!")
		return
	case admission.CooldownActive:
		h.reply(ctx, m.ChatID, fmt.Sprintf("⏳ Easy there! Please wait another %s before your next clip.", formatRemaining(decision.Remaining)))
		return
	case admission.DailyLimitReached:
		h.reply(ctx, m.ChatID, fmt.Sprintf("📅 You've reached your %d clips for today. Try again tomorrow!", decision.Limit))
		return
	}

	pos, err := h.engine.Enqueue(engine.Job{Request: req})
	if err != nil {
		// The admission already counted this job; give the slot back.
		h.ledger.Release(m.FromID)
		h.log.Warn("enqueue rejected", logx.Err(err), logx.Int64("user", m.FromID))
		h.reply(ctx, m.ChatID, "😓 I'm shutting down right now and can't take new clips. Try again soon!")
		return
	}

	h.log.Info("request admitted",
		logx.String("job", req.ID),
		logx.Int64("user", m.FromID),
		logx.String("range", fmt.Sprintf("%s-%s", start, end)))
	h.reply(ctx, m.ChatID, fmt.Sprintf("✅ Got it! Your clip is queued (position %d). I'll keep you posted!", pos))
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string) {
	if err := h.sender.SendText(ctx, chatID, text); err != nil {
		h.log.Warn("reply failed", logx.Int64("chat", chatID), logx.Err(err))
	}
}

// formatRemaining renders a residual wait as whole minutes and seconds,
// rounding seconds up so "wait 0m 0s" can never appear for a positive wait.
func formatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int((d + time.Second - 1) / time.Second)
	return fmt.Sprintf("%dm %02ds", secs/60, secs%60)
}
