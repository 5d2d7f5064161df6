package transport

import (
	"context"
	"errors"
	"net"
	"strings"
)

type Update struct {
	Message *Message
}

type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	Text         string
}

// Adapter is the messaging channel boundary. The rest of the bot only ever
// talks to this interface; telebot stays behind it.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, chatID int64, text string) error
	// SendVideo uploads a local file as a video message. Failures that are
	// timeout-class (and therefore worth retrying) satisfy IsTimeout.
	SendVideo(ctx context.Context, chatID int64, filePath string) error
}

// timeoutError marks a delivery failure as retryable.
type timeoutError struct{ err error }

func (e *timeoutError) Error() string { return e.err.Error() }
func (e *timeoutError) Unwrap() error { return e.err }
func (e *timeoutError) Timeout() bool { return true }

// MarkTimeout wraps err so IsTimeout reports true for it.
func MarkTimeout(err error) error {
	if err == nil {
		return nil
	}
	return &timeoutError{err: err}
}

// IsTimeout reports whether a delivery failure was timeout-class: context
// deadlines, net timeouts, or an HTTP client timeout surfaced as text by the
// bot API library.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var te *timeoutError
	if errors.As(err, &te) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out")
}
