package clip

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidRange is returned when the requested end does not lie strictly
// after the requested start.
var ErrInvalidRange = errors.New("end time must be greater than start time")

// Request is one validated user request to extract [Start, End) from a remote
// video. Immutable after construction.
type Request struct {
	ID          string
	RequesterID int64
	ChatID      int64
	SourceURL   string

	Start TimeSpec
	End   TimeSpec
}

// NewRequest validates the time range and assigns the request a unique ID.
// The ID doubles as the per-job artifact name prefix, so concurrent jobs can
// never collide on disk.
func NewRequest(requesterID, chatID int64, sourceURL string, start, end TimeSpec) (Request, error) {
	if strings.TrimSpace(sourceURL) == "" {
		return Request{}, errors.New("source url is empty")
	}
	if end.Seconds() <= start.Seconds() {
		return Request{}, fmt.Errorf("%w (start=%s end=%s)", ErrInvalidRange, start, end)
	}
	return Request{
		ID:          uuid.NewString(),
		RequesterID: requesterID,
		ChatID:      chatID,
		SourceURL:   sourceURL,
		Start:       start,
		End:         end,
	}, nil
}

// Duration returns the requested clip length in seconds.
func (r Request) Duration() int { return r.End.Seconds() - r.Start.Seconds() }
