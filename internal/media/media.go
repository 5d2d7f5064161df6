// Package media wraps the external tools that do the heavy lifting:
// yt-dlp for fetching and ffmpeg/ffprobe for trimming and inspection.
// Everything here is invoked as an opaque subprocess; callers only see the
// Fetcher and Transcoder contracts.
package media

import "context"

// Info describes a fetched media file.
type Info struct {
	DurationSeconds float64
}

// FetchRequest asks for a remote video written to DestPath. Start/End are
// passed down so fetch tools that support section downloads can pre-trim;
// callers must still verify the resulting duration.
type FetchRequest struct {
	URL          string
	DestPath     string
	StartSeconds int
	EndSeconds   int
}

type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (Info, error)
}

type Transcoder interface {
	// Trim extracts [startSeconds, startSeconds+durationSeconds) from srcPath,
	// re-encodes it and writes destPath.
	Trim(ctx context.Context, srcPath string, startSeconds, durationSeconds int, destPath string) error
}
