package pipeline

import "context"

// retry runs fn up to maxAttempts times, retrying only when isRetryable
// reports the error as transient. onRetry fires between attempts with the
// attempt number that just failed.
func retry(ctx context.Context, maxAttempts int, isRetryable func(error) bool, onRetry func(attempt int, err error), fn func(context.Context) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !isRetryable(err) || attempt == maxAttempts {
			return err
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}
	}
	return err
}
