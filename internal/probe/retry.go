package probe

import (
	"context"
	"time"
)

// RetryFetcher repeats downloads that failed at the network level or with a
// 5xx status. Client errors, timeouts and completed downloads are final.
// Only playlist fetches go through it; channel probes measure a single try.
type RetryFetcher struct {
	Inner    Fetcher
	Attempts int
	Backoff  time.Duration
}

func (r *RetryFetcher) Download(ctx context.Context, rawURL string, timeout time.Duration) *Outcome {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var last *Outcome
	for i := 0; i < attempts; i++ {
		last = r.Inner.Download(ctx, rawURL, timeout)
		if !retryable(last) || i == attempts-1 {
			return last
		}
		select {
		case <-ctx.Done():
			return last
		case <-time.After(r.Backoff * time.Duration(i+1)):
		}
	}
	return last
}

func retryable(o *Outcome) bool {
	if o.Status != StatusNetworkError {
		return false
	}
	return o.StatusCode == 0 || o.StatusCode >= 500
}
