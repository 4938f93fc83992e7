package resolver

import (
	"context"
	"time"

	"slunch/pkg/apperr"
)

// Policy describes how one upstream fetch is attempted and what happens when
// every attempt fails.
type Policy struct {
	// MaxAttempts counts the first try. Values below 1 mean 1.
	MaxAttempts int
	// Backoff is the fixed pause between attempts.
	Backoff time.Duration
	// Timeout bounds each attempt. Zero leaves the caller's deadline alone.
	Timeout time.Duration
	// FallbackDays is the trailing window searched for a stale record when
	// ShouldFallback accepts the final error. Zero disables fallback.
	FallbackDays   int
	ShouldRetry    func(error) bool
	ShouldFallback func(error) bool
}

// QueryPolicy serves interactive reads: one attempt, then the closest cached
// day of the previous week.
func QueryPolicy(timeout time.Duration) Policy {
	return Policy{
		MaxAttempts:    1,
		Timeout:        timeout,
		FallbackDays:   7,
		ShouldRetry:    apperr.IsTransient,
		ShouldFallback: apperr.IsTransient,
	}
}

// WarmPolicy serves precaching: two extra attempts two seconds apart and no
// fallback.
func WarmPolicy(timeout time.Duration) Policy {
	return Policy{
		MaxAttempts: 3,
		Backoff:     2 * time.Second,
		Timeout:     timeout,
		ShouldRetry: apperr.IsTransient,
	}
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p Policy) fallback(err error) bool {
	return p.FallbackDays > 0 && p.ShouldFallback != nil && p.ShouldFallback(err)
}

// Do runs fn until it succeeds, returns a non retryable error or the attempts
// run out. It reports how many attempts were made.
func (p Policy) Do(ctx context.Context, fn func(context.Context) error) (int, error) {
	var err error
	for attempt := 1; ; attempt++ {
		actx, cancel := ctx, context.CancelFunc(func() {})
		if p.Timeout > 0 {
			actx, cancel = context.WithTimeout(ctx, p.Timeout)
		}
		err = fn(actx)
		cancel()

		if err == nil || attempt >= p.attempts() || p.ShouldRetry == nil || !p.ShouldRetry(err) {
			return attempt, err
		}
		if p.Backoff > 0 {
			t := time.NewTimer(p.Backoff)
			select {
			case <-ctx.Done():
				t.Stop()
				return attempt, err
			case <-t.C:
			}
		}
	}
}
