package external

import (
	"context"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"lawncare/internal/config"
)

// RetryPolicy configures how many times a vendor call is repeated and how
// long to wait in between.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryPolicy is one retry with a short backoff. Notification sends
// are user-facing and must not stall the request for long.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 1,
		MinWait:    500 * time.Millisecond,
		MaxWait:    5 * time.Second,
	}
}

// RetryPolicyFromConfig builds the policy from the PROVIDER_* settings.
func RetryPolicyFromConfig(cfg config.ProvidersConfig) RetryPolicy {
	p := DefaultRetryPolicy()
	if cfg.MaxRetries >= 0 {
		p.MaxRetries = cfg.MaxRetries
	}
	if cfg.RetryBase > 0 {
		p.MinWait = cfg.RetryBase
		if p.MaxWait < p.MinWait {
			p.MaxWait = p.MinWait
		}
	}
	return p
}

// backoff returns the wait before retry number attempt (zero-based):
// exponential from MinWait with full jitter, capped at MaxWait.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	base := float64(p.MinWait) * math.Pow(2, float64(attempt))
	if maxWait := float64(p.MaxWait); base > maxWait {
		base = maxWait
	}
	minWait := float64(p.MinWait)
	if base <= minWait {
		return p.MinWait
	}
	return time.Duration(minWait + rand.Float64()*(base-minWait))
}

// retryAfter honours a Retry-After header (seconds or HTTP date), clamped to
// the policy bounds. ok is false when the header is absent or unparseable.
func (p RetryPolicy) retryAfter(resp *http.Response) (time.Duration, bool) {
	if resp == nil {
		return 0, false
	}
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	var wait time.Duration
	if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
		wait = time.Duration(seconds) * time.Second
	} else if t, err := http.ParseTime(v); err == nil {
		wait = time.Until(t)
	} else {
		return 0, false
	}
	if wait <= 0 {
		return p.MinWait, true
	}
	return min(wait, p.MaxWait), true
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func contextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// retryDo runs fn until it succeeds, reports a non-retryable failure, or the
// policy is exhausted. It is used by senders that do not speak HTTP through
// BaseClient (SMTP, SES).
func retryDo(ctx context.Context, policy RetryPolicy, sleep SleepFunc, fn func(ctx context.Context) (retryable bool, err error)) error {
	if sleep == nil {
		sleep = contextSleep
	}
	var err error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		var retryable bool
		retryable, err = fn(ctx)
		if err == nil || !retryable || attempt == policy.MaxRetries {
			return err
		}
		if sleepErr := sleep(ctx, policy.backoff(attempt)); sleepErr != nil {
			return sleepErr
		}
	}
	return err
}
