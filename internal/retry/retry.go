// Package retry wraps transient failures from the embedding and model
// clients in exponential backoff with jitter. Eligibility is decided by
// inspecting the error's signal rather than its type, since the underlying
// SDKs surface errors heterogeneously.
package retry

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Config controls the backoff schedule.
type Config struct {
	MaxRetries   uint64
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       float64
}

// DefaultConfig returns the standard schedule: up to 3 retries starting at
// 1s, doubling, capped at 10s, with 10% jitter.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   3,
		InitialDelay: time.Second,
		Multiplier:   2,
		MaxDelay:     10 * time.Second,
		Jitter:       0.1,
	}
}

// Do runs op, retrying retryable failures per cfg. Non-retryable errors
// surface immediately; exhausting the schedule surfaces the last error.
// Context cancellation aborts between attempts.
func Do[T any](ctx context.Context, cfg Config, op func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialDelay
	b.Multiplier = cfg.Multiplier
	b.MaxInterval = cfg.MaxDelay
	b.RandomizationFactor = cfg.Jitter
	b.MaxElapsedTime = 0

	attempt := func() (T, error) {
		v, err := op()
		if err != nil && !Retryable(err) {
			var zero T
			return zero, backoff.Permanent(err)
		}
		return v, err
	}

	return backoff.RetryWithData(attempt, backoff.WithContext(backoff.WithMaxRetries(b, cfg.MaxRetries), ctx))
}

// retryableSignals are matched case-insensitively against the error text.
// 4xx responses other than 429 are deliberately absent: a bad request stays
// bad no matter how often it is repeated.
var retryableSignals = []string{
	"429",
	"too many requests",
	"rate limit",
	"timeout",
	"timed out",
	"deadline exceeded",
	"connection refused",
	"connection reset",
	"temporarily unavailable",
	"unexpected eof",
	"internal server error",
	"bad gateway",
	"service unavailable",
	"gateway timeout",
	"status 500",
	"status 502",
	"status 503",
	"status 504",
}

// Retryable reports whether err looks transient.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, signal := range retryableSignals {
		if strings.Contains(msg, signal) {
			return true
		}
	}
	return false
}
