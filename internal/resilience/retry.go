package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"
)

// RetryPolicy configures bounded exponential backoff for idempotent reads.
type RetryPolicy struct {
	Attempts uint
	Delay    time.Duration
	MaxDelay time.Duration
}

// DefaultRetryPolicy retries a read three times within a few seconds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts: 3,
		Delay:    500 * time.Millisecond,
		MaxDelay: 5 * time.Second,
	}
}

// Retryable is implemented by errors that know whether a retry can help.
type Retryable interface {
	Retryable() bool
}

// IsNetworkError checks if an error is likely due to network unavailability.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, indicator := range []string{
		"connection refused",
		"connection reset",
		"no such host",
		"network is unreachable",
		"no route to host",
		"i/o timeout",
		"temporary failure in name resolution",
		"eof",
	} {
		if strings.Contains(msg, indicator) {
			return true
		}
	}
	return false
}

// IsTransient reports whether err is worth retrying: network failures and
// errors that declare themselves retryable, such as HTTP 5xx responses.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var r Retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return IsNetworkError(err)
}

// Retry runs fn until it succeeds, fails permanently or the attempts run out.
// Only use it for requests that are safe to repeat.
func Retry[T any](ctx context.Context, policy RetryPolicy, name string, logger zerolog.Logger, fn func() (T, error)) (T, error) {
	if policy.Attempts == 0 {
		policy.Attempts = 1
	}
	return retry.DoWithData(fn,
		retry.Context(ctx),
		retry.Attempts(policy.Attempts),
		retry.Delay(policy.Delay),
		retry.MaxDelay(policy.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(IsTransient),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn().
				Err(err).
				Str("operation", name).
				Uint("attempt", n+1).
				Uint("maxAttempts", policy.Attempts).
				Msg("Request failed, retrying")
		}),
	)
}
