package startup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"

	"github.com/deleterr/deleterr/internal/resilience"
)

// RetryConfig configures the exponential backoff used while waiting for
// services to come up.
type RetryConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  uint
}

// DefaultRetryConfig returns sensible defaults for containers starting together.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialDelay: 5 * time.Second,
		MaxDelay:     time.Minute,
		MaxAttempts:  5,
	}
}

// Check is a named connectivity test.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// WithRetry executes fn with exponential backoff retry for network errors only.
// Non-network errors fail immediately without retry.
func WithRetry(ctx context.Context, name string, cfg RetryConfig, fn func() error, logger zerolog.Logger) error {
	err := retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(cfg.MaxAttempts),
		retry.Delay(cfg.InitialDelay),
		retry.MaxDelay(cfg.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(resilience.IsNetworkError),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn().
				Err(err).
				Str("operation", name).
				Uint("attempt", n+1).
				Uint("maxAttempts", cfg.MaxAttempts).
				Msg("Network error, will retry")
		}),
	)
	if err != nil {
		logger.Error().Err(err).Str("operation", name).Msg("Operation failed")
	}
	return err
}

// VerifyConnections pings every service, retrying while they are unreachable.
// It returns all failures joined so the user can fix them in one go.
func VerifyConnections(ctx context.Context, checks []Check, cfg RetryConfig, logger zerolog.Logger) error {
	var errs []error
	for _, c := range checks {
		check := c
		err := WithRetry(ctx, check.Name, cfg, func() error { return check.Ping(ctx) }, logger)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", check.Name, err))
			continue
		}
		logger.Debug().Str("service", check.Name).Msg("Connection verified")
	}
	return errors.Join(errs...)
}
