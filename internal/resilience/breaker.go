package resilience

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/deleterr/deleterr/internal/metrics"
)

// ErrOpen is returned while a breaker refuses calls.
var ErrOpen = gobreaker.ErrOpenState

// Breaker stops calling an optional integration after repeated failures so a
// dead service does not slow down every remaining item of a run.
type Breaker struct {
	cb     *gobreaker.CircuitBreaker[any]
	name   string
	logger zerolog.Logger
}

// BreakerSettings configures a Breaker.
type BreakerSettings struct {
	// ConsecutiveFailures opens the breaker.
	ConsecutiveFailures uint32
	// Cooldown is how long the breaker stays open before probing again.
	Cooldown time.Duration
}

// DefaultBreakerSettings opens after five consecutive failures for ten minutes.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{ConsecutiveFailures: 5, Cooldown: 10 * time.Minute}
}

// NewBreaker creates a named breaker.
func NewBreaker(name string, settings BreakerSettings, logger zerolog.Logger) *Breaker {
	b := &Breaker{
		name:   name,
		logger: logger.With().Str("breaker", name).Logger(),
	}
	if settings.ConsecutiveFailures == 0 {
		settings.ConsecutiveFailures = DefaultBreakerSettings().ConsecutiveFailures
	}

	metrics.BreakerState.WithLabelValues(name).Set(0)

	b.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     settings.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Warn().Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
			metrics.BreakerState.WithLabelValues(name).Set(stateValue(to))
		},
		// Not-found answers are a valid outcome, not a sign the service is down.
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
	})
	return b
}

// Execute runs fn through the breaker.
func (b *Breaker) Execute(fn func() error) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	return b.classify(err)
}

// Call runs fn through the breaker and returns its typed result.
func Call[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	res, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if err = b.classify(err); err != nil {
		return zero, err
	}
	typed, _ := res.(T)
	return typed, nil
}

// Open reports whether calls are currently refused.
func (b *Breaker) Open() bool {
	return b.cb.State() == gobreaker.StateOpen
}

func (b *Breaker) classify(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.BreakerRejections.WithLabelValues(b.name).Inc()
		return ErrOpen
	}
	return err
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 2
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 0
	}
}
