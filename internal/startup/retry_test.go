package startup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() RetryConfig {
	return RetryConfig{InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, MaxAttempts: 3}
}

func TestWithRetry_RetriesNetworkErrors(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), "radarr", fastConfig(), func() error {
		attempts++
		if attempts < 2 {
			return errors.New("dial tcp 127.0.0.1:7878: connection refused")
		}
		return nil
	}, zerolog.Nop())

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestWithRetry_NonNetworkErrorFailsFast(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), "radarr", fastConfig(), func() error {
		attempts++
		return errors.New("unauthorized")
	}, zerolog.Nop())

	require.EqualError(t, err, "unauthorized")
	assert.Equal(t, 1, attempts)
}

func TestVerifyConnections_JoinsFailures(t *testing.T) {
	checks := []Check{
		{Name: "plex", Ping: func(context.Context) error { return nil }},
		{Name: "tautulli", Ping: func(context.Context) error { return errors.New("invalid apikey") }},
		{Name: "seerr", Ping: func(context.Context) error { return errors.New("forbidden") }},
	}

	err := VerifyConnections(context.Background(), checks, fastConfig(), zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tautulli: invalid apikey")
	assert.Contains(t, err.Error(), "seerr: forbidden")
	assert.NotContains(t, err.Error(), "plex")
}
