package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/deleterr/deleterr/internal/cleaner"
)

type fakeRunner struct {
	summary *cleaner.Summary
	err     error
}

func (f fakeRunner) Run(context.Context) (*cleaner.Summary, error) {
	return f.summary, f.err
}

func TestCleanupTask_Run(t *testing.T) {
	tests := []struct {
		name    string
		runner  fakeRunner
		wantErr bool
	}{
		{name: "success", runner: fakeRunner{summary: &cleaner.Summary{}}},
		{name: "already running is skipped", runner: fakeRunner{err: cleaner.ErrAlreadyRunning}},
		{name: "cancelled", runner: fakeRunner{summary: &cleaner.Summary{}, err: context.Canceled}, wantErr: true},
		{
			name: "library failure",
			runner: fakeRunner{summary: &cleaner.Summary{
				Libraries: []cleaner.LibraryOutcome{{Err: errors.New("plex down")}},
			}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewCleanupTask(tt.runner, zerolog.Nop()).Run(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
