package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deleterr/deleterr/internal/config"
)

func newScheduler(t *testing.T, tz string) *Scheduler {
	t.Helper()
	s, err := New(config.SchedulerConfig{Timezone: tz}, zerolog.Nop())
	require.NoError(t, err)
	return s
}

func noop(context.Context) error { return nil }

func TestNew_InvalidTimezone(t *testing.T) {
	_, err := New(config.SchedulerConfig{Timezone: "Mars/Olympus"}, zerolog.Nop())
	require.ErrorIs(t, err, config.ErrInvalid)
}

func TestRegisterTask(t *testing.T) {
	tests := []struct {
		name     string
		cron     string
		wantCron string
		wantErr  error
	}{
		{name: "preset", cron: "weekly", wantCron: "0 3 * * 0"},
		{name: "preset ignores case", cron: "Daily", wantCron: config.SchedulePresets["daily"]},
		{name: "cron expression", cron: "30 2 * * 1", wantCron: "30 2 * * 1"},
		{name: "wrong field count", cron: "* * *", wantErr: config.ErrInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newScheduler(t, "UTC")
			err := s.RegisterTask(TaskConfig{ID: "cleanup", Name: "Cleanup", Cron: tt.cron, Func: noop})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			info, err := s.GetTask("cleanup")
			require.NoError(t, err)
			assert.Equal(t, tt.wantCron, info.Cron)
		})
	}
}

func TestRegisterTask_Duplicate(t *testing.T) {
	s := newScheduler(t, "UTC")
	require.NoError(t, s.RegisterTask(TaskConfig{ID: "cleanup", Cron: "weekly", Func: noop}))
	assert.Error(t, s.RegisterTask(TaskConfig{ID: "cleanup", Cron: "daily", Func: noop}))
}

func TestNextRunHonorsTimezone(t *testing.T) {
	s := newScheduler(t, "Europe/Berlin")
	require.NoError(t, s.RegisterTask(TaskConfig{ID: "cleanup", Cron: "weekly", Func: noop}))
	require.NoError(t, s.Start())
	defer func() { _ = s.Stop() }()

	info, err := s.GetTask("cleanup")
	require.NoError(t, err)
	require.NotNil(t, info.NextRun)

	next := info.NextRun.In(s.location)
	assert.Equal(t, time.Sunday, next.Weekday())
	assert.Equal(t, 3, next.Hour())
	assert.True(t, next.After(time.Now()))
}

func TestRunNow(t *testing.T) {
	s := newScheduler(t, "UTC")
	done := make(chan struct{})
	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:   "cleanup",
		Cron: "weekly",
		Func: func(context.Context) error {
			close(done)
			return errors.New("library failed")
		},
	}))

	require.NoError(t, s.RunNow("cleanup"))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}

	assert.Eventually(t, func() bool {
		info, _ := s.GetTask("cleanup")
		return info.LastRun != nil && info.LastError == "library failed" && !info.Running
	}, 2*time.Second, 10*time.Millisecond)

	assert.Error(t, s.RunNow("missing"))
}

func TestStopCancelsRunningTask(t *testing.T) {
	s := newScheduler(t, "UTC")
	started := make(chan struct{})
	cancelled := make(chan struct{})
	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:   "cleanup",
		Cron: "weekly",
		Func: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			close(cancelled)
			return ctx.Err()
		},
		RunOnStart: true,
	}))
	require.NoError(t, s.Start())

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not start")
	}
	require.NoError(t, s.Stop())

	select {
	case <-cancelled:
	default:
		t.Fatal("task was not cancelled before Stop returned")
	}
}

func TestListTasksSorted(t *testing.T) {
	s := newScheduler(t, "UTC")
	require.NoError(t, s.RegisterTask(TaskConfig{ID: "b", Cron: "daily", Func: noop}))
	require.NoError(t, s.RegisterTask(TaskConfig{ID: "a", Cron: "weekly", Func: noop}))

	tasks := s.ListTasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, "a", tasks[0].ID)
	assert.Equal(t, "b", tasks[1].ID)
}

func TestRegisterTask_NameDefaultsToID(t *testing.T) {
	s := newScheduler(t, "UTC")
	require.NoError(t, s.RegisterTask(TaskConfig{ID: "cleanup", Cron: "weekly", Func: noop}))

	info, err := s.GetTask("cleanup")
	require.NoError(t, err)
	assert.Equal(t, "cleanup", info.Name)
}

func TestExecuteAfterStopIsNoop(t *testing.T) {
	s := newScheduler(t, "UTC")
	ran := false
	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:   "cleanup",
		Cron: "weekly",
		Func: func(context.Context) error {
			ran = true
			return nil
		},
	}))
	require.NoError(t, s.Start())
	require.NoError(t, s.Stop())

	s.executeTask("cleanup")
	assert.False(t, ran)

	info, err := s.GetTask("cleanup")
	require.NoError(t, err)
	assert.Nil(t, info.LastRun)
}
