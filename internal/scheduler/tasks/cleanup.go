// Package tasks holds the jobs registered with the scheduler.
package tasks

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/deleterr/deleterr/internal/cleaner"
	"github.com/deleterr/deleterr/internal/config"
	"github.com/deleterr/deleterr/internal/scheduler"
)

// CleanupTaskID identifies the scheduled cleanup run.
const CleanupTaskID = "cleanup"

// Runner runs one cleanup pass.
type Runner interface {
	Run(ctx context.Context) (*cleaner.Summary, error)
}

// CleanupTask runs the cleaner on schedule.
type CleanupTask struct {
	runner Runner
	logger zerolog.Logger
}

// NewCleanupTask creates a new cleanup task.
func NewCleanupTask(runner Runner, logger zerolog.Logger) *CleanupTask {
	return &CleanupTask{
		runner: runner,
		logger: logger.With().Str("task", CleanupTaskID).Logger(),
	}
}

// Run executes one cleanup pass. A run that is skipped because another one
// is active is not an error.
func (t *CleanupTask) Run(ctx context.Context) error {
	summary, err := t.runner.Run(ctx)
	if errors.Is(err, cleaner.ErrAlreadyRunning) {
		t.logger.Warn().Msg("Cleanup already running, skipping scheduled run")
		return nil
	}
	if err != nil {
		return err
	}
	if summary.Failed() {
		return errors.New("one or more libraries failed")
	}
	return nil
}

// RegisterCleanupTask registers the cleanup task with the scheduler.
func RegisterCleanupTask(sched *scheduler.Scheduler, cfg config.SchedulerConfig, runner Runner, logger zerolog.Logger) error {
	task := NewCleanupTask(runner, logger)
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          CleanupTaskID,
		Name:        "Media Cleanup",
		Description: "Deletes media that no rule protects",
		Cron:        cfg.Schedule,
		Func:        task.Run,
		RunOnStart:  cfg.RunOnStartup,
	})
}
