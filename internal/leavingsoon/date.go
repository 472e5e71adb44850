package leavingsoon

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/deleterr/deleterr/internal/config"
)

// DeletionDate returns when items tagged now will be deleted. A configured
// duration wins; otherwise the next scheduled run is used. The zero time is
// returned when neither is known.
func DeletionDate(cfg *config.LeavingSoon, sched config.SchedulerConfig, now time.Time) (time.Time, error) {
	if cfg != nil && cfg.Duration != "" {
		d, err := config.ParseRetention(cfg.Duration)
		if err != nil {
			return time.Time{}, err
		}
		return now.Add(d), nil
	}
	if !sched.Enabled || sched.Schedule == "" {
		return time.Time{}, nil
	}
	return NextRun(sched, now)
}

// NextRun returns the first scheduled run after now.
func NextRun(sched config.SchedulerConfig, now time.Time) (time.Time, error) {
	expr, err := config.ScheduleExpression(sched.Schedule)
	if err != nil {
		return time.Time{}, err
	}
	loc := time.UTC
	if sched.Timezone != "" {
		if loc, err = time.LoadLocation(sched.Timezone); err != nil {
			return time.Time{}, fmt.Errorf("invalid timezone %q: %w", sched.Timezone, err)
		}
	}
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid schedule %q: %w", sched.Schedule, err)
	}
	return schedule.Next(now.In(loc)), nil
}
