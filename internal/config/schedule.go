package config

import (
	"fmt"
	"strings"
)

// SchedulePresets maps preset names to cron expressions.
var SchedulePresets = map[string]string{
	"hourly":  "0 * * * *",
	"daily":   "0 3 * * *",
	"weekly":  "0 3 * * 0",
	"monthly": "0 3 1 * *",
}

// ScheduleExpression resolves a preset name or validates a five field cron expression.
func ScheduleExpression(schedule string) (string, error) {
	schedule = strings.TrimSpace(schedule)
	if expr, ok := SchedulePresets[strings.ToLower(schedule)]; ok {
		return expr, nil
	}
	if len(strings.Fields(schedule)) != 5 {
		return "", fmt.Errorf("invalid cron expression %q, expected 5 fields: minute hour day month day_of_week", schedule)
	}
	return schedule, nil
}
