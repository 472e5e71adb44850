package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

var (
	sizePattern     = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([KMGTPE]?)B$`)
	durationPattern = regexp.MustCompile(`^(\d+)([dh])$`)
)

// ParseSize converts a threshold such as "1TB" or "500 GB" to bytes.
// Units are binary: 1KB is 1024 bytes.
func ParseSize(s string) (int64, error) {
	m := sizePattern.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(s)))
	if m == nil {
		return 0, fmt.Errorf("invalid size %q, expected a number followed by B, KB, MB, GB, TB or PB", s)
	}
	unit := "B"
	if m[2] != "" {
		unit = m[2] + "iB"
	}
	n, err := humanize.ParseBytes(m[1] + unit)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return int64(n), nil
}

// ParseRetention parses a leaving-soon duration such as "7d" or "24h".
func ParseRetention(s string) (time.Duration, error) {
	m := durationPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(s)))
	if m == nil {
		return 0, fmt.Errorf("invalid duration %q, expected a number of days (7d) or hours (24h)", s)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid duration %q, must be greater than zero", s)
	}
	if m[2] == "d" {
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.Duration(n) * time.Hour, nil
}
