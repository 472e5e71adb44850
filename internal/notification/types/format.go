package types

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// MaxListedItems caps how many items chat providers list per section.
const MaxListedItems = 5

// DisplayTitle renders the title with its year when known.
func (m MediaInfo) DisplayTitle() string {
	if m.Year > 0 {
		return fmt.Sprintf("%s (%d)", m.Title, m.Year)
	}
	return m.Title
}

// Line renders "Title (Year) - 4.2 GiB".
func (m MediaInfo) Line() string {
	return m.DisplayTitle() + " - " + FormatSize(m.SizeBytes)
}

func FormatSize(b int64) string {
	if b < 0 {
		b = 0
	}
	return humanize.IBytes(uint64(b))
}

// TotalBytes sums the item sizes.
func TotalBytes(items []MediaInfo) int64 {
	var n int64
	for _, it := range items {
		n += it.SizeBytes
	}
	return n
}

// SplitKinds separates movies from shows, keeping order.
func SplitKinds(items []MediaInfo) (movies, shows []MediaInfo) {
	for _, it := range items {
		if it.MediaType == "show" {
			shows = append(shows, it)
		} else {
			movies = append(movies, it)
		}
	}
	return movies, shows
}

// RunTitle is the headline of a run summary.
func RunTitle(e RunEvent) string {
	if e.DryRun {
		return "[DRY-RUN] Deleterr Run Complete"
	}
	return "Deleterr Run Complete"
}

// RunSummary is the one-line outcome of a run.
func RunSummary(e RunEvent) string {
	if e.DryRun {
		return fmt.Sprintf("Would delete %d items, freeing %s", len(e.Deleted), FormatSize(e.BytesFreed))
	}
	return fmt.Sprintf("Deleted %d items, freed %s", len(e.Deleted), FormatSize(e.BytesFreed))
}

// RemovalDate formats the scheduled deletion date, or "" when unknown.
func RemovalDate(d *time.Time) string {
	if d == nil || d.IsZero() {
		return ""
	}
	return d.Format("January 2, 2006")
}

// Head returns at most n items and how many were left out.
func Head(items []MediaInfo, n int) ([]MediaInfo, int) {
	if len(items) <= n {
		return items, 0
	}
	return items[:n], len(items) - n
}
