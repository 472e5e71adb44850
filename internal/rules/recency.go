package rules

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/deleterr/deleterr/internal/config"
)

func watchedRecently(_ context.Context, ec *Context, c Candidate, _ zerolog.Logger) (bool, string) {
	lib := ec.Library
	activity, watched := ec.Activity(c.Item)
	if !watched {
		if lib.WatchStatus == config.WatchStatusWatched {
			return true, "not watched"
		}
		return false, ""
	}

	days := daysSince(ec.Now, activity.LastWatched)
	if lib.LastWatchedThreshold != nil && days < *lib.LastWatchedThreshold {
		return true, fmt.Sprintf("watched %d days ago", days)
	}
	if lib.WatchStatus == config.WatchStatusUnwatched {
		return true, "watched"
	}
	return false, ""
}

func watchedCollection(_ context.Context, ec *Context, c Candidate, _ zerolog.Logger) (bool, string) {
	if !ec.Library.ApplyLastWatchThresholdToCollections {
		return false, ""
	}
	if hit := ec.WatchedCollections.Intersect(c.Item.Collections); len(hit) > 0 {
		return true, fmt.Sprintf("collection %v was watched recently", hit)
	}
	return false, ""
}

func addedRecently(_ context.Context, ec *Context, c Candidate, _ zerolog.Logger) (bool, string) {
	threshold := ec.Library.AddedAtThreshold
	if threshold == nil {
		return false, ""
	}
	added := c.Item.AddedAt
	if added.IsZero() {
		added = c.Record.Data().Added
	}
	if added.IsZero() {
		return false, ""
	}
	if days := daysSince(ec.Now, added); days < *threshold {
		return true, fmt.Sprintf("added %d days ago", days)
	}
	return false, ""
}
