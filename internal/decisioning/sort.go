package decisioning

import (
	"sort"
	"strings"
	"time"

	"github.com/deleterr/deleterr/internal/media"
)

// Sort fields understood by Sort. Unknown fields sort by title.
const (
	FieldTitle       = "title"
	FieldSize        = "size"
	FieldReleaseYear = "release_year"
	FieldRuntime     = "runtime"
	FieldAddedDate   = "added_date"
	FieldRating      = "rating"
	FieldSeasons     = "seasons"
	FieldEpisodes    = "episodes"
	FieldLastWatched = "last_watched"
)

// KnownField reports whether field is a supported sort field.
func KnownField(field string) bool {
	switch field {
	case FieldTitle, FieldSize, FieldReleaseYear, FieldRuntime, FieldAddedDate,
		FieldRating, FieldSeasons, FieldEpisodes, FieldLastWatched:
		return true
	}
	return false
}

type sortKey struct {
	num       float64
	str       string
	isStr     bool
	unwatched bool
}

func keyFor(c Candidate, field string, now time.Time) sortKey {
	data := c.Record.Data()
	switch field {
	case FieldSize:
		return sortKey{num: float64(data.SizeOnDisk)}
	case FieldReleaseYear:
		return sortKey{num: float64(data.Year)}
	case FieldRuntime:
		return sortKey{num: float64(data.Runtime)}
	case FieldAddedDate:
		if data.Added.IsZero() {
			return sortKey{}
		}
		return sortKey{num: float64(data.Added.Unix())}
	case FieldRating:
		return sortKey{num: data.Rating}
	case FieldSeasons, FieldEpisodes:
		n := 1
		if show, ok := c.Record.(*media.Show); ok {
			if field == FieldSeasons && show.SeasonCount > 0 {
				n = show.SeasonCount
			}
			if field == FieldEpisodes && show.TotalEpisodeCount > 0 {
				n = show.TotalEpisodeCount
			}
		}
		return sortKey{num: float64(n)}
	case FieldLastWatched:
		days, ok := c.LastWatchedDays(now)
		if !ok {
			return sortKey{unwatched: true}
		}
		return sortKey{num: float64(days)}
	default:
		title := data.SortTitle
		if title == "" {
			title = strings.ToLower(data.Title)
		}
		return sortKey{str: title, isStr: true}
	}
}

// compare returns -1, 0 or 1 in ascending order.
func compare(a, b sortKey) int {
	switch {
	case a.isStr:
		return strings.Compare(a.str, b.str)
	case a.num < b.num:
		return -1
	case a.num > b.num:
		return 1
	}
	return 0
}

// Sort orders candidates in place by fields, each with its matching order.
// The sort is stable, so ties keep the arr listing order.
func Sort(cands []Candidate, fields, orders []string, now time.Time) {
	type keyed struct {
		keys []sortKey
	}
	keys := make([]keyed, len(cands))
	for i, c := range cands {
		keys[i].keys = make([]sortKey, len(fields))
		for j, f := range fields {
			keys[i].keys[j] = keyFor(c, f, now)
		}
	}

	idx := make([]int, len(cands))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(x, y int) bool {
		a, b := keys[idx[x]].keys, keys[idx[y]].keys
		for j := range fields {
			// Unwatched comes first in both directions.
			if a[j].unwatched != b[j].unwatched {
				return a[j].unwatched
			}
			c := compare(a[j], b[j])
			if c == 0 {
				continue
			}
			if j < len(orders) && orders[j] == "desc" {
				return c > 0
			}
			return c < 0
		}
		return false
	})

	sorted := make([]Candidate, len(cands))
	for i, k := range idx {
		sorted[i] = cands[k]
	}
	copy(cands, sorted)
}
