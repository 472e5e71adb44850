package media

import "time"

// Activity is the most recent watch of a library item.
type Activity struct {
	GUID        string
	LastWatched time.Time
	Title       string
	Year        int
	Users       []string
}

// History is the watch activity of one library, keyed by GUID.
// Iteration order is the order entries were added.
type History struct {
	entries []Activity
	byGUID  map[string]int
}

// NewHistory builds a History. Later entries with a GUID already present are ignored.
func NewHistory(entries []Activity) *History {
	h := &History{byGUID: make(map[string]int, len(entries))}
	for _, e := range entries {
		h.Add(e)
	}
	return h
}

// Add appends an entry unless its GUID is already known.
func (h *History) Add(a Activity) {
	if h.byGUID == nil {
		h.byGUID = make(map[string]int)
	}
	if _, ok := h.byGUID[a.GUID]; ok {
		return
	}
	h.byGUID[a.GUID] = len(h.entries)
	h.entries = append(h.entries, a)
}

// Get returns the activity recorded under guid.
func (h *History) Get(guid string) (Activity, bool) {
	if h == nil {
		return Activity{}, false
	}
	idx, ok := h.byGUID[guid]
	if !ok {
		return Activity{}, false
	}
	return h.entries[idx], true
}

// All returns the entries in insertion order.
func (h *History) All() []Activity {
	if h == nil {
		return nil
	}
	return h.entries
}

func (h *History) Len() int {
	if h == nil {
		return 0
	}
	return len(h.entries)
}
