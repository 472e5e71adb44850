// Package decisioning orders deletion candidates and splits them into the
// delete and preview windows of a run.
package decisioning

import (
	"time"

	"github.com/deleterr/deleterr/internal/config"
	"github.com/deleterr/deleterr/internal/media"
)

// Candidate is an arr record paired with what the media server knows of it.
// Item is nil when the record could not be resolved; Activity is nil when the
// item was never watched.
type Candidate struct {
	Record   media.Record
	Item     *media.LibraryItem
	Activity *media.Activity
}

// Title returns the record title.
func (c Candidate) Title() string { return c.Record.Data().Title }

// Size returns the record's size on disk in bytes.
func (c Candidate) Size() int64 { return c.Record.Data().SizeOnDisk }

// LastWatchedDays returns the whole days since the candidate was last watched.
func (c Candidate) LastWatchedDays(now time.Time) (int, bool) {
	if c.Activity == nil || c.Activity.LastWatched.IsZero() {
		return 0, false
	}
	return int(now.Sub(c.Activity.LastWatched) / (24 * time.Hour)), true
}

// Windows sizes the slices of a run. Zero Delete means no limit, zero Preview
// disables the preview.
type Windows struct {
	Delete  int
	Preview int
}

// WindowsFor returns the windows configured for lib.
func WindowsFor(lib *config.Library) Windows {
	return Windows{Delete: lib.MaxActions(), Preview: lib.PreviewCount()}
}

// Selection is the outcome of walking the sorted candidates.
type Selection struct {
	Delete  []Candidate
	Preview []Candidate
}

// Full reports whether both windows are filled.
func (s *Selection) Full(w Windows) bool {
	if w.Delete == 0 {
		return false
	}
	return len(s.Delete) >= w.Delete && len(s.Preview) >= w.Preview
}

func (s *Selection) add(c Candidate, w Windows) {
	if w.Delete == 0 || len(s.Delete) < w.Delete {
		s.Delete = append(s.Delete, c)
		return
	}
	if len(s.Preview) < w.Preview {
		s.Preview = append(s.Preview, c)
	}
}
