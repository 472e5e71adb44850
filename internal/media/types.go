package media

import (
	"strings"
	"time"
)

// Kind distinguishes the two arr record variants.
type Kind string

const (
	KindMovie Kind = "movie"
	KindShow  Kind = "show"
)

// Record is a media record as reported by Radarr or Sonarr.
// Concrete values are *Movie or *Show; callers dispatch with a type switch.
type Record interface {
	Kind() Kind
	Data() *Common
	HasFiles() bool
}

// Common holds the fields shared by movies and shows.
type Common struct {
	ID               int64
	Title            string
	SortTitle        string
	OriginalTitle    string
	AlternateTitles  []string
	Year             int
	TmdbID           int64
	TvdbID           int64
	ImdbID           string
	SizeOnDisk       int64
	Tags             []int64
	QualityProfileID int64
	Monitored        bool
	Path             string
	Added            time.Time
	Runtime          int
	Rating           float64
}

func (c *Common) Data() *Common { return c }

// Titles returns the primary, original and alternate titles without duplicates.
func (c *Common) Titles() []string {
	seen := make(map[string]struct{}, len(c.AlternateTitles)+2)
	titles := make([]string, 0, len(c.AlternateTitles)+2)
	add := func(t string) {
		if t == "" {
			return
		}
		key := strings.ToLower(t)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		titles = append(titles, t)
	}
	add(c.Title)
	add(c.OriginalTitle)
	for _, t := range c.AlternateTitles {
		add(t)
	}
	return titles
}

// Movie is a Radarr movie.
type Movie struct {
	Common
	HasFile bool
}

func (m *Movie) Kind() Kind { return KindMovie }
func (m *Movie) HasFiles() bool { return m.HasFile }

// Show is a Sonarr series.
type Show struct {
	Common
	EpisodeFileCount  int
	SeasonCount       int
	TotalEpisodeCount int
	SeriesType        string
	Status            string
}

func (s *Show) Kind() Kind { return KindShow }
func (s *Show) HasFiles() bool { return s.EpisodeFileCount > 0 || s.SizeOnDisk > 0 }

// Library is a media server library section.
type Library struct {
	Key   string
	Title string
	Type  string
}

// LibraryItem is an item as the media server sees it.
type LibraryItem struct {
	RatingKey   string
	Title       string
	Year        int
	GUID        string
	GUIDs       []string
	AddedAt     time.Time
	Collections []string
	Genres      []string
	Labels      []string
	Actors      []string
	Producers   []string
	Directors   []string
	Writers     []string
	Studio      string
	Files       []string
}

// AllGUIDs returns the primary GUID followed by the alternate GUIDs.
func (i *LibraryItem) AllGUIDs() []string {
	guids := make([]string, 0, len(i.GUIDs)+1)
	if i.GUID != "" {
		guids = append(guids, i.GUID)
	}
	for _, g := range i.GUIDs {
		if g != "" && g != i.GUID {
			guids = append(guids, g)
		}
	}
	return guids
}

// HasLabel reports whether the item carries label, ignoring case.
func (i *LibraryItem) HasLabel(label string) bool {
	return ContainsFold(i.Labels, label)
}

// Credits are people tags gathered from a show's episodes.
type Credits struct {
	Actors    []string
	Producers []string
	Directors []string
	Writers   []string
}

// Collection is a media server collection. An empty RatingKey means the
// collection does not exist yet and is created on first non-empty update.
type Collection struct {
	RatingKey  string
	Title      string
	LibraryKey string
}

// DiskSpace is one entry of an arr instance's disk space listing.
type DiskSpace struct {
	Path       string
	Label      string
	FreeSpace  int64
	TotalSpace int64
}

// Tag is an arr tag.
type Tag struct {
	ID    int64
	Label string
}

// QualityProfile is an arr quality profile.
type QualityProfile struct {
	ID   int64
	Name string
}

// Episode is a Sonarr episode.
type Episode struct {
	ID            int64
	SeasonNumber  int
	EpisodeNumber int
	EpisodeFileID int64
	HasFile       bool
	Monitored     bool
}

// ContainsFold reports whether values contains s, ignoring case.
func ContainsFold(values []string, s string) bool {
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// IntersectsFold reports whether any element of a equals an element of b, ignoring case.
func IntersectsFold(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(b))
	for _, v := range b {
		set[strings.ToLower(v)] = struct{}{}
	}
	for _, v := range a {
		if _, ok := set[strings.ToLower(v)]; ok {
			return true
		}
	}
	return false
}
