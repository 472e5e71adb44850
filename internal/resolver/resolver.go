// Package resolver matches Radarr and Sonarr records to media server items.
package resolver

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/deleterr/deleterr/internal/media"
)

// Query is what is known about a record when looking it up.
type Query struct {
	GUID   string
	Titles []string
	Year   int
	TmdbID int64
	TvdbID int64
	ImdbID string
	Path   string
}

// QueryFor builds the lookup query of an arr record.
func QueryFor(rec media.Record) Query {
	c := rec.Data()
	return Query{
		Titles: c.Titles(),
		Year:   c.Year,
		TmdbID: c.TmdbID,
		TvdbID: c.TvdbID,
		ImdbID: c.ImdbID,
		Path:   c.Path,
	}
}

type titleYear struct {
	title string
	year  int
}

// Index answers lookups against one library listing. When several items
// share a key, the first one in listing order wins.
type Index struct {
	items []*media.LibraryItem

	byTmdb      map[string]*media.LibraryItem
	byTvdb      map[string]*media.LibraryItem
	byImdb      map[string]*media.LibraryItem
	byGUID      map[string]*media.LibraryItem
	guids       []string
	byTitle     map[string]*media.LibraryItem
	byTitleYear map[titleYear]*media.LibraryItem
	byNormTitle map[titleYear]*media.LibraryItem
	byFilename  map[string]*media.LibraryItem
}

// NewIndex indexes items in the order given.
func NewIndex(items []*media.LibraryItem) *Index {
	x := &Index{
		items:       items,
		byTmdb:      make(map[string]*media.LibraryItem),
		byTvdb:      make(map[string]*media.LibraryItem),
		byImdb:      make(map[string]*media.LibraryItem),
		byGUID:      make(map[string]*media.LibraryItem),
		byTitle:     make(map[string]*media.LibraryItem),
		byTitleYear: make(map[titleYear]*media.LibraryItem),
		byNormTitle: make(map[titleYear]*media.LibraryItem),
		byFilename:  make(map[string]*media.LibraryItem),
	}
	for _, item := range items {
		x.add(item)
	}
	return x
}

func setOnce[K comparable](m map[K]*media.LibraryItem, key K, item *media.LibraryItem) {
	if _, ok := m[key]; !ok {
		m[key] = item
	}
}

func (x *Index) add(item *media.LibraryItem) {
	for _, guid := range item.AllGUIDs() {
		if _, ok := x.byGUID[guid]; !ok {
			x.byGUID[guid] = item
			x.guids = append(x.guids, guid)
		}
		switch {
		case strings.Contains(guid, "tmdb://"):
			setOnce(x.byTmdb, externalID(guid, "tmdb://"), item)
		case strings.Contains(guid, "tvdb://"):
			setOnce(x.byTvdb, externalID(guid, "tvdb://"), item)
		case strings.Contains(guid, "imdb://"):
			id := externalID(guid, "imdb://")
			setOnce(x.byImdb, id, item)
			setOnce(x.byImdb, NormalizeIMDb(id), item)
		}
	}

	if item.Title != "" {
		lower := strings.ToLower(item.Title)
		setOnce(x.byTitle, lower, item)
		if item.Year != 0 {
			setOnce(x.byTitleYear, titleYear{lower, item.Year}, item)
			setOnce(x.byNormTitle, titleYear{NormalizeTitle(item.Title), item.Year}, item)
		}
	}

	for _, file := range item.Files {
		if name := fileKey(file); name != "" {
			setOnce(x.byFilename, name, item)
			break
		}
	}
}

// externalID returns the id following scheme, without any query suffix.
func externalID(guid, scheme string) string {
	id := guid[strings.LastIndex(guid, scheme)+len(scheme):]
	if i := strings.IndexByte(id, '?'); i >= 0 {
		id = id[:i]
	}
	return id
}

// fileKey normalizes the base name of a file or folder path.
func fileKey(path string) string {
	if path == "" {
		return ""
	}
	base := filepath.Base(strings.ReplaceAll(path, `\`, "/"))
	if ext := filepath.Ext(base); ext != "" && len(ext) <= 5 && !strings.ContainsAny(ext, " ") {
		base = strings.TrimSuffix(base, ext)
	}
	return NormalizeTitle(base)
}

// Len returns the number of indexed items.
func (x *Index) Len() int { return len(x.items) }

// Items returns the indexed items in listing order.
func (x *Index) Items() []*media.LibraryItem { return x.items }

// Find resolves an arr record.
func (x *Index) Find(rec media.Record) (*media.LibraryItem, bool) {
	return x.FindQuery(QueryFor(rec))
}

// FindQuery resolves a query: external ids first, then the GUID, then
// titles with year tolerance, then normalized titles and finally the file name.
func (x *Index) FindQuery(q Query) (*media.LibraryItem, bool) {
	if q.TvdbID != 0 {
		if item, ok := x.byTvdb[strconv.FormatInt(q.TvdbID, 10)]; ok {
			return item, true
		}
	}
	if q.ImdbID != "" {
		if item, ok := x.byImdb[q.ImdbID]; ok {
			return item, true
		}
		if item, ok := x.byImdb[NormalizeIMDb(q.ImdbID)]; ok {
			return item, true
		}
	}
	if q.TmdbID != 0 {
		if item, ok := x.byTmdb[strconv.FormatInt(q.TmdbID, 10)]; ok {
			return item, true
		}
	}
	if q.GUID != "" {
		if item, ok := x.FindGUID(q.GUID); ok {
			return item, true
		}
	}
	if item, ok := x.findTitle(q.Titles, q.Year); ok {
		return item, true
	}
	if name := fileKey(q.Path); name != "" {
		if item, ok := x.byFilename[name]; ok {
			return item, true
		}
	}
	return nil, false
}

// FindGUID resolves a media server GUID, exactly first, then as a substring
// of an indexed GUID.
func (x *Index) FindGUID(guid string) (*media.LibraryItem, bool) {
	if guid == "" {
		return nil, false
	}
	if item, ok := x.byGUID[guid]; ok {
		return item, true
	}
	for _, stored := range x.guids {
		if strings.Contains(stored, guid) {
			return x.byGUID[stored], true
		}
	}
	return nil, false
}

var yearOffsets = []int{-1, 1, -2, 2}

func (x *Index) findTitle(titles []string, year int) (*media.LibraryItem, bool) {
	for _, t := range titles {
		lower := strings.ToLower(t)
		if year != 0 {
			if item, ok := x.byTitleYear[titleYear{lower, year}]; ok {
				return item, true
			}
			for _, off := range yearOffsets {
				if item, ok := x.byTitleYear[titleYear{lower, year + off}]; ok {
					return item, true
				}
			}
			if item, ok := x.byTitle[lower+" ("+strconv.Itoa(year)+")"]; ok {
				return item, true
			}
		} else if item, ok := x.byTitle[lower]; ok {
			return item, true
		}
	}

	if year == 0 {
		return nil, false
	}
	for _, t := range titles {
		normalized := NormalizeTitle(t)
		if normalized == "" {
			continue
		}
		if item, ok := x.byNormTitle[titleYear{normalized, year}]; ok {
			return item, true
		}
		for _, off := range yearOffsets {
			if item, ok := x.byNormTitle[titleYear{normalized, year + off}]; ok {
				return item, true
			}
		}
	}
	return nil, false
}

// FindActivity returns the watch activity of an item: by GUID, then by an
// activity GUID contained in the item's GUID, then by equal title with at
// most one year of difference.
func FindActivity(h *media.History, item *media.LibraryItem) (media.Activity, bool) {
	if h == nil || item == nil {
		return media.Activity{}, false
	}
	for _, guid := range item.AllGUIDs() {
		if a, ok := h.Get(guid); ok {
			return a, true
		}
	}
	for _, a := range h.All() {
		if a.GUID != "" && item.GUID != "" && strings.Contains(item.GUID, a.GUID) {
			return a, true
		}
		if titleYearMatch(item, a) {
			return a, true
		}
	}
	return media.Activity{}, false
}

func titleYearMatch(item *media.LibraryItem, a media.Activity) bool {
	if a.Title == "" || a.Year == 0 || item.Year == 0 || !strings.EqualFold(a.Title, item.Title) {
		return false
	}
	diff := item.Year - a.Year
	return diff >= -1 && diff <= 1
}
