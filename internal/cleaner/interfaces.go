package cleaner

import (
	"context"

	"github.com/deleterr/deleterr/internal/config"
	"github.com/deleterr/deleterr/internal/leavingsoon"
	"github.com/deleterr/deleterr/internal/lists"
	"github.com/deleterr/deleterr/internal/media"
	"github.com/deleterr/deleterr/internal/rules"
	"github.com/deleterr/deleterr/internal/seerr"
)

// ArrClient is a Radarr or Sonarr instance.
type ArrClient interface {
	Name() string
	Kind() media.Kind
	ListMedia(ctx context.Context) ([]media.Record, error)
	DiskSpace(ctx context.Context) ([]media.DiskSpace, error)
	Tags(ctx context.Context) ([]media.Tag, error)
	QualityProfiles(ctx context.Context) ([]media.QualityProfile, error)
	DeleteMovie(ctx context.Context, id int64, deleteFiles, addExclusion bool) error
	SeriesDeleter
	ResetCache()
}

// SeriesDeleter is the part of Sonarr needed to remove a series file by file.
type SeriesDeleter interface {
	Episodes(ctx context.Context, seriesID int64) ([]media.Episode, error)
	SetEpisodesMonitored(ctx context.Context, ids []int64, monitored bool) error
	DeleteEpisodeFile(ctx context.Context, id int64) error
	DeleteSeries(ctx context.Context, id int64, deleteFiles bool) error
}

// MediaServer is the media server holding the libraries.
type MediaServer interface {
	leavingsoon.MediaServer
	rules.CreditsSource
	Library(ctx context.Context, name string) (*media.Library, error)
	Items(ctx context.Context, lib *media.Library) ([]*media.LibraryItem, error)
	RefreshLibrary(ctx context.Context, lib *media.Library) error
}

// ActivitySource reports watch history.
type ActivitySource interface {
	Activity(ctx context.Context, lib *config.Library, sectionKey string) (*media.History, error)
	RefreshLibrary(ctx context.Context, sectionKey string) error
}

// ListSource returns the ids on a set of external lists.
type ListSource interface {
	Items(ctx context.Context, kind media.Kind, urls []string, maxItems int) (lists.Set, error)
}

// RequestTracker looks up and resets media requests.
type RequestTracker interface {
	Request(ctx context.Context, kind media.Kind, tmdbID int64) (*seerr.Request, error)
	MarkDeleted(ctx context.Context, kind media.Kind, tmdbID int64) (bool, error)
}

// AvailabilityLocator returns an availability source for a country and language.
type AvailabilityLocator func(country, language string) rules.Availability

// Resetter drops per-run caches.
type Resetter interface {
	Reset()
}
