// Package rules decides whether a matched media item may be deleted.
package rules

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/deleterr/deleterr/internal/config"
	"github.com/deleterr/deleterr/internal/lists"
	"github.com/deleterr/deleterr/internal/media"
	"github.com/deleterr/deleterr/internal/metrics"
	"github.com/deleterr/deleterr/internal/resolver"
	"github.com/deleterr/deleterr/internal/seerr"
)

// ArrMetadata resolves tag and quality profile ids of the owning instance.
type ArrMetadata interface {
	Tags(ctx context.Context) ([]media.Tag, error)
	QualityProfiles(ctx context.Context) ([]media.QualityProfile, error)
}

// Availability answers streaming availability questions.
type Availability interface {
	AvailableOn(ctx context.Context, title string, year int, kind media.Kind, providers []string) (bool, error)
}

// Requests looks up media requests.
type Requests interface {
	Request(ctx context.Context, kind media.Kind, tmdbID int64) (*seerr.Request, error)
}

// CreditsSource returns people credited on a show's episodes.
type CreditsSource interface {
	EpisodeCredits(ctx context.Context, item *media.LibraryItem) (media.Credits, error)
}

// Context is everything one library pass evaluates against. Optional
// collaborators are nil when the integration is not configured.
type Context struct {
	Library            *config.Library
	Now                time.Time
	History            *media.History
	WatchedCollections CollectionSet
	Arr                ArrMetadata
	Trakt              lists.Set
	MDBList            lists.Set
	JustWatch          Availability
	Seerr              Requests
	Credits            CreditsSource

	mu      sync.Mutex
	credits map[string]media.Credits
}

// Activity returns the latest watch of item.
func (c *Context) Activity(item *media.LibraryItem) (media.Activity, bool) {
	return resolver.FindActivity(c.History, item)
}

// episodeCredits fetches and caches the episode credits of a show.
func (c *Context) episodeCredits(ctx context.Context, item *media.LibraryItem) (media.Credits, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.credits[item.RatingKey]; ok {
		return cached, nil
	}
	credits, err := c.Credits.EpisodeCredits(ctx, item)
	if err != nil {
		return media.Credits{}, err
	}
	if c.credits == nil {
		c.credits = make(map[string]media.Credits)
	}
	c.credits[item.RatingKey] = credits
	return credits, nil
}

// Candidate is a record paired with the media server item it resolved to.
type Candidate struct {
	Record media.Record
	Item   *media.LibraryItem
}

// Verdict explains an evaluation.
type Verdict struct {
	Actionable bool
	Rule       string
	Reason     string
}

// Rule protects candidates. Protects returns true with a reason to keep the
// candidate. Rules that find nothing configured return false.
type Rule struct {
	Name     string
	Protects func(ctx context.Context, ec *Context, c Candidate, logger zerolog.Logger) (bool, string)
}

// DefaultRules returns the protection chain in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "last_watched", Protects: watchedRecently},
		{Name: "watched_collection", Protects: watchedCollection},
		{Name: "title", Protects: excludedTitle},
		{Name: "genre", Protects: excludedGenre},
		{Name: "collection", Protects: excludedCollection},
		{Name: "plex_label", Protects: excludedLabel},
		{Name: "release_year", Protects: recentRelease},
		{Name: "studio", Protects: excludedStudio},
		{Name: "producer", Protects: excludedProducer},
		{Name: "director", Protects: excludedDirector},
		{Name: "writer", Protects: excludedWriter},
		{Name: "actor", Protects: excludedActor},
		{Name: "arr", Protects: arrFields},
		{Name: "added_at", Protects: addedRecently},
		{Name: "trakt", Protects: onTraktList},
		{Name: "mdblist", Protects: onMDBList},
		{Name: "justwatch", Protects: streamingAvailability},
		{Name: "seerr", Protects: seerrRequest},
	}
}

// Evaluator runs the chain and stops at the first rule that protects.
type Evaluator struct {
	rules  []Rule
	logger zerolog.Logger
}

// NewEvaluator creates an evaluator. Without rules the default chain is used.
func NewEvaluator(logger zerolog.Logger, rules ...Rule) *Evaluator {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Evaluator{
		rules:  rules,
		logger: logger.With().Str("component", "rules").Logger(),
	}
}

// IsActionable reports whether no rule protects the record.
func (e *Evaluator) IsActionable(ctx context.Context, ec *Context, rec media.Record, item *media.LibraryItem) bool {
	return e.Evaluate(ctx, ec, rec, item).Actionable
}

// Evaluate runs the chain and returns the first protecting rule, if any.
func (e *Evaluator) Evaluate(ctx context.Context, ec *Context, rec media.Record, item *media.LibraryItem) Verdict {
	c := Candidate{Record: rec, Item: item}
	logger := e.logger.With().Str("title", rec.Data().Title).Logger()
	for _, rule := range e.rules {
		if protect, reason := rule.Protects(ctx, ec, c, logger); protect {
			logger.Debug().Str("rule", rule.Name).Str("reason", reason).Msg("Protected, skipping")
			metrics.Protected.WithLabelValues(ec.Library.Name, rule.Name).Inc()
			return Verdict{Rule: rule.Name, Reason: reason}
		}
	}
	return Verdict{Actionable: true}
}

// daysSince returns whole days elapsed between t and now.
func daysSince(now, t time.Time) int {
	return int(now.Sub(t) / (24 * time.Hour))
}

// CollectionSet holds lowercased collection names.
type CollectionSet map[string]struct{}

// Add inserts names.
func (s CollectionSet) Add(names ...string) {
	for _, n := range names {
		s[strings.ToLower(n)] = struct{}{}
	}
}

// Intersect returns the names also present in the set.
func (s CollectionSet) Intersect(names []string) []string {
	var out []string
	for _, n := range names {
		if _, ok := s[strings.ToLower(n)]; ok {
			out = append(out, n)
		}
	}
	return out
}

// GUIDLookup resolves activity GUIDs to media server items.
type GUIDLookup interface {
	FindGUID(guid string) (*media.LibraryItem, bool)
}

// WatchedCollections collects the collections of every item watched more
// recently than the library's last watched threshold. It is empty unless the
// library applies the threshold to collections.
func WatchedCollections(lib *config.Library, history *media.History, items GUIDLookup, now time.Time) CollectionSet {
	set := CollectionSet{}
	if !lib.ApplyLastWatchThresholdToCollections || lib.LastWatchedThreshold == nil {
		return set
	}
	for _, a := range history.All() {
		item, ok := items.FindGUID(a.GUID)
		if !ok || len(item.Collections) == 0 {
			continue
		}
		if daysSince(now, a.LastWatched) < *lib.LastWatchedThreshold {
			set.Add(item.Collections...)
		}
	}
	return set
}
