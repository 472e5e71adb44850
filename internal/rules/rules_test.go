package rules

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deleterr/deleterr/internal/config"
	"github.com/deleterr/deleterr/internal/lists"
	"github.com/deleterr/deleterr/internal/media"
	"github.com/deleterr/deleterr/internal/resolver"
	"github.com/deleterr/deleterr/internal/seerr"
)

var now = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func daysAgo(n int) time.Time { return now.Add(-time.Duration(n) * 24 * time.Hour) }

func testMovie() (*media.Movie, *media.LibraryItem) {
	rec := &media.Movie{Common: media.Common{
		ID: 1, Title: "The Matrix", Year: 1999, TmdbID: 603, TvdbID: 0,
		QualityProfileID: 4, Tags: []int64{2}, Path: "/movies/The Matrix (1999)", Monitored: true,
	}, HasFile: true}
	item := &media.LibraryItem{
		RatingKey: "10", Title: "The Matrix", Year: 1999, GUID: "plex://movie/603",
		AddedAt: daysAgo(400), Genres: []string{"Action"}, Collections: []string{"Matrix Collection"},
		Labels: []string{"Keep"}, Actors: []string{"Keanu Reeves"}, Directors: []string{"Lana Wachowski"},
		Studio: "Warner Bros.",
	}
	return rec, item
}

func newContext(lib *config.Library) *Context {
	return &Context{Library: lib, Now: now, History: media.NewHistory(nil), WatchedCollections: CollectionSet{}}
}

func evaluate(t *testing.T, ec *Context, rec media.Record, item *media.LibraryItem) Verdict {
	t.Helper()
	return NewEvaluator(zerolog.Nop()).Evaluate(context.Background(), ec, rec, item)
}

func TestEvaluate_AbsentRulesNeverProtect(t *testing.T) {
	rec, item := testMovie()
	ec := newContext(&config.Library{Name: "Movies", Radarr: "radarr"})
	ec.History = media.NewHistory([]media.Activity{{GUID: item.GUID, LastWatched: daysAgo(1)}})

	v := evaluate(t, ec, rec, item)
	assert.True(t, v.Actionable, "protected by %s: %s", v.Rule, v.Reason)
}

func TestEvaluate_WatchedRecency(t *testing.T) {
	tests := []struct {
		name       string
		watched    int
		threshold  int
		actionable bool
	}{
		{name: "watched 10 days ago, threshold 30", watched: 10, threshold: 30, actionable: false},
		{name: "watched exactly at threshold", watched: 30, threshold: 30, actionable: true},
		{name: "watched long ago", watched: 90, threshold: 30, actionable: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, item := testMovie()
			ec := newContext(&config.Library{Name: "Movies", LastWatchedThreshold: intPtr(tt.threshold)})
			ec.History = media.NewHistory([]media.Activity{{GUID: item.GUID, LastWatched: daysAgo(tt.watched).Add(-time.Hour)}})

			v := evaluate(t, ec, rec, item)
			assert.Equal(t, tt.actionable, v.Actionable)
			if !tt.actionable {
				assert.Equal(t, "last_watched", v.Rule)
			}
		})
	}
}

func TestEvaluate_WatchStatus(t *testing.T) {
	rec, item := testMovie()

	unwatchedOnly := newContext(&config.Library{Name: "Movies", WatchStatus: config.WatchStatusUnwatched})
	unwatchedOnly.History = media.NewHistory([]media.Activity{{GUID: item.GUID, LastWatched: daysAgo(500)}})
	assert.False(t, evaluate(t, unwatchedOnly, rec, item).Actionable)

	watchedOnly := newContext(&config.Library{Name: "Movies", WatchStatus: config.WatchStatusWatched})
	assert.False(t, evaluate(t, watchedOnly, rec, item).Actionable)

	watchedOnly.History = unwatchedOnly.History
	assert.True(t, evaluate(t, watchedOnly, rec, item).Actionable)
}

func TestEvaluate_WatchedCollections(t *testing.T) {
	rec, item := testMovie()
	lib := &config.Library{Name: "Movies", LastWatchedThreshold: intPtr(30), ApplyLastWatchThresholdToCollections: true}

	sibling := &media.LibraryItem{RatingKey: "11", Title: "The Matrix Reloaded", GUID: "plex://movie/604", Collections: []string{"matrix collection"}}
	history := media.NewHistory([]media.Activity{{GUID: sibling.GUID, LastWatched: daysAgo(3)}})
	idx := resolver.NewIndex([]*media.LibraryItem{item, sibling})

	ec := newContext(lib)
	ec.History = history
	ec.WatchedCollections = WatchedCollections(lib, history, idx, now)
	require.Len(t, ec.WatchedCollections, 1)

	v := evaluate(t, ec, rec, item)
	assert.False(t, v.Actionable)
	assert.Equal(t, "watched_collection", v.Rule)

	lib.ApplyLastWatchThresholdToCollections = false
	assert.Empty(t, WatchedCollections(lib, history, idx, now))
}

type fakeArr struct {
	tags     []media.Tag
	profiles []media.QualityProfile
	err      error
}

func (f *fakeArr) Tags(context.Context) ([]media.Tag, error) { return f.tags, f.err }
func (f *fakeArr) QualityProfiles(context.Context) ([]media.QualityProfile, error) {
	return f.profiles, f.err
}

func TestEvaluate_Exclusions(t *testing.T) {
	arr := &fakeArr{
		tags:     []media.Tag{{ID: 1, Label: "other"}, {ID: 2, Label: "keep"}},
		profiles: []media.QualityProfile{{ID: 4, Name: "Ultra-HD"}},
	}

	tests := []struct {
		name    string
		exclude config.Exclusions
		rule    string
	}{
		{name: "radarr tag", exclude: config.Exclusions{Radarr: config.ArrExclusion{Tags: []string{"KEEP"}}}, rule: "arr"},
		{name: "radarr quality profile", exclude: config.Exclusions{Radarr: config.ArrExclusion{QualityProfiles: []string{"ultra-hd"}}}, rule: "arr"},
		{name: "radarr monitored", exclude: config.Exclusions{Radarr: config.ArrExclusion{Monitored: boolPtr(true)}}, rule: "arr"},
		{name: "radarr path", exclude: config.Exclusions{Radarr: config.ArrExclusion{Paths: []string{"/movies/The Matrix"}}}, rule: "arr"},
		{name: "title", exclude: config.Exclusions{Titles: []string{"the matrix"}}, rule: "title"},
		{name: "genre", exclude: config.Exclusions{Genres: []string{"action"}}, rule: "genre"},
		{name: "collection", exclude: config.Exclusions{Collections: []string{"MATRIX COLLECTION"}}, rule: "collection"},
		{name: "label", exclude: config.Exclusions{PlexLabels: []string{"keep"}}, rule: "plex_label"},
		{name: "studio", exclude: config.Exclusions{Studios: []string{"warner bros."}}, rule: "studio"},
		{name: "actor", exclude: config.Exclusions{Actors: []string{"keanu reeves"}}, rule: "actor"},
		{name: "director", exclude: config.Exclusions{Directors: []string{"Lana Wachowski"}}, rule: "director"},
		{name: "release years", exclude: config.Exclusions{ReleaseYears: 30}, rule: "release_year"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, item := testMovie()
			ec := newContext(&config.Library{Name: "Movies", Exclude: tt.exclude})
			ec.Arr = arr

			v := evaluate(t, ec, rec, item)
			assert.False(t, v.Actionable)
			assert.Equal(t, tt.rule, v.Rule)
		})
	}

	t.Run("non matching values", func(t *testing.T) {
		rec, item := testMovie()
		ec := newContext(&config.Library{Name: "Movies", Exclude: config.Exclusions{
			Radarr:       config.ArrExclusion{Tags: []string{"other"}, QualityProfiles: []string{"SD"}, Monitored: boolPtr(false)},
			Genres:       []string{"Drama"},
			Actors:       []string{"Someone"},
			ReleaseYears: 5,
		}})
		ec.Arr = arr
		assert.True(t, evaluate(t, ec, rec, item).Actionable)
	})

	t.Run("metadata exclusions run before arr fields", func(t *testing.T) {
		rec, item := testMovie()
		ec := newContext(&config.Library{Name: "Movies", Exclude: config.Exclusions{
			Radarr: config.ArrExclusion{Tags: []string{"keep"}},
			Actors: []string{"Keanu Reeves"},
		}})
		ec.Arr = arr
		assert.Equal(t, "actor", evaluate(t, ec, rec, item).Rule)
	})

	t.Run("arr lookup failure keeps the item", func(t *testing.T) {
		rec, item := testMovie()
		ec := newContext(&config.Library{Name: "Movies", Exclude: config.Exclusions{Radarr: config.ArrExclusion{Tags: []string{"x"}}}})
		ec.Arr = &fakeArr{err: errors.New("boom")}
		assert.False(t, evaluate(t, ec, rec, item).Actionable)
	})
}

type fakeCredits struct {
	calls   int
	credits media.Credits
}

func (f *fakeCredits) EpisodeCredits(context.Context, *media.LibraryItem) (media.Credits, error) {
	f.calls++
	return f.credits, nil
}

func TestEvaluate_ShowEpisodeCredits(t *testing.T) {
	show := &media.Show{Common: media.Common{Title: "Severance", Year: 2022, TvdbID: 371980}, Status: "continuing", EpisodeFileCount: 9}
	item := &media.LibraryItem{RatingKey: "20", Title: "Severance", Year: 2022, GUID: "plex://show/1"}
	credits := &fakeCredits{credits: media.Credits{Directors: []string{"Ben Stiller"}}}

	ec := newContext(&config.Library{Name: "TV", Exclude: config.Exclusions{
		Directors: []string{"ben stiller"},
		Writers:   []string{"Nobody"},
	}})
	ec.Credits = credits

	v := evaluate(t, ec, show, item)
	assert.False(t, v.Actionable)
	assert.Equal(t, "director", v.Rule)

	ec.Library.Exclude.Directors = nil
	assert.True(t, evaluate(t, ec, show, item).Actionable)
	assert.Equal(t, 1, credits.calls, "credits are fetched once per item")

	ec.Library.Exclude.Sonarr = config.ArrExclusion{Status: []string{"Continuing"}}
	v = evaluate(t, ec, show, item)
	assert.Equal(t, "arr", v.Rule)
}

func TestEvaluate_AddedRecently(t *testing.T) {
	rec, item := testMovie()
	item.AddedAt = daysAgo(5)
	ec := newContext(&config.Library{Name: "Movies", AddedAtThreshold: intPtr(10)})

	v := evaluate(t, ec, rec, item)
	assert.Equal(t, "added_at", v.Rule)

	item.AddedAt = daysAgo(10).Add(-time.Minute)
	assert.True(t, evaluate(t, ec, rec, item).Actionable)
}

func TestEvaluate_Lists(t *testing.T) {
	rec, item := testMovie()
	ec := newContext(&config.Library{Name: "Movies"})
	ec.Trakt = lists.Set{603: "https://trakt.tv/users/a/watchlist"}
	assert.Equal(t, "trakt", evaluate(t, ec, rec, item).Rule)

	ec.Trakt = nil
	ec.MDBList = lists.Set{603: "https://mdblist.com/lists/a/b"}
	assert.Equal(t, "mdblist", evaluate(t, ec, rec, item).Rule)

	show := &media.Show{Common: media.Common{Title: "Show", TmdbID: 603, TvdbID: 81189}}
	assert.True(t, evaluate(t, ec, show, item).Actionable, "shows are keyed by tvdb")
}

type fakeJustWatch struct {
	available map[string]bool
	err       error
}

func (f *fakeJustWatch) AvailableOn(_ context.Context, _ string, _ int, _ media.Kind, providers []string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	for _, p := range providers {
		if f.available[p] {
			return true, nil
		}
	}
	return false, nil
}

func TestEvaluate_JustWatch(t *testing.T) {
	rec, item := testMovie()
	jw := &fakeJustWatch{available: map[string]bool{"netflix": true}}

	ec := newContext(&config.Library{Name: "Movies", Exclude: config.Exclusions{
		JustWatch: config.JustWatchExclusion{Country: "US", AvailableOn: []string{"netflix"}},
	}})
	ec.JustWatch = jw
	assert.Equal(t, "justwatch", evaluate(t, ec, rec, item).Rule)

	ec.Library.Exclude.JustWatch = config.JustWatchExclusion{Country: "US", NotAvailableOn: []string{"hulu"}}
	assert.Equal(t, "justwatch", evaluate(t, ec, rec, item).Rule)

	ec.Library.Exclude.JustWatch = config.JustWatchExclusion{Country: "US", NotAvailableOn: []string{"netflix"}}
	assert.True(t, evaluate(t, ec, rec, item).Actionable)

	jw.err = errors.New("down")
	ec.Library.Exclude.JustWatch = config.JustWatchExclusion{Country: "US", NotAvailableOn: []string{"hulu"}}
	assert.True(t, evaluate(t, ec, rec, item).Actionable, "lookup errors fail open")
}

type fakeRequests struct {
	req *seerr.Request
	err error
}

func (f *fakeRequests) Request(context.Context, media.Kind, int64) (*seerr.Request, error) {
	return f.req, f.err
}

func TestEvaluate_Seerr(t *testing.T) {
	approved := &seerr.Request{
		Status:      seerr.StatusApproved,
		RequestedBy: seerr.User{Username: "alice", PlexUsername: "AlicePlex"},
		CreatedAt:   daysAgo(20),
	}
	pending := &seerr.Request{Status: seerr.StatusPending, RequestedBy: seerr.User{Username: "bob"}, CreatedAt: daysAgo(20)}

	tests := []struct {
		name       string
		cfg        config.SeerrExclusion
		requests   *fakeRequests
		watchers   []string
		actionable bool
	}{
		{name: "exclude mode protects requested", cfg: config.SeerrExclusion{}, requests: &fakeRequests{req: approved}, actionable: false},
		{name: "exclude mode ignores unrequested", cfg: config.SeerrExclusion{}, requests: &fakeRequests{}, actionable: true},
		{name: "exclude mode fails open", cfg: config.SeerrExclusion{}, requests: &fakeRequests{err: errors.New("down")}, actionable: true},
		{name: "pending not included", cfg: config.SeerrExclusion{IncludePending: boolPtr(false)}, requests: &fakeRequests{req: pending}, actionable: true},
		{name: "other users", cfg: config.SeerrExclusion{Users: []string{"carol"}}, requests: &fakeRequests{req: approved}, actionable: true},
		{name: "matching plex user", cfg: config.SeerrExclusion{Users: []string{"aliceplex"}}, requests: &fakeRequests{req: approved}, actionable: false},
		{name: "status filter", cfg: config.SeerrExclusion{RequestStatus: []string{"pending"}}, requests: &fakeRequests{req: approved}, actionable: true},
		{name: "too recent", cfg: config.SeerrExclusion{MinRequestAgeDays: 30}, requests: &fakeRequests{req: approved}, actionable: true},
		{name: "include only keeps unrequested", cfg: config.SeerrExclusion{Mode: "include_only"}, requests: &fakeRequests{}, actionable: false},
		{name: "include only allows requested", cfg: config.SeerrExclusion{Mode: "include_only"}, requests: &fakeRequests{req: approved}, actionable: true},
		{name: "include only fails safe", cfg: config.SeerrExclusion{Mode: "include_only"}, requests: &fakeRequests{err: errors.New("down")}, actionable: false},
		{
			name:       "requester has not watched",
			cfg:        config.SeerrExclusion{Mode: "include_only", ProtectUntilRequesterWatched: true},
			requests:   &fakeRequests{req: approved},
			watchers:   []string{"bob"},
			actionable: false,
		},
		{
			name:       "requester watched",
			cfg:        config.SeerrExclusion{Mode: "include_only", ProtectUntilRequesterWatched: true},
			requests:   &fakeRequests{req: approved},
			watchers:   []string{"aliceplex"},
			actionable: true,
		},
		{
			name:       "requester watch check fails safe",
			cfg:        config.SeerrExclusion{ProtectUntilRequesterWatched: true},
			requests:   &fakeRequests{err: errors.New("down")},
			actionable: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, item := testMovie()
			cfg := tt.cfg
			ec := newContext(&config.Library{Name: "Movies", Exclude: config.Exclusions{Seerr: &cfg}})
			ec.Seerr = tt.requests
			if tt.watchers != nil {
				ec.History = media.NewHistory([]media.Activity{{GUID: item.GUID, LastWatched: daysAgo(100), Users: tt.watchers}})
			}

			v := evaluate(t, ec, rec, item)
			assert.Equal(t, tt.actionable, v.Actionable, v.Reason)
			if !tt.actionable {
				assert.Equal(t, "seerr", v.Rule)
			}
		})
	}
}

func TestDefaultRules_Order(t *testing.T) {
	var names []string
	for _, r := range DefaultRules() {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{
		"last_watched", "watched_collection",
		"title", "genre", "collection", "plex_label", "release_year",
		"studio", "producer", "director", "writer", "actor",
		"arr", "added_at", "trakt", "mdblist", "justwatch", "seerr",
	}, names)
}

func TestEvaluate_StopsAtFirstProtectingRule(t *testing.T) {
	rec, item := testMovie()
	var called []string
	rule := func(name string, protect bool) Rule {
		return Rule{Name: name, Protects: func(context.Context, *Context, Candidate, zerolog.Logger) (bool, string) {
			called = append(called, name)
			return protect, name
		}}
	}

	e := NewEvaluator(zerolog.Nop(), rule("a", false), rule("b", true), rule("c", true))
	v := e.Evaluate(context.Background(), newContext(&config.Library{Name: "Movies"}), rec, item)

	assert.False(t, v.Actionable)
	assert.Equal(t, "b", v.Rule)
	assert.Equal(t, []string{"a", "b"}, called)
}
