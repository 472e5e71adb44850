// Package cleaner runs the per-library deletion pass: it resolves arr records
// to media server items, applies the protection rules and deletes or tags the
// items that are left.
package cleaner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/deleterr/deleterr/internal/config"
	"github.com/deleterr/deleterr/internal/decisioning"
	"github.com/deleterr/deleterr/internal/leavingsoon"
	"github.com/deleterr/deleterr/internal/lists"
	"github.com/deleterr/deleterr/internal/media"
	"github.com/deleterr/deleterr/internal/metrics"
	"github.com/deleterr/deleterr/internal/resilience"
	"github.com/deleterr/deleterr/internal/resolver"
	"github.com/deleterr/deleterr/internal/rules"
)

// Reasons a library pass ends without evaluating candidates.
const (
	SkipDiskSpace = "disk_space"
	SkipNoMedia   = "no_media"
)

// Result is the outcome of one library pass. In dry-run mode Deleted and
// BytesFreed describe what would have been deleted.
type Result struct {
	Library      string
	Instance     string
	BytesFreed   int64
	Deleted      []media.Record
	Preview      []media.Record
	Tagged       int
	Unmatched    int
	Skipped      string
	DeletionDate time.Time
}

// Cleaner processes libraries one at a time.
type Cleaner struct {
	cfg       *config.Config
	server    MediaServer
	activity  ActivitySource
	evaluator *rules.Evaluator
	tagger    *leavingsoon.Tagger
	trakt     ListSource
	mdblist   ListSource
	justwatch AvailabilityLocator
	seerr     RequestTracker
	logger    zerolog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a cleaner. Optional integrations are attached with the Set methods.
func New(cfg *config.Config, server MediaServer, activity ActivitySource, logger zerolog.Logger) *Cleaner {
	logger = logger.With().Str("component", "cleaner").Logger()
	return &Cleaner{
		cfg:       cfg,
		server:    server,
		activity:  activity,
		evaluator: rules.NewEvaluator(logger),
		tagger:    leavingsoon.NewTagger(server, cfg.DryRun, logger),
		logger:    logger,
		now:       time.Now,
		sleep:     sleepContext,
	}
}

// SetTrakt enables Trakt list exclusions.
func (c *Cleaner) SetTrakt(src ListSource) {
	c.trakt = guardedList{src: src, breaker: c.breaker("trakt")}
}

// SetMDBList enables MDBList list exclusions.
func (c *Cleaner) SetMDBList(src ListSource) {
	c.mdblist = guardedList{src: src, breaker: c.breaker("mdblist")}
}

// SetJustWatch enables streaming availability exclusions.
func (c *Cleaner) SetJustWatch(locate AvailabilityLocator) {
	b := c.breaker("justwatch")
	c.justwatch = func(country, language string) rules.Availability {
		return guardedAvailability{src: locate(country, language), breaker: b}
	}
}

// SetSeerr enables request based rules and status updates.
func (c *Cleaner) SetSeerr(src RequestTracker) {
	c.seerr = guardedRequests{src: src, breaker: c.breaker("seerr")}
}

func (c *Cleaner) breaker(name string) *resilience.Breaker {
	return resilience.NewBreaker(name, resilience.DefaultBreakerSettings(), c.logger)
}

// ProcessLibrary runs one library pass against records, the full listing of
// the library's arr instance. Errors end the pass for this library only.
func (c *Cleaner) ProcessLibrary(ctx context.Context, lib *config.Library, inst ArrClient, records []media.Record) (Result, error) {
	res := Result{Library: lib.Name, Instance: inst.Name()}
	logger := c.logger.With().Str("library", lib.Name).Str("instance", inst.Name()).Logger()

	ok, err := decisioning.CheckDiskSpace(ctx, lib, inst, logger)
	if err != nil {
		return res, err
	}
	if !ok {
		res.Skipped = SkipDiskSpace
		metrics.LibrariesSkipped.WithLabelValues(lib.Name, SkipDiskSpace).Inc()
		return res, nil
	}

	records = filterSeriesType(lib, records)
	logger.Info().Int("items", len(records)).Msg("Processing library")
	if len(records) == 0 {
		res.Skipped = SkipNoMedia
		return res, nil
	}

	section, err := c.server.Library(ctx, lib.Name)
	if err != nil {
		return res, fmt.Errorf("failed to get media server library: %w", err)
	}
	items, err := c.server.Items(ctx, section)
	if err != nil {
		return res, fmt.Errorf("failed to list media server library: %w", err)
	}
	index := resolver.NewIndex(items)
	logger.Info().Int("items", index.Len()).Msg("Media server library loaded")

	history, err := c.activity.Activity(ctx, lib, section.Key)
	if err != nil {
		return res, fmt.Errorf("failed to get watch activity: %w", err)
	}
	logger.Info().Int("items", history.Len()).Msg("Watch activity loaded")

	now := c.now()
	ec := c.ruleContext(ctx, lib, inst, history, index, now, logger)

	cands := c.resolve(lib, records, index, history, &res, logger)
	fields, orders := lib.SortFields()
	decisioning.Sort(cands, fields, orders, now)

	windows := decisioning.WindowsFor(lib)
	sel := decisioning.Select(ctx, cands, windows, func(ctx context.Context, cand decisioning.Candidate) bool {
		return c.evaluator.IsActionable(ctx, ec, cand.Record, cand.Item)
	})
	if err := ctx.Err(); err != nil {
		return res, err
	}

	toTag := sel.Preview
	if lib.TaggingOnly() {
		toTag = append(append([]decisioning.Candidate{}, sel.Delete...), sel.Preview...)
		logger.Info().Int("items", len(sel.Delete)).Msg("Tagging only, skipping deletions")
	} else {
		c.deleteAll(ctx, lib, inst, sel.Delete, windows.Delete, &res, logger)
		if err := ctx.Err(); err != nil {
			return res, err
		}
	}
	for _, cand := range toTag {
		res.Preview = append(res.Preview, cand.Record)
	}
	metrics.PreviewItems.WithLabelValues(lib.Name).Set(float64(len(res.Preview)))

	if lib.LeavingSoon != nil {
		c.tagLeavingSoon(ctx, lib, section, toTag, now, &res, logger)
	}
	if len(res.Deleted) > 0 && !c.cfg.DryRun {
		c.refresh(ctx, section, logger)
	}

	logger.Info().
		Int("deleted", len(res.Deleted)).
		Str("freed", humanize.IBytes(uint64(res.BytesFreed))).
		Int("preview", len(res.Preview)).
		Bool("dryRun", c.cfg.DryRun).
		Msg("Library done")
	return res, nil
}

func (c *Cleaner) ruleContext(ctx context.Context, lib *config.Library, inst ArrClient, history *media.History, index *resolver.Index, now time.Time, logger zerolog.Logger) *rules.Context {
	kind := inst.Kind()
	ec := &rules.Context{
		Library:            lib,
		Now:                now,
		History:            history,
		WatchedCollections: rules.WatchedCollections(lib, history, index, now),
		Arr:                inst,
		Trakt:              c.listSet(ctx, "trakt", c.trakt, kind, lib.Exclude.Trakt, logger),
		MDBList:            c.listSet(ctx, "mdblist", c.mdblist, kind, lib.Exclude.MDBList, logger),
	}
	if kind == media.KindShow {
		ec.Credits = c.server
	}
	if jw := lib.Exclude.JustWatch; jw.Enabled() && c.justwatch != nil {
		country, language := jw.Country, jw.Language
		if country == "" {
			country = c.cfg.JustWatch.Country
		}
		if language == "" {
			language = c.cfg.JustWatch.Language
		}
		ec.JustWatch = c.justwatch(country, language)
	}
	if lib.Exclude.Seerr != nil && c.seerr != nil {
		ec.Seerr = c.seerr
	}
	return ec
}

// listSet loads a list exclusion. Failures are logged and the lists ignored.
func (c *Cleaner) listSet(ctx context.Context, name string, src ListSource, kind media.Kind, ex config.ListExclusion, logger zerolog.Logger) lists.Set {
	if len(ex.Lists) == 0 {
		return nil
	}
	if src == nil {
		logger.Warn().Str("source", name).Msg("Lists configured without credentials, ignoring")
		return nil
	}
	set, err := src.Items(ctx, kind, ex.Lists, ex.MaxItemsPerList)
	if err != nil {
		logger.Warn().Err(err).Str("source", name).Msg("Failed to load lists, ignoring")
		return nil
	}
	logger.Info().Str("source", name).Int("items", len(set)).Msg("Loaded list exclusions")
	return set
}

// resolve pairs records with media server items. Records without a match are
// dropped; those that have files are counted as unmatched.
func (c *Cleaner) resolve(lib *config.Library, records []media.Record, index *resolver.Index, history *media.History, res *Result, logger zerolog.Logger) []decisioning.Candidate {
	cands := make([]decisioning.Candidate, 0, len(records))
	for _, rec := range records {
		data := rec.Data()
		item, ok := index.Find(rec)
		if !ok {
			if !rec.HasFiles() {
				logger.Debug().Str("title", data.Title).Int("year", data.Year).Msg("Not in media server and has no files, skipping")
				continue
			}
			res.Unmatched++
			logger.Warn().
				Str("title", data.Title).
				Int("year", data.Year).
				Int64("tmdbId", data.TmdbID).
				Int64("tvdbId", data.TvdbID).
				Str("imdbId", data.ImdbID).
				Str("normalized", resolver.NormalizeTitle(data.Title)).
				Msg("Unmatched, not found in media server")
			continue
		}
		cand := decisioning.Candidate{Record: rec, Item: item}
		if a, ok := resolver.FindActivity(history, item); ok {
			cand.Activity = &a
		}
		cands = append(cands, cand)
	}
	metrics.Unmatched.WithLabelValues(lib.Name).Set(float64(res.Unmatched))
	logger.Info().Int("items", len(records)).Int("unmatched", res.Unmatched).Msg("Resolved library items")
	return cands
}

func (c *Cleaner) tagLeavingSoon(ctx context.Context, lib *config.Library, section *media.Library, toTag []decisioning.Candidate, now time.Time, res *Result, logger zerolog.Logger) {
	items := make([]*media.LibraryItem, 0, len(toTag))
	for _, cand := range toTag {
		items = append(items, cand.Item)
	}
	res.Tagged = c.tagger.Apply(ctx, lib.LeavingSoon, section, items).Tagged

	date, err := leavingsoon.DeletionDate(lib.LeavingSoon, c.cfg.Scheduler, now)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to compute deletion date")
		return
	}
	res.DeletionDate = date
}

func (c *Cleaner) refresh(ctx context.Context, section *media.Library, logger zerolog.Logger) {
	if c.cfg.PlexLibraryScanAfterActions {
		if err := c.server.RefreshLibrary(ctx, section); err != nil {
			logger.Warn().Err(err).Msg("Failed to refresh media server library")
		}
	}
	if c.cfg.TautulliLibraryScanAfterActions {
		if err := c.activity.RefreshLibrary(ctx, section.Key); err != nil {
			logger.Warn().Err(err).Msg("Failed to refresh activity library")
		}
	}
}

// filterSeriesType keeps movies and the shows of the library's series type.
func filterSeriesType(lib *config.Library, records []media.Record) []media.Record {
	want := lib.SeriesTypeOrDefault()
	out := make([]media.Record, 0, len(records))
	for _, rec := range records {
		if show, ok := rec.(*media.Show); ok && !strings.EqualFold(show.SeriesType, want) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
