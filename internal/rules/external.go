package rules

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/deleterr/deleterr/internal/config"
	"github.com/deleterr/deleterr/internal/lists"
	"github.com/deleterr/deleterr/internal/media"
	"github.com/deleterr/deleterr/internal/seerr"
)

// listKey is the id lists are keyed by: TMDB for movies, TVDB for shows.
func listKey(rec media.Record) int64 {
	if rec.Kind() == media.KindShow {
		return rec.Data().TvdbID
	}
	return rec.Data().TmdbID
}

func onList(name string, set func(*Context) lists.Set) func(context.Context, *Context, Candidate, zerolog.Logger) (bool, string) {
	return func(_ context.Context, ec *Context, c Candidate, _ zerolog.Logger) (bool, string) {
		if list, ok := set(ec).Contains(listKey(c.Record)); ok {
			return true, fmt.Sprintf("on %s list %s", name, list)
		}
		return false, ""
	}
}

var (
	onTraktList = onList("trakt", func(ec *Context) lists.Set { return ec.Trakt })
	onMDBList   = onList("mdblist", func(ec *Context) lists.Set { return ec.MDBList })
)

// streamingAvailability fails open: lookup errors never protect.
func streamingAvailability(ctx context.Context, ec *Context, c Candidate, logger zerolog.Logger) (bool, string) {
	jw := ec.Library.Exclude.JustWatch
	if !jw.Enabled() || ec.JustWatch == nil {
		return false, ""
	}

	data := c.Record.Data()
	title, year := data.Title, data.Year
	if title == "" {
		title = c.Item.Title
	}
	if year == 0 {
		year = c.Item.Year
	}

	if len(jw.AvailableOn) > 0 {
		ok, err := ec.JustWatch.AvailableOn(ctx, title, year, c.Record.Kind(), jw.AvailableOn)
		if err != nil {
			logger.Warn().Err(err).Msg("JustWatch lookup failed, ignoring availability")
			return false, ""
		}
		if ok {
			return true, fmt.Sprintf("available on %v", jw.AvailableOn)
		}
	}
	if len(jw.NotAvailableOn) > 0 {
		ok, err := ec.JustWatch.AvailableOn(ctx, title, year, c.Record.Kind(), jw.NotAvailableOn)
		if err != nil {
			logger.Warn().Err(err).Msg("JustWatch lookup failed, ignoring availability")
			return false, ""
		}
		if !ok {
			return true, fmt.Sprintf("not available on %v", jw.NotAvailableOn)
		}
	}
	return false, ""
}

// seerrRequest applies request based rules. In exclude mode lookup errors
// fail open; include_only and protect_until_requester_watched fail safe.
func seerrRequest(ctx context.Context, ec *Context, c Candidate, logger zerolog.Logger) (bool, string) {
	cfg := ec.Library.Exclude.Seerr
	if cfg == nil || ec.Seerr == nil {
		return false, ""
	}
	mode := cfg.ModeOrDefault()

	tmdbID := c.Record.Data().TmdbID
	if tmdbID == 0 {
		logger.Debug().Msg("No TMDB id, cannot check requests")
		if mode == config.SeerrModeIncludeOnly {
			return true, "not requested"
		}
		return false, ""
	}

	req, err := ec.Seerr.Request(ctx, c.Record.Kind(), tmdbID)
	if err != nil {
		logger.Warn().Err(err).Msg("Request lookup failed")
		if mode == config.SeerrModeIncludeOnly || cfg.ProtectUntilRequesterWatched {
			return true, "request lookup failed"
		}
		return false, ""
	}

	requested, why := matchesRequest(cfg, req, ec)
	switch {
	case mode == config.SeerrModeExclude && requested:
		return true, "requested"
	case mode == config.SeerrModeIncludeOnly && !requested:
		return true, "not requested: " + why
	}

	if cfg.ProtectUntilRequesterWatched && req != nil && req.Status != seerr.StatusDeclined {
		activity, _ := ec.Activity(c.Item)
		if !media.IntersectsFold(req.RequestedBy.Names(), activity.Users) {
			return true, "requester has not watched it yet"
		}
	}
	return false, ""
}

// matchesRequest applies include_pending, users, request_status and
// min_request_age_days to the latest request.
func matchesRequest(cfg *config.SeerrExclusion, req *seerr.Request, ec *Context) (bool, string) {
	if req == nil {
		return false, "no request"
	}
	if !cfg.PendingIncluded() && req.Status == seerr.StatusPending {
		return false, "request is pending"
	}
	if !req.RequestedByAny(cfg.Users) {
		return false, "requested by another user"
	}
	if len(cfg.RequestStatus) > 0 {
		allowed := false
		for _, name := range cfg.RequestStatus {
			if s, ok := seerr.ParseStatus(name); ok && s == req.Status {
				allowed = true
				break
			}
		}
		if !allowed {
			return false, fmt.Sprintf("request status %s is not selected", req.Status)
		}
	}
	if cfg.MinRequestAgeDays > 0 && !req.CreatedAt.IsZero() {
		if days := daysSince(ec.Now, req.CreatedAt); days < cfg.MinRequestAgeDays {
			return false, fmt.Sprintf("request is only %d days old", days)
		}
	}
	return true, ""
}
