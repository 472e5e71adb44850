package cleaner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/deleterr/deleterr/internal/arr"
	"github.com/deleterr/deleterr/internal/config"
	"github.com/deleterr/deleterr/internal/decisioning"
	"github.com/deleterr/deleterr/internal/media"
	"github.com/deleterr/deleterr/internal/metrics"
)

// ErrSeriesAborted means an episode file could not be removed, so the series
// was kept for the next run.
var ErrSeriesAborted = errors.New("series deletion aborted")

func (c *Cleaner) deleteAll(ctx context.Context, lib *config.Library, inst ArrClient, cands []decisioning.Candidate, limit int, res *Result, logger zerolog.Logger) {
	dryRun := c.cfg.DryRun
	for i, cand := range cands {
		if i > 0 && !dryRun && c.cfg.ActionDelay > 0 {
			if err := c.sleep(ctx, time.Duration(c.cfg.ActionDelay)*time.Second); err != nil {
				return
			}
		}
		if ctx.Err() != nil {
			return
		}

		data := cand.Record.Data()
		l := logger.With().Str("title", data.Title).Int("year", data.Year).Logger()
		event := l.Info().
			Bool("dryRun", dryRun).
			Int("action", i+1).
			Int("max", limit).
			Str("kind", string(cand.Record.Kind())).
			Str("size", humanize.IBytes(uint64(data.SizeOnDisk)))
		if show, ok := cand.Record.(*media.Show); ok {
			event = event.Int("episodes", show.EpisodeFileCount)
		}

		if dryRun {
			event.Msg("Would delete")
			metrics.Deletions.WithLabelValues(lib.Name, "dry_run").Inc()
			res.BytesFreed += data.SizeOnDisk
			res.Deleted = append(res.Deleted, cand.Record)
			continue
		}

		event.Msg("Deleting")
		if err := c.deleteRecord(ctx, lib, inst, cand.Record, l); err != nil {
			if errors.Is(err, arr.ErrNotFound) {
				l.Debug().Err(err).Msg("Already removed from arr, skipping")
				continue
			}
			l.Error().Err(err).Msg("Deletion failed, will retry next run")
			metrics.Deletions.WithLabelValues(lib.Name, "failed").Inc()
			continue
		}
		metrics.Deletions.WithLabelValues(lib.Name, "deleted").Inc()
		metrics.BytesFreed.WithLabelValues(lib.Name).Add(float64(data.SizeOnDisk))
		res.BytesFreed += data.SizeOnDisk
		res.Deleted = append(res.Deleted, cand.Record)

		c.markRequestDeleted(ctx, lib, cand.Record, l)
	}
}

func (c *Cleaner) deleteRecord(ctx context.Context, lib *config.Library, inst ArrClient, rec media.Record, logger zerolog.Logger) error {
	switch rec := rec.(type) {
	case *media.Movie:
		return inst.DeleteMovie(ctx, rec.ID, true, lib.AddListExclusionOnDelete)
	case *media.Show:
		return DeleteSeries(ctx, inst, rec, logger)
	default:
		return fmt.Errorf("unsupported record type %T", rec)
	}
}

// DeleteSeries removes a series file by file: it unmonitors every episode,
// deletes each episode file and then the series itself. A file that is
// already gone is skipped; any other failure aborts with ErrSeriesAborted and
// leaves the series in place.
func DeleteSeries(ctx context.Context, sonarr SeriesDeleter, show *media.Show, logger zerolog.Logger) error {
	episodes, err := sonarr.Episodes(ctx, show.ID)
	if err != nil {
		return err
	}

	ids := make([]int64, len(episodes))
	for i, ep := range episodes {
		ids[i] = ep.ID
	}
	if err := sonarr.SetEpisodesMonitored(ctx, ids, false); err != nil {
		return err
	}

	for _, ep := range episodes {
		if ep.EpisodeFileID == 0 {
			continue
		}
		err := sonarr.DeleteEpisodeFile(ctx, ep.EpisodeFileID)
		if err == nil {
			continue
		}
		if errors.Is(err, arr.ErrNotFound) {
			logger.Debug().Int64("episodeFileId", ep.EpisodeFileID).Msg("Episode file already deleted")
			continue
		}
		var serverErr *arr.ServerError
		if errors.As(err, &serverErr) && serverErr.InUse() {
			logger.Error().Int64("episodeFileId", ep.EpisodeFileID).Msg("Episode file is in use, keeping series until next run")
		}
		return fmt.Errorf("%w: %w", ErrSeriesAborted, err)
	}

	return sonarr.DeleteSeries(ctx, show.ID, true)
}

// markRequestDeleted resets the request status after a deletion. Failures
// only leave the item marked available.
func (c *Cleaner) markRequestDeleted(ctx context.Context, lib *config.Library, rec media.Record, logger zerolog.Logger) {
	cfg := lib.Exclude.Seerr
	if cfg == nil || !cfg.UpdateStatus || c.seerr == nil {
		return
	}
	tmdbID := rec.Data().TmdbID
	if tmdbID == 0 {
		logger.Debug().Msg("No TMDB id, cannot update request status")
		return
	}
	ok, err := c.seerr.MarkDeleted(ctx, rec.Kind(), tmdbID)
	switch {
	case err != nil:
		logger.Warn().Err(err).Msg("Failed to update request status")
	case ok:
		logger.Info().Int64("tmdbId", tmdbID).Msg("Updated request status")
	default:
		logger.Debug().Int64("tmdbId", tmdbID).Msg("No request to update")
	}
}
