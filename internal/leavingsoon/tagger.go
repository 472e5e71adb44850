// Package leavingsoon marks the items of the next run's delete window in the
// media server so users can see what is about to go.
package leavingsoon

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/deleterr/deleterr/internal/config"
	"github.com/deleterr/deleterr/internal/media"
)

// MediaServer is the part of the media server the tagger writes to.
type MediaServer interface {
	GetOrCreateCollection(ctx context.Context, lib *media.Library, name string) (*media.Collection, error)
	SetCollectionItems(ctx context.Context, lib *media.Library, coll *media.Collection, items []*media.LibraryItem) error
	SetCollectionVisibility(ctx context.Context, lib *media.Library, coll *media.Collection, home, shared bool) error
	ItemsWithLabel(ctx context.Context, lib *media.Library, label string) ([]*media.LibraryItem, error)
	AddLabel(ctx context.Context, lib *media.Library, item *media.LibraryItem, label string) error
	RemoveLabel(ctx context.Context, lib *media.Library, item *media.LibraryItem, label string) error
}

// Result summarizes one tagging pass.
type Result struct {
	Tagged    int
	Labeled   int
	Unlabeled int
	Failures  int
}

// Tagger replaces the leaving-soon collection and label sets of a library.
type Tagger struct {
	server MediaServer
	dryRun bool
	logger zerolog.Logger
}

// NewTagger creates a tagger. In dry-run mode it only logs what it would change.
func NewTagger(server MediaServer, dryRun bool, logger zerolog.Logger) *Tagger {
	return &Tagger{
		server: server,
		dryRun: dryRun,
		logger: logger.With().Str("component", "leavingsoon").Logger(),
	}
}

// Apply makes items the exact set marked as leaving soon in lib. Failures are
// logged and counted, never returned.
func (t *Tagger) Apply(ctx context.Context, cfg *config.LeavingSoon, lib *media.Library, items []*media.LibraryItem) Result {
	items = dedupe(items)
	res := Result{Tagged: len(items)}
	logger := t.logger.With().Str("library", lib.Title).Logger()

	if name := cfg.CollectionName(); name != "" {
		t.updateCollection(ctx, lib, cfg, name, items, &res, logger)
	}
	if label := cfg.LabelName(); label != "" {
		t.updateLabels(ctx, lib, label, cfg.ClearOnRun(), items, &res, logger)
	}

	logger.Info().
		Int("items", res.Tagged).
		Int("labeled", res.Labeled).
		Int("unlabeled", res.Unlabeled).
		Int("failures", res.Failures).
		Bool("dryRun", t.dryRun).
		Msg("Updated leaving soon")
	return res
}

func (t *Tagger) updateCollection(ctx context.Context, lib *media.Library, cfg *config.LeavingSoon, name string, items []*media.LibraryItem, res *Result, logger zerolog.Logger) {
	logger = logger.With().Str("collection", name).Logger()
	if t.dryRun {
		logger.Info().Int("items", len(items)).Msg("Dry run, would replace collection")
		return
	}

	coll, err := t.server.GetOrCreateCollection(ctx, lib, name)
	if err != nil {
		res.Failures++
		logger.Error().Err(err).Msg("Failed to get leaving soon collection")
		return
	}
	if err := t.server.SetCollectionItems(ctx, lib, coll, items); err != nil {
		res.Failures++
		logger.Error().Err(err).Msg("Failed to update leaving soon collection")
		return
	}
	if len(items) == 0 {
		logger.Info().Msg("Cleared collection")
		return
	}
	if err := t.server.SetCollectionVisibility(ctx, lib, coll, cfg.PromoteHome(), cfg.PromoteShared()); err != nil {
		res.Failures++
		logger.Warn().Err(err).Msg("Failed to set leaving soon collection visibility")
	}
}

func (t *Tagger) updateLabels(ctx context.Context, lib *media.Library, label string, clearStale bool, items []*media.LibraryItem, res *Result, logger zerolog.Logger) {
	logger = logger.With().Str("label", label).Logger()
	wanted := make(map[string]bool, len(items))
	for _, item := range items {
		wanted[item.RatingKey] = true
	}

	if clearStale {
		existing, err := t.server.ItemsWithLabel(ctx, lib, label)
		if err != nil {
			res.Failures++
			logger.Error().Err(err).Msg("Failed to list labeled items")
		}
		for _, item := range existing {
			if wanted[item.RatingKey] {
				continue
			}
			if t.dryRun {
				logger.Info().Str("title", item.Title).Msg("Dry run, would remove label")
				res.Unlabeled++
				continue
			}
			if err := t.server.RemoveLabel(ctx, lib, item, label); err != nil {
				res.Failures++
				logger.Error().Err(err).Str("title", item.Title).Msg("Failed to remove label")
				continue
			}
			res.Unlabeled++
		}
	}

	for _, item := range items {
		if item.HasLabel(label) {
			continue
		}
		if t.dryRun {
			logger.Info().Str("title", item.Title).Msg("Dry run, would add label")
			res.Labeled++
			continue
		}
		if err := t.server.AddLabel(ctx, lib, item, label); err != nil {
			res.Failures++
			logger.Error().Err(err).Str("title", item.Title).Msg("Failed to add label")
			continue
		}
		res.Labeled++
	}
}

func dedupe(items []*media.LibraryItem) []*media.LibraryItem {
	seen := make(map[string]bool, len(items))
	out := make([]*media.LibraryItem, 0, len(items))
	for _, item := range items {
		if item == nil || seen[item.RatingKey] {
			continue
		}
		seen[item.RatingKey] = true
		out = append(out, item)
	}
	return out
}
