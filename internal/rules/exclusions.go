package rules

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/deleterr/deleterr/internal/config"
	"github.com/deleterr/deleterr/internal/media"
)

// arrFields applies the radarr or sonarr exclusion block. Tag and quality
// profile lookups that fail protect the item.
func arrFields(ctx context.Context, ec *Context, c Candidate, logger zerolog.Logger) (bool, string) {
	var ex config.ArrExclusion
	switch rec := c.Record.(type) {
	case *media.Movie:
		ex = ec.Library.Exclude.Radarr
	case *media.Show:
		ex = ec.Library.Exclude.Sonarr
		if len(ex.Status) > 0 && media.ContainsFold(ex.Status, rec.Status) {
			return true, fmt.Sprintf("series status %q is excluded", rec.Status)
		}
	default:
		return false, ""
	}
	if ex.Empty() {
		return false, ""
	}

	data := c.Record.Data()
	if ex.Monitored != nil && *ex.Monitored == data.Monitored {
		return true, fmt.Sprintf("monitored=%t is excluded", data.Monitored)
	}

	if len(ex.QualityProfiles) > 0 {
		if ec.Arr == nil {
			return true, "quality profiles unavailable"
		}
		profiles, err := ec.Arr.QualityProfiles(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to load quality profiles, keeping item")
			return true, "quality profiles unavailable"
		}
		for _, p := range profiles {
			if p.ID == data.QualityProfileID && media.ContainsFold(ex.QualityProfiles, p.Name) {
				return true, fmt.Sprintf("quality profile %q is excluded", p.Name)
			}
		}
	}

	if len(ex.Tags) > 0 && len(data.Tags) > 0 {
		if ec.Arr == nil {
			return true, "tags unavailable"
		}
		tags, err := ec.Arr.Tags(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to load tags, keeping item")
			return true, "tags unavailable"
		}
		for _, t := range tags {
			if media.ContainsFold(ex.Tags, t.Label) && containsID(data.Tags, t.ID) {
				return true, fmt.Sprintf("tag %q is excluded", t.Label)
			}
		}
	}

	for _, p := range ex.Paths {
		if p != "" && strings.Contains(data.Path, p) {
			return true, fmt.Sprintf("path %q is excluded", p)
		}
	}
	return false, ""
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func excludedTitle(_ context.Context, ec *Context, c Candidate, _ zerolog.Logger) (bool, string) {
	for _, t := range ec.Library.Exclude.Titles {
		if strings.EqualFold(t, c.Item.Title) || strings.EqualFold(t, c.Record.Data().Title) {
			return true, fmt.Sprintf("title %q is excluded", t)
		}
	}
	return false, ""
}

func tagRule(kind string, excluded func(*config.Exclusions) []string, values func(*media.LibraryItem) []string) func(context.Context, *Context, Candidate, zerolog.Logger) (bool, string) {
	return func(_ context.Context, ec *Context, c Candidate, _ zerolog.Logger) (bool, string) {
		for _, v := range excluded(&ec.Library.Exclude) {
			if media.ContainsFold(values(c.Item), v) {
				return true, fmt.Sprintf("%s %q is excluded", kind, v)
			}
		}
		return false, ""
	}
}

var (
	excludedGenre = tagRule("genre",
		func(e *config.Exclusions) []string { return e.Genres },
		func(i *media.LibraryItem) []string { return i.Genres })
	excludedCollection = tagRule("collection",
		func(e *config.Exclusions) []string { return e.Collections },
		func(i *media.LibraryItem) []string { return i.Collections })
	excludedLabel = tagRule("label",
		func(e *config.Exclusions) []string { return e.PlexLabels },
		func(i *media.LibraryItem) []string { return i.Labels })
)

func excludedStudio(_ context.Context, ec *Context, c Candidate, _ zerolog.Logger) (bool, string) {
	if c.Item.Studio != "" && media.ContainsFold(ec.Library.Exclude.Studios, c.Item.Studio) {
		return true, fmt.Sprintf("studio %q is excluded", c.Item.Studio)
	}
	return false, ""
}

func recentRelease(_ context.Context, ec *Context, c Candidate, _ zerolog.Logger) (bool, string) {
	years := ec.Library.Exclude.ReleaseYears
	year := c.Item.Year
	if year == 0 {
		year = c.Record.Data().Year
	}
	if years > 0 && year > 0 && year >= ec.Now.Year()-years {
		return true, fmt.Sprintf("released in %d, within %d years", year, years)
	}
	return false, ""
}

// people checks a credit exclusion against the item and, for shows, the
// people credited on its episodes.
func people(kind string, excluded func(*config.Exclusions) []string, own func(*media.LibraryItem) []string, episodes func(media.Credits) []string) func(context.Context, *Context, Candidate, zerolog.Logger) (bool, string) {
	return func(ctx context.Context, ec *Context, c Candidate, logger zerolog.Logger) (bool, string) {
		names := excluded(&ec.Library.Exclude)
		if len(names) == 0 {
			return false, ""
		}
		for _, n := range names {
			if media.ContainsFold(own(c.Item), n) {
				return true, fmt.Sprintf("%s %q is excluded", kind, n)
			}
		}

		if _, isShow := c.Record.(*media.Show); !isShow || ec.Credits == nil {
			return false, ""
		}
		credits, err := ec.episodeCredits(ctx, c.Item)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to load episode credits")
			return false, ""
		}
		for _, n := range names {
			if media.ContainsFold(episodes(credits), n) {
				return true, fmt.Sprintf("%s %q is excluded", kind, n)
			}
		}
		return false, ""
	}
}

var (
	excludedProducer = people("producer",
		func(e *config.Exclusions) []string { return e.Producers },
		func(i *media.LibraryItem) []string { return i.Producers },
		func(c media.Credits) []string { return c.Producers })
	excludedDirector = people("director",
		func(e *config.Exclusions) []string { return e.Directors },
		func(i *media.LibraryItem) []string { return i.Directors },
		func(c media.Credits) []string { return c.Directors })
	excludedWriter = people("writer",
		func(e *config.Exclusions) []string { return e.Writers },
		func(i *media.LibraryItem) []string { return i.Writers },
		func(c media.Credits) []string { return c.Writers })
	excludedActor = people("actor",
		func(e *config.Exclusions) []string { return e.Actors },
		func(i *media.LibraryItem) []string { return i.Actors },
		func(c media.Credits) []string { return c.Actors })
)
