package arr

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/deleterr/deleterr/internal/media"
)

// ListMedia returns every movie (Radarr) or series (Sonarr) of the instance.
func (c *Client) ListMedia(ctx context.Context) ([]media.Record, error) {
	switch c.kind {
	case KindRadarr:
		var movies []movieResource
		if err := c.get(ctx, "/api/v3/movie", &movies); err != nil {
			return nil, fmt.Errorf("failed to list movies: %w", err)
		}
		records := make([]media.Record, len(movies))
		for i, m := range movies {
			records[i] = m.toRecord()
		}
		return records, nil
	case KindSonarr:
		var series []seriesResource
		if err := c.get(ctx, "/api/v3/series", &series); err != nil {
			return nil, fmt.Errorf("failed to list series: %w", err)
		}
		records := make([]media.Record, len(series))
		for i, s := range series {
			records[i] = s.toRecord()
		}
		return records, nil
	default:
		return nil, ErrUnsupported
	}
}

// DeleteMovie removes a movie, optionally with its files and an import list exclusion.
func (c *Client) DeleteMovie(ctx context.Context, id int64, deleteFiles, addExclusion bool) error {
	if c.kind != KindRadarr {
		return ErrUnsupported
	}
	q := url.Values{}
	q.Set("deleteFiles", strconv.FormatBool(deleteFiles))
	q.Set("addImportExclusion", strconv.FormatBool(addExclusion))

	if err := c.send(ctx, http.MethodDelete, fmt.Sprintf("/api/v3/movie/%d?%s", id, q.Encode()), nil); err != nil {
		return fmt.Errorf("failed to delete movie %d: %w", id, err)
	}
	return nil
}

// Episodes returns the episodes of a series.
func (c *Client) Episodes(ctx context.Context, seriesID int64) ([]media.Episode, error) {
	if c.kind != KindSonarr {
		return nil, ErrUnsupported
	}
	var resp []episodeResource
	if err := c.get(ctx, fmt.Sprintf("/api/v3/episode?seriesId=%d", seriesID), &resp); err != nil {
		return nil, fmt.Errorf("failed to get episodes for series %d: %w", seriesID, err)
	}

	episodes := make([]media.Episode, len(resp))
	for i, e := range resp {
		episodes[i] = media.Episode{
			ID:            e.ID,
			SeasonNumber:  e.SeasonNumber,
			EpisodeNumber: e.EpisodeNumber,
			EpisodeFileID: e.EpisodeFileID,
			HasFile:       e.HasFile,
			Monitored:     e.Monitored,
		}
	}
	return episodes, nil
}

// SetEpisodesMonitored changes the monitored flag of the given episodes.
func (c *Client) SetEpisodesMonitored(ctx context.Context, ids []int64, monitored bool) error {
	if c.kind != KindSonarr {
		return ErrUnsupported
	}
	if len(ids) == 0 {
		return nil
	}
	body := struct {
		EpisodeIDs []int64 `json:"episodeIds"`
		Monitored  bool    `json:"monitored"`
	}{EpisodeIDs: ids, Monitored: monitored}

	if err := c.send(ctx, http.MethodPut, "/api/v3/episode/monitor", body); err != nil {
		return fmt.Errorf("failed to update episode monitoring: %w", err)
	}
	return nil
}

// DeleteEpisodeFile removes one episode file from disk.
func (c *Client) DeleteEpisodeFile(ctx context.Context, id int64) error {
	if c.kind != KindSonarr {
		return ErrUnsupported
	}
	if err := c.send(ctx, http.MethodDelete, fmt.Sprintf("/api/v3/episodefile/%d", id), nil); err != nil {
		return fmt.Errorf("failed to delete episode file %d: %w", id, err)
	}
	return nil
}

// DeleteSeries removes a series, optionally with its files.
func (c *Client) DeleteSeries(ctx context.Context, id int64, deleteFiles bool) error {
	if c.kind != KindSonarr {
		return ErrUnsupported
	}
	q := url.Values{}
	q.Set("deleteFiles", strconv.FormatBool(deleteFiles))

	if err := c.send(ctx, http.MethodDelete, fmt.Sprintf("/api/v3/series/%d?%s", id, q.Encode()), nil); err != nil {
		return fmt.Errorf("failed to delete series %d: %w", id, err)
	}
	return nil
}
