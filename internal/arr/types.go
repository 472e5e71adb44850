package arr

import (
	"time"

	"github.com/deleterr/deleterr/internal/media"
)

type alternateTitle struct {
	Title string `json:"title"`
}

type ratingValue struct {
	Value float64 `json:"value"`
}

type movieResource struct {
	ID               int64            `json:"id"`
	Title            string           `json:"title"`
	SortTitle        string           `json:"sortTitle"`
	OriginalTitle    string           `json:"originalTitle"`
	AlternateTitles  []alternateTitle `json:"alternateTitles"`
	Year             int              `json:"year"`
	TmdbID           int64            `json:"tmdbId"`
	ImdbID           string           `json:"imdbId"`
	SizeOnDisk       int64            `json:"sizeOnDisk"`
	Tags             []int64          `json:"tags"`
	QualityProfileID int64            `json:"qualityProfileId"`
	Monitored        bool             `json:"monitored"`
	Path             string           `json:"path"`
	Added            time.Time        `json:"added"`
	Runtime          int              `json:"runtime"`
	HasFile          bool             `json:"hasFile"`
	Ratings          struct {
		Imdb *ratingValue `json:"imdb"`
		Tmdb *ratingValue `json:"tmdb"`
	} `json:"ratings"`
	Statistics *struct {
		SizeOnDisk int64 `json:"sizeOnDisk"`
	} `json:"statistics"`
}

func (m movieResource) toRecord() *media.Movie {
	size := m.SizeOnDisk
	if size == 0 && m.Statistics != nil {
		size = m.Statistics.SizeOnDisk
	}
	var rating float64
	switch {
	case m.Ratings.Imdb != nil && m.Ratings.Imdb.Value > 0:
		rating = m.Ratings.Imdb.Value
	case m.Ratings.Tmdb != nil:
		rating = m.Ratings.Tmdb.Value
	}

	return &media.Movie{
		Common: media.Common{
			ID:               m.ID,
			Title:            m.Title,
			SortTitle:        m.SortTitle,
			OriginalTitle:    m.OriginalTitle,
			AlternateTitles:  titles(m.AlternateTitles),
			Year:             m.Year,
			TmdbID:           m.TmdbID,
			ImdbID:           m.ImdbID,
			SizeOnDisk:       size,
			Tags:             m.Tags,
			QualityProfileID: m.QualityProfileID,
			Monitored:        m.Monitored,
			Path:             m.Path,
			Added:            m.Added,
			Runtime:          m.Runtime,
			Rating:           rating,
		},
		HasFile: m.HasFile,
	}
}

type seriesResource struct {
	ID               int64            `json:"id"`
	Title            string           `json:"title"`
	SortTitle        string           `json:"sortTitle"`
	AlternateTitles  []alternateTitle `json:"alternateTitles"`
	Year             int              `json:"year"`
	TvdbID           int64            `json:"tvdbId"`
	TmdbID           int64            `json:"tmdbId"`
	ImdbID           string           `json:"imdbId"`
	Tags             []int64          `json:"tags"`
	QualityProfileID int64            `json:"qualityProfileId"`
	Monitored        bool             `json:"monitored"`
	Path             string           `json:"path"`
	Added            time.Time        `json:"added"`
	Runtime          int              `json:"runtime"`
	SeriesType       string           `json:"seriesType"`
	Status           string           `json:"status"`
	Ratings          ratingValue      `json:"ratings"`
	Statistics       struct {
		SizeOnDisk        int64 `json:"sizeOnDisk"`
		EpisodeFileCount  int   `json:"episodeFileCount"`
		SeasonCount       int   `json:"seasonCount"`
		TotalEpisodeCount int   `json:"totalEpisodeCount"`
	} `json:"statistics"`
}

func (s seriesResource) toRecord() *media.Show {
	return &media.Show{
		Common: media.Common{
			ID:               s.ID,
			Title:            s.Title,
			SortTitle:        s.SortTitle,
			AlternateTitles:  titles(s.AlternateTitles),
			Year:             s.Year,
			TmdbID:           s.TmdbID,
			TvdbID:           s.TvdbID,
			ImdbID:           s.ImdbID,
			SizeOnDisk:       s.Statistics.SizeOnDisk,
			Tags:             s.Tags,
			QualityProfileID: s.QualityProfileID,
			Monitored:        s.Monitored,
			Path:             s.Path,
			Added:            s.Added,
			Runtime:          s.Runtime,
			Rating:           s.Ratings.Value,
		},
		EpisodeFileCount:  s.Statistics.EpisodeFileCount,
		SeasonCount:       s.Statistics.SeasonCount,
		TotalEpisodeCount: s.Statistics.TotalEpisodeCount,
		SeriesType:        s.SeriesType,
		Status:            s.Status,
	}
}

type episodeResource struct {
	ID            int64 `json:"id"`
	SeasonNumber  int   `json:"seasonNumber"`
	EpisodeNumber int   `json:"episodeNumber"`
	EpisodeFileID int64 `json:"episodeFileId"`
	HasFile       bool  `json:"hasFile"`
	Monitored     bool  `json:"monitored"`
}

func titles(alts []alternateTitle) []string {
	if len(alts) == 0 {
		return nil
	}
	out := make([]string, 0, len(alts))
	for _, a := range alts {
		if a.Title != "" {
			out = append(out, a.Title)
		}
	}
	return out
}
