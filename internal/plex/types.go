package plex

import (
	"time"

	"github.com/deleterr/deleterr/internal/media"
)

type containerResponse struct {
	MediaContainer mediaContainer `json:"MediaContainer"`
}

type mediaContainer struct {
	Size              int         `json:"size"`
	TotalSize         int         `json:"totalSize"`
	MachineIdentifier string      `json:"machineIdentifier"`
	Directory         []directory `json:"Directory"`
	Metadata          []metadata  `json:"Metadata"`
	Hub               []hub       `json:"Hub"`
}

type hub struct {
	Identifier           string `json:"identifier"`
	PromotedToOwnHome    bool   `json:"promotedToOwnHome"`
	PromotedToSharedHome bool   `json:"promotedToSharedHome"`
}

type directory struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

type tag struct {
	Tag string `json:"tag"`
}

type guid struct {
	ID string `json:"id"`
}

type metadata struct {
	RatingKey  string `json:"ratingKey"`
	Title      string `json:"title"`
	Type       string `json:"type"`
	Year       int    `json:"year"`
	GUID       string `json:"guid"`
	AddedAt    int64  `json:"addedAt"`
	Studio     string `json:"studio"`
	Guids      []guid `json:"Guid"`
	Genre      []tag  `json:"Genre"`
	Collection []tag  `json:"Collection"`
	Label      []tag  `json:"Label"`
	Role       []tag  `json:"Role"`
	Producer   []tag  `json:"Producer"`
	Director   []tag  `json:"Director"`
	Writer     []tag  `json:"Writer"`
	Media      []struct {
		Part []struct {
			File string `json:"file"`
		} `json:"Part"`
	} `json:"Media"`
}

func (m metadata) toItem() *media.LibraryItem {
	item := &media.LibraryItem{
		RatingKey:   m.RatingKey,
		Title:       m.Title,
		Year:        m.Year,
		GUID:        m.GUID,
		Collections: tags(m.Collection),
		Genres:      tags(m.Genre),
		Labels:      tags(m.Label),
		Actors:      tags(m.Role),
		Producers:   tags(m.Producer),
		Directors:   tags(m.Director),
		Writers:     tags(m.Writer),
		Studio:      m.Studio,
	}
	if m.AddedAt > 0 {
		item.AddedAt = time.Unix(m.AddedAt, 0).UTC()
	}
	for _, g := range m.Guids {
		item.GUIDs = append(item.GUIDs, g.ID)
	}
	for _, md := range m.Media {
		for _, p := range md.Part {
			if p.File != "" {
				item.Files = append(item.Files, p.File)
			}
		}
	}
	return item
}

func tags(ts []tag) []string {
	if len(ts) == 0 {
		return nil
	}
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.Tag)
	}
	return out
}

// typeCode maps a library type to the metadata type number Plex expects in edits.
func typeCode(libraryType string) string {
	if libraryType == "show" {
		return "2"
	}
	return "1"
}
