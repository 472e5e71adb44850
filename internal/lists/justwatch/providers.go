package justwatch

import (
	"context"
	"sort"

	"github.com/deleterr/deleterr/internal/media"
)

// Sample is a well known title used to discover provider names.
type Sample struct {
	Title string
	Year  int
}

// ProviderSamples spans enough services to list most providers in a country.
var ProviderSamples = []Sample{
	{"Loki", 2021},
	{"Stranger Things", 2016},
	{"Reacher", 2022},
	{"Logan", 2017},
	{"Severance", 2022},
	{"Cobra Kai", 2018},
	{"Bo Burnham: What", 2013},
	{"Interstellar", 2014},
	{"Eraserhead", 1977},
	{"Life on Earth", 1979},
	{"24", 2001},
	{"Current Sea", 2020},
}

// Providers returns the sorted technical names of every provider offering
// one of the samples. These are the values available_on and
// not_available_on accept. Titles without an exact match are skipped.
func (c *Client) Providers(ctx context.Context, samples []Sample) ([]string, error) {
	seen := make(map[string]struct{})
	for _, s := range samples {
		found, err := c.Find(ctx, s.Title, s.Year, media.KindShow)
		if err != nil {
			return nil, err
		}
		if found == nil {
			c.logger.Debug().Str("title", s.Title).Int("year", s.Year).Msg("Sample title not found")
			continue
		}
		for _, o := range found.Offers {
			if o.Provider != "" {
				seen[o.Provider] = struct{}{}
			}
		}
	}

	providers := make([]string, 0, len(seen))
	for p := range seen {
		providers = append(providers, p)
	}
	sort.Strings(providers)
	return providers, nil
}
