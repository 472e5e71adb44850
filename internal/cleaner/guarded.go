package cleaner

import (
	"context"

	"github.com/deleterr/deleterr/internal/lists"
	"github.com/deleterr/deleterr/internal/media"
	"github.com/deleterr/deleterr/internal/resilience"
	"github.com/deleterr/deleterr/internal/rules"
	"github.com/deleterr/deleterr/internal/seerr"
)

// Optional integrations run behind a breaker so a dead service is skipped
// for the rest of the run. Callers decide whether an error protects.

type guardedAvailability struct {
	src     rules.Availability
	breaker *resilience.Breaker
}

func (g guardedAvailability) AvailableOn(ctx context.Context, title string, year int, kind media.Kind, providers []string) (bool, error) {
	return resilience.Call(g.breaker, func() (bool, error) {
		return g.src.AvailableOn(ctx, title, year, kind, providers)
	})
}

type guardedRequests struct {
	src     RequestTracker
	breaker *resilience.Breaker
}

func (g guardedRequests) Request(ctx context.Context, kind media.Kind, tmdbID int64) (*seerr.Request, error) {
	return resilience.Call(g.breaker, func() (*seerr.Request, error) {
		return g.src.Request(ctx, kind, tmdbID)
	})
}

func (g guardedRequests) MarkDeleted(ctx context.Context, kind media.Kind, tmdbID int64) (bool, error) {
	return resilience.Call(g.breaker, func() (bool, error) {
		return g.src.MarkDeleted(ctx, kind, tmdbID)
	})
}

type guardedList struct {
	src     ListSource
	breaker *resilience.Breaker
}

func (g guardedList) Items(ctx context.Context, kind media.Kind, urls []string, maxItems int) (lists.Set, error) {
	return resilience.Call(g.breaker, func() (lists.Set, error) {
		return g.src.Items(ctx, kind, urls, maxItems)
	})
}
