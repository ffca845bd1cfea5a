package services

import (
	"context"
	"time"

	"github.com/ewilliams-labs/emotune/internal/core/domain"
	"github.com/ewilliams-labs/emotune/internal/core/ports"
	"github.com/ewilliams-labs/emotune/internal/logging"
)

// PopularityRefresher periodically merges stored popularity into the
// catalog so increments made by other processes become visible. It runs as
// a supervised service.
type PopularityRefresher struct {
	catalog  *domain.Catalog
	store    ports.TrackRepository
	interval time.Duration
}

func NewPopularityRefresher(catalog *domain.Catalog, store ports.TrackRepository, interval time.Duration) *PopularityRefresher {
	return &PopularityRefresher{catalog: catalog, store: store, interval: interval}
}

// Serve ticks until ctx is done. A zero interval disables refreshing.
func (r *PopularityRefresher) Serve(ctx context.Context) error {
	if r.interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.RefreshOnce(ctx)
		}
	}
}

// RefreshOnce performs a single merge and returns how many tracks changed.
func (r *PopularityRefresher) RefreshOnce(ctx context.Context) int {
	scores, err := r.store.PopularityScores(ctx)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("popularity refresh failed")
		return 0
	}
	changed := r.catalog.MergePopularity(scores)
	if changed > 0 {
		logging.Ctx(ctx).Debug().Int("changed", changed).Msg("popularity refreshed")
	}
	return changed
}

func (r *PopularityRefresher) String() string { return "popularity-refresher" }
