package tail

import (
	"context"
	"time"

	"rpctail/internal/models"
)

// StatsSource pulls aggregate stats.
type StatsSource interface {
	Fetch(ctx context.Context) (models.AggregateStats, error)
}

// CatalogSource pulls the network catalog.
type CatalogSource interface {
	Fetch(ctx context.Context) ([]models.Network, error)
}

// Sources may also implement a Cached method returning the last good value;
// the engine seeds the view with it before the first pull completes.
type statsCache interface {
	Cached(ctx context.Context) (models.AggregateStats, time.Time, bool, error)
}

type catalogCache interface {
	Cached(ctx context.Context) ([]models.Network, time.Time, bool, error)
}
