package service

import (
	"context"
	"time"

	"rpctail/internal/logger"
	"rpctail/internal/models"
	"rpctail/internal/repository"
)

// StatsClient pulls aggregate stats from the gateway.
type StatsClient interface {
	Stats(ctx context.Context) (models.AggregateStats, error)
}

// CatalogClient pulls the network catalog from the gateway.
type CatalogClient interface {
	Networks(ctx context.Context) ([]models.Network, error)
}

// Client is the full collaborator surface.
type Client interface {
	StatsClient
	CatalogClient
}

// Stats exposes fresh and last-known-good aggregate stats.
type Stats interface {
	Fetch(ctx context.Context) (models.AggregateStats, error)
	Cached(ctx context.Context) (models.AggregateStats, time.Time, bool, error)
}

// Catalog exposes fresh and last-known-good network catalogs.
type Catalog interface {
	Fetch(ctx context.Context) ([]models.Network, error)
	Cached(ctx context.Context) ([]models.Network, time.Time, bool, error)
}

// Service aggregates the collaborator-backed sources used by the engine.
type Service struct {
	Stats   Stats
	Catalog Catalog
}

// NewService wires the REST client and the optional cache. A nil repos
// disables caching.
func NewService(client Client, repos *repository.Repository, log *logger.Logger) *Service {
	var (
		statsRepo   repository.StatsRepo
		networkRepo repository.NetworkRepo
	)
	if repos != nil {
		statsRepo = repos.Stats
		networkRepo = repos.Networks
	}
	return &Service{
		Stats:   NewStatsService(client, statsRepo, log),
		Catalog: NewCatalogService(client, networkRepo, log),
	}
}
