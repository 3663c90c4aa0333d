package service

import (
	"context"
	"strings"
	"time"

	"rpctail/internal/logger"
	"rpctail/internal/models"
	"rpctail/internal/repository"
)

type CatalogService struct {
	client CatalogClient
	repo   repository.NetworkRepo
	log    *logger.Logger
	now    func() time.Time
}

// NewCatalogService returns a catalog source. repo may be nil.
func NewCatalogService(client CatalogClient, repo repository.NetworkRepo, log *logger.Logger) *CatalogService {
	return &CatalogService{client: client, repo: repo, log: log, now: time.Now}
}

// Fetch pulls the catalog, drops entries without a slug and repeated slugs,
// and stores the result as the last good value.
func (s *CatalogService) Fetch(ctx context.Context) ([]models.Network, error) {
	raw, err := s.client.Networks(ctx)
	if err != nil {
		return nil, err
	}
	nets := normalizeNetworks(raw)
	if s.repo != nil {
		if err := s.repo.ReplaceAll(ctx, nets, s.now().UTC()); err != nil && s.log != nil {
			s.log.Warnw("networks_cache_save_failed", "err", err)
		}
	}
	return nets, nil
}

// Cached returns the last stored catalog. An empty store is not found.
func (s *CatalogService) Cached(ctx context.Context) ([]models.Network, time.Time, bool, error) {
	if s.repo == nil {
		return nil, time.Time{}, false, nil
	}
	nets, at, err := s.repo.List(ctx)
	if err != nil {
		return nil, time.Time{}, false, err
	}
	return nets, at, len(nets) > 0, nil
}

// normalizeNetworks keeps server order.
func normalizeNetworks(in []models.Network) []models.Network {
	out := make([]models.Network, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, n := range in {
		n.Slug = strings.TrimSpace(n.Slug)
		if n.Slug == "" {
			continue
		}
		if _, dup := seen[n.Slug]; dup {
			continue
		}
		seen[n.Slug] = struct{}{}
		if strings.TrimSpace(n.Name) == "" {
			n.Name = n.Slug
		}
		out = append(out, n)
	}
	return out
}
