package service

import (
	"context"
	"time"

	"rpctail/internal/logger"
	"rpctail/internal/models"
	"rpctail/internal/repository"
)

type StatsService struct {
	client StatsClient
	repo   repository.StatsRepo
	log    *logger.Logger
	now    func() time.Time
}

// NewStatsService returns a stats source. repo may be nil.
func NewStatsService(client StatsClient, repo repository.StatsRepo, log *logger.Logger) *StatsService {
	return &StatsService{client: client, repo: repo, log: log, now: time.Now}
}

// Fetch pulls fresh stats and stores them as the last good value. A cache
// write failure is logged and does not fail the pull.
func (s *StatsService) Fetch(ctx context.Context) (models.AggregateStats, error) {
	st, err := s.client.Stats(ctx)
	if err != nil {
		return models.AggregateStats{}, err
	}
	if s.repo != nil {
		if err := s.repo.Save(ctx, st, s.now().UTC()); err != nil && s.log != nil {
			s.log.Warnw("stats_cache_save_failed", "err", err)
		}
	}
	return st, nil
}

// Cached returns the last stored stats, if any.
func (s *StatsService) Cached(ctx context.Context) (models.AggregateStats, time.Time, bool, error) {
	if s.repo == nil {
		return models.AggregateStats{}, time.Time{}, false, nil
	}
	return s.repo.Load(ctx)
}
