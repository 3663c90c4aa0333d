package repository

import (
	"context"
	"database/sql"
	"time"

	"rpctail/internal/models"
)

// StatsRepo keeps the last good aggregate stats.
type StatsRepo interface {
	Save(ctx context.Context, s models.AggregateStats, fetchedAt time.Time) error
	// Load reports found=false when nothing has been saved yet.
	Load(ctx context.Context) (s models.AggregateStats, fetchedAt time.Time, found bool, err error)
}

// NetworkRepo keeps the last good network catalog in server order.
type NetworkRepo interface {
	ReplaceAll(ctx context.Context, networks []models.Network, fetchedAt time.Time) error
	List(ctx context.Context) ([]models.Network, time.Time, error)
}

type Repository struct {
	Stats    StatsRepo
	Networks NetworkRepo
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Stats:    NewStatsSQLite(db),
		Networks: NewNetworkSQLite(db),
	}
}
