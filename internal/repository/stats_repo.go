package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"rpctail/internal/models"
)

type StatsSQLite struct {
	db *sql.DB
}

func NewStatsSQLite(db *sql.DB) *StatsSQLite {
	return &StatsSQLite{db: db}
}

const (
	statsRowID = 1

	upsertStatsSQL = `
		INSERT INTO stats_snapshot (id, total_requests, error_count, avg_latency, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			total_requests=excluded.total_requests,
			error_count=excluded.error_count,
			avg_latency=excluded.avg_latency,
			fetched_at=excluded.fetched_at
	`

	selectStatsSQL = `
		SELECT total_requests, error_count, avg_latency, fetched_at
		FROM stats_snapshot WHERE id=?
	`
)

// Save overwrites the single stats_snapshot row. A zero fetchedAt is
// replaced by the current time; times are stored in UTC.
func (r *StatsSQLite) Save(ctx context.Context, s models.AggregateStats, fetchedAt time.Time) error {
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, upsertStatsSQL,
		statsRowID,
		s.TotalRequests,
		s.ErrorCount,
		s.AvgLatency,
		fetchedAt.UTC(),
	)
	return err
}

// Load fetches the stats_snapshot row.
func (r *StatsSQLite) Load(ctx context.Context) (models.AggregateStats, time.Time, bool, error) {
	row := r.db.QueryRowContext(ctx, selectStatsSQL, statsRowID)

	var (
		s  models.AggregateStats
		at time.Time
	)
	if err := row.Scan(&s.TotalRequests, &s.ErrorCount, &s.AvgLatency, &at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.AggregateStats{}, time.Time{}, false, nil
		}
		return models.AggregateStats{}, time.Time{}, false, err
	}
	return s, at.UTC(), true, nil
}
