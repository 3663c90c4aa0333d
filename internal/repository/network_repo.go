package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"rpctail/internal/models"
)

type NetworkSQLite struct {
	db *sql.DB
}

func NewNetworkSQLite(db *sql.DB) *NetworkSQLite { return &NetworkSQLite{db: db} }

// ReplaceAll swaps the stored catalog for networks in one transaction,
// keeping their order.
func (r *NetworkSQLite) ReplaceAll(ctx context.Context, networks []models.Network, fetchedAt time.Time) error {
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}
	fetchedAt = fetchedAt.UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin catalog transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM networks`); err != nil {
		return fmt.Errorf("clear networks: %w", err)
	}
	for i, n := range networks {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO networks (position, slug, name, fetched_at)
			VALUES (?, ?, ?, ?)
		`, i, n.Slug, n.Name, fetchedAt); err != nil {
			return fmt.Errorf("insert network %q: %w", n.Slug, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit catalog transaction: %w", err)
	}
	return nil
}

// List returns the stored catalog ordered by position and the time it was
// fetched. An empty catalog has a zero time.
func (r *NetworkSQLite) List(ctx context.Context) ([]models.Network, time.Time, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT slug, name, fetched_at FROM networks ORDER BY position ASC`)
	if err != nil {
		return nil, time.Time{}, err
	}
	defer rows.Close()

	var (
		out       = make([]models.Network, 0, 16)
		fetchedAt time.Time
	)
	for rows.Next() {
		var (
			n  models.Network
			at time.Time
		)
		if err := rows.Scan(&n.Slug, &n.Name, &at); err != nil {
			return nil, time.Time{}, err
		}
		if fetchedAt.IsZero() {
			fetchedAt = at.UTC()
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, err
	}
	return out, fetchedAt, nil
}
