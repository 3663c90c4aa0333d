package repository_test

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"rpctail/internal/models"
	"rpctail/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestStatsSQLite_Save_ConvertsToUTC(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	repo := repository.NewStatsSQLite(db)

	locTokyo, _ := time.LoadLocation("Asia/Tokyo")
	fetched := time.Date(2025, 3, 1, 9, 0, 0, 0, locTokyo)
	stats := models.AggregateStats{TotalRequests: 1500, ErrorCount: 12, AvgLatency: 73.5}

	isExactUTC := sqlmockArgumentFunc(func(v driver.Value) bool {
		tm, ok := v.(time.Time)
		return ok && tm.Equal(fetched) && tm.Location() == time.UTC
	})

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO stats_snapshot")).
		WithArgs(1, stats.TotalRequests, stats.ErrorCount, stats.AvgLatency, isExactUTC).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Save(context.Background(), stats, fetched); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStatsSQLite_Save_ZeroTimeUsesNow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	repo := repository.NewStatsSQLite(db)

	isUTCRecent := sqlmockArgumentFunc(func(v driver.Value) bool {
		tm, ok := v.(time.Time)
		if !ok || tm.Location() != time.UTC {
			return false
		}
		now := time.Now().UTC()
		return !tm.Before(now.Add(-5*time.Second)) && !tm.After(now.Add(5*time.Second))
	})

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO stats_snapshot")).
		WithArgs(1, int64(0), int64(0), float64(0), isUTCRecent).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Save(context.Background(), models.AggregateStats{}, time.Time{}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStatsSQLite_Save_ExecErrorIsPropagated(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO stats_snapshot")).
		WillReturnError(errors.New("disk full"))

	repo := repository.NewStatsSQLite(db)
	if err := repo.Save(context.Background(), models.AggregateStats{}, time.Now()); err == nil {
		t.Fatal("Save() expected error, got nil")
	}
}

func TestStatsSQLite_Load_NoRowsIsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT total_requests, error_count, avg_latency, fetched_at")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"total_requests", "error_count", "avg_latency", "fetched_at"}))

	repo := repository.NewStatsSQLite(db)
	_, _, found, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if found {
		t.Fatal("Load() found = true on empty table")
	}
}

func TestStatsSQLite_Load_ReturnsRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT total_requests, error_count, avg_latency, fetched_at")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"total_requests", "error_count", "avg_latency", "fetched_at"}).
			AddRow(int64(10), int64(2), 55.5, at))

	repo := repository.NewStatsSQLite(db)
	s, gotAt, found, err := repo.Load(context.Background())
	if err != nil || !found {
		t.Fatalf("Load() = found %v, err %v", found, err)
	}
	want := models.AggregateStats{TotalRequests: 10, ErrorCount: 2, AvgLatency: 55.5}
	if s != want || !gotAt.Equal(at) {
		t.Fatalf("Load() = %+v at %v, want %+v at %v", s, gotAt, want, at)
	}
}

func TestStatsSQLite_Load_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT total_requests")).
		WillReturnError(errors.New("locked"))

	repo := repository.NewStatsSQLite(db)
	if _, _, _, err := repo.Load(context.Background()); err == nil {
		t.Fatal("Load() expected error")
	}
}

// sqlmockArgumentFunc adapts a predicate to sqlmock.Argument.
type sqlmockArgumentFunc func(v driver.Value) bool

func (f sqlmockArgumentFunc) Match(v driver.Value) bool { return f(v) }
