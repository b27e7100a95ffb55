package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"orbitwatch/internal/domain"
	"orbitwatch/internal/storage"
)

// BaselineStore implements storage.BaselineStore using PostgreSQL.
type BaselineStore struct {
	pool *Pool
}

// NewBaselineStore creates a new BaselineStore.
func NewBaselineStore(pool *Pool) *BaselineStore {
	return &BaselineStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BaselineStore = (*BaselineStore)(nil)

// Insert adds a new baseline row. Rows are never updated; readers resolve
// the latest by computed_at.
func (s *BaselineStore) Insert(ctx context.Context, b *domain.Baseline) error {
	if b == nil || b.ObjectID <= 0 || !b.MetricType.IsValid() || !b.Source.IsValid() || b.SampleCount < 0 {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO baselines (
			object_id, metric_type, source,
			mean, stddev, median, p95, sample_count,
			window_start, window_end, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.pool.Exec(ctx, query,
		b.ObjectID,
		string(b.MetricType),
		string(b.Source),
		b.Mean,
		b.Stddev,
		b.Median,
		b.P95,
		b.SampleCount,
		b.WindowStart,
		b.WindowEnd,
		b.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("insert baseline: %w", err)
	}
	return nil
}

// Latest retrieves the most recently computed baseline for one
// (object, metric, source) stream. Returns ErrNotFound if none exists.
func (s *BaselineStore) Latest(ctx context.Context, objectID int, metric domain.MetricType, source domain.Source) (*domain.Baseline, error) {
	if !metric.IsValid() || !source.IsValid() {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT id, object_id, metric_type, source,
		       mean, stddev, median, p95, sample_count,
		       window_start, window_end, computed_at
		FROM baselines
		WHERE object_id = $1 AND metric_type = $2 AND source = $3
		ORDER BY computed_at DESC, id DESC
		LIMIT 1
	`

	row := s.pool.QueryRow(ctx, query, objectID, string(metric), string(source))
	b, err := scanBaseline(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest baseline: %w", err)
	}
	return b, nil
}

// History retrieves up to limit baseline rows for a stream, newest first.
func (s *BaselineStore) History(ctx context.Context, objectID int, metric domain.MetricType, source domain.Source, limit int) ([]*domain.Baseline, error) {
	if !metric.IsValid() || !source.IsValid() {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT id, object_id, metric_type, source,
		       mean, stddev, median, p95, sample_count,
		       window_start, window_end, computed_at
		FROM baselines
		WHERE object_id = $1 AND metric_type = $2 AND source = $3
		ORDER BY computed_at DESC, id DESC
	`
	args := []any{objectID, string(metric), string(source)}
	if limit > 0 {
		query += ` LIMIT $4`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get baseline history: %w", err)
	}
	defer rows.Close()

	return scanBaselines(rows)
}

// scanBaseline scans a single row into a Baseline.
func scanBaseline(row pgx.Row) (*domain.Baseline, error) {
	var b domain.Baseline
	var metricStr, sourceStr string

	err := row.Scan(
		&b.ID,
		&b.ObjectID,
		&metricStr,
		&sourceStr,
		&b.Mean,
		&b.Stddev,
		&b.Median,
		&b.P95,
		&b.SampleCount,
		&b.WindowStart,
		&b.WindowEnd,
		&b.ComputedAt,
	)
	if err != nil {
		return nil, err
	}

	b.MetricType = domain.MetricType(metricStr)
	b.Source = domain.Source(sourceStr)
	return &b, nil
}

// scanBaselines scans multiple rows into a slice of Baseline.
func scanBaselines(rows pgx.Rows) ([]*domain.Baseline, error) {
	var baselines []*domain.Baseline

	for rows.Next() {
		var b domain.Baseline
		var metricStr, sourceStr string

		err := rows.Scan(
			&b.ID,
			&b.ObjectID,
			&metricStr,
			&sourceStr,
			&b.Mean,
			&b.Stddev,
			&b.Median,
			&b.P95,
			&b.SampleCount,
			&b.WindowStart,
			&b.WindowEnd,
			&b.ComputedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan baseline row: %w", err)
		}

		b.MetricType = domain.MetricType(metricStr)
		b.Source = domain.Source(sourceStr)
		baselines = append(baselines, &b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate baseline rows: %w", err)
	}

	return baselines, nil
}
