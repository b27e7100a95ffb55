package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"orbitwatch/internal/domain"
	"orbitwatch/internal/storage"
)

// DivergenceStore implements storage.DivergenceStore using PostgreSQL.
type DivergenceStore struct {
	pool *Pool
}

// NewDivergenceStore creates a new DivergenceStore.
func NewDivergenceStore(pool *Pool) *DivergenceStore {
	return &DivergenceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DivergenceStore = (*DivergenceStore)(nil)

// Upsert inserts or replaces the verdict row for (object_id, metric).
func (s *DivergenceStore) Upsert(ctx context.Context, rec *domain.DivergenceRecord) error {
	if rec == nil || rec.ObjectID <= 0 || !rec.MetricType.IsValid() || !rec.Verdict.IsValid() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO divergence_records (
			object_id, metric_type,
			spacetrack_value, spacetrack_epoch,
			leolabs_value, leolabs_epoch,
			delta, relative_delta_pct, epoch_gap_seconds,
			verdict, evaluated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (object_id, metric_type) DO UPDATE
		SET spacetrack_value   = EXCLUDED.spacetrack_value,
		    spacetrack_epoch   = EXCLUDED.spacetrack_epoch,
		    leolabs_value      = EXCLUDED.leolabs_value,
		    leolabs_epoch      = EXCLUDED.leolabs_epoch,
		    delta              = EXCLUDED.delta,
		    relative_delta_pct = EXCLUDED.relative_delta_pct,
		    epoch_gap_seconds  = EXCLUDED.epoch_gap_seconds,
		    verdict            = EXCLUDED.verdict,
		    evaluated_at       = EXCLUDED.evaluated_at
	`

	_, err := s.pool.Exec(ctx, query,
		rec.ObjectID,
		string(rec.MetricType),
		rec.SpaceTrack.Value,
		rec.SpaceTrack.Epoch,
		rec.LeoLabs.Value,
		rec.LeoLabs.Epoch,
		rec.Delta,
		rec.RelativeDeltaPct,
		int64(rec.EpochGap/time.Second),
		string(rec.Verdict),
		rec.EvaluatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert divergence record: %w", err)
	}
	return nil
}

// Get retrieves the verdict for one (object, metric) pair. Returns
// ErrNotFound if the pair was never evaluated.
func (s *DivergenceStore) Get(ctx context.Context, objectID int, metric domain.MetricType) (*domain.DivergenceRecord, error) {
	if !metric.IsValid() {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT id, object_id, metric_type,
		       spacetrack_value, spacetrack_epoch,
		       leolabs_value, leolabs_epoch,
		       delta, relative_delta_pct, epoch_gap_seconds,
		       verdict, evaluated_at
		FROM divergence_records
		WHERE object_id = $1 AND metric_type = $2
	`

	row := s.pool.QueryRow(ctx, query, objectID, string(metric))
	rec, err := scanDivergenceRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get divergence record: %w", err)
	}
	return rec, nil
}

// ListForObject retrieves all verdict rows for an object.
func (s *DivergenceStore) ListForObject(ctx context.Context, objectID int) ([]*domain.DivergenceRecord, error) {
	query := `
		SELECT id, object_id, metric_type,
		       spacetrack_value, spacetrack_epoch,
		       leolabs_value, leolabs_epoch,
		       delta, relative_delta_pct, epoch_gap_seconds,
		       verdict, evaluated_at
		FROM divergence_records
		WHERE object_id = $1
		ORDER BY metric_type ASC
	`

	rows, err := s.pool.Query(ctx, query, objectID)
	if err != nil {
		return nil, fmt.Errorf("list divergence records: %w", err)
	}
	defer rows.Close()

	var recs []*domain.DivergenceRecord
	for rows.Next() {
		rec, err := scanDivergenceRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan divergence record row: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate divergence record rows: %w", err)
	}
	return recs, nil
}

// scanDivergenceRecord scans one row into a DivergenceRecord.
func scanDivergenceRecord(row pgx.Row) (*domain.DivergenceRecord, error) {
	var rec domain.DivergenceRecord
	var metricStr, verdictStr string
	var gapSeconds int64

	err := row.Scan(
		&rec.ID,
		&rec.ObjectID,
		&metricStr,
		&rec.SpaceTrack.Value,
		&rec.SpaceTrack.Epoch,
		&rec.LeoLabs.Value,
		&rec.LeoLabs.Epoch,
		&rec.Delta,
		&rec.RelativeDeltaPct,
		&gapSeconds,
		&verdictStr,
		&rec.EvaluatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.MetricType = domain.MetricType(metricStr)
	rec.Verdict = domain.DivergenceVerdict(verdictStr)
	rec.EpochGap = time.Duration(gapSeconds) * time.Second
	return &rec, nil
}
