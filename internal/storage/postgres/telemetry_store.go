package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"orbitwatch/internal/domain"
	"orbitwatch/internal/storage"
)

// TelemetryStore implements storage.TelemetryStore using PostgreSQL.
type TelemetryStore struct {
	pool *Pool
}

// NewTelemetryStore creates a new TelemetryStore.
func NewTelemetryStore(pool *Pool) *TelemetryStore {
	return &TelemetryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TelemetryStore = (*TelemetryStore)(nil)

// Upsert adds a record if no row exists for (object_id, epoch, source).
// RETURNING distinguishes a fresh insert from a conflict no-op.
func (s *TelemetryStore) Upsert(ctx context.Context, rec *domain.TelemetryRecord) (bool, error) {
	if rec == nil || rec.ObjectID <= 0 || rec.Epoch.IsZero() || !rec.Source.IsValid() {
		return false, storage.ErrInvalidInput
	}

	query := `
		INSERT INTO telemetry_records (
			object_id, epoch, source,
			inclination_deg, raan_deg, eccentricity,
			arg_perigee_deg, mean_anomaly_deg, mean_motion_rev_day,
			bstar, line1, line2, ingested_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (object_id, epoch, source) DO NOTHING
		RETURNING id
	`

	var id int64
	err := s.pool.QueryRow(ctx, query,
		rec.ObjectID,
		rec.Epoch,
		string(rec.Source),
		rec.InclinationDeg,
		rec.RAANDeg,
		rec.Eccentricity,
		rec.ArgPerigeeDeg,
		rec.MeanAnomalyDeg,
		rec.MeanMotionRevDay,
		rec.Bstar,
		rec.Line1,
		rec.Line2,
		rec.IngestedAt,
	).Scan(&id)
	if err != nil {
		if isNotFoundError(err) {
			// Conflict arm fired: the element set is already stored.
			return false, nil
		}
		return false, fmt.Errorf("upsert telemetry record: %w", err)
	}

	rec.ID = id
	return true, nil
}

// Range retrieves one object's records from a single source with epoch in
// [from, to], ordered by epoch ASC.
func (s *TelemetryStore) Range(ctx context.Context, objectID int, source domain.Source, from, to time.Time) ([]*domain.TelemetryRecord, error) {
	if !source.IsValid() {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT id, object_id, epoch, source,
		       inclination_deg, raan_deg, eccentricity,
		       arg_perigee_deg, mean_anomaly_deg, mean_motion_rev_day,
		       bstar, line1, line2, ingested_at
		FROM telemetry_records
		WHERE object_id = $1 AND source = $2 AND epoch >= $3 AND epoch <= $4
		ORDER BY epoch ASC
	`

	rows, err := s.pool.Query(ctx, query, objectID, string(source), from, to)
	if err != nil {
		return nil, fmt.Errorf("range telemetry records: %w", err)
	}
	defer rows.Close()

	return scanTelemetryRecords(rows)
}

// Latest retrieves the most recent record by epoch for one object from a
// single source. Returns ErrNotFound if none exists.
func (s *TelemetryStore) Latest(ctx context.Context, objectID int, source domain.Source) (*domain.TelemetryRecord, error) {
	if !source.IsValid() {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT id, object_id, epoch, source,
		       inclination_deg, raan_deg, eccentricity,
		       arg_perigee_deg, mean_anomaly_deg, mean_motion_rev_day,
		       bstar, line1, line2, ingested_at
		FROM telemetry_records
		WHERE object_id = $1 AND source = $2
		ORDER BY epoch DESC
		LIMIT 1
	`

	row := s.pool.QueryRow(ctx, query, objectID, string(source))
	rec, err := scanTelemetryRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest telemetry record: %w", err)
	}
	return rec, nil
}

// ListObjectIDs retrieves the distinct objects a source has records for,
// ascending.
func (s *TelemetryStore) ListObjectIDs(ctx context.Context, source domain.Source) ([]int, error) {
	if !source.IsValid() {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT DISTINCT object_id
		FROM telemetry_records
		WHERE source = $1
		ORDER BY object_id ASC
	`

	rows, err := s.pool.Query(ctx, query, string(source))
	if err != nil {
		return nil, fmt.Errorf("list telemetry object ids: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan object id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate object ids: %w", err)
	}
	return ids, nil
}

// DeleteBefore removes records with epoch before the cutoff across all
// sources. Returns the number of rows removed.
func (s *TelemetryStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM telemetry_records WHERE epoch < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete telemetry records before cutoff: %w", err)
	}
	return tag.RowsAffected(), nil
}

// scanTelemetryRecord scans a single row into a TelemetryRecord.
func scanTelemetryRecord(row pgx.Row) (*domain.TelemetryRecord, error) {
	var rec domain.TelemetryRecord
	var sourceStr string

	err := row.Scan(
		&rec.ID,
		&rec.ObjectID,
		&rec.Epoch,
		&sourceStr,
		&rec.InclinationDeg,
		&rec.RAANDeg,
		&rec.Eccentricity,
		&rec.ArgPerigeeDeg,
		&rec.MeanAnomalyDeg,
		&rec.MeanMotionRevDay,
		&rec.Bstar,
		&rec.Line1,
		&rec.Line2,
		&rec.IngestedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Source = domain.Source(sourceStr)
	return &rec, nil
}

// scanTelemetryRecords scans multiple rows into a slice of TelemetryRecord.
func scanTelemetryRecords(rows pgx.Rows) ([]*domain.TelemetryRecord, error) {
	var recs []*domain.TelemetryRecord

	for rows.Next() {
		var rec domain.TelemetryRecord
		var sourceStr string

		err := rows.Scan(
			&rec.ID,
			&rec.ObjectID,
			&rec.Epoch,
			&sourceStr,
			&rec.InclinationDeg,
			&rec.RAANDeg,
			&rec.Eccentricity,
			&rec.ArgPerigeeDeg,
			&rec.MeanAnomalyDeg,
			&rec.MeanMotionRevDay,
			&rec.Bstar,
			&rec.Line1,
			&rec.Line2,
			&rec.IngestedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan telemetry record row: %w", err)
		}

		rec.Source = domain.Source(sourceStr)
		recs = append(recs, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate telemetry record rows: %w", err)
	}

	return recs, nil
}
