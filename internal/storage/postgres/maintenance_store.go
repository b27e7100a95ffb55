package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"orbitwatch/internal/domain"
	"orbitwatch/internal/storage"
)

// MaintenanceStore implements storage.MaintenanceStore using PostgreSQL.
type MaintenanceStore struct {
	pool *Pool
}

// NewMaintenanceStore creates a new MaintenanceStore.
func NewMaintenanceStore(pool *Pool) *MaintenanceStore {
	return &MaintenanceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MaintenanceStore = (*MaintenanceStore)(nil)

// Claim registers a run as running if its run_id was never seen. When a
// row already exists the claim fails and the existing run is returned.
func (s *MaintenanceStore) Claim(ctx context.Context, run *domain.MaintenanceRun) (bool, *domain.MaintenanceRun, error) {
	if run == nil || run.RunID == "" || !run.Status.IsValid() {
		return false, nil, storage.ErrInvalidInput
	}

	query := `
		INSERT INTO maintenance_runs (
			run_id, window_start, window_end, anomaly_types,
			reason, status, purged, backfilled, error, started_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (run_id) DO NOTHING
		RETURNING id
	`

	var id int64
	err := s.pool.QueryRow(ctx, query,
		run.RunID,
		run.WindowStart,
		run.WindowEnd,
		anomalyTypeStrings(run.AnomalyTypes),
		run.Reason,
		string(run.Status),
		run.Purged,
		run.Backfilled,
		run.Error,
		run.StartedAt,
	).Scan(&id)
	if err == nil {
		run.ID = id
		return true, nil, nil
	}
	if !isNotFoundError(err) {
		return false, nil, fmt.Errorf("claim maintenance run: %w", err)
	}

	// Conflict arm fired: somebody holds this run_id. Load the row so the
	// caller can tell a completed no-op from a crashed predecessor.
	existing, err := s.Get(ctx, run.RunID)
	if err != nil {
		return false, nil, fmt.Errorf("load existing maintenance run: %w", err)
	}
	return false, existing, nil
}

// Complete marks a running run as completed with its final counts.
func (s *MaintenanceStore) Complete(ctx context.Context, runID string, purged, backfilled int64) error {
	return s.finish(ctx, runID, `
		UPDATE maintenance_runs
		SET status = $2, purged = $3, backfilled = $4, finished_at = now()
		WHERE run_id = $1 AND status = $5
	`, runID, string(domain.MaintenanceCompleted), purged, backfilled, string(domain.MaintenanceRunning))
}

// Fail marks a running run as failed with a reason.
func (s *MaintenanceStore) Fail(ctx context.Context, runID string, reason string) error {
	return s.finish(ctx, runID, `
		UPDATE maintenance_runs
		SET status = $2, error = $3, finished_at = now()
		WHERE run_id = $1 AND status = $4
	`, runID, string(domain.MaintenanceFailed), reason, string(domain.MaintenanceRunning))
}

// finish applies a terminal-state update that only matches a running row,
// then diagnoses why nothing matched.
func (s *MaintenanceStore) finish(ctx context.Context, runID, query string, args ...any) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("finish maintenance run: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	existing, err := s.Get(ctx, runID)
	if err != nil {
		return err
	}
	return fmt.Errorf("run %s is %s: %w", runID, existing.Status, storage.ErrInvalidInput)
}

// Get retrieves a run by run_id. Returns ErrNotFound if not exists.
func (s *MaintenanceStore) Get(ctx context.Context, runID string) (*domain.MaintenanceRun, error) {
	if runID == "" {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT id, run_id, window_start, window_end, anomaly_types,
		       reason, status, purged, backfilled, error, started_at, finished_at
		FROM maintenance_runs
		WHERE run_id = $1
	`

	row := s.pool.QueryRow(ctx, query, runID)
	run, err := scanMaintenanceRun(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get maintenance run: %w", err)
	}
	return run, nil
}

func anomalyTypeStrings(types []domain.AnomalyType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

// scanMaintenanceRun scans one row into a MaintenanceRun.
func scanMaintenanceRun(row pgx.Row) (*domain.MaintenanceRun, error) {
	var run domain.MaintenanceRun
	var statusStr string
	var typeStrs []string

	err := row.Scan(
		&run.ID,
		&run.RunID,
		&run.WindowStart,
		&run.WindowEnd,
		&typeStrs,
		&run.Reason,
		&statusStr,
		&run.Purged,
		&run.Backfilled,
		&run.Error,
		&run.StartedAt,
		&run.FinishedAt,
	)
	if err != nil {
		return nil, err
	}

	run.Status = domain.MaintenanceStatus(statusStr)
	run.AnomalyTypes = make([]domain.AnomalyType, len(typeStrs))
	for i, t := range typeStrs {
		run.AnomalyTypes[i] = domain.AnomalyType(t)
	}
	return &run, nil
}
