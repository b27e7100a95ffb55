package storage

import (
	"context"
	"time"

	"orbitwatch/internal/domain"
)

// UpsertOutcome reports what an idempotent signal write actually did.
type UpsertOutcome string

const (
	// UpsertCreated means no row existed for the fingerprint.
	UpsertCreated UpsertOutcome = "created"
	// UpsertRefreshed means an expired row was revived with the new detection.
	UpsertRefreshed UpsertOutcome = "refreshed"
	// UpsertDeduplicated means a live row already covered the fingerprint; no-op.
	UpsertDeduplicated UpsertOutcome = "deduplicated"
)

// SignalFilter narrows List queries. Nil fields are not applied.
type SignalFilter struct {
	ObjectID    *int
	AnomalyType *domain.AnomalyType
	Category    *domain.Category
	MinSeverity *domain.Severity // at or above this severity rank
	Source      *domain.Source
	From        *time.Time // detected_at lower bound, inclusive
	To          *time.Time // detected_at upper bound, exclusive
	LiveAt      *time.Time // only signals unexpired at this instant
	Limit       int        // 0 means backend default
}

// TelemetryStore provides access to telemetry_records storage.
//
// Every read takes exactly one Source. There is deliberately no method
// that returns records from more than one provider: cross-provider
// comparison happens only in the divergence validator, which reads each
// side separately and stores both attributions.
type TelemetryStore interface {
	// Upsert adds a record if no row exists for (object_id, epoch, source).
	// Re-ingesting the same element set is a no-op; returns whether a row
	// was actually inserted.
	Upsert(ctx context.Context, rec *domain.TelemetryRecord) (bool, error)

	// Range retrieves one object's records from a single source with
	// epoch in [from, to], ordered by epoch ASC.
	Range(ctx context.Context, objectID int, source domain.Source, from, to time.Time) ([]*domain.TelemetryRecord, error)

	// Latest retrieves the most recent record by epoch for one object
	// from a single source. Returns ErrNotFound if none exists.
	Latest(ctx context.Context, objectID int, source domain.Source) (*domain.TelemetryRecord, error)

	// ListObjectIDs retrieves the distinct objects a source has records
	// for, ascending.
	ListObjectIDs(ctx context.Context, source domain.Source) ([]int, error)

	// DeleteBefore removes records with epoch before the cutoff across
	// all sources. Returns the number of rows removed.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// BaselineStore provides access to baselines storage. Rows are immutable:
// recomputation inserts, readers take the latest by computed_at.
type BaselineStore interface {
	// Insert adds a new baseline row.
	Insert(ctx context.Context, b *domain.Baseline) error

	// Latest retrieves the most recently computed baseline for one
	// (object, metric, source) stream. Returns ErrNotFound if none exists.
	Latest(ctx context.Context, objectID int, metric domain.MetricType, source domain.Source) (*domain.Baseline, error)

	// History retrieves up to limit baseline rows for a stream, newest
	// first.
	History(ctx context.Context, objectID int, metric domain.MetricType, source domain.Source, limit int) ([]*domain.Baseline, error)
}

// DivergenceStore provides access to divergence_records storage. One row
// per (object, metric) pair holding the latest verdict.
type DivergenceStore interface {
	// Upsert inserts or replaces the verdict row for (object_id, metric).
	Upsert(ctx context.Context, rec *domain.DivergenceRecord) error

	// Get retrieves the verdict for one (object, metric) pair.
	// Returns ErrNotFound if the pair was never evaluated.
	Get(ctx context.Context, objectID int, metric domain.MetricType) (*domain.DivergenceRecord, error)

	// ListForObject retrieves all verdict rows for an object.
	ListForObject(ctx context.Context, objectID int) ([]*domain.DivergenceRecord, error)
}

// SignalStore provides access to signals storage.
type SignalStore interface {
	// UpsertByFingerprint writes a signal with at-most-one-live-row
	// semantics per fingerprint: no row inserts, an expired row is
	// refreshed in place, a live row makes the call a no-op.
	UpsertByFingerprint(ctx context.Context, s *domain.Signal) (UpsertOutcome, error)

	// GetByFingerprint retrieves a signal by its fingerprint.
	// Returns ErrNotFound if not exists.
	GetByFingerprint(ctx context.Context, fingerprint string) (*domain.Signal, error)

	// List retrieves signals matching the filter, newest first.
	List(ctx context.Context, f SignalFilter) ([]*domain.Signal, error)

	// MarkProcessed flags a signal as consumed by the downstream feed.
	// Returns ErrNotFound if the fingerprint does not exist.
	MarkProcessed(ctx context.Context, fingerprint string) error

	// DeleteWindow removes signals with detected_at in [from, to) and an
	// anomaly type in types (all types when empty). Returns rows removed.
	DeleteWindow(ctx context.Context, from, to time.Time, types []domain.AnomalyType) (int64, error)
}

// MetricSampleStore provides access to the metric_samples timeseries.
type MetricSampleStore interface {
	// InsertBatch adds multiple samples in one batch.
	InsertBatch(ctx context.Context, samples []*domain.MetricSample) error

	// Series retrieves one stream's samples with epoch in [from, to],
	// ordered by epoch ASC.
	Series(ctx context.Context, objectID int, source domain.Source, metric domain.MetricType, from, to time.Time) ([]*domain.MetricSample, error)
}

// MaintenanceStore provides access to maintenance_runs storage.
type MaintenanceStore interface {
	// Claim registers a run as running if its run_id was never seen.
	// When a row already exists the claim fails and the existing run is
	// returned, so callers can distinguish a completed no-op from a
	// crashed predecessor.
	Claim(ctx context.Context, run *domain.MaintenanceRun) (claimed bool, existing *domain.MaintenanceRun, err error)

	// Complete marks a running run as completed with its final counts.
	Complete(ctx context.Context, runID string, purged, backfilled int64) error

	// Fail marks a running run as failed with a reason.
	Fail(ctx context.Context, runID string, reason string) error

	// Get retrieves a run by run_id. Returns ErrNotFound if not exists.
	Get(ctx context.Context, runID string) (*domain.MaintenanceRun, error)
}
