package signals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"orbitwatch/internal/domain"
	"orbitwatch/internal/idhash"
	"orbitwatch/internal/storage"
)

var (
	// ErrRunInProgress is returned when a purge/backfill with the same
	// parameters is still marked running. A concurrent or crashed run
	// must be resolved by an operator, never silently superseded.
	ErrRunInProgress = errors.New("signals: maintenance run already in progress")

	// ErrRunFailed is returned when a prior attempt with the same
	// parameters failed. Retrying needs a new reason so the audit trail
	// keeps both attempts.
	ErrRunFailed = errors.New("signals: maintenance run previously failed")
)

// HistoryDetector re-runs detection over a historical window with the
// current logic. Implemented by the reconcile pipeline; emissions are
// fingerprint-idempotent so re-detecting an already-correct window
// creates no duplicate rows.
type HistoryDetector interface {
	DetectWindow(ctx context.Context, from, to time.Time) (int64, error)
}

// PurgeBackfillOptions parameterize one maintenance run. The same
// options always resolve to the same RunID.
type PurgeBackfillOptions struct {
	From         time.Time
	To           time.Time
	AnomalyTypes []domain.AnomalyType // empty means every type
	Reason       string
}

// Maintainer corrects historical signals after a detection-logic fix:
// purge the affected window, re-detect it, and leave an audit row
// recording both counts. Divergence signals are not re-created by the
// backfill; the next reconcile pass regenerates them from the stored
// verdicts.
type Maintainer struct {
	signals  storage.SignalStore
	runs     storage.MaintenanceStore
	detector HistoryDetector
	logger   zerolog.Logger
}

func NewMaintainer(signals storage.SignalStore, runs storage.MaintenanceStore, detector HistoryDetector, logger zerolog.Logger) *Maintainer {
	return &Maintainer{
		signals:  signals,
		runs:     runs,
		detector: detector,
		logger:   logger.With().Str("component", "maintenance").Logger(),
	}
}

// PurgeBackfill executes one auditable maintenance run. Re-invoking
// with the same parameters after completion returns the recorded run
// without touching any data.
func (m *Maintainer) PurgeBackfill(ctx context.Context, opts PurgeBackfillOptions) (*domain.MaintenanceRun, error) {
	if !opts.To.After(opts.From) {
		return nil, fmt.Errorf("%w: window end must be after start", storage.ErrInvalidInput)
	}
	if opts.Reason == "" {
		return nil, fmt.Errorf("%w: a maintenance run needs a reason for the audit trail", storage.ErrInvalidInput)
	}
	for _, t := range opts.AnomalyTypes {
		if !t.IsValid() {
			return nil, fmt.Errorf("%w: unknown anomaly type %q", storage.ErrInvalidInput, t)
		}
	}

	runID := idhash.MaintenanceRunID(opts.From, opts.To, opts.AnomalyTypes, opts.Reason)
	run := &domain.MaintenanceRun{
		RunID:        runID,
		WindowStart:  opts.From.UTC(),
		WindowEnd:    opts.To.UTC(),
		AnomalyTypes: opts.AnomalyTypes,
		Reason:       opts.Reason,
		Status:       domain.MaintenanceRunning,
		StartedAt:    time.Now().UTC(),
	}

	claimed, existing, err := m.runs.Claim(ctx, run)
	if err != nil {
		return nil, fmt.Errorf("claim maintenance run %s: %w", runID, err)
	}
	if !claimed {
		switch existing.Status {
		case domain.MaintenanceCompleted:
			m.logger.Info().
				Str("run_id", runID).
				Int64("purged", existing.Purged).
				Int64("backfilled", existing.Backfilled).
				Msg("maintenance run already completed; returning recorded outcome")
			return existing, nil
		case domain.MaintenanceRunning:
			return existing, fmt.Errorf("%w: run %s started %s", ErrRunInProgress, runID, existing.StartedAt.Format(time.RFC3339))
		default:
			return existing, fmt.Errorf("%w: run %s: %s", ErrRunFailed, runID, existing.Error)
		}
	}

	m.logger.Info().
		Str("run_id", runID).
		Time("window_start", run.WindowStart).
		Time("window_end", run.WindowEnd).
		Str("reason", opts.Reason).
		Msg("maintenance run claimed")

	purged, err := m.signals.DeleteWindow(ctx, opts.From, opts.To, opts.AnomalyTypes)
	if err != nil {
		return nil, m.fail(ctx, runID, fmt.Errorf("purge window: %w", err))
	}

	backfilled, err := m.detector.DetectWindow(ctx, opts.From, opts.To)
	if err != nil {
		return nil, m.fail(ctx, runID, fmt.Errorf("backfill window: %w", err))
	}

	if err := m.runs.Complete(ctx, runID, purged, backfilled); err != nil {
		return nil, fmt.Errorf("complete maintenance run %s: %w", runID, err)
	}

	m.logger.Info().
		Str("run_id", runID).
		Int64("purged", purged).
		Int64("backfilled", backfilled).
		Msg("maintenance run completed")

	return m.runs.Get(ctx, runID)
}

// fail records the failure on the audit row before surfacing it.
func (m *Maintainer) fail(ctx context.Context, runID string, cause error) error {
	m.logger.Error().Err(cause).Str("run_id", runID).Msg("maintenance run failed")
	if err := m.runs.Fail(ctx, runID, cause.Error()); err != nil {
		m.logger.Error().Err(err).Str("run_id", runID).Msg("could not record run failure")
	}
	return cause
}
