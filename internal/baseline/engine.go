package baseline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"orbitwatch/internal/domain"
	"orbitwatch/internal/orbital"
	"orbitwatch/internal/storage"
)

// ErrInsufficientSamples is returned when a window holds fewer usable
// samples than the configured minimum. No baseline row is persisted in
// that case; detection against the stream stays suppressed until the
// history fills in.
var ErrInsufficientSamples = errors.New("baseline: insufficient samples in window")

// Engine recomputes rolling per-stream baselines. A stream is one
// (object, metric, source) triple; records from the other provider never
// enter the window.
type Engine struct {
	telemetry  storage.TelemetryStore
	baselines  storage.BaselineStore
	calc       *orbital.Calculator
	minSamples int
	logger     zerolog.Logger
}

// NewEngine creates a baseline engine.
func NewEngine(telemetry storage.TelemetryStore, baselines storage.BaselineStore, calc *orbital.Calculator, minSamples int, logger zerolog.Logger) *Engine {
	return &Engine{
		telemetry:  telemetry,
		baselines:  baselines,
		calc:       calc,
		minSamples: minSamples,
		logger:     logger.With().Str("component", "baseline").Logger(),
	}
}

// MinSamples exposes the configured floor, used by the detector to judge
// baseline sufficiency consistently.
func (e *Engine) MinSamples() int {
	return e.minSamples
}

// Recompute builds and persists a fresh baseline row for one stream over
// [windowStart, windowEnd]. Records that cannot yield the metric (absent
// drag term, non-physical propagation) are skipped, not zero-filled.
func (e *Engine) Recompute(ctx context.Context, objectID int, metric domain.MetricType, source domain.Source, windowStart, windowEnd time.Time) (*domain.Baseline, error) {
	recs, err := e.telemetry.Range(ctx, objectID, source, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("load telemetry for object %d: %w", objectID, err)
	}

	values := make([]float64, 0, len(recs))
	for _, rec := range recs {
		v, err := e.calc.MetricValue(rec, metric)
		if err != nil {
			if errors.Is(err, orbital.ErrValueUnavailable) {
				continue
			}
			if errors.Is(err, orbital.ErrNonPhysicalAltitude) || errors.Is(err, orbital.ErrInvalidElements) {
				e.logger.Warn().
					Int("object_id", objectID).
					Str("metric", metric.String()).
					Str("source", source.String()).
					Time("epoch", rec.Epoch).
					Err(err).
					Msg("skipping record in baseline window")
				continue
			}
			return nil, fmt.Errorf("metric %s for object %d: %w", metric, objectID, err)
		}
		values = append(values, v)
	}

	if len(values) < e.minSamples {
		return nil, fmt.Errorf("%w: %d of %d for object %d %s/%s",
			ErrInsufficientSamples, len(values), e.minSamples, objectID, metric, source)
	}

	mean := computeMean(values)
	sorted := sortedCopy(values)

	b := &domain.Baseline{
		ObjectID:    objectID,
		MetricType:  metric,
		Source:      source,
		Mean:        mean,
		Stddev:      computeStddev(values, mean),
		Median:      computePercentile(sorted, 0.50),
		P95:         computePercentile(sorted, 0.95),
		SampleCount: len(values),
		WindowStart: windowStart.UTC(),
		WindowEnd:   windowEnd.UTC(),
		ComputedAt:  time.Now().UTC(),
	}

	if err := e.baselines.Insert(ctx, b); err != nil {
		return nil, fmt.Errorf("persist baseline for object %d %s/%s: %w", objectID, metric, source, err)
	}

	e.logger.Debug().
		Int("object_id", objectID).
		Str("metric", metric.String()).
		Str("source", source.String()).
		Int("samples", b.SampleCount).
		Float64("mean", b.Mean).
		Float64("stddev", b.Stddev).
		Msg("baseline recomputed")

	return b, nil
}
