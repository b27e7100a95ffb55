package signals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"orbitwatch/internal/detection"
	"orbitwatch/internal/domain"
	"orbitwatch/internal/idhash"
	"orbitwatch/internal/storage"
)

var (
	// ErrNotAnomalous is returned when a result that crossed no
	// threshold is handed to the emitter. Emitting is for anomalies;
	// the caller filters.
	ErrNotAnomalous = errors.New("signals: result is not an anomaly")

	// ErrNotDiverged is returned when a divergence record whose verdict
	// is consistent or unreliable is handed to the emitter.
	ErrNotDiverged = errors.New("signals: divergence verdict is not diverged")
)

// Divergence signals are graded on the relative delta itself; there is
// no baseline stddev to ladder on.
const (
	divergenceMediumPct   = 10.0
	divergenceHighPct     = 20.0
	divergenceCriticalPct = 35.0
)

// Publisher receives created and refreshed signals for live delivery.
// Deduplicated emissions are not published: the subscriber already saw
// the live row.
type Publisher interface {
	Publish(sig *domain.Signal)
}

// EmitResult reports what one emission did to storage.
type EmitResult struct {
	Signal  *domain.Signal
	Outcome storage.UpsertOutcome
}

// Emitter persists signals with fingerprint deduplication. ttl bounds
// how long a row stays live; dedupWindow is the bucket width used to
// derive the fingerprint's observation window.
type Emitter struct {
	signals     storage.SignalStore
	ttl         time.Duration
	dedupWindow time.Duration
	publisher   Publisher
	logger      zerolog.Logger
}

func NewEmitter(signals storage.SignalStore, ttl, dedupWindow time.Duration, logger zerolog.Logger) *Emitter {
	return &Emitter{
		signals:     signals,
		ttl:         ttl,
		dedupWindow: dedupWindow,
		logger:      logger.With().Str("component", "signals").Logger(),
	}
}

// SetPublisher attaches the live feed. Optional; batch tooling runs
// without one.
func (e *Emitter) SetPublisher(p Publisher) {
	e.publisher = p
}

// EmitDetection publishes an anomalous detection result as a signal.
// The payload must match the anomaly type the observation's metric maps
// to; the pipeline builds it because only the pipeline has the derived
// context (apsides, altitude) the payloads carry.
func (e *Emitter) EmitDetection(ctx context.Context, res detection.Result, payload domain.SignalPayload) (*EmitResult, error) {
	if !res.IsAnomaly {
		return nil, ErrNotAnomalous
	}

	anomalyType, err := AnomalyTypeForMetric(res.Observation.MetricType)
	if err != nil {
		return nil, err
	}
	if payload == nil || payload.AnomalyType() != anomalyType {
		return nil, fmt.Errorf("signals: payload for %s does not back anomaly type %s", res.Observation.MetricType, anomalyType)
	}

	class, err := Classify(anomalyType)
	if err != nil {
		return nil, err
	}

	detectedAt := res.Observation.Epoch.UTC()
	windowStart := detectedAt.Truncate(e.dedupWindow)

	sig := &domain.Signal{
		Fingerprint:   idhash.SignalFingerprint(anomalyType, res.Observation.ObjectID, windowStart),
		ShortID:       idhash.SignalShortID(anomalyType, res.Observation.ObjectID, windowStart),
		AnomalyType:   anomalyType,
		Category:      class.Category,
		Severity:      res.Severity,
		Confidence:    confidence(class.BaseConfidence, res.Severity),
		ObjectID:      res.Observation.ObjectID,
		MetricType:    res.Observation.MetricType,
		Source:        res.Observation.Source,
		ObservedValue: res.Observation.Value,
		BaselineMean:  res.BaselineMean,
		ZScore:        res.ZScore,
		Payload:       payload,
		DetectedAt:    detectedAt,
		ExpiresAt:     detectedAt.Add(e.ttl),
	}

	return e.emit(ctx, sig)
}

// EmitDivergence publishes a diverged cross-provider verdict as a
// data-integrity signal. The signal carries no Source: it is about the
// disagreement, not either provider's stream.
func (e *Emitter) EmitDivergence(ctx context.Context, rec *domain.DivergenceRecord) (*EmitResult, error) {
	if rec == nil || rec.Verdict != domain.VerdictDiverged {
		return nil, ErrNotDiverged
	}

	class, err := Classify(domain.AnomalyProviderDivergence)
	if err != nil {
		return nil, err
	}
	severity := divergenceSeverity(rec.RelativeDeltaPct)

	detectedAt := rec.EvaluatedAt.UTC()
	windowStart := detectedAt.Truncate(e.dedupWindow)

	sig := &domain.Signal{
		Fingerprint: idhash.SignalFingerprint(domain.AnomalyProviderDivergence, rec.ObjectID, windowStart),
		ShortID:     idhash.SignalShortID(domain.AnomalyProviderDivergence, rec.ObjectID, windowStart),
		AnomalyType: domain.AnomalyProviderDivergence,
		Category:    class.Category,
		Severity:    severity,
		Confidence:  confidence(class.BaseConfidence, severity),
		ObjectID:    rec.ObjectID,
		MetricType:  rec.MetricType,
		// ObservedValue is the scored quantity, here the relative delta.
		ObservedValue: rec.RelativeDeltaPct,
		Payload: domain.DivergencePayload{
			Metric:           rec.MetricType,
			SpaceTrackValue:  rec.SpaceTrack.Value,
			LeoLabsValue:     rec.LeoLabs.Value,
			RelativeDeltaPct: rec.RelativeDeltaPct,
			EpochGapSeconds:  int64(rec.EpochGap / time.Second),
		},
		DetectedAt: detectedAt,
		ExpiresAt:  detectedAt.Add(e.ttl),
	}

	return e.emit(ctx, sig)
}

func (e *Emitter) emit(ctx context.Context, sig *domain.Signal) (*EmitResult, error) {
	outcome, err := e.signals.UpsertByFingerprint(ctx, sig)
	if err != nil {
		return nil, fmt.Errorf("upsert signal %s: %w", sig.Fingerprint, err)
	}

	if outcome == storage.UpsertDeduplicated {
		// The live row is the authoritative one; return it, not the
		// detection that lost the race.
		existing, err := e.signals.GetByFingerprint(ctx, sig.Fingerprint)
		if err != nil {
			return nil, fmt.Errorf("load deduplicated signal %s: %w", sig.Fingerprint, err)
		}
		e.logger.Debug().
			Str("short_id", existing.ShortID).
			Str("anomaly_type", existing.AnomalyType.String()).
			Int("object_id", existing.ObjectID).
			Msg("signal deduplicated against live row")
		return &EmitResult{Signal: existing, Outcome: outcome}, nil
	}

	e.logger.Info().
		Str("short_id", sig.ShortID).
		Str("anomaly_type", sig.AnomalyType.String()).
		Str("category", sig.Category.String()).
		Str("severity", sig.Severity.String()).
		Float64("confidence", sig.Confidence).
		Int("object_id", sig.ObjectID).
		Str("metric", sig.MetricType.String()).
		Float64("z_score", sig.ZScore).
		Str("outcome", string(outcome)).
		Msg("signal emitted")

	if e.publisher != nil {
		e.publisher.Publish(sig)
	}
	return &EmitResult{Signal: sig, Outcome: outcome}, nil
}

func divergenceSeverity(relativeDeltaPct float64) domain.Severity {
	switch {
	case relativeDeltaPct >= divergenceCriticalPct:
		return domain.SeverityCritical
	case relativeDeltaPct >= divergenceHighPct:
		return domain.SeverityHigh
	case relativeDeltaPct >= divergenceMediumPct:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}
