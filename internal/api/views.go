package api

import (
	"time"

	"orbitwatch/internal/domain"
)

// View types put JSON names on the wire; the domain types stay
// tag-free. Every timestamp is rendered in UTC and signal identity on
// the wire is the fingerprint, which stays stable across re-emission.

type signalView struct {
	ShortID       string               `json:"short_id"`
	Fingerprint   string               `json:"fingerprint"`
	AnomalyType   domain.AnomalyType   `json:"anomaly_type"`
	Category      domain.Category      `json:"category"`
	Severity      domain.Severity      `json:"severity"`
	Confidence    float64              `json:"confidence"`
	ObjectID      int                  `json:"object_id"`
	MetricType    domain.MetricType    `json:"metric_type"`
	Source        domain.Source        `json:"source,omitempty"` // empty for cross-provider signals
	ObservedValue float64              `json:"observed_value"`
	BaselineMean  float64              `json:"baseline_mean"`
	ZScore        float64              `json:"z_score"`
	Payload       domain.SignalPayload `json:"payload"`
	DetectedAt    time.Time            `json:"detected_at"`
	ExpiresAt     time.Time            `json:"expires_at"`
	Processed     bool                 `json:"processed"`
}

func newSignalView(sig *domain.Signal) signalView {
	return signalView{
		ShortID:       sig.ShortID,
		Fingerprint:   sig.Fingerprint,
		AnomalyType:   sig.AnomalyType,
		Category:      sig.Category,
		Severity:      sig.Severity,
		Confidence:    sig.Confidence,
		ObjectID:      sig.ObjectID,
		MetricType:    sig.MetricType,
		Source:        sig.Source,
		ObservedValue: sig.ObservedValue,
		BaselineMean:  sig.BaselineMean,
		ZScore:        sig.ZScore,
		Payload:       sig.Payload,
		DetectedAt:    sig.DetectedAt.UTC(),
		ExpiresAt:     sig.ExpiresAt.UTC(),
		Processed:     sig.Processed,
	}
}

func newSignalViews(sigs []*domain.Signal) []signalView {
	views := make([]signalView, 0, len(sigs))
	for _, sig := range sigs {
		views = append(views, newSignalView(sig))
	}
	return views
}

type observationView struct {
	Value float64   `json:"value"`
	Epoch time.Time `json:"epoch"`
}

type divergenceView struct {
	ObjectID         int                      `json:"object_id"`
	MetricType       domain.MetricType        `json:"metric_type"`
	SpaceTrack       observationView          `json:"spacetrack"`
	LeoLabs          observationView          `json:"leolabs"`
	Delta            float64                  `json:"delta"`
	RelativeDeltaPct float64                  `json:"relative_delta_pct"`
	EpochGapSeconds  int64                    `json:"epoch_gap_seconds"`
	Verdict          domain.DivergenceVerdict `json:"verdict"`
	EvaluatedAt      time.Time                `json:"evaluated_at"`
}

func newDivergenceView(rec *domain.DivergenceRecord) divergenceView {
	return divergenceView{
		ObjectID:         rec.ObjectID,
		MetricType:       rec.MetricType,
		SpaceTrack:       observationView{Value: rec.SpaceTrack.Value, Epoch: rec.SpaceTrack.Epoch.UTC()},
		LeoLabs:          observationView{Value: rec.LeoLabs.Value, Epoch: rec.LeoLabs.Epoch.UTC()},
		Delta:            rec.Delta,
		RelativeDeltaPct: rec.RelativeDeltaPct,
		EpochGapSeconds:  int64(rec.EpochGap / time.Second),
		Verdict:          rec.Verdict,
		EvaluatedAt:      rec.EvaluatedAt.UTC(),
	}
}

type baselineView struct {
	ObjectID    int               `json:"object_id"`
	MetricType  domain.MetricType `json:"metric_type"`
	Source      domain.Source     `json:"source"`
	Mean        float64           `json:"mean"`
	Stddev      float64           `json:"stddev"`
	Median      float64           `json:"median"`
	P95         float64           `json:"p95"`
	SampleCount int               `json:"sample_count"`
	WindowStart time.Time         `json:"window_start"`
	WindowEnd   time.Time         `json:"window_end"`
	ComputedAt  time.Time         `json:"computed_at"`
}

func newBaselineView(b *domain.Baseline) baselineView {
	return baselineView{
		ObjectID:    b.ObjectID,
		MetricType:  b.MetricType,
		Source:      b.Source,
		Mean:        b.Mean,
		Stddev:      b.Stddev,
		Median:      b.Median,
		P95:         b.P95,
		SampleCount: b.SampleCount,
		WindowStart: b.WindowStart.UTC(),
		WindowEnd:   b.WindowEnd.UTC(),
		ComputedAt:  b.ComputedAt.UTC(),
	}
}
