// Package detection grades single observations against rolling
// baselines. It is pure computation: no storage, no clock, no side
// effects, so every decision it makes can be replayed from its inputs.
package detection

import (
	"errors"
	"fmt"
	"math"
	"time"

	"orbitwatch/internal/domain"
)

var (
	// ErrSourceMismatch is returned when an observation is scored
	// against a baseline built from the other provider's stream.
	ErrSourceMismatch = errors.New("detection: observation and baseline sources differ")

	// ErrBaselineMismatch is returned when the baseline describes a
	// different object or metric than the observation.
	ErrBaselineMismatch = errors.New("detection: baseline does not match observation")
)

// Observation is one metric value extracted from a single provider's
// telemetry, carrying enough identity to be matched to a baseline.
type Observation struct {
	ObjectID   int
	MetricType domain.MetricType
	Source     domain.Source
	Value      float64
	Epoch      time.Time
}

// Result is the full verdict for one observation. Suppressed results
// carry the reason so callers can count and expose them; a suppressed
// observation is never an anomaly regardless of its z-score.
type Result struct {
	Observation    Observation
	BaselineMean   float64
	BaselineStddev float64
	ZScore         float64
	IsAnomaly      bool
	Severity       domain.Severity // set only when IsAnomaly
	Suppressed     bool
	SuppressReason string
}

// Detector applies the per-metric threshold policies. minSamples is
// the baseline population below which scoring is suppressed.
type Detector struct {
	minSamples int
}

func NewDetector(minSamples int) *Detector {
	return &Detector{minSamples: minSamples}
}

// Detect scores one observation against its baseline. A nil baseline
// or one built from too few samples suppresses detection; a zero
// stddev suppresses rather than dividing. Baselines from a different
// source, object or metric are errors, not suppressions: they mean the
// caller wired the streams together wrong.
func (d *Detector) Detect(obs Observation, baseline *domain.Baseline) (Result, error) {
	if !obs.MetricType.IsValid() {
		return Result{}, fmt.Errorf("detection: invalid metric type %q", obs.MetricType)
	}
	if !obs.Source.IsValid() {
		return Result{}, fmt.Errorf("detection: invalid source %q", obs.Source)
	}

	policy, err := PolicyFor(obs.MetricType)
	if err != nil {
		return Result{}, err
	}

	res := Result{Observation: obs}

	if baseline == nil {
		res.Suppressed = true
		res.SuppressReason = "no baseline"
		return res, nil
	}
	if baseline.Source != obs.Source {
		return Result{}, fmt.Errorf("%w: observation %s, baseline %s", ErrSourceMismatch, obs.Source, baseline.Source)
	}
	if baseline.ObjectID != obs.ObjectID || baseline.MetricType != obs.MetricType {
		return Result{}, fmt.Errorf("%w: observation object %d metric %s, baseline object %d metric %s",
			ErrBaselineMismatch, obs.ObjectID, obs.MetricType, baseline.ObjectID, baseline.MetricType)
	}

	res.BaselineMean = baseline.Mean
	res.BaselineStddev = baseline.Stddev

	if !baseline.Sufficient(d.minSamples) {
		res.Suppressed = true
		res.SuppressReason = fmt.Sprintf("baseline has %d samples, need %d", baseline.SampleCount, d.minSamples)
		return res, nil
	}
	if baseline.Stddev == 0 {
		// A flat baseline means any deviation is infinitely many sigmas;
		// that is a statement about the baseline, not the observation.
		res.Suppressed = true
		res.SuppressReason = "baseline stddev is zero"
		return res, nil
	}

	delta := obs.Value - baseline.Mean
	res.ZScore = delta / baseline.Stddev

	severity, crossed := policy.severityFor(math.Abs(res.ZScore))
	if !crossed {
		return res, nil
	}
	if math.Abs(delta) < policy.NoiseFloor {
		res.Suppressed = true
		res.SuppressReason = fmt.Sprintf("delta %g below noise floor %g", math.Abs(delta), policy.NoiseFloor)
		return res, nil
	}

	res.IsAnomaly = true
	res.Severity = severity
	return res, nil
}
