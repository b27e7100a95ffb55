package detection

import (
	"fmt"

	"orbitwatch/internal/domain"
)

// Policy defines detection sensitivity for one metric: the sigma ladder
// that grades severity and an absolute noise floor below which a
// deviation is ignored no matter how many sigmas it spans. Tight
// baselines make tiny stddevs, and a thousandth of a degree of
// inclination jitter is not a maneuver.
//
// These are z-score thresholds in units of baseline stddev. They are a
// different axis from the divergence validator's relative-percentage
// tolerance and must not be conflated with it.
type Policy struct {
	SigmaLow      float64
	SigmaMedium   float64
	SigmaHigh     float64
	SigmaCritical float64
	NoiseFloor    float64 // absolute units of the metric
}

// policies is the fixed per-metric table. Every tracked metric has an
// entry; PolicyFor fails loudly for anything else rather than guessing.
var policies = map[domain.MetricType]Policy{
	domain.MetricInclinationDeg: {
		SigmaLow: 3, SigmaMedium: 4.5, SigmaHigh: 6, SigmaCritical: 8,
		NoiseFloor: 0.02, // degrees; plane changes below this are solution jitter
	},
	domain.MetricEccentricity: {
		SigmaLow: 3, SigmaMedium: 4.5, SigmaHigh: 6, SigmaCritical: 8,
		NoiseFloor: 0.0005,
	},
	domain.MetricMeanMotionRevDay: {
		SigmaLow: 3, SigmaMedium: 4.5, SigmaHigh: 6, SigmaCritical: 8,
		NoiseFloor: 0.002, // rev/day
	},
	domain.MetricBstar: {
		// Drag solutions are noisier than geometry; the ladder starts higher.
		SigmaLow: 3.5, SigmaMedium: 5, SigmaHigh: 7, SigmaCritical: 9,
		NoiseFloor: 1e-5,
	},
	domain.MetricApoapsisKm: {
		SigmaLow: 3, SigmaMedium: 4.5, SigmaHigh: 6, SigmaCritical: 8,
		NoiseFloor: 2.0, // km
	},
	domain.MetricPeriapsisKm: {
		SigmaLow: 3, SigmaMedium: 4.5, SigmaHigh: 6, SigmaCritical: 8,
		NoiseFloor: 2.0, // km
	},
	domain.MetricPeriodMin: {
		SigmaLow: 3, SigmaMedium: 4.5, SigmaHigh: 6, SigmaCritical: 8,
		NoiseFloor: 0.05, // minutes
	},
	domain.MetricVelocityKmS: {
		SigmaLow: 3, SigmaMedium: 4.5, SigmaHigh: 6, SigmaCritical: 8,
		NoiseFloor: 0.005, // km/s
	},
	domain.MetricCoverageRadiusKm: {
		SigmaLow: 3, SigmaMedium: 4.5, SigmaHigh: 6, SigmaCritical: 8,
		NoiseFloor: 15.0, // km of ground radius
	},
}

// PolicyFor returns the threshold policy for a metric.
func PolicyFor(metric domain.MetricType) (Policy, error) {
	p, ok := policies[metric]
	if !ok {
		return Policy{}, fmt.Errorf("detection: no threshold policy for metric %q", metric)
	}
	return p, nil
}

// severityFor grades an absolute z-score against the ladder. Returns
// false when the score is below the lowest rung.
func (p Policy) severityFor(absZ float64) (domain.Severity, bool) {
	switch {
	case absZ >= p.SigmaCritical:
		return domain.SeverityCritical, true
	case absZ >= p.SigmaHigh:
		return domain.SeverityHigh, true
	case absZ >= p.SigmaMedium:
		return domain.SeverityMedium, true
	case absZ >= p.SigmaLow:
		return domain.SeverityLow, true
	default:
		return "", false
	}
}
