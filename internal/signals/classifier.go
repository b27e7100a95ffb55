// Package signals turns detector and validator output into persisted,
// deduplicated Signal rows and keeps the historical record correctable
// through auditable purge/backfill runs.
package signals

import (
	"fmt"

	"orbitwatch/internal/domain"
)

// Classification is the static product mapping for one anomaly type.
type Classification struct {
	Category       domain.Category
	BaseConfidence float64
}

// classifications is the fixed lookup table. Every anomaly type must
// have an entry; Classify fails loudly for anything else.
var classifications = map[domain.AnomalyType]Classification{
	domain.AnomalyOrbitManeuver:      {Category: domain.CategoryConstellation, BaseConfidence: 0.85},
	domain.AnomalyOrbitalDecay:       {Category: domain.CategoryConstellation, BaseConfidence: 0.75},
	domain.AnomalyEccentricityDrift:  {Category: domain.CategoryConstellation, BaseConfidence: 0.65},
	domain.AnomalyCoverageShift:      {Category: domain.CategoryMarket, BaseConfidence: 0.70},
	domain.AnomalyProviderDivergence: {Category: domain.CategoryRegulatory, BaseConfidence: 0.60},
}

// Classify resolves the category and base confidence for an anomaly type.
func Classify(t domain.AnomalyType) (Classification, error) {
	c, ok := classifications[t]
	if !ok {
		return Classification{}, fmt.Errorf("signals: no classification for anomaly type %q", t)
	}
	return c, nil
}

// AnomalyTypeForMetric maps a deviating metric to the anomaly type its
// signal is published as. Geometry steps read as maneuvers; periapsis
// and drag movement read as decay; the remaining metrics have dedicated
// types.
func AnomalyTypeForMetric(metric domain.MetricType) (domain.AnomalyType, error) {
	switch metric {
	case domain.MetricInclinationDeg,
		domain.MetricMeanMotionRevDay,
		domain.MetricPeriodMin,
		domain.MetricVelocityKmS,
		domain.MetricApoapsisKm:
		return domain.AnomalyOrbitManeuver, nil
	case domain.MetricPeriapsisKm, domain.MetricBstar:
		return domain.AnomalyOrbitalDecay, nil
	case domain.MetricEccentricity:
		return domain.AnomalyEccentricityDrift, nil
	case domain.MetricCoverageRadiusKm:
		return domain.AnomalyCoverageShift, nil
	default:
		return "", fmt.Errorf("signals: no anomaly type for metric %q", metric)
	}
}

// confidence bumps the base by severity and caps the result. A critical
// deviation is more likely to be real than a low one, but confidence
// never reaches certainty.
func confidence(base float64, severity domain.Severity) float64 {
	bump := map[domain.Severity]float64{
		domain.SeverityLow:      0,
		domain.SeverityMedium:   0.05,
		domain.SeverityHigh:     0.10,
		domain.SeverityCritical: 0.15,
	}[severity]

	c := base + bump
	if c > 0.99 {
		c = 0.99
	}
	return c
}
