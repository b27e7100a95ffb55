package signals

import (
	"math"
	"testing"

	"orbitwatch/internal/domain"
)

func TestClassify_CoversEveryAnomalyType(t *testing.T) {
	for _, anomalyType := range domain.AllAnomalyTypes {
		c, err := Classify(anomalyType)
		if err != nil {
			t.Errorf("Classify(%s) error = %v", anomalyType, err)
			continue
		}
		if !c.Category.IsValid() {
			t.Errorf("Classify(%s) category = %q, not a valid category", anomalyType, c.Category)
		}
		if c.BaseConfidence <= 0 || c.BaseConfidence >= 1 {
			t.Errorf("Classify(%s) base confidence = %v, want in (0, 1)", anomalyType, c.BaseConfidence)
		}
	}

	if _, err := Classify(domain.AnomalyType("made_up")); err == nil {
		t.Error("Classify(unknown) error = nil, want an error")
	}
}

func TestClassify_KnownMappings(t *testing.T) {
	cases := []struct {
		anomalyType domain.AnomalyType
		category    domain.Category
	}{
		{domain.AnomalyOrbitManeuver, domain.CategoryConstellation},
		{domain.AnomalyOrbitalDecay, domain.CategoryConstellation},
		{domain.AnomalyEccentricityDrift, domain.CategoryConstellation},
		{domain.AnomalyCoverageShift, domain.CategoryMarket},
		{domain.AnomalyProviderDivergence, domain.CategoryRegulatory},
	}

	for _, tc := range cases {
		c, err := Classify(tc.anomalyType)
		if err != nil {
			t.Fatalf("Classify(%s) error = %v", tc.anomalyType, err)
		}
		if c.Category != tc.category {
			t.Errorf("Classify(%s) category = %s, want %s", tc.anomalyType, c.Category, tc.category)
		}
	}
}

func TestAnomalyTypeForMetric_CoversEveryMetric(t *testing.T) {
	for _, metric := range domain.AllMetricTypes {
		anomalyType, err := AnomalyTypeForMetric(metric)
		if err != nil {
			t.Errorf("AnomalyTypeForMetric(%s) error = %v", metric, err)
			continue
		}
		if !anomalyType.IsValid() {
			t.Errorf("AnomalyTypeForMetric(%s) = %q, not a valid anomaly type", metric, anomalyType)
		}
		if anomalyType == domain.AnomalyProviderDivergence {
			t.Errorf("AnomalyTypeForMetric(%s) = provider_divergence; that type is never detector-driven", metric)
		}
	}

	if _, err := AnomalyTypeForMetric(domain.MetricType("made_up")); err == nil {
		t.Error("AnomalyTypeForMetric(unknown) error = nil, want an error")
	}
}

func TestAnomalyTypeForMetric_KnownMappings(t *testing.T) {
	cases := []struct {
		metric domain.MetricType
		want   domain.AnomalyType
	}{
		{domain.MetricInclinationDeg, domain.AnomalyOrbitManeuver},
		{domain.MetricMeanMotionRevDay, domain.AnomalyOrbitManeuver},
		{domain.MetricApoapsisKm, domain.AnomalyOrbitManeuver},
		{domain.MetricPeriapsisKm, domain.AnomalyOrbitalDecay},
		{domain.MetricBstar, domain.AnomalyOrbitalDecay},
		{domain.MetricEccentricity, domain.AnomalyEccentricityDrift},
		{domain.MetricCoverageRadiusKm, domain.AnomalyCoverageShift},
	}

	for _, tc := range cases {
		got, err := AnomalyTypeForMetric(tc.metric)
		if err != nil {
			t.Fatalf("AnomalyTypeForMetric(%s) error = %v", tc.metric, err)
		}
		if got != tc.want {
			t.Errorf("AnomalyTypeForMetric(%s) = %s, want %s", tc.metric, got, tc.want)
		}
	}
}

func TestConfidence_SeverityBumpAndCap(t *testing.T) {
	if got := confidence(0.60, domain.SeverityLow); got != 0.60 {
		t.Errorf("confidence(0.60, low) = %v, want 0.60", got)
	}
	if got := confidence(0.60, domain.SeverityHigh); math.Abs(got-0.70) > 1e-12 {
		t.Errorf("confidence(0.60, high) = %v, want 0.70", got)
	}
	// 0.85 + 0.15 would be certainty; the cap keeps it under.
	if got := confidence(0.85, domain.SeverityCritical); got != 0.99 {
		t.Errorf("confidence(0.85, critical) = %v, want 0.99", got)
	}
}
