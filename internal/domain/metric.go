package domain

import "time"

// MetricType identifies one observable tracked per object and per source.
// Element metrics come straight from the TLE; the rest are derived through
// orbital geometry or propagation.
type MetricType string

const (
	// Element metrics, read directly from the element set.
	MetricInclinationDeg   MetricType = "inclination_deg"
	MetricEccentricity     MetricType = "eccentricity"
	MetricMeanMotionRevDay MetricType = "mean_motion_rev_day"
	MetricBstar            MetricType = "bstar"

	// Derived metrics.
	MetricApoapsisKm       MetricType = "apoapsis_km"
	MetricPeriapsisKm      MetricType = "periapsis_km"
	MetricPeriodMin        MetricType = "period_min"
	MetricVelocityKmS      MetricType = "velocity_km_s"
	MetricCoverageRadiusKm MetricType = "coverage_radius_km"
)

// AllMetricTypes lists every tracked metric in canonical order.
var AllMetricTypes = []MetricType{
	MetricInclinationDeg,
	MetricEccentricity,
	MetricMeanMotionRevDay,
	MetricBstar,
	MetricApoapsisKm,
	MetricPeriapsisKm,
	MetricPeriodMin,
	MetricVelocityKmS,
	MetricCoverageRadiusKm,
}

// String returns the string representation of MetricType.
func (m MetricType) String() string {
	return string(m)
}

// IsValid checks if the metric type is a valid value.
func (m MetricType) IsValid() bool {
	switch m {
	case MetricInclinationDeg, MetricEccentricity, MetricMeanMotionRevDay,
		MetricBstar, MetricApoapsisKm, MetricPeriapsisKm, MetricPeriodMin,
		MetricVelocityKmS, MetricCoverageRadiusKm:
		return true
	}
	return false
}

// MetricSample is one derived metric observation, written to the
// metric_samples table in ClickHouse for trend queries.
type MetricSample struct {
	ObjectID   int
	Source     Source
	MetricType MetricType
	Epoch      time.Time // epoch of the element set the value came from
	Value      float64
	ComputedAt time.Time
}

// DerivedMetrics bundles everything the calculator produces for one
// record at one evaluation instant.
type DerivedMetrics struct {
	ObjectID         int
	Source           Source
	Epoch            time.Time // evaluation instant, UTC
	LatitudeDeg      float64   // subsatellite point
	LongitudeDeg     float64
	AltitudeKm       float64
	VelocityKmS      float64
	ApoapsisKm       float64
	PeriapsisKm      float64
	PeriodMin        float64
	CoverageRadiusKm float64 // great-circle radius of the visibility cone
	FootprintKm      float64 // arc diameter of the coverage circle
}
