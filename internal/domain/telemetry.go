package domain

import "time"

// TelemetryRecord is one validated two-line element set for a tracked
// object, as received from a single provider. Corresponds to the
// telemetry_records table in Postgres.
//
// Bstar is a pointer because providers publish sentinel drag terms
// ("00000-0" or blank) when no drag solution was fit; those parse to
// absent, never to zero. A zero drag coefficient is a measurement, a
// missing one is not.
type TelemetryRecord struct {
	ID               int64
	ObjectID         int       // NORAD catalog number
	Epoch            time.Time // element set epoch, UTC
	Source           Source
	InclinationDeg   float64
	RAANDeg          float64 // right ascension of ascending node
	Eccentricity     float64
	ArgPerigeeDeg    float64
	MeanAnomalyDeg   float64
	MeanMotionRevDay float64
	Bstar            *float64 // drag term, 1/earth radii; nil when absent
	Line1            string   // raw TLE line 1, checksum-verified
	Line2            string   // raw TLE line 2, checksum-verified
	IngestedAt       time.Time
}

// HasBstar reports whether the record carries a fitted drag term.
func (r *TelemetryRecord) HasBstar() bool {
	return r != nil && r.Bstar != nil
}

// ElementMetricValue returns the value of a metric that is read directly
// off the element set, without propagation or geometry. The second return
// is false for derived metrics and for an absent drag term.
func (r *TelemetryRecord) ElementMetricValue(m MetricType) (float64, bool) {
	switch m {
	case MetricInclinationDeg:
		return r.InclinationDeg, true
	case MetricEccentricity:
		return r.Eccentricity, true
	case MetricMeanMotionRevDay:
		return r.MeanMotionRevDay, true
	case MetricBstar:
		if r.Bstar == nil {
			return 0, false
		}
		return *r.Bstar, true
	default:
		return 0, false
	}
}
