package orbital

import (
	"fmt"
	"time"

	"orbitwatch/internal/domain"
)

// Calculator turns a telemetry record into derived metrics. All geometry
// uses the gravity constants of the record's own provider; nothing here
// ever looks at a second record, so provenance cannot leak across.
type Calculator struct {
	prop            Propagator
	minElevationDeg float64
}

// NewCalculator creates a Calculator with the given propagator and the
// minimum elevation angle used for coverage geometry.
func NewCalculator(prop Propagator, minElevationDeg float64) *Calculator {
	return &Calculator{prop: prop, minElevationDeg: minElevationDeg}
}

// Derive propagates the record to the evaluation instant and computes the
// full derived-metric set. Records that propagate to or below the ground
// are rejected with ErrNonPhysicalAltitude.
func (c *Calculator) Derive(rec *domain.TelemetryRecord, at time.Time) (*domain.DerivedMetrics, error) {
	consts := ConstantsFor(rec.Source.GravityModel())

	point, err := c.prop.Propagate(rec, at)
	if err != nil {
		return nil, err
	}

	apoKm, periKm, err := consts.Apsides(rec.MeanMotionRevDay, rec.Eccentricity)
	if err != nil {
		return nil, fmt.Errorf("object %d: %w", rec.ObjectID, err)
	}

	periodMin, err := PeriodMinutes(rec.MeanMotionRevDay)
	if err != nil {
		return nil, fmt.Errorf("object %d: %w", rec.ObjectID, err)
	}

	coverageKm, err := consts.CoverageRadiusKm(point.AltitudeKm, c.minElevationDeg)
	if err != nil {
		return nil, fmt.Errorf("object %d: %w", rec.ObjectID, err)
	}

	return &domain.DerivedMetrics{
		ObjectID:         rec.ObjectID,
		Source:           rec.Source,
		Epoch:            at.UTC(),
		LatitudeDeg:      point.LatitudeDeg,
		LongitudeDeg:     point.LongitudeDeg,
		AltitudeKm:       point.AltitudeKm,
		VelocityKmS:      point.VelocityKmS,
		ApoapsisKm:       apoKm,
		PeriapsisKm:      periKm,
		PeriodMin:        periodMin,
		CoverageRadiusKm: coverageKm,
		FootprintKm:      FootprintKm(coverageKm),
	}, nil
}

// MetricValue extracts one metric from a record: element metrics straight
// off the element set, geometry metrics through the provider's constants,
// and propagation metrics by propagating to the record's own epoch.
// Returns ErrValueUnavailable when the record cannot yield the metric.
func (c *Calculator) MetricValue(rec *domain.TelemetryRecord, metric domain.MetricType) (float64, error) {
	consts := ConstantsFor(rec.Source.GravityModel())

	switch metric {
	case domain.MetricInclinationDeg, domain.MetricEccentricity, domain.MetricMeanMotionRevDay:
		v, _ := rec.ElementMetricValue(metric)
		return v, nil

	case domain.MetricBstar:
		v, ok := rec.ElementMetricValue(metric)
		if !ok {
			return 0, fmt.Errorf("object %d has no drag term: %w", rec.ObjectID, ErrValueUnavailable)
		}
		return v, nil

	case domain.MetricApoapsisKm:
		apo, _, err := consts.Apsides(rec.MeanMotionRevDay, rec.Eccentricity)
		return apo, err

	case domain.MetricPeriapsisKm:
		_, peri, err := consts.Apsides(rec.MeanMotionRevDay, rec.Eccentricity)
		return peri, err

	case domain.MetricPeriodMin:
		return PeriodMinutes(rec.MeanMotionRevDay)

	case domain.MetricVelocityKmS:
		point, err := c.prop.Propagate(rec, rec.Epoch)
		if err != nil {
			return 0, err
		}
		return point.VelocityKmS, nil

	case domain.MetricCoverageRadiusKm:
		point, err := c.prop.Propagate(rec, rec.Epoch)
		if err != nil {
			return 0, err
		}
		return consts.CoverageRadiusKm(point.AltitudeKm, c.minElevationDeg)

	default:
		return 0, fmt.Errorf("unknown metric %q: %w", metric, ErrValueUnavailable)
	}
}

// MinElevationDeg exposes the configured coverage elevation angle.
func (c *Calculator) MinElevationDeg() float64 {
	return c.minElevationDeg
}
