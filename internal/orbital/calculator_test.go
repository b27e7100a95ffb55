package orbital

import (
	"errors"
	"math"
	"testing"
	"time"

	"orbitwatch/internal/domain"
)

// stubPropagator returns a fixed ground point, or an error, regardless of
// the record. Lets calculator tests run without the SGP4 model.
type stubPropagator struct {
	point GroundPoint
	err   error
}

func (s *stubPropagator) Propagate(_ *domain.TelemetryRecord, _ time.Time) (GroundPoint, error) {
	return s.point, s.err
}

func issRecord(source domain.Source) *domain.TelemetryRecord {
	bstar := -0.11606e-4
	return &domain.TelemetryRecord{
		ObjectID:         25544,
		Epoch:            time.Date(2008, 9, 20, 12, 25, 40, 0, time.UTC),
		Source:           source,
		InclinationDeg:   51.6416,
		RAANDeg:          247.4627,
		Eccentricity:     0.0006703,
		ArgPerigeeDeg:    130.5360,
		MeanAnomalyDeg:   325.0288,
		MeanMotionRevDay: 15.72125391,
		Bstar:            &bstar,
		Line1:            "1 25544U 98067A   08264.51782528 -.00002182  00000-0 -11606-4 0  2927",
		Line2:            "2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537",
	}
}

func TestCalculator_Derive(t *testing.T) {
	prop := &stubPropagator{point: GroundPoint{
		LatitudeDeg:  12.5,
		LongitudeDeg: -45.0,
		AltitudeKm:   353.0,
		VelocityKmS:  7.66,
	}}
	calc := NewCalculator(prop, 10)

	rec := issRecord(domain.SourceSpaceTrack)
	at := rec.Epoch.Add(30 * time.Minute)

	got, err := calc.Derive(rec, at)
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}

	if got.ObjectID != 25544 || got.Source != domain.SourceSpaceTrack {
		t.Errorf("identity fields = (%d, %s), want (25544, spacetrack)", got.ObjectID, got.Source)
	}
	if !got.Epoch.Equal(at) {
		t.Errorf("Epoch = %v, want %v", got.Epoch, at)
	}
	if got.AltitudeKm != 353.0 || got.VelocityKmS != 7.66 {
		t.Errorf("propagated state = (%v, %v), want (353, 7.66)", got.AltitudeKm, got.VelocityKmS)
	}
	if got.ApoapsisKm <= got.PeriapsisKm {
		t.Errorf("apoapsis %v should exceed periapsis %v", got.ApoapsisKm, got.PeriapsisKm)
	}
	if math.Abs(got.PeriodMin-91.595) > 0.01 {
		t.Errorf("PeriodMin = %v, want ~91.595", got.PeriodMin)
	}
	if got.CoverageRadiusKm <= 0 {
		t.Errorf("CoverageRadiusKm = %v, want positive", got.CoverageRadiusKm)
	}
	if got.FootprintKm != 2*got.CoverageRadiusKm {
		t.Errorf("FootprintKm = %v, want %v", got.FootprintKm, 2*got.CoverageRadiusKm)
	}
}

func TestCalculator_DeriveRejectsGroundedPoint(t *testing.T) {
	// A propagator that reports a below-ground state must not produce
	// metrics; coverage geometry has no meaning there.
	prop := &stubPropagator{point: GroundPoint{AltitudeKm: -3.0}}
	calc := NewCalculator(prop, 10)

	_, err := calc.Derive(issRecord(domain.SourceSpaceTrack), time.Now())
	if !errors.Is(err, ErrNonPhysicalAltitude) {
		t.Errorf("Derive() error = %v, want ErrNonPhysicalAltitude", err)
	}
}

func TestCalculator_DerivePropagatesPropagatorError(t *testing.T) {
	wantErr := errors.New("model blew up")
	calc := NewCalculator(&stubPropagator{err: wantErr}, 10)

	_, err := calc.Derive(issRecord(domain.SourceLeoLabs), time.Now())
	if !errors.Is(err, wantErr) {
		t.Errorf("Derive() error = %v, want wrapped propagator error", err)
	}
}

func TestCalculator_MetricValue_ElementMetrics(t *testing.T) {
	calc := NewCalculator(&stubPropagator{}, 10)
	rec := issRecord(domain.SourceSpaceTrack)

	got, err := calc.MetricValue(rec, domain.MetricInclinationDeg)
	if err != nil {
		t.Fatalf("MetricValue(inclination) error = %v", err)
	}
	if got != 51.6416 {
		t.Errorf("inclination = %v, want 51.6416", got)
	}

	got, err = calc.MetricValue(rec, domain.MetricBstar)
	if err != nil {
		t.Fatalf("MetricValue(bstar) error = %v", err)
	}
	if math.Abs(got-(-0.11606e-4)) > 1e-12 {
		t.Errorf("bstar = %v, want -0.11606e-4", got)
	}
}

func TestCalculator_MetricValue_AbsentBstar(t *testing.T) {
	calc := NewCalculator(&stubPropagator{}, 10)
	rec := issRecord(domain.SourceSpaceTrack)
	rec.Bstar = nil

	_, err := calc.MetricValue(rec, domain.MetricBstar)
	if !errors.Is(err, ErrValueUnavailable) {
		t.Errorf("MetricValue(bstar) error = %v, want ErrValueUnavailable", err)
	}
}

func TestCalculator_MetricValue_PropagatedMetrics(t *testing.T) {
	prop := &stubPropagator{point: GroundPoint{AltitudeKm: 420, VelocityKmS: 7.65}}
	calc := NewCalculator(prop, 10)
	rec := issRecord(domain.SourceLeoLabs)

	vel, err := calc.MetricValue(rec, domain.MetricVelocityKmS)
	if err != nil {
		t.Fatalf("MetricValue(velocity) error = %v", err)
	}
	if vel != 7.65 {
		t.Errorf("velocity = %v, want 7.65", vel)
	}

	cov, err := calc.MetricValue(rec, domain.MetricCoverageRadiusKm)
	if err != nil {
		t.Fatalf("MetricValue(coverage) error = %v", err)
	}
	if cov <= 0 {
		t.Errorf("coverage = %v, want positive", cov)
	}
}

func TestSGP4_PropagateRealElementSet(t *testing.T) {
	// Propagate the ISS set to its own epoch: altitude and speed must
	// land in the LEO envelope and the latitude inside the inclination
	// band. Loose bounds; this checks wiring, not the model itself.
	prop := NewSGP4()
	rec := issRecord(domain.SourceSpaceTrack)

	point, err := prop.Propagate(rec, rec.Epoch)
	if err != nil {
		t.Fatalf("Propagate() error = %v", err)
	}

	if point.AltitudeKm < 300 || point.AltitudeKm > 450 {
		t.Errorf("AltitudeKm = %v, want within [300, 450]", point.AltitudeKm)
	}
	if point.VelocityKmS < 7.0 || point.VelocityKmS > 8.2 {
		t.Errorf("VelocityKmS = %v, want within [7.0, 8.2]", point.VelocityKmS)
	}
	if math.Abs(point.LatitudeDeg) > 52.0 {
		t.Errorf("LatitudeDeg = %v, want within inclination band +-51.64", point.LatitudeDeg)
	}
	if point.LongitudeDeg < -180 || point.LongitudeDeg > 180 {
		t.Errorf("LongitudeDeg = %v, want normalized to [-180, 180]", point.LongitudeDeg)
	}
}
