package orbital

import (
	"errors"
	"math"
	"testing"

	"orbitwatch/internal/domain"
)

func TestApsides_ISSLikeOrbit(t *testing.T) {
	// ISS element set from 2008: n = 15.72125391 rev/day, e = 0.0006703.
	// Published apsides at the time were roughly 350 x 357 km.
	c := ConstantsFor(domain.GravityWGS72)

	apo, peri, err := c.Apsides(15.72125391, 0.0006703)
	if err != nil {
		t.Fatalf("Apsides() error = %v", err)
	}

	if apo <= peri {
		t.Errorf("apoapsis %v should exceed periapsis %v", apo, peri)
	}
	if apo < 350 || apo > 365 {
		t.Errorf("apoapsis = %v km, want roughly 357", apo)
	}
	if peri < 340 || peri > 355 {
		t.Errorf("periapsis = %v km, want roughly 350", peri)
	}
}

func TestApsides_CircularOrbitCollapses(t *testing.T) {
	c := ConstantsFor(domain.GravityWGS84)

	apo, peri, err := c.Apsides(15.5, 0)
	if err != nil {
		t.Fatalf("Apsides() error = %v", err)
	}
	if math.Abs(apo-peri) > 1e-9 {
		t.Errorf("zero eccentricity should give apoapsis == periapsis, got %v vs %v", apo, peri)
	}
}

func TestApsides_RejectsInvalidElements(t *testing.T) {
	c := ConstantsFor(domain.GravityWGS72)

	if _, _, err := c.Apsides(0, 0.001); !errors.Is(err, ErrInvalidElements) {
		t.Errorf("zero mean motion: error = %v, want ErrInvalidElements", err)
	}
	if _, _, err := c.Apsides(15.5, 1.0); !errors.Is(err, ErrInvalidElements) {
		t.Errorf("eccentricity 1.0: error = %v, want ErrInvalidElements", err)
	}
	if _, _, err := c.Apsides(15.5, -0.1); !errors.Is(err, ErrInvalidElements) {
		t.Errorf("negative eccentricity: error = %v, want ErrInvalidElements", err)
	}
}

func TestPeriodMinutes(t *testing.T) {
	got, err := PeriodMinutes(15.72125391)
	if err != nil {
		t.Fatalf("PeriodMinutes() error = %v", err)
	}
	// 1440 / 15.72125391 = 91.595...
	if math.Abs(got-91.595) > 0.01 {
		t.Errorf("PeriodMinutes() = %v, want ~91.595", got)
	}

	if _, err := PeriodMinutes(0); !errors.Is(err, ErrInvalidElements) {
		t.Errorf("zero mean motion: error = %v, want ErrInvalidElements", err)
	}
}

func TestCoverageRadius_VanishesAtGround(t *testing.T) {
	// As altitude approaches zero the visibility cone collapses:
	// rho = arccos(cos(e)) - e = 0.
	c := ConstantsFor(domain.GravityWGS84)

	got, err := c.CoverageRadiusKm(0.001, 10)
	if err != nil {
		t.Fatalf("CoverageRadiusKm() error = %v", err)
	}
	if got > 5 {
		t.Errorf("coverage at near-zero altitude = %v km, want ~0", got)
	}
}

func TestCoverageRadius_KnownAngle(t *testing.T) {
	// At zero elevation and altitude equal to the Earth radius,
	// rho = arccos(1/2) = 60 degrees, so the ground radius is R*pi/3.
	c := ConstantsFor(domain.GravityWGS84)

	got, err := c.CoverageRadiusKm(c.EarthRadiusKm, 0)
	if err != nil {
		t.Fatalf("CoverageRadiusKm() error = %v", err)
	}
	want := c.EarthRadiusKm * math.Pi / 3
	if math.Abs(got-want) > 0.1 {
		t.Errorf("CoverageRadiusKm() = %v, want %v", got, want)
	}
}

func TestCoverageRadius_MonotonicInAltitude(t *testing.T) {
	c := ConstantsFor(domain.GravityWGS72)

	prev := 0.0
	for _, alt := range []float64{200, 400, 800, 1600, 20000, 36000} {
		got, err := c.CoverageRadiusKm(alt, 5)
		if err != nil {
			t.Fatalf("CoverageRadiusKm(%v) error = %v", alt, err)
		}
		if got <= prev {
			t.Errorf("coverage at %v km = %v, not above previous %v", alt, got, prev)
		}
		prev = got
	}
}

func TestCoverageRadius_RejectsNonPhysicalAltitude(t *testing.T) {
	c := ConstantsFor(domain.GravityWGS72)

	if _, err := c.CoverageRadiusKm(0, 10); !errors.Is(err, ErrNonPhysicalAltitude) {
		t.Errorf("zero altitude: error = %v, want ErrNonPhysicalAltitude", err)
	}
	if _, err := c.CoverageRadiusKm(-120, 10); !errors.Is(err, ErrNonPhysicalAltitude) {
		t.Errorf("negative altitude: error = %v, want ErrNonPhysicalAltitude", err)
	}
}

func TestGravityModelsDiffer(t *testing.T) {
	// The two models must produce different geometry for the same
	// elements; this is what makes per-provider constants meaningful.
	w72 := ConstantsFor(domain.GravityWGS72)
	w84 := ConstantsFor(domain.GravityWGS84)

	apo72, _, err := w72.Apsides(15.5, 0.001)
	if err != nil {
		t.Fatalf("Apsides(wgs72) error = %v", err)
	}
	apo84, _, err := w84.Apsides(15.5, 0.001)
	if err != nil {
		t.Fatalf("Apsides(wgs84) error = %v", err)
	}
	if apo72 == apo84 {
		t.Error("WGS72 and WGS84 produced identical apoapsis; constants are not wired")
	}
}

func TestFootprintIsDiameter(t *testing.T) {
	if got := FootprintKm(1234.5); got != 2469.0 {
		t.Errorf("FootprintKm(1234.5) = %v, want 2469.0", got)
	}
}
