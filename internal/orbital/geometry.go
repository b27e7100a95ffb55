package orbital

import (
	"errors"
	"fmt"
	"math"
)

const (
	secondsPerDay = 86400.0
	minutesPerDay = 1440.0
)

var (
	// ErrNonPhysicalAltitude rejects geometry at or below the ground.
	// Propagation of a decayed or garbage element set can land there;
	// such values must never reach baselines or dashboards.
	ErrNonPhysicalAltitude = errors.New("orbital: non-physical altitude at or below ground")

	// ErrValueUnavailable means the record cannot yield the requested
	// metric, e.g. a drag term the provider never fit.
	ErrValueUnavailable = errors.New("orbital: metric value unavailable for record")

	// ErrInvalidElements rejects element values outside physical range.
	ErrInvalidElements = errors.New("orbital: invalid orbital elements")
)

// SemiMajorAxisKm derives the semi-major axis from mean motion via
// Kepler's third law: a = (mu / n^2)^(1/3) with n in rad/s.
func (c Constants) SemiMajorAxisKm(meanMotionRevDay float64) (float64, error) {
	if meanMotionRevDay <= 0 {
		return 0, fmt.Errorf("%w: mean motion %v rev/day", ErrInvalidElements, meanMotionRevDay)
	}
	n := meanMotionRevDay * 2 * math.Pi / secondsPerDay
	return math.Cbrt(c.MuKm3S2 / (n * n)), nil
}

// Apsides returns the apoapsis and periapsis altitudes above the model's
// equatorial radius, in km.
func (c Constants) Apsides(meanMotionRevDay, eccentricity float64) (apoKm, periKm float64, err error) {
	if eccentricity < 0 || eccentricity >= 1 {
		return 0, 0, fmt.Errorf("%w: eccentricity %v", ErrInvalidElements, eccentricity)
	}
	a, err := c.SemiMajorAxisKm(meanMotionRevDay)
	if err != nil {
		return 0, 0, err
	}
	apoKm = a*(1+eccentricity) - c.EarthRadiusKm
	periKm = a*(1-eccentricity) - c.EarthRadiusKm
	return apoKm, periKm, nil
}

// PeriodMinutes converts mean motion to the orbital period.
func PeriodMinutes(meanMotionRevDay float64) (float64, error) {
	if meanMotionRevDay <= 0 {
		return 0, fmt.Errorf("%w: mean motion %v rev/day", ErrInvalidElements, meanMotionRevDay)
	}
	return minutesPerDay / meanMotionRevDay, nil
}

// CoverageRadiusKm is the great-circle radius of the ground area that
// sees the satellite above the minimum elevation angle:
//
//	rho = arccos(R*cos(e) / (R+h)) - e
//
// with the angular radius rho converted to kilometres along the ground.
// The radius shrinks to zero as altitude approaches zero and grows
// monotonically with altitude.
func (c Constants) CoverageRadiusKm(altitudeKm, minElevationDeg float64) (float64, error) {
	if altitudeKm <= 0 {
		return 0, fmt.Errorf("%w: %v km", ErrNonPhysicalAltitude, altitudeKm)
	}
	if minElevationDeg < 0 || minElevationDeg >= 90 {
		return 0, fmt.Errorf("%w: min elevation %v deg", ErrInvalidElements, minElevationDeg)
	}
	e := minElevationDeg * math.Pi / 180
	rho := math.Acos(c.EarthRadiusKm*math.Cos(e)/(c.EarthRadiusKm+altitudeKm)) - e
	return c.EarthRadiusKm * rho, nil
}

// FootprintKm is the arc diameter of the coverage circle.
func FootprintKm(coverageRadiusKm float64) float64 {
	return 2 * coverageRadiusKm
}
