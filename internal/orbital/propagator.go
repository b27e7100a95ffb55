package orbital

import (
	"fmt"
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"orbitwatch/internal/domain"
)

// GroundPoint is the propagated state of an object at one instant:
// subsatellite position, altitude and inertial speed.
type GroundPoint struct {
	LatitudeDeg  float64
	LongitudeDeg float64
	AltitudeKm   float64
	VelocityKmS  float64
}

// Propagator advances an element set to a point in time. The rest of the
// engine depends only on this interface; the SGP4 implementation below is
// the single place the propagation library is touched.
type Propagator interface {
	Propagate(rec *domain.TelemetryRecord, at time.Time) (GroundPoint, error)
}

// SGP4 propagates element sets with the standard SGP4/SDP4 model, using
// the gravity constants of the record's provider.
type SGP4 struct{}

// NewSGP4 creates the SGP4 propagator.
func NewSGP4() *SGP4 {
	return &SGP4{}
}

var _ Propagator = (*SGP4)(nil)

// Propagate implements Propagator.
func (p *SGP4) Propagate(rec *domain.TelemetryRecord, at time.Time) (GroundPoint, error) {
	sat := satellite.TLEToSat(rec.Line1, rec.Line2, gravityFor(rec.Source.GravityModel()))

	utc := at.UTC()
	year, month, day := utc.Date()
	hour, minute, second := utc.Clock()

	pos, vel := satellite.Propagate(sat, year, int(month), day, hour, minute, second)
	speed := math.Sqrt(vel.X*vel.X + vel.Y*vel.Y + vel.Z*vel.Z)
	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsNaN(pos.Z) || math.IsNaN(speed) {
		return GroundPoint{}, fmt.Errorf("orbital: propagation diverged for object %d at %s", rec.ObjectID, utc.Format(time.RFC3339))
	}

	gmst := satellite.GSTimeFromDate(year, int(month), day, hour, minute, second)
	altKm, _, latLon := satellite.ECIToLLA(pos, gmst)
	if math.IsNaN(altKm) {
		return GroundPoint{}, fmt.Errorf("orbital: propagation diverged for object %d at %s", rec.ObjectID, utc.Format(time.RFC3339))
	}
	if altKm <= 0 {
		return GroundPoint{}, fmt.Errorf("object %d at %s: %w", rec.ObjectID, utc.Format(time.RFC3339), ErrNonPhysicalAltitude)
	}

	return GroundPoint{
		LatitudeDeg:  latLon.Latitude * 180 / math.Pi,
		LongitudeDeg: normalizeLongitudeDeg(latLon.Longitude * 180 / math.Pi),
		AltitudeKm:   altKm,
		VelocityKmS:  speed,
	}, nil
}

func gravityFor(m domain.GravityModel) satellite.Gravity {
	if m == domain.GravityWGS84 {
		return satellite.GravityWGS84
	}
	return satellite.GravityWGS72
}

func normalizeLongitudeDeg(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}
