package orbital

import "orbitwatch/internal/domain"

// Constants is one Earth gravity model's parameter set. Geometry derived
// from a record always uses the model its provider fit against; mixing
// models introduces a systematic bias larger than some of the deltas the
// detector is looking for.
type Constants struct {
	MuKm3S2       float64 // standard gravitational parameter, km^3/s^2
	EarthRadiusKm float64 // equatorial radius, km
}

// ConstantsFor returns the parameter set for a gravity model.
func ConstantsFor(m domain.GravityModel) Constants {
	switch m {
	case domain.GravityWGS84:
		return Constants{MuKm3S2: 398600.5, EarthRadiusKm: 6378.137}
	default:
		return Constants{MuKm3S2: 398600.8, EarthRadiusKm: 6378.135}
	}
}
