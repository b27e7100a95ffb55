package domain

// Source identifies the telemetry provider a record was ingested from.
// Records from different sources are never merged or compared implicitly;
// every query and derived value is tagged with exactly one Source.
type Source string

const (
	SourceSpaceTrack Source = "spacetrack"
	SourceLeoLabs    Source = "leolabs"
)

// AllSources lists every supported provider in canonical order.
var AllSources = []Source{SourceSpaceTrack, SourceLeoLabs}

// String returns the string representation of Source.
func (s Source) String() string {
	return string(s)
}

// IsValid checks if the source is a valid value.
func (s Source) IsValid() bool {
	return s == SourceSpaceTrack || s == SourceLeoLabs
}

// GravityModel returns the geodetic constant set the provider fits its
// element sets against. SGP4 output drifts if propagation uses a different
// model than the provider used for the fit.
func (s Source) GravityModel() GravityModel {
	switch s {
	case SourceLeoLabs:
		return GravityWGS84
	default:
		return GravityWGS72
	}
}

// GravityModel selects the Earth gravity constants used for propagation
// and element-derived geometry.
type GravityModel string

const (
	GravityWGS72 GravityModel = "wgs72"
	GravityWGS84 GravityModel = "wgs84"
)

// String returns the string representation of GravityModel.
func (m GravityModel) String() string {
	return string(m)
}

// IsValid checks if the gravity model is a valid value.
func (m GravityModel) IsValid() bool {
	return m == GravityWGS72 || m == GravityWGS84
}
