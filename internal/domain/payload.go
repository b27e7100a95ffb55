package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// SignalPayload carries the anomaly-specific evidence attached to a
// signal. Each anomaly type has exactly one payload shape; consumers
// switch on the concrete type instead of probing a loose map.
type SignalPayload interface {
	AnomalyType() AnomalyType
}

// ManeuverPayload backs orbit_maneuver signals: a step change in one of
// the geometry metrics against the per-source baseline.
type ManeuverPayload struct {
	Metric         MetricType `json:"metric"`
	DeltaFromMean  float64    `json:"delta_from_mean"`
	BaselineStddev float64    `json:"baseline_stddev"`
	WindowStart    time.Time  `json:"window_start"`
	WindowEnd      time.Time  `json:"window_end"`
}

func (ManeuverPayload) AnomalyType() AnomalyType { return AnomalyOrbitManeuver }

// DecayPayload backs orbital_decay signals: drag or altitude trending
// outside baseline in the direction of atmospheric decay.
type DecayPayload struct {
	Metric        MetricType `json:"metric"`
	DeltaFromMean float64    `json:"delta_from_mean"`
	PeriapsisKm   *float64   `json:"periapsis_km,omitempty"`
	BstarObserved *float64   `json:"bstar_observed,omitempty"`
}

func (DecayPayload) AnomalyType() AnomalyType { return AnomalyOrbitalDecay }

// EccentricityPayload backs eccentricity_drift signals.
type EccentricityPayload struct {
	Observed      float64  `json:"observed"`
	BaselineMean  float64  `json:"baseline_mean"`
	ApsisSpreadKm *float64 `json:"apsis_spread_km,omitempty"` // apoapsis minus periapsis
}

func (EccentricityPayload) AnomalyType() AnomalyType { return AnomalyEccentricityDrift }

// CoveragePayload backs coverage_shift signals: the ground-visibility
// radius moved outside its baseline band.
type CoveragePayload struct {
	RadiusKm         float64 `json:"radius_km"`
	BaselineRadiusKm float64 `json:"baseline_radius_km"`
	AltitudeKm       float64 `json:"altitude_km"`
	MinElevationDeg  float64 `json:"min_elevation_deg"`
}

func (CoveragePayload) AnomalyType() AnomalyType { return AnomalyCoverageShift }

// DivergencePayload backs provider_divergence signals. This is the one
// payload that names both providers; the values stay attributed.
type DivergencePayload struct {
	Metric           MetricType `json:"metric"`
	SpaceTrackValue  float64    `json:"spacetrack_value"`
	LeoLabsValue     float64    `json:"leolabs_value"`
	RelativeDeltaPct float64    `json:"relative_delta_pct"`
	EpochGapSeconds  int64      `json:"epoch_gap_seconds"`
}

func (DivergencePayload) AnomalyType() AnomalyType { return AnomalyProviderDivergence }

// MarshalSignalPayload encodes a payload for storage.
func MarshalSignalPayload(p SignalPayload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("marshal signal payload: nil payload")
	}
	return json.Marshal(p)
}

// UnmarshalSignalPayload decodes a stored payload back into its concrete
// type based on the signal's anomaly type.
func UnmarshalSignalPayload(t AnomalyType, data []byte) (SignalPayload, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("unmarshal signal payload: empty data for %s", t)
	}
	var (
		p   SignalPayload
		err error
	)
	switch t {
	case AnomalyOrbitManeuver:
		var v ManeuverPayload
		err = json.Unmarshal(data, &v)
		p = v
	case AnomalyOrbitalDecay:
		var v DecayPayload
		err = json.Unmarshal(data, &v)
		p = v
	case AnomalyEccentricityDrift:
		var v EccentricityPayload
		err = json.Unmarshal(data, &v)
		p = v
	case AnomalyCoverageShift:
		var v CoveragePayload
		err = json.Unmarshal(data, &v)
		p = v
	case AnomalyProviderDivergence:
		var v DivergencePayload
		err = json.Unmarshal(data, &v)
		p = v
	default:
		return nil, fmt.Errorf("unmarshal signal payload: unknown anomaly type %q", t)
	}
	if err != nil {
		return nil, fmt.Errorf("unmarshal signal payload for %s: %w", t, err)
	}
	return p, nil
}
