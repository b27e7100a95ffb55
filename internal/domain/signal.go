package domain

import "time"

// AnomalyType classifies what kind of behavioural change a signal reports.
type AnomalyType string

const (
	AnomalyOrbitManeuver      AnomalyType = "orbit_maneuver"
	AnomalyOrbitalDecay       AnomalyType = "orbital_decay"
	AnomalyEccentricityDrift  AnomalyType = "eccentricity_drift"
	AnomalyCoverageShift      AnomalyType = "coverage_shift"
	AnomalyProviderDivergence AnomalyType = "provider_divergence"
)

// AllAnomalyTypes lists every anomaly type in canonical order.
var AllAnomalyTypes = []AnomalyType{
	AnomalyOrbitManeuver,
	AnomalyOrbitalDecay,
	AnomalyEccentricityDrift,
	AnomalyCoverageShift,
	AnomalyProviderDivergence,
}

// String returns the string representation of AnomalyType.
func (t AnomalyType) String() string {
	return string(t)
}

// IsValid checks if the anomaly type is a valid value.
func (t AnomalyType) IsValid() bool {
	switch t {
	case AnomalyOrbitManeuver, AnomalyOrbitalDecay, AnomalyEccentricityDrift,
		AnomalyCoverageShift, AnomalyProviderDivergence:
		return true
	}
	return false
}

// Severity grades how far outside baseline an observation landed.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// String returns the string representation of Severity.
func (s Severity) String() string {
	return string(s)
}

// IsValid checks if the severity is a valid value.
func (s Severity) IsValid() bool {
	return s == SeverityLow || s == SeverityMedium || s == SeverityHigh || s == SeverityCritical
}

// Rank orders severities for filtering; higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Category is the product-facing grouping a signal is published under.
// The taxonomy is shared with the downstream briefing products; this
// engine currently emits constellation, market and regulatory signals,
// but filters accept the full set.
type Category string

const (
	CategoryMarket        Category = "market"
	CategoryRegulatory    Category = "regulatory"
	CategoryCommunity     Category = "community"
	CategoryCorporate     Category = "corporate"
	CategoryIP            Category = "ip"
	CategoryConstellation Category = "constellation"
)

// String returns the string representation of Category.
func (c Category) String() string {
	return string(c)
}

// IsValid checks if the category is a valid value.
func (c Category) IsValid() bool {
	switch c {
	case CategoryMarket, CategoryRegulatory, CategoryCommunity,
		CategoryCorporate, CategoryIP, CategoryConstellation:
		return true
	}
	return false
}

// Signal is one published detection. Corresponds to the signals table in
// Postgres. Fingerprint is unique across live rows: re-detecting the same
// anomaly inside the dedup window updates the existing row instead of
// inserting a duplicate.
type Signal struct {
	ID            int64
	Fingerprint   string // hex SHA-256, see idhash.SignalFingerprint
	ShortID       string // base58 display handle derived from Fingerprint
	AnomalyType   AnomalyType
	Category      Category
	Severity      Severity
	Confidence    float64
	ObjectID      int
	MetricType    MetricType
	Source        Source // provider the observation came from; empty for cross-provider signals
	ObservedValue float64
	BaselineMean  float64
	ZScore        float64
	Payload       SignalPayload
	DetectedAt    time.Time
	ExpiresAt     time.Time
	Processed     bool
}

// Live reports whether the signal is still inside its time-to-live at
// the given instant.
func (s *Signal) Live(now time.Time) bool {
	return s != nil && now.Before(s.ExpiresAt)
}
