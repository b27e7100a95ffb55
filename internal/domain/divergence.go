package domain

import "time"

// DivergenceVerdict is the outcome of comparing the same metric across
// both providers.
type DivergenceVerdict string

const (
	// VerdictConsistent means both providers agree within tolerance.
	VerdictConsistent DivergenceVerdict = "consistent"
	// VerdictDiverged means the relative delta exceeded tolerance.
	VerdictDiverged DivergenceVerdict = "diverged"
	// VerdictUnreliable means the nearest epochs were too far apart for
	// the comparison to mean anything. No delta verdict is implied.
	VerdictUnreliable DivergenceVerdict = "unreliable"
)

// String returns the string representation of DivergenceVerdict.
func (v DivergenceVerdict) String() string {
	return string(v)
}

// IsValid checks if the verdict is a valid value.
func (v DivergenceVerdict) IsValid() bool {
	return v == VerdictConsistent || v == VerdictDiverged || v == VerdictUnreliable
}

// MetricObservation is one provider's value for a metric at an epoch.
type MetricObservation struct {
	Value float64
	Epoch time.Time
}

// DivergenceRecord is the stored result of one cross-provider comparison
// for an (object, metric) pair. The two observations stay attributed to
// their providers; the record is the only place both appear side by side.
type DivergenceRecord struct {
	ID               int64
	ObjectID         int
	MetricType       MetricType
	SpaceTrack       MetricObservation
	LeoLabs          MetricObservation
	Delta            float64 // leolabs minus spacetrack
	RelativeDeltaPct float64 // |delta| over the larger magnitude, percent
	EpochGap         time.Duration
	Verdict          DivergenceVerdict
	EvaluatedAt      time.Time
}

// Observation returns the stored observation for the given source.
func (d *DivergenceRecord) Observation(s Source) MetricObservation {
	if s == SourceLeoLabs {
		return d.LeoLabs
	}
	return d.SpaceTrack
}
