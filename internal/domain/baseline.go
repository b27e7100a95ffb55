package domain

import "time"

// Baseline holds rolling statistics for one (object, metric, source)
// stream over a fixed window. Rows are immutable: recomputation inserts
// a new row and readers take the latest, so a signal can always be traced
// back to the exact baseline it was scored against.
type Baseline struct {
	ID          int64
	ObjectID    int
	MetricType  MetricType
	Source      Source
	Mean        float64
	Stddev      float64 // sample standard deviation (n-1)
	Median      float64
	P95         float64
	SampleCount int
	WindowStart time.Time
	WindowEnd   time.Time
	ComputedAt  time.Time
}

// Sufficient reports whether the baseline was computed from at least
// min samples. Detection refuses to score against thin baselines.
func (b *Baseline) Sufficient(min int) bool {
	return b != nil && b.SampleCount >= min
}
