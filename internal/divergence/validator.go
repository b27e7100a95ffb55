// Package divergence cross-checks the two providers' views of the same
// object. It is the only code path where both providers' values meet,
// and they meet only inside a DivergenceRecord that keeps each value
// attributed to its source.
package divergence

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"orbitwatch/internal/domain"
	"orbitwatch/internal/orbital"
	"orbitwatch/internal/storage"
)

// ErrMissingSource is returned when one provider has no usable record
// for the object inside the lookback window. No verdict can be produced
// from a single source.
var ErrMissingSource = errors.New("divergence: no usable record from source")

// Validator evaluates cross-provider consistency for one metric at a
// time. Observations further apart than maxEpochGap get the unreliable
// verdict instead of a delta comparison pretending the gap away.
type Validator struct {
	telemetry   storage.TelemetryStore
	divergences storage.DivergenceStore
	calc        *orbital.Calculator
	maxEpochGap time.Duration
	toleranceP  float64 // relative tolerance, percent
	lookback    time.Duration
	logger      zerolog.Logger
}

// NewValidator creates a divergence validator. toleranceP is the relative
// delta in percent above which near-in-time observations count as
// diverged; lookback bounds how far back the pairing search goes.
func NewValidator(telemetry storage.TelemetryStore, divergences storage.DivergenceStore, calc *orbital.Calculator, maxEpochGap time.Duration, toleranceP float64, lookback time.Duration, logger zerolog.Logger) *Validator {
	return &Validator{
		telemetry:   telemetry,
		divergences: divergences,
		calc:        calc,
		maxEpochGap: maxEpochGap,
		toleranceP:  toleranceP,
		lookback:    lookback,
		logger:      logger.With().Str("component", "divergence").Logger(),
	}
}

// Evaluate pairs the closest-in-epoch observations of one metric from
// both providers, stores the verdict row and returns it.
func (v *Validator) Evaluate(ctx context.Context, objectID int, metric domain.MetricType, asOf time.Time) (*domain.DivergenceRecord, error) {
	from := asOf.Add(-v.lookback)

	st, err := v.observations(ctx, objectID, domain.SourceSpaceTrack, metric, from, asOf)
	if err != nil {
		return nil, err
	}
	ll, err := v.observations(ctx, objectID, domain.SourceLeoLabs, metric, from, asOf)
	if err != nil {
		return nil, err
	}
	if len(st) == 0 {
		return nil, fmt.Errorf("%w: %s for object %d", ErrMissingSource, domain.SourceSpaceTrack, objectID)
	}
	if len(ll) == 0 {
		return nil, fmt.Errorf("%w: %s for object %d", ErrMissingSource, domain.SourceLeoLabs, objectID)
	}

	obsST, obsLL := nearestPair(st, ll)
	gap := epochGap(obsST.Epoch, obsLL.Epoch)

	rec := &domain.DivergenceRecord{
		ObjectID:    objectID,
		MetricType:  metric,
		SpaceTrack:  obsST,
		LeoLabs:     obsLL,
		Delta:       obsLL.Value - obsST.Value,
		EpochGap:    gap,
		EvaluatedAt: asOf.UTC(),
	}

	if gap > v.maxEpochGap {
		// The providers are not describing the same orbit state; any
		// delta computed across this gap would be noise.
		rec.Verdict = domain.VerdictUnreliable
	} else {
		rec.RelativeDeltaPct = relativeDeltaPct(obsST.Value, obsLL.Value)
		if rec.RelativeDeltaPct > v.toleranceP {
			rec.Verdict = domain.VerdictDiverged
		} else {
			rec.Verdict = domain.VerdictConsistent
		}
	}

	if err := v.divergences.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist divergence for object %d %s: %w", objectID, metric, err)
	}

	v.logger.Debug().
		Int("object_id", objectID).
		Str("metric", metric.String()).
		Str("verdict", rec.Verdict.String()).
		Dur("epoch_gap", gap).
		Float64("relative_delta_pct", rec.RelativeDeltaPct).
		Msg("divergence evaluated")

	return rec, nil
}

// observations loads one provider's records in the window and extracts
// the metric, skipping records that cannot yield it.
func (v *Validator) observations(ctx context.Context, objectID int, source domain.Source, metric domain.MetricType, from, to time.Time) ([]domain.MetricObservation, error) {
	recs, err := v.telemetry.Range(ctx, objectID, source, from, to)
	if err != nil {
		return nil, fmt.Errorf("load %s telemetry for object %d: %w", source, objectID, err)
	}

	obs := make([]domain.MetricObservation, 0, len(recs))
	for _, rec := range recs {
		val, err := v.calc.MetricValue(rec, metric)
		if err != nil {
			if errors.Is(err, orbital.ErrValueUnavailable) ||
				errors.Is(err, orbital.ErrNonPhysicalAltitude) ||
				errors.Is(err, orbital.ErrInvalidElements) {
				continue
			}
			return nil, err
		}
		obs = append(obs, domain.MetricObservation{Value: val, Epoch: rec.Epoch})
	}
	return obs, nil
}

// nearestPair finds the pair of observations, one from each side,
// minimizing the epoch gap. Both inputs are ordered by epoch ASC, so a
// two-pointer sweep visits each candidate pairing once.
func nearestPair(a, b []domain.MetricObservation) (domain.MetricObservation, domain.MetricObservation) {
	bestA, bestB := a[0], b[0]
	bestGap := epochGap(a[0].Epoch, b[0].Epoch)

	i, j := 0, 0
	for i < len(a) && j < len(b) {
		gap := epochGap(a[i].Epoch, b[j].Epoch)
		if gap < bestGap {
			bestGap = gap
			bestA, bestB = a[i], b[j]
		}
		// Advance the side that lags; moving the later epoch forward can
		// only widen this pairing.
		if a[i].Epoch.Before(b[j].Epoch) {
			i++
		} else {
			j++
		}
	}
	return bestA, bestB
}

func epochGap(a, b time.Time) time.Duration {
	gap := a.Sub(b)
	if gap < 0 {
		gap = -gap
	}
	return gap
}

// relativeDeltaPct is the absolute delta over the larger magnitude, in
// percent. Symmetric so neither provider is the reference; two zeros
// agree exactly.
func relativeDeltaPct(a, b float64) float64 {
	denom := math.Max(math.Abs(a), math.Abs(b))
	if denom == 0 {
		return 0
	}
	return math.Abs(b-a) / denom * 100
}
