package app

import (
	"context"
	"errors"
	"fmt"

	"orbitwatch/internal/domain"
	"orbitwatch/internal/storage"
)

// ShowSignals prints the newest stored signals for operator inspection.
func (a *App) ShowSignals(ctx context.Context, limit int) error {
	st, err := a.openStores(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	sigs, err := st.signals.List(ctx, storage.SignalFilter{Limit: limit})
	if err != nil {
		return fmt.Errorf("list signals: %w", err)
	}
	if len(sigs) == 0 {
		fmt.Println("no signals stored")
		return nil
	}

	fmt.Printf("%-12s %-8s %-20s %-13s %-8s %-19s %8s %s\n",
		"SHORT_ID", "OBJECT", "ANOMALY", "CATEGORY", "SEVERITY", "METRIC", "Z", "DETECTED_AT")
	for _, s := range sigs {
		fmt.Printf("%-12s %-8d %-20s %-13s %-8s %-19s %8.2f %s\n",
			s.ShortID, s.ObjectID, s.AnomalyType, s.Category, s.Severity,
			s.MetricType, s.ZScore, s.DetectedAt.Format("2006-01-02 15:04:05Z"))
	}
	return nil
}

// ShowDivergence prints every stored cross-provider verdict for one
// object.
func (a *App) ShowDivergence(ctx context.Context, objectID int) error {
	st, err := a.openStores(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	recs, err := st.divergences.ListForObject(ctx, objectID)
	if err != nil {
		return fmt.Errorf("list divergence for object %d: %w", objectID, err)
	}
	if len(recs) == 0 {
		fmt.Printf("no divergence verdicts for object %d\n", objectID)
		return nil
	}

	fmt.Printf("%-19s %-12s %14s %14s %8s %10s %s\n",
		"METRIC", "VERDICT", "SPACETRACK", "LEOLABS", "DELTA%", "EPOCH_GAP", "EVALUATED_AT")
	for _, r := range recs {
		fmt.Printf("%-19s %-12s %14.6g %14.6g %8.2f %10s %s\n",
			r.MetricType, r.Verdict, r.SpaceTrack.Value, r.LeoLabs.Value,
			r.RelativeDeltaPct, r.EpochGap, r.EvaluatedAt.Format("2006-01-02 15:04:05Z"))
	}
	return nil
}

// ShowBaselines prints the latest baseline per metric and source for
// one object. Streams without a stored baseline are skipped; absence
// means the cold-start minimum was never reached.
func (a *App) ShowBaselines(ctx context.Context, objectID int) error {
	st, err := a.openStores(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	printed := false
	for _, source := range domain.AllSources {
		for _, metric := range domain.AllMetricTypes {
			b, err := st.baselines.Latest(ctx, objectID, metric, source)
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("load %s/%s baseline for object %d: %w", source, metric, objectID, err)
			}
			if !printed {
				fmt.Printf("%-11s %-19s %14s %12s %14s %14s %7s %s\n",
					"SOURCE", "METRIC", "MEAN", "STDDEV", "MEDIAN", "P95", "SAMPLES", "COMPUTED_AT")
				printed = true
			}
			fmt.Printf("%-11s %-19s %14.6g %12.6g %14.6g %14.6g %7d %s\n",
				b.Source, b.MetricType, b.Mean, b.Stddev, b.Median, b.P95,
				b.SampleCount, b.ComputedAt.Format("2006-01-02 15:04:05Z"))
		}
	}
	if !printed {
		fmt.Printf("no baselines for object %d\n", objectID)
	}
	return nil
}
