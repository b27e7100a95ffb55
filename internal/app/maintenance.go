package app

import (
	"context"
	"fmt"

	"orbitwatch/internal/observability"
	"orbitwatch/internal/signals"
)

// PurgeBackfill executes one auditable maintenance run: purge the
// signals detected in the window, re-detect it with the current logic,
// and record both counts. Re-running the same parameters after success
// is a no-op that returns the recorded outcome.
func (a *App) PurgeBackfill(ctx context.Context, opts signals.PurgeBackfillOptions) error {
	st, err := a.openStores(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	reconciler, _, err := a.newReconciler(st)
	if err != nil {
		return err
	}

	maintainer := signals.NewMaintainer(st.signals, st.maintenance, reconciler, a.Logger)

	run, err := maintainer.PurgeBackfill(ctx, opts)
	if run != nil {
		observability.RecordMaintenanceRun(run.Status.String(), run.Purged, run.Backfilled)
	}
	if err != nil {
		return err
	}

	fmt.Printf("maintenance run %s: %s\n", run.RunID, run.Status)
	fmt.Printf("  window:     %s .. %s\n", run.WindowStart.Format("2006-01-02 15:04:05Z07:00"), run.WindowEnd.Format("2006-01-02 15:04:05Z07:00"))
	fmt.Printf("  purged:     %d\n", run.Purged)
	fmt.Printf("  backfilled: %d\n", run.Backfilled)
	return nil
}
