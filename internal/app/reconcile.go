package app

import (
	"context"
	"time"

	"orbitwatch/internal/observability"
	"orbitwatch/internal/pipeline"
)

// RunReconcile executes one reconcile pass as of now and exits.
func (a *App) RunReconcile(ctx context.Context) error {
	st, err := a.openStores(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	reconciler, _, err := a.newReconciler(st)
	if err != nil {
		return err
	}

	return a.reconcileOnce(ctx, reconciler, time.Now().UTC())
}

func (a *App) reconcileOnce(ctx context.Context, reconciler *pipeline.Runner, asOf time.Time) error {
	start := time.Now()
	res, err := reconciler.Run(ctx, asOf)
	if err != nil {
		observability.RecordReconcileRun("error", time.Since(start).Seconds())
		return err
	}

	observability.RecordReconcileRun("success", time.Since(start).Seconds())
	observability.MarkReconcileSuccess(time.Now().Unix())

	// Per-stream errors did not stop the pass; they are already in the
	// result log line and will be retried by the next bucket.
	if len(res.Errors) > 0 {
		a.Logger.Warn().
			Int("errors", len(res.Errors)).
			Str("first", res.Errors[0]).
			Msg("reconcile pass finished with per-stream errors")
	}
	return nil
}
