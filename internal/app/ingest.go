package app

import (
	"context"
	"fmt"

	"orbitwatch/internal/ingestion"
)

// RunIngest executes one ingest pass over both providers and exits.
func (a *App) RunIngest(ctx context.Context) error {
	st, err := a.openStores(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	runner, err := a.newIngestRunner(st)
	if err != nil {
		return err
	}

	return a.ingestOnce(ctx, runner)
}

// ingestOnce runs both provider legs and reports the outcome. Every
// provider failing is an error; a single failed leg is logged and
// tolerated, because the healthy provider's data is still worth
// storing and the legs are isolated by design.
func (a *App) ingestOnce(ctx context.Context, runner *ingestion.Runner) error {
	reports := runner.RunOnce(ctx)

	failed := 0
	for _, report := range reports {
		if report.Err != nil {
			failed++
			continue
		}
		a.Logger.Info().
			Str("source", report.Source).
			Int("fetched", report.Result.Fetched).
			Int("accepted", report.Result.Accepted).
			Int("duplicates", report.Result.Duplicates).
			Int("rejected", report.Result.Rejected).
			Msg("provider ingest finished")
	}

	if failed == len(reports) {
		return fmt.Errorf("all %d provider fetches failed", failed)
	}
	return nil
}
