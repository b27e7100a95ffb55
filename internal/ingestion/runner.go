package ingestion

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"orbitwatch/internal/observability"
)

// FetchReport is the outcome of one provider's fetch-and-ingest leg.
// Result may be partial when Err was hit mid-ingest.
type FetchReport struct {
	Source string
	Result *IngestResult
	Err    error
}

// Runner pulls all configured providers once per invocation. The legs
// run in parallel but isolated: each gets its own timeout-bounded
// context, and one provider failing, stalling or rate-limiting never
// cancels the other. That isolation is why this is a WaitGroup fan-out
// and not a shared-cancel group.
type Runner struct {
	sources   []ElementSetSource
	ingestor  *Ingestor
	objectIDs []int
	perFetch  time.Duration
	logger    zerolog.Logger
}

func NewRunner(sources []ElementSetSource, ingestor *Ingestor, objectIDs []int, perFetch time.Duration, logger zerolog.Logger) *Runner {
	return &Runner{
		sources:   sources,
		ingestor:  ingestor,
		objectIDs: objectIDs,
		perFetch:  perFetch,
		logger:    logger.With().Str("component", "ingestion_runner").Logger(),
	}
}

// RunOnce fetches and ingests every provider in parallel and returns
// one report per provider, in source order.
func (r *Runner) RunOnce(ctx context.Context) []FetchReport {
	reports := make([]FetchReport, len(r.sources))

	var wg sync.WaitGroup
	for idx, source := range r.sources {
		wg.Add(1)
		go func(idx int, source ElementSetSource) {
			defer wg.Done()
			reports[idx] = r.runSource(ctx, source)
		}(idx, source)
	}
	wg.Wait()

	return reports
}

func (r *Runner) runSource(ctx context.Context, source ElementSetSource) FetchReport {
	report := FetchReport{Source: source.Source().String()}

	fetchCtx := ctx
	if r.perFetch > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, r.perFetch)
		defer cancel()
	}

	fetchStart := time.Now()
	sets, err := source.Fetch(fetchCtx, r.objectIDs)
	observability.RecordProviderFetch(report.Source, time.Since(fetchStart).Seconds(), err)
	if err != nil {
		r.logger.Error().Err(err).Str("source", report.Source).Msg("provider fetch failed")
		report.Err = err
		return report
	}

	result, err := r.ingestor.Ingest(fetchCtx, source.Source(), sets)
	if err != nil {
		r.logger.Error().Err(err).Str("source", report.Source).Msg("ingest failed")
		report.Err = err
		report.Result = result
		return report
	}

	report.Result = result
	observability.RecordIngest(report.Source, result.Accepted, result.Rejected, result.Duplicates)
	observability.MarkIngestSuccess(report.Source, time.Now().Unix())
	return report
}
