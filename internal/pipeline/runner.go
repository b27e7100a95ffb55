// Package pipeline runs the reconcile pass. For every tracked object
// and every provider stream it derives the current metric set, scores
// the newest observations against the stored baselines, refreshes the
// baselines for the next pass, evaluates cross-provider divergence and
// emits signals. The pass is idempotent end to end: samples, baselines
// and signals all write through idempotent upserts, so overlapping or
// retried passes converge on the same state.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"orbitwatch/internal/baseline"
	"orbitwatch/internal/detection"
	"orbitwatch/internal/divergence"
	"orbitwatch/internal/domain"
	"orbitwatch/internal/observability"
	"orbitwatch/internal/orbital"
	"orbitwatch/internal/signals"
	"orbitwatch/internal/storage"
)

const (
	defaultWorkers        = 4
	defaultBaselineWindow = 30 * 24 * time.Hour
)

// Options wire a Runner. Every store and engine is required; Objects
// may be empty to track whatever ingestion has stored.
type Options struct {
	Telemetry  storage.TelemetryStore
	Baselines  storage.BaselineStore
	Samples    storage.MetricSampleStore
	Calculator *orbital.Calculator
	Engine     *baseline.Engine
	Validator  *divergence.Validator
	Detector   *detection.Detector
	Emitter    *signals.Emitter

	Objects           []int
	DivergenceMetrics []domain.MetricType
	BaselineWindow    time.Duration
	Workers           int
	Logger            zerolog.Logger
}

// Runner executes reconcile passes.
type Runner struct {
	telemetry  storage.TelemetryStore
	baselines  storage.BaselineStore
	samples    storage.MetricSampleStore
	calc       *orbital.Calculator
	engine     *baseline.Engine
	validator  *divergence.Validator
	detector   *detection.Detector
	emitter    *signals.Emitter
	objects    []int
	divMetrics []domain.MetricType
	window     time.Duration
	workers    int
	logger     zerolog.Logger
}

// NewRunner creates a reconcile runner from Options, applying defaults
// for workers, baseline window and the divergence metric set.
func NewRunner(opts Options) *Runner {
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	window := opts.BaselineWindow
	if window <= 0 {
		window = defaultBaselineWindow
	}
	divMetrics := opts.DivergenceMetrics
	if len(divMetrics) == 0 {
		divMetrics = []domain.MetricType{domain.MetricBstar}
	}

	return &Runner{
		telemetry:  opts.Telemetry,
		baselines:  opts.Baselines,
		samples:    opts.Samples,
		calc:       opts.Calculator,
		engine:     opts.Engine,
		validator:  opts.Validator,
		detector:   opts.Detector,
		emitter:    opts.Emitter,
		objects:    opts.Objects,
		divMetrics: divMetrics,
		window:     window,
		workers:    workers,
		logger:     opts.Logger.With().Str("component", "pipeline").Logger(),
	}
}

// Result aggregates what one reconcile pass did. Errors carries
// per-stream failures that did not stop the pass.
type Result struct {
	ObjectsProcessed     int
	SamplesInserted      int
	BaselinesComputed    int
	BaselinesSkipped     int
	ObservationsScored   int
	Anomalies            int
	Suppressed           int
	SignalsCreated       int
	SignalsRefreshed     int
	SignalsDeduplicated  int
	DivergencesEvaluated int
	DivergencesDiverged  int
	Errors               []string
}

func (r *Result) merge(o *Result) {
	r.ObjectsProcessed += o.ObjectsProcessed
	r.SamplesInserted += o.SamplesInserted
	r.BaselinesComputed += o.BaselinesComputed
	r.BaselinesSkipped += o.BaselinesSkipped
	r.ObservationsScored += o.ObservationsScored
	r.Anomalies += o.Anomalies
	r.Suppressed += o.Suppressed
	r.SignalsCreated += o.SignalsCreated
	r.SignalsRefreshed += o.SignalsRefreshed
	r.SignalsDeduplicated += o.SignalsDeduplicated
	r.DivergencesEvaluated += o.DivergencesEvaluated
	r.DivergencesDiverged += o.DivergencesDiverged
	r.Errors = append(r.Errors, o.Errors...)
}

// Run executes one reconcile pass as of the given instant. Objects are
// processed in parallel with a bounded worker pool; one object's
// failures are recorded and never stop the others.
func (r *Runner) Run(ctx context.Context, asOf time.Time) (*Result, error) {
	objects, err := r.trackedObjects(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]*Result, len(objects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i, objectID := range objects {
		g.Go(func() error {
			results[i] = r.processObject(gctx, objectID, asOf)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := &Result{}
	for _, res := range results {
		total.merge(res)
	}
	observability.RecordReconcileCounts(total.ObservationsScored, total.Anomalies, total.Suppressed, total.BaselinesComputed)

	r.logger.Info().
		Int("objects", total.ObjectsProcessed).
		Int("scored", total.ObservationsScored).
		Int("anomalies", total.Anomalies).
		Int("suppressed", total.Suppressed).
		Int("signals_created", total.SignalsCreated).
		Int("diverged", total.DivergencesDiverged).
		Int("errors", len(total.Errors)).
		Msg("reconcile pass finished")

	return total, nil
}

// DetectWindow re-scores every stored observation in [from, to] against
// the current baselines with the current policies and re-emits signals.
// Fingerprint dedup makes repeated backfills converge; the returned
// count is rows actually written (created or refreshed).
func (r *Runner) DetectWindow(ctx context.Context, from, to time.Time) (int64, error) {
	objects, err := r.trackedObjects(ctx)
	if err != nil {
		return 0, err
	}

	res := &Result{}
	for _, objectID := range objects {
		for _, source := range domain.AllSources {
			recs, err := r.telemetry.Range(ctx, objectID, source, from, to)
			if err != nil {
				return int64(res.SignalsCreated + res.SignalsRefreshed),
					fmt.Errorf("load %s history for object %d: %w", source, objectID, err)
			}
			for _, rec := range recs {
				r.scoreRecord(ctx, rec, res)
			}
		}
	}

	written := int64(res.SignalsCreated + res.SignalsRefreshed)
	if len(res.Errors) > 0 {
		return written, fmt.Errorf("backfill hit %d errors, first: %s", len(res.Errors), res.Errors[0])
	}
	return written, nil
}

func (r *Runner) trackedObjects(ctx context.Context) ([]int, error) {
	if len(r.objects) > 0 {
		return r.objects, nil
	}

	seen := make(map[int]struct{})
	for _, source := range domain.AllSources {
		ids, err := r.telemetry.ListObjectIDs(ctx, source)
		if err != nil {
			return nil, fmt.Errorf("list %s objects: %w", source, err)
		}
		for _, id := range ids {
			seen[id] = struct{}{}
		}
	}

	objects := make([]int, 0, len(seen))
	for id := range seen {
		objects = append(objects, id)
	}
	sort.Ints(objects)
	return objects, nil
}

func (r *Runner) processObject(ctx context.Context, objectID int, asOf time.Time) *Result {
	res := &Result{ObjectsProcessed: 1}

	for _, source := range domain.AllSources {
		r.processStream(ctx, objectID, source, asOf, res)
	}
	r.evaluateDivergence(ctx, objectID, asOf, res)

	return res
}

// processStream handles one (object, provider) stream: extract the
// newest observation per metric, score it against the stored baseline,
// persist the samples, then refresh the baselines so the next pass
// scores against a window that includes this observation.
func (r *Runner) processStream(ctx context.Context, objectID int, source domain.Source, asOf time.Time, res *Result) {
	latest, err := r.telemetry.Latest(ctx, objectID, source)
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("latest %s record for object %d: %v", source, objectID, err))
		return
	}

	r.scoreRecord(ctx, latest, res)

	for _, metric := range domain.AllMetricTypes {
		_, err := r.engine.Recompute(ctx, objectID, metric, source, asOf.Add(-r.window), asOf)
		if errors.Is(err, baseline.ErrInsufficientSamples) {
			res.BaselinesSkipped++
			continue
		}
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("recompute %s/%s baseline for object %d: %v", source, metric, objectID, err))
			continue
		}
		res.BaselinesComputed++
	}
}

// scoreRecord extracts every available metric from one record, persists
// the samples and scores each value against the current baseline.
func (r *Runner) scoreRecord(ctx context.Context, rec *domain.TelemetryRecord, res *Result) {
	derived := r.deriveSnapshot(rec, res)

	samples := make([]*domain.MetricSample, 0, len(domain.AllMetricTypes))
	computedAt := time.Now().UTC()

	for _, metric := range domain.AllMetricTypes {
		value, err := r.calc.MetricValue(rec, metric)
		if err != nil {
			if errors.Is(err, orbital.ErrValueUnavailable) ||
				errors.Is(err, orbital.ErrNonPhysicalAltitude) ||
				errors.Is(err, orbital.ErrInvalidElements) {
				continue
			}
			res.Errors = append(res.Errors, fmt.Sprintf("derive %s for object %d: %v", metric, rec.ObjectID, err))
			continue
		}

		samples = append(samples, &domain.MetricSample{
			ObjectID:   rec.ObjectID,
			Source:     rec.Source,
			MetricType: metric,
			Epoch:      rec.Epoch,
			Value:      value,
			ComputedAt: computedAt,
		})

		r.scoreObservation(ctx, rec, metric, value, derived, res)
	}

	if len(samples) > 0 {
		if err := r.samples.InsertBatch(ctx, samples); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("insert samples for object %d: %v", rec.ObjectID, err))
			return
		}
		res.SamplesInserted += len(samples)
	}
}

// deriveSnapshot computes the full derived set for payload context.
// A record that cannot propagate still gets its element metrics scored,
// so failure here only degrades the payload detail.
func (r *Runner) deriveSnapshot(rec *domain.TelemetryRecord, res *Result) *domain.DerivedMetrics {
	derived, err := r.calc.Derive(rec, rec.Epoch)
	if err != nil {
		if errors.Is(err, orbital.ErrNonPhysicalAltitude) || errors.Is(err, orbital.ErrInvalidElements) {
			r.logger.Warn().
				Err(err).
				Int("object_id", rec.ObjectID).
				Str("source", rec.Source.String()).
				Msg("record does not propagate")
		} else {
			res.Errors = append(res.Errors, fmt.Sprintf("derive snapshot for object %d: %v", rec.ObjectID, err))
		}
		return nil
	}
	return derived
}

func (r *Runner) scoreObservation(ctx context.Context, rec *domain.TelemetryRecord, metric domain.MetricType, value float64, derived *domain.DerivedMetrics, res *Result) {
	b, err := r.baselines.Latest(ctx, rec.ObjectID, metric, rec.Source)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			res.Errors = append(res.Errors, fmt.Sprintf("load %s/%s baseline for object %d: %v", rec.Source, metric, rec.ObjectID, err))
			return
		}
		b = nil
	}

	obs := detection.Observation{
		ObjectID:   rec.ObjectID,
		MetricType: metric,
		Source:     rec.Source,
		Value:      value,
		Epoch:      rec.Epoch,
	}

	result, err := r.detector.Detect(obs, b)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("detect %s for object %d: %v", metric, rec.ObjectID, err))
		return
	}
	res.ObservationsScored++

	if result.Suppressed {
		res.Suppressed++
		return
	}
	if !result.IsAnomaly {
		return
	}
	res.Anomalies++

	payload, err := buildPayload(result, b, rec, derived, r.calc.MinElevationDeg())
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("build payload for object %d %s: %v", rec.ObjectID, metric, err))
		return
	}

	emitted, err := r.emitter.EmitDetection(ctx, result, payload)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("emit %s signal for object %d: %v", metric, rec.ObjectID, err))
		return
	}
	countOutcome(emitted.Outcome, res)
}

func (r *Runner) evaluateDivergence(ctx context.Context, objectID int, asOf time.Time, res *Result) {
	for _, metric := range r.divMetrics {
		rec, err := r.validator.Evaluate(ctx, objectID, metric, asOf)
		if errors.Is(err, divergence.ErrMissingSource) {
			// Single-provider objects are normal; there is nothing to
			// cross-check until the second feed covers them.
			continue
		}
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("divergence %s for object %d: %v", metric, objectID, err))
			continue
		}
		res.DivergencesEvaluated++
		observability.RecordDivergenceVerdict(rec.Verdict.String())

		if rec.Verdict != domain.VerdictDiverged {
			continue
		}
		res.DivergencesDiverged++

		emitted, err := r.emitter.EmitDivergence(ctx, rec)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("emit divergence signal for object %d: %v", objectID, err))
			continue
		}
		countOutcome(emitted.Outcome, res)
	}
}

func countOutcome(outcome storage.UpsertOutcome, res *Result) {
	observability.RecordSignalEmit(string(outcome))
	switch outcome {
	case storage.UpsertCreated:
		res.SignalsCreated++
	case storage.UpsertRefreshed:
		res.SignalsRefreshed++
	case storage.UpsertDeduplicated:
		res.SignalsDeduplicated++
	}
}

// buildPayload assembles the anomaly-specific evidence. The baseline is
// always present for an anomalous result; derived context may be nil
// when the record does not propagate, in which case optional fields
// stay empty.
func buildPayload(result detection.Result, b *domain.Baseline, rec *domain.TelemetryRecord, derived *domain.DerivedMetrics, minElevationDeg float64) (domain.SignalPayload, error) {
	anomalyType, err := signals.AnomalyTypeForMetric(result.Observation.MetricType)
	if err != nil {
		return nil, err
	}
	delta := result.Observation.Value - result.BaselineMean

	switch anomalyType {
	case domain.AnomalyOrbitManeuver:
		return domain.ManeuverPayload{
			Metric:         result.Observation.MetricType,
			DeltaFromMean:  delta,
			BaselineStddev: result.BaselineStddev,
			WindowStart:    b.WindowStart,
			WindowEnd:      b.WindowEnd,
		}, nil

	case domain.AnomalyOrbitalDecay:
		p := domain.DecayPayload{
			Metric:        result.Observation.MetricType,
			DeltaFromMean: delta,
		}
		if derived != nil {
			peri := derived.PeriapsisKm
			p.PeriapsisKm = &peri
		}
		if rec.HasBstar() {
			v := *rec.Bstar
			p.BstarObserved = &v
		}
		return p, nil

	case domain.AnomalyEccentricityDrift:
		p := domain.EccentricityPayload{
			Observed:     result.Observation.Value,
			BaselineMean: result.BaselineMean,
		}
		if derived != nil {
			spread := derived.ApoapsisKm - derived.PeriapsisKm
			p.ApsisSpreadKm = &spread
		}
		return p, nil

	case domain.AnomalyCoverageShift:
		p := domain.CoveragePayload{
			RadiusKm:         result.Observation.Value,
			BaselineRadiusKm: result.BaselineMean,
			MinElevationDeg:  minElevationDeg,
		}
		if derived != nil {
			p.AltitudeKm = derived.AltitudeKm
		}
		return p, nil

	default:
		return nil, fmt.Errorf("no payload shape for anomaly type %s", anomalyType)
	}
}

var _ signals.HistoryDetector = (*Runner)(nil)
