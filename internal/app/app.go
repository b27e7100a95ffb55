// Package app aggregates configuration and shared dependencies for the
// CLI commands. Every store and engine is constructed here once and
// passed down explicitly; nothing in the engine reaches for process-wide
// state.
package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"orbitwatch/internal/api"
	"orbitwatch/internal/baseline"
	"orbitwatch/internal/config"
	"orbitwatch/internal/detection"
	"orbitwatch/internal/divergence"
	"orbitwatch/internal/ingestion"
	"orbitwatch/internal/orbital"
	"orbitwatch/internal/pipeline"
	"orbitwatch/internal/scheduler"
	"orbitwatch/internal/signals"
	"orbitwatch/internal/storage"
	chstore "orbitwatch/internal/storage/clickhouse"
	"orbitwatch/internal/storage/memory"
	"orbitwatch/internal/storage/migrations"
	pgstore "orbitwatch/internal/storage/postgres"
)

// App aggregates configuration and shared dependencies for the CLI
// commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// stores bundles every persistence handle one command needs. Close is
// always safe to call, also for the memory backend.
type stores struct {
	telemetry   storage.TelemetryStore
	baselines   storage.BaselineStore
	divergences storage.DivergenceStore
	signals     storage.SignalStore
	maintenance storage.MaintenanceStore
	samples     storage.MetricSampleStore

	closers []func()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStores connects the configured backend. The memory backend keeps
// everything process-local, which is what development and the one-shot
// test invocations want; postgres is the production path, with an
// optional ClickHouse sink for derived-metric samples.
func (a *App) openStores(ctx context.Context) (*stores, error) {
	if a.Config.Storage.Backend == config.BackendMemory {
		a.Logger.Warn().Msg("memory backend configured; nothing will be persisted")
		return &stores{
			telemetry:   memory.NewTelemetryStore(),
			baselines:   memory.NewBaselineStore(),
			divergences: memory.NewDivergenceStore(),
			signals:     memory.NewSignalStore(),
			maintenance: memory.NewMaintenanceStore(),
			samples:     memory.NewMetricSampleStore(),
		}, nil
	}

	pool, err := pgstore.NewPool(ctx, a.Config.Storage.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	st := &stores{
		telemetry:   pgstore.NewTelemetryStore(pool),
		baselines:   pgstore.NewBaselineStore(pool),
		divergences: pgstore.NewDivergenceStore(pool),
		signals:     pgstore.NewSignalStore(pool),
		maintenance: pgstore.NewMaintenanceStore(pool),
		closers:     []func(){pool.Close},
	}

	if dsn := a.Config.Storage.ClickhouseDSN; dsn != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, dsn)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("connect clickhouse: %w", err)
		}
		st.samples = chstore.NewMetricSampleStore(conn)
		st.closers = append(st.closers, func() { _ = conn.Close() })
	} else {
		a.Logger.Warn().Msg("storage.clickhouse_dsn not configured; metric samples stay in memory")
		st.samples = memory.NewMetricSampleStore()
	}

	return st, nil
}

// newSources builds both provider clients. Both feeds are required:
// running with a single provider would silently disable the divergence
// validator, which is exactly the class of failure this engine exists
// to surface.
func (a *App) newSources() ([]ingestion.ElementSetSource, error) {
	p := a.Config.Providers
	if p.SpaceTrack.Username == "" || p.SpaceTrack.Password == "" {
		return nil, fmt.Errorf("providers.spacetrack.username and providers.spacetrack.password are required")
	}
	if p.LeoLabs.APIKey == "" {
		return nil, fmt.Errorf("providers.leolabs.api_key is required")
	}

	spacetrack := ingestion.NewSpaceTrackClient(ingestion.SpaceTrackOptions{
		BaseURL:           p.SpaceTrack.BaseURL,
		Username:          p.SpaceTrack.Username,
		Password:          p.SpaceTrack.Password,
		Timeout:           p.SpaceTrack.RequestTimeout,
		RequestsPerMinute: p.SpaceTrack.RequestsPerMinute,
	}, a.Logger)

	leolabs := ingestion.NewLeoLabsClient(ingestion.LeoLabsOptions{
		BaseURL:           p.LeoLabs.BaseURL,
		APIKey:            p.LeoLabs.APIKey,
		Timeout:           p.LeoLabs.RequestTimeout,
		RequestsPerMinute: p.LeoLabs.RequestsPerMinute,
	}, a.Logger)

	return []ingestion.ElementSetSource{spacetrack, leolabs}, nil
}

func (a *App) newIngestRunner(st *stores) (*ingestion.Runner, error) {
	sources, err := a.newSources()
	if err != nil {
		return nil, err
	}
	ingestor := ingestion.NewIngestor(st.telemetry, a.Logger)
	return ingestion.NewRunner(sources, ingestor, a.Config.Objects, a.Config.Providers.FetchTimeout, a.Logger), nil
}

// newReconciler wires the derived-metrics calculator, baseline engine,
// divergence validator, detector and emitter into one reconcile runner.
// The emitter is returned separately so the run service can attach the
// live stream hub.
func (a *App) newReconciler(st *stores) (*pipeline.Runner, *signals.Emitter, error) {
	divMetrics, err := a.Config.DivergenceMetrics()
	if err != nil {
		return nil, nil, err
	}

	calc := orbital.NewCalculator(orbital.NewSGP4(), a.Config.Orbital.MinElevationDeg)
	engine := baseline.NewEngine(st.telemetry, st.baselines, calc, a.Config.Baseline.MinSamples, a.Logger)
	validator := divergence.NewValidator(
		st.telemetry, st.divergences, calc,
		a.Config.Divergence.MaxEpochGap,
		a.Config.Divergence.RelativeTolerancePct,
		a.Config.Divergence.Lookback,
		a.Logger,
	)
	detector := detection.NewDetector(a.Config.Baseline.MinSamples)
	emitter := signals.NewEmitter(st.signals, a.Config.Signals.TTL, a.Config.Signals.DedupWindow, a.Logger)

	runner := pipeline.NewRunner(pipeline.Options{
		Telemetry:         st.telemetry,
		Baselines:         st.baselines,
		Samples:           st.samples,
		Calculator:        calc,
		Engine:            engine,
		Validator:         validator,
		Detector:          detector,
		Emitter:           emitter,
		Objects:           a.Config.Objects,
		DivergenceMetrics: divMetrics,
		BaselineWindow:    a.Config.Baseline.Window,
		Workers:           a.Config.Pipeline.Workers,
		Logger:            a.Logger,
	})

	return runner, emitter, nil
}

func (a *App) newServer(st *stores, hub *api.Hub) *api.Server {
	return api.NewServer(api.Options{
		Addr:            a.Config.API.Addr,
		CORSOrigins:     a.Config.API.CORSOrigins,
		ReadTimeout:     a.Config.API.ReadTimeout,
		WriteTimeout:    a.Config.API.WriteTimeout,
		ShutdownTimeout: a.Config.API.ShutdownTimeout,
		Signals:         st.signals,
		Divergence:      st.divergences,
		Baselines:       st.baselines,
		Hub:             hub,
		Logger:          a.Logger,
	})
}

// Run executes the long-running service: the ingest and reconcile
// schedulers on their independent cadences plus, when enabled, the HTTP
// read surface with the live signal stream.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := a.openStores(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	ingestRunner, err := a.newIngestRunner(st)
	if err != nil {
		return err
	}
	reconciler, emitter, err := a.newReconciler(st)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	ingestSched := scheduler.New(scheduler.Options{
		Name:         "ingest",
		Interval:     a.Config.Scheduler.IngestInterval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)
	g.Go(func() error {
		return ingestSched.Run(gctx, func(tickCtx context.Context, _ time.Time) error {
			return a.ingestOnce(tickCtx, ingestRunner)
		})
	})

	reconcileSched := scheduler.New(scheduler.Options{
		Name:         "reconcile",
		Interval:     a.Config.Scheduler.ReconcileInterval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)
	g.Go(func() error {
		return reconcileSched.Run(gctx, func(tickCtx context.Context, bucket time.Time) error {
			return a.reconcileOnce(tickCtx, reconciler, bucket)
		})
	})

	if a.Config.API.Enabled {
		hub := api.NewHub(a.Config.API.CORSOrigins, a.Logger)
		defer hub.Close()
		emitter.SetPublisher(hub)
		srv := a.newServer(st, hub)
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	a.Logger.Info().
		Str("backend", a.Config.Storage.Backend).
		Dur("ingest_interval", a.Config.Scheduler.IngestInterval).
		Dur("reconcile_interval", a.Config.Scheduler.ReconcileInterval).
		Bool("api", a.Config.API.Enabled).
		Msg("starting reconciliation service")

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("reconciliation service stopped")
	return nil
}

// Serve runs only the HTTP read surface. A serve-only process reads
// what the run processes write; its stream stays quiet because no
// emitter publishes into its hub.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := a.openStores(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	hub := api.NewHub(a.Config.API.CORSOrigins, a.Logger)
	defer hub.Close()

	srv := a.newServer(st, hub)
	err = srv.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
