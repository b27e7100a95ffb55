// Package config materialises runtime configuration from file,
// environment and defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"orbitwatch/internal/domain"
	"orbitwatch/internal/logging"
)

// Storage backends.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config materialises application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Logging    logging.Config   `mapstructure:"logging"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Providers  ProvidersConfig  `mapstructure:"providers"`
	Objects    []int            `mapstructure:"objects"`
	Orbital    OrbitalConfig    `mapstructure:"orbital"`
	Baseline   BaselineConfig   `mapstructure:"baseline"`
	Divergence DivergenceConfig `mapstructure:"divergence"`
	Signals    SignalsConfig    `mapstructure:"signals"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	API        APIConfig        `mapstructure:"api"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// StorageConfig selects and connects the persistence backends. The
// memory backend exists for development and tests; the ClickHouse DSN
// is optional and only feeds the diagnostic metric_samples sink.
type StorageConfig struct {
	Backend       string `mapstructure:"backend"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	ClickhouseDSN string `mapstructure:"clickhouse_dsn"`
}

// ProvidersConfig covers both telemetry feeds. FetchTimeout bounds one
// provider's whole fetch-and-ingest leg; each leg gets its own timeout
// so a stalled provider never eats the other's budget.
type ProvidersConfig struct {
	SpaceTrack   SpaceTrackConfig `mapstructure:"spacetrack"`
	LeoLabs      LeoLabsConfig    `mapstructure:"leolabs"`
	FetchTimeout time.Duration    `mapstructure:"fetch_timeout"`
}

// SpaceTrackConfig captures Space-Track connectivity.
type SpaceTrackConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Username          string        `mapstructure:"username"`
	Password          string        `mapstructure:"password"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
}

// LeoLabsConfig captures LeoLabs connectivity.
type LeoLabsConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
}

// OrbitalConfig tunes derived-metric computation.
type OrbitalConfig struct {
	MinElevationDeg float64 `mapstructure:"min_elevation_deg"`
}

// BaselineConfig governs the rolling statistics window.
type BaselineConfig struct {
	Window     time.Duration `mapstructure:"window"`
	MinSamples int           `mapstructure:"min_samples"`
}

// DivergenceConfig governs cross-provider comparison.
type DivergenceConfig struct {
	MaxEpochGap          time.Duration `mapstructure:"max_epoch_gap"`
	RelativeTolerancePct float64       `mapstructure:"relative_tolerance_pct"`
	Lookback             time.Duration `mapstructure:"lookback"`
	Metrics              []string      `mapstructure:"metrics"`
}

// SignalsConfig governs signal lifetime and deduplication.
type SignalsConfig struct {
	TTL         time.Duration `mapstructure:"ttl"`
	DedupWindow time.Duration `mapstructure:"dedup_window"`
}

// PipelineConfig bounds the reconcile pass.
type PipelineConfig struct {
	Workers int `mapstructure:"workers"`
}

// SchedulerConfig governs the two independent cadences of the run
// service.
type SchedulerConfig struct {
	IngestInterval    time.Duration `mapstructure:"ingest_interval"`
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
	AlignToBucket     bool          `mapstructure:"align_to_bucket"`
	StartupDelay      time.Duration `mapstructure:"startup_delay"`
}

// APIConfig covers the HTTP read surface.
type APIConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Addr            string        `mapstructure:"addr"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ORBITWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "orbitwatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("storage.backend", BackendMemory)

	v.SetDefault("providers.spacetrack.base_url", "https://www.space-track.org")
	v.SetDefault("providers.spacetrack.request_timeout", "30s")
	v.SetDefault("providers.spacetrack.requests_per_minute", 20)
	v.SetDefault("providers.leolabs.base_url", "https://api.leolabs.space/v1")
	v.SetDefault("providers.leolabs.request_timeout", "30s")
	v.SetDefault("providers.leolabs.requests_per_minute", 60)
	v.SetDefault("providers.fetch_timeout", "2m")

	v.SetDefault("orbital.min_elevation_deg", 10.0)

	v.SetDefault("baseline.window", "720h")
	v.SetDefault("baseline.min_samples", 8)

	v.SetDefault("divergence.max_epoch_gap", "6h")
	v.SetDefault("divergence.relative_tolerance_pct", 5.0)
	v.SetDefault("divergence.lookback", "72h")
	v.SetDefault("divergence.metrics", []string{string(domain.MetricBstar)})

	v.SetDefault("signals.ttl", "48h")
	v.SetDefault("signals.dedup_window", "24h")

	v.SetDefault("pipeline.workers", 4)

	v.SetDefault("scheduler.ingest_interval", "1h")
	v.SetDefault("scheduler.reconcile_interval", "15m")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.addr", ":8080")
	v.SetDefault("api.read_timeout", "10s")
	v.SetDefault("api.write_timeout", "30s")
	v.SetDefault("api.shutdown_timeout", "10s")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Storage.Backend != BackendPostgres && c.Storage.Backend != BackendMemory {
		return fmt.Errorf("storage.backend must be %q or %q", BackendPostgres, BackendMemory)
	}
	if c.Storage.Backend == BackendPostgres && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("storage.postgres_dsn is required with the postgres backend")
	}
	for _, id := range c.Objects {
		if id <= 0 {
			return fmt.Errorf("objects must be positive NORAD catalog numbers, got %d", id)
		}
	}
	if c.Orbital.MinElevationDeg < 0 || c.Orbital.MinElevationDeg >= 90 {
		return fmt.Errorf("orbital.min_elevation_deg must be in [0, 90)")
	}
	if c.Baseline.Window <= 0 {
		return fmt.Errorf("baseline.window must be greater than zero")
	}
	if c.Baseline.MinSamples < 2 {
		return fmt.Errorf("baseline.min_samples must be at least 2")
	}
	if c.Divergence.MaxEpochGap <= 0 {
		return fmt.Errorf("divergence.max_epoch_gap must be greater than zero")
	}
	if c.Divergence.RelativeTolerancePct <= 0 {
		return fmt.Errorf("divergence.relative_tolerance_pct must be greater than zero")
	}
	if c.Divergence.Lookback <= 0 {
		return fmt.Errorf("divergence.lookback must be greater than zero")
	}
	if _, err := c.DivergenceMetrics(); err != nil {
		return err
	}
	if c.Signals.TTL <= 0 {
		return fmt.Errorf("signals.ttl must be greater than zero")
	}
	if c.Signals.DedupWindow <= 0 {
		return fmt.Errorf("signals.dedup_window must be greater than zero")
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be greater than zero")
	}
	if c.Scheduler.IngestInterval <= 0 {
		return fmt.Errorf("scheduler.ingest_interval must be greater than zero")
	}
	if c.Scheduler.ReconcileInterval <= 0 {
		return fmt.Errorf("scheduler.reconcile_interval must be greater than zero")
	}
	return nil
}

// DivergenceMetrics resolves the configured metric names against the
// known metric types.
func (c *Config) DivergenceMetrics() ([]domain.MetricType, error) {
	metrics := make([]domain.MetricType, 0, len(c.Divergence.Metrics))
	for _, name := range c.Divergence.Metrics {
		m := domain.MetricType(name)
		if !m.IsValid() {
			return nil, fmt.Errorf("divergence.metrics: unknown metric type %q", name)
		}
		metrics = append(metrics, m)
	}
	return metrics, nil
}
