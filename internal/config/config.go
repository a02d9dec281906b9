// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Acquisition AcquisitionConfig `mapstructure:"acquisition"`
	Source      SourceConfig      `mapstructure:"source"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Browser     BrowserConfig     `mapstructure:"browser"`
	External    ExternalConfig    `mapstructure:"external"`
	Storage     StorageConfig     `mapstructure:"storage"`
	DB          DBConfig          `mapstructure:"db"`
	PubSub      PubSubConfig      `mapstructure:"pubsub"`
	Analysis    AnalysisConfig    `mapstructure:"analysis"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	// Catalog seeds the in-memory product store for deployments without
	// a database DSN. Ignored when db.dsn is set.
	Catalog []CatalogEntry `mapstructure:"catalog"`
}

// CatalogEntry describes one product known to the service.
type CatalogEntry struct {
	ID         string `mapstructure:"id"`
	SourceURL  string `mapstructure:"source_url"`
	ExternalID string `mapstructure:"external_id"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// AcquisitionConfig governs the run pipeline.
type AcquisitionConfig struct {
	Concurrency      int `mapstructure:"concurrency"`
	QueueDepth       int `mapstructure:"queue_depth"`
	TargetRecords    int `mapstructure:"target_records"`
	RunBudgetSec     int `mapstructure:"run_budget_seconds"`
	BreakerThreshold int `mapstructure:"breaker_threshold"`
}

// SourceConfig describes the review source endpoints and pacing.
type SourceConfig struct {
	// Endpoints are URL templates with {productId}, {page}, {pageSize}
	// and {sortKey} placeholders, tried in order.
	Endpoints    []string `mapstructure:"endpoints"`
	PageSize     int      `mapstructure:"page_size"`
	MaxPages     int      `mapstructure:"max_pages"`
	SortKey      string   `mapstructure:"sort_key"`
	UserAgent    string   `mapstructure:"user_agent"`
	RateRPS      float64  `mapstructure:"rate_rps"`
	RateBurst    int      `mapstructure:"rate_burst"`
	JitterMinMs  int      `mapstructure:"jitter_min_ms"`
	JitterMaxMs  int      `mapstructure:"jitter_max_ms"`
	StateMarkers []string `mapstructure:"state_markers"`
}

// HTTPConfig configures HTTP client retry behavior.
type HTTPConfig struct {
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
	MaxRetries       int `mapstructure:"max_retries"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
}

// BrowserConfig configures the browser automation strategy.
type BrowserConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxParallel   int  `mapstructure:"max_parallel"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
}

// ExternalConfig configures the external-process strategy.
type ExternalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Binary  string `mapstructure:"binary"`
}

// StorageConfig selects the raw archive backend.
type StorageConfig struct {
	// Backend is gcs, local or memory.
	Backend   string `mapstructure:"backend"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
	LocalDir  string `mapstructure:"local_dir"`
}

// DBConfig controls access to the relational database. An empty DSN
// selects the in-memory stores.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	ReviewTable  string `mapstructure:"review_table"`
	ProductTable string `mapstructure:"product_table"`
	MaxConns     int32  `mapstructure:"max_conns"`
	MinConns     int32  `mapstructure:"min_conns"`
}

// PubSubConfig holds metadata for completion event publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// AnalysisConfig overrides the built-in lexicon tables. Empty maps keep
// the defaults.
type AnalysisConfig struct {
	PositiveLexicon map[string]float64 `mapstructure:"positive_lexicon"`
	NegativeLexicon map[string]float64 `mapstructure:"negative_lexicon"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("REVIEWPIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("acquisition.concurrency", 4)
	v.SetDefault("acquisition.queue_depth", 64)
	v.SetDefault("acquisition.target_records", 200)
	v.SetDefault("acquisition.run_budget_seconds", 120)
	v.SetDefault("acquisition.breaker_threshold", 3)
	v.SetDefault("source.page_size", 50)
	v.SetDefault("source.max_pages", 20)
	v.SetDefault("source.sort_key", "helpful")
	v.SetDefault("source.user_agent", "review-pipeline-bot/0.1")
	v.SetDefault("source.rate_rps", 1.0)
	v.SetDefault("source.rate_burst", 2)
	v.SetDefault("source.jitter_min_ms", 400)
	v.SetDefault("source.jitter_max_ms", 1800)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 5000)
	v.SetDefault("browser.enabled", false)
	v.SetDefault("browser.max_parallel", 1)
	v.SetDefault("browser.nav_timeout_seconds", 45)
	v.SetDefault("external.enabled", false)
	v.SetDefault("external.binary", "curl")
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.prefix", "runs")
	v.SetDefault("db.review_table", "reviews")
	v.SetDefault("db.product_table", "products")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Acquisition.Concurrency <= 0 {
		return fmt.Errorf("acquisition.concurrency must be > 0")
	}
	if len(c.Source.Endpoints) == 0 {
		return fmt.Errorf("source.endpoints must list at least one endpoint template")
	}
	if c.Source.JitterMinMs > c.Source.JitterMaxMs {
		return fmt.Errorf("source.jitter_min_ms must be <= source.jitter_max_ms")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Browser.Enabled && c.Browser.MaxParallel <= 0 {
		return fmt.Errorf("browser.max_parallel must be > 0 when browser automation is enabled")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Storage.Backend {
	case "memory":
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir must be set for the local backend")
		}
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend must be one of memory, local, gcs")
	}
	return nil
}

// RunBudget converts the run budget into a duration.
func (c Config) RunBudget() time.Duration {
	return time.Duration(c.Acquisition.RunBudgetSec) * time.Second
}

// HTTPTimeout converts the HTTP timeout into a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// JitterBounds converts the jitter window into durations.
func (c Config) JitterBounds() (time.Duration, time.Duration) {
	return time.Duration(c.Source.JitterMinMs) * time.Millisecond,
		time.Duration(c.Source.JitterMaxMs) * time.Millisecond
}
