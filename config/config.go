package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config struct to hold the configuration settings
type Config struct {
	Postgres      PostgresConfig      `yaml:"postgres"`
	NATS          NATSConfig          `yaml:"nats"`
	HTTP          HTTPConfig          `yaml:"http"`
	Storage       StorageConfig       `yaml:"storage"`
	Scoring       ScoringConfig       `yaml:"scoring"`
	Sync          SyncConfig          `yaml:"sync"`
	Queue         QueueConfig         `yaml:"queue"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// PostgresConfig holds Postgres configuration.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// NATSConfig holds NATS configuration. An empty URL disables the game bridge.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// HTTPConfig holds the read API listener settings.
type HTTPConfig struct {
	Address   string  `yaml:"address"`
	RateLimit     float64       `yaml:"rate_limit"`
	RateBurst     int           `yaml:"rate_burst"`
	ExportCost    int           `yaml:"export_cost"`
	ClientIdleTTL time.Duration `yaml:"client_idle_ttl"`
}

// StorageConfig selects the repository backend: "postgres" or "memory".
type StorageConfig struct {
	Driver string `yaml:"driver"`
}

// ScoringConfig holds the points curve.
type ScoringConfig struct {
	MinValue   float64 `yaml:"min_value"`
	Multiplier float64 `yaml:"multiplier"`
}

// SyncConfig shapes observer windows and delivery.
type SyncConfig struct {
	Scope           string        `yaml:"scope"`
	TopCount        int           `yaml:"top_count"`
	ExtendedCount   int           `yaml:"extended_count"`
	Before          int           `yaml:"before"`
	After           int           `yaml:"after"`
	DeliveryTimeout time.Duration `yaml:"delivery_timeout"`
}

// QueueConfig holds the river job settings.
type QueueConfig struct {
	Enabled       bool          `yaml:"enabled"`
	AuditInterval time.Duration `yaml:"audit_interval"`
	MaxWorkers    int           `yaml:"max_workers"`
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
}

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"

	SyncScopeMap    = "map"
	SyncScopeGlobal = "global"
)

// LoadConfig loads the configuration from a YAML file.
func LoadConfig(filename string) (*Config, error) {
	// Try reading configuration from the file first
	data, err := os.ReadFile(filename)
	if err != nil {
		// If the file is not found, try loading from environment variables
		return loadConfigFromEnv()
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadConfigFromEnv loads the configuration from environment variables.
func loadConfigFromEnv() (*Config, error) {
	var cfg Config
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()

	if cfg.Storage.Driver == StorageDriverPostgres && cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overrides cfg with any environment variables that are set.
func applyEnv(cfg *Config) error {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("NATS_SUBJECT_PREFIX"); v != "" {
		cfg.NATS.SubjectPrefix = v
	}
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("SYNC_SCOPE"); v != "" {
		cfg.Sync.Scope = v
	}
	if v := os.Getenv("ENV"); v != "" {
		cfg.Observability.Environment = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
	if v := os.Getenv("QUEUE_ENABLED"); v != "" {
		cfg.Queue.Enabled = v == "true"
	}

	floats := []struct {
		key string
		dst *float64
	}{
		{"POINTS_MIN_VALUE", &cfg.Scoring.MinValue},
		{"POINTS_MULTIPLIER", &cfg.Scoring.Multiplier},
		{"HTTP_RATE_LIMIT", &cfg.HTTP.RateLimit},
	}
	for _, f := range floats {
		if v := os.Getenv(f.key); v != "" {
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid %s value: %w", f.key, err)
			}
			*f.dst = parsed
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"QUEUE_AUDIT_INTERVAL", &cfg.Queue.AuditInterval},
		{"SYNC_DELIVERY_TIMEOUT", &cfg.Sync.DeliveryTimeout},
		{"HTTP_CLIENT_IDLE_TTL", &cfg.HTTP.ClientIdleTTL},
	}
	for _, d := range durations {
		if v := os.Getenv(d.key); v != "" {
			parsed, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s value: %w", d.key, err)
			}
			*d.dst = parsed
		}
	}
	return nil
}

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() {
	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageDriverPostgres
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = "maprank"
	}
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.HTTP.RateLimit == 0 {
		c.HTTP.RateLimit = 20
	}
	if c.HTTP.RateBurst == 0 {
		c.HTTP.RateBurst = 40
	}
	if c.HTTP.ExportCost == 0 {
		c.HTTP.ExportCost = 5
	}
	if c.HTTP.ClientIdleTTL == 0 {
		c.HTTP.ClientIdleTTL = 10 * time.Minute
	}
	if c.Scoring.Multiplier == 0 {
		c.Scoring.Multiplier = 1000
		if c.Scoring.MinValue == 0 {
			c.Scoring.MinValue = 0.2
		}
	}
	if c.Sync.Scope == "" {
		c.Sync.Scope = SyncScopeMap
	}
	if c.Sync.TopCount == 0 {
		c.Sync.TopCount = 5
	}
	if c.Sync.ExtendedCount == 0 {
		c.Sync.ExtendedCount = 10
	}
	if c.Sync.Before == 0 {
		c.Sync.Before = 3
	}
	if c.Sync.After == 0 {
		c.Sync.After = 1
	}
	if c.Sync.DeliveryTimeout == 0 {
		c.Sync.DeliveryTimeout = 2 * time.Second
	}
	if c.Queue.AuditInterval == 0 {
		c.Queue.AuditInterval = 15 * time.Minute
	}
	if c.Queue.MaxWorkers == 0 {
		c.Queue.MaxWorkers = 4
	}
	if c.Observability.LogLevel == "" {
		c.Observability.LogLevel = "info"
	}
}

// Validate reports configuration that cannot work.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case StorageDriverPostgres, StorageDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	if c.Storage.Driver == StorageDriverPostgres && c.Postgres.DSN == "" {
		errs = append(errs, errors.New("postgres dsn is required for the postgres driver"))
	}
	if c.Queue.Enabled && c.Storage.Driver != StorageDriverPostgres {
		errs = append(errs, errors.New("the job queue requires the postgres driver"))
	}
	switch c.Sync.Scope {
	case SyncScopeMap, SyncScopeGlobal:
	default:
		errs = append(errs, fmt.Errorf("unknown sync scope %q", c.Sync.Scope))
	}
	if c.Sync.TopCount < 0 || c.Sync.ExtendedCount < c.Sync.TopCount {
		errs = append(errs, errors.New("sync extended_count must be >= top_count >= 0"))
	}
	if c.Scoring.MinValue < 0 || c.Scoring.MinValue >= 1 {
		errs = append(errs, fmt.Errorf("scoring min_value %v outside [0, 1)", c.Scoring.MinValue))
	}
	if c.Scoring.Multiplier <= 0 {
		errs = append(errs, fmt.Errorf("scoring multiplier %v must be positive", c.Scoring.Multiplier))
	}
	return errors.Join(errs...)
}
