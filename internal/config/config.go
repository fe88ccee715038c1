package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/adhocore/gronx"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds the routedex configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http" envPrefix:"HTTP_"`
	Database  DatabaseConfig  `yaml:"database" envPrefix:"DATABASE_"`
	Index     IndexConfig     `yaml:"index" envPrefix:"INDEX_"`
	Sync      SyncConfig      `yaml:"sync" envPrefix:"SYNC_"`
	Reconcile ReconcileConfig `yaml:"reconcile" envPrefix:"RECONCILE_"`
	Logging   LoggingConfig   `yaml:"logging" envPrefix:"LOG_"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level" env:"LEVEL"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int      `yaml:"port" env:"PORT"`
	ReadTimeoutSec  int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec int      `yaml:"write_timeout_sec"`
	ShutdownSec     int      `yaml:"shutdown_timeout_sec"`
	CORSOrigins     []string `yaml:"cors_origins" env:"CORS_ORIGINS"`
}

// Primary store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// DatabaseConfig holds primary store settings.
type DatabaseConfig struct {
	Driver             string `yaml:"driver" env:"DRIVER"` // postgres, memory (default: postgres)
	DSN                string `yaml:"dsn" env:"DSN"`
	MaxConns           int32  `yaml:"max_conns"`
	MinConns           int32  `yaml:"min_conns"`
	QueryTimeoutSec    int    `yaml:"query_timeout_sec"`
	MigrateOnStart     bool   `yaml:"migrate_on_start" env:"MIGRATE"`
	ReadinessTimeout   int    `yaml:"readiness_timeout_sec"`
	ConnMaxLifetimeSec int    `yaml:"conn_max_lifetime_sec"`
}

// Index drivers.
const (
	IndexValkey        = "valkey"
	IndexRedis         = "redis"
	IndexElasticsearch = "elasticsearch"
	IndexMemory        = "memory"
)

// IndexConfig holds search index settings.
type IndexConfig struct {
	Driver           string   `yaml:"driver" env:"DRIVER"` // valkey, redis, elasticsearch, memory (default: valkey)
	Addrs            []string `yaml:"addrs" env:"ADDRS"`
	Username         string   `yaml:"username" env:"USERNAME"`
	Password         string   `yaml:"password" env:"PASSWORD"`
	KeyPrefix        string   `yaml:"key_prefix" env:"KEY_PREFIX"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	MaxResults       int      `yaml:"max_results"`
	RefreshOnWrite   bool     `yaml:"refresh_on_write"`
}

// SyncConfig tunes index propagation.
type SyncConfig struct {
	Workers          int `yaml:"workers" env:"WORKERS"`
	QueueSize        int `yaml:"queue_size"`
	EnqueueTimeoutMs int `yaml:"enqueue_timeout_ms"`
	AttemptTimeoutMs int `yaml:"attempt_timeout_ms"`
	MaxRetries       int `yaml:"max_retries" env:"MAX_RETRIES"`
	InitialBackoffMs int `yaml:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms"`
	VersionCacheSize int `yaml:"version_cache_size"`
}

// ReconcileConfig schedules index reconciliation.
type ReconcileConfig struct {
	Enabled   bool   `yaml:"enabled" env:"ENABLED"`
	Schedule  string `yaml:"schedule" env:"SCHEDULE"` // cron expression
	BatchSize int    `yaml:"batch_size"`
}

// Load reads configuration from a YAML file by environment name (local, dev,
// docker, prod) and applies ROUTEDEX_* environment overrides.
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return parse(data)
}

func parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "ROUTEDEX_"}); err != nil {
		return Config{}, fmt.Errorf("failed to apply env overrides: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverPostgres
	}
	if c.Database.QueryTimeoutSec <= 0 {
		c.Database.QueryTimeoutSec = 5
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Index.Driver == "" {
		c.Index.Driver = IndexValkey
	}
	if c.Index.KeyPrefix == "" {
		c.Index.KeyPrefix = "routedex:"
	}
	if c.Index.ReadinessTimeout <= 0 {
		c.Index.ReadinessTimeout = 10
	}
	if c.Sync.Workers <= 0 {
		c.Sync.Workers = 4
	}
	if c.Sync.QueueSize <= 0 {
		c.Sync.QueueSize = 1024
	}
	if c.Sync.EnqueueTimeoutMs <= 0 {
		c.Sync.EnqueueTimeoutMs = 1000
	}
	if c.Sync.AttemptTimeoutMs <= 0 {
		c.Sync.AttemptTimeoutMs = 5000
	}
	if c.Sync.MaxRetries < 1 {
		c.Sync.MaxRetries = 5
	}
	if c.Sync.InitialBackoffMs <= 0 {
		c.Sync.InitialBackoffMs = 100
	}
	if c.Sync.MaxBackoffMs <= 0 {
		c.Sync.MaxBackoffMs = 5000
	}
	if c.Sync.VersionCacheSize <= 0 {
		c.Sync.VersionCacheSize = 100_000
	}
	if c.Reconcile.Schedule == "" {
		c.Reconcile.Schedule = "*/5 * * * *"
	}
	if c.Reconcile.BatchSize <= 0 {
		c.Reconcile.BatchSize = 500
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port))
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for the postgres driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("database.driver must be postgres or memory, got %q", c.Database.Driver))
	}

	switch c.Index.Driver {
	case IndexValkey, IndexRedis, IndexElasticsearch:
		if len(c.Index.Addrs) == 0 {
			errs = append(errs, fmt.Errorf("index.addrs is required for the %s driver", c.Index.Driver))
		}
	case IndexMemory:
	default:
		errs = append(errs, fmt.Errorf(
			"index.driver must be valkey, redis, elasticsearch or memory, got %q", c.Index.Driver))
	}

	if c.Index.MaxResults < 0 {
		errs = append(errs, fmt.Errorf("index.max_results must be >= 0, got %d", c.Index.MaxResults))
	}
	if c.Reconcile.Enabled && !gronx.New().IsValid(c.Reconcile.Schedule) {
		errs = append(errs, fmt.Errorf("reconcile.schedule %q is not a valid cron expression", c.Reconcile.Schedule))
	}
	return errors.Join(errs...)
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
