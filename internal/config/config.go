package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"muniquery/internal/filter"
)

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server" envconfig:"SERVER"`
	DataSource DataSourceConfig `yaml:"data_source" envconfig:"DATA_SOURCE"`
	Analysis   AnalysisConfig   `yaml:"analysis" envconfig:"ANALYSIS"`
	Cache      CacheConfig      `yaml:"cache" envconfig:"CACHE"`
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	Paths      PathsConfig      `yaml:"paths" envconfig:"PATHS"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST"`
}

// DataSourceConfig contains live data source configuration. An empty
// DSN means no live connection is attempted and the fallback CSV
// tables are used instead.
type DataSourceConfig struct {
	DSN          string        `yaml:"dsn" envconfig:"DSN"`
	ProbeTimeout time.Duration `yaml:"probe_timeout" envconfig:"PROBE_TIMEOUT"`
	QueryTimeout time.Duration `yaml:"query_timeout" envconfig:"QUERY_TIMEOUT"`
}

// AnalysisConfig contains tunable analysis thresholds
type AnalysisConfig struct {
	// HotspotMinQuantity is the minimum summed trade quantity for a
	// (state, purpose) group to appear in the hotspot analysis.
	// Observed production values are 500 and 100; 500 is the default.
	HotspotMinQuantity int64 `yaml:"hotspot_min_quantity" envconfig:"HOTSPOT_MIN_QUANTITY"`
	// SpreadMinTrades is the minimum trade count for a (state, month)
	// group to appear in the coupon spread analysis.
	SpreadMinTrades int `yaml:"spread_min_trades" envconfig:"SPREAD_MIN_TRADES"`
	// DefaultRowLimit caps result rows when a filter does not set one.
	DefaultRowLimit int `yaml:"default_row_limit" envconfig:"DEFAULT_ROW_LIMIT"`
}

// CacheConfig contains result cache configuration
type CacheConfig struct {
	ResultTTL   time.Duration `yaml:"result_ttl" envconfig:"RESULT_TTL"`
	MetadataTTL time.Duration `yaml:"metadata_ttl" envconfig:"METADATA_TTL"`
	MaxEntries  int           `yaml:"max_entries" envconfig:"MAX_ENTRIES"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	DataDir    string `yaml:"data_dir" envconfig:"DATA_DIR"`
	ReportsDir string `yaml:"reports_dir" envconfig:"REPORTS_DIR"`
	LogsDir    string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
}

// Load loads configuration from an optional YAML config file and
// environment variables. Environment variables win over file values,
// file values win over built-in defaults.
func Load() (*Config, error) {
	cfg := &Config{}

	configFile := getConfigFilePath()
	if _, err := os.Stat(configFile); err == nil {
		fileCfg, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = fileCfg
	}

	if err := envconfig.Process("MUNIQ", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile loads configuration from YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// getConfigFilePath returns the config file location, overridable for
// deployments via MUNIQ_CONFIG_FILE.
func getConfigFilePath() string {
	if path := os.Getenv("MUNIQ_CONFIG_FILE"); path != "" {
		return path
	}
	return "muniquery.yaml"
}

// applyDefaults fills fields neither the file nor the environment set.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	if c.Server.RateLimitRPS == 0 {
		c.Server.RateLimitRPS = 50
	}
	if c.Server.RateLimitBurst == 0 {
		c.Server.RateLimitBurst = 25
	}
	if c.DataSource.ProbeTimeout == 0 {
		c.DataSource.ProbeTimeout = 5 * time.Second
	}
	if c.DataSource.QueryTimeout == 0 {
		c.DataSource.QueryTimeout = 30 * time.Second
	}
	if c.Analysis.HotspotMinQuantity == 0 {
		c.Analysis.HotspotMinQuantity = 500
	}
	if c.Analysis.SpreadMinTrades == 0 {
		c.Analysis.SpreadMinTrades = 10
	}
	if c.Analysis.DefaultRowLimit == 0 {
		c.Analysis.DefaultRowLimit = 20
	}
	if c.Cache.ResultTTL == 0 {
		c.Cache.ResultTTL = 5 * time.Minute
	}
	if c.Cache.MetadataTTL == 0 {
		c.Cache.MetadataTTL = 30 * time.Minute
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = 256
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/muniquery.log"
	}
	if c.Paths.DataDir == "" {
		c.Paths.DataDir = "data"
	}
	if c.Paths.ReportsDir == "" {
		c.Paths.ReportsDir = "reports"
	}
	if c.Paths.LogsDir == "" {
		c.Paths.LogsDir = "logs"
	}
}

// validate checks configuration invariants before startup.
func (c *Config) validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Analysis.HotspotMinQuantity < 0 {
		return fmt.Errorf("hotspot_min_quantity must not be negative: %d", c.Analysis.HotspotMinQuantity)
	}
	if c.Analysis.SpreadMinTrades < 1 {
		return fmt.Errorf("spread_min_trades must be at least 1: %d", c.Analysis.SpreadMinTrades)
	}
	if c.Analysis.DefaultRowLimit < filter.MinRowLimit || c.Analysis.DefaultRowLimit > filter.MaxRowLimit {
		return fmt.Errorf("default_row_limit %d out of bounds [%d, %d]",
			c.Analysis.DefaultRowLimit, filter.MinRowLimit, filter.MaxRowLimit)
	}
	if c.Cache.ResultTTL <= 0 || c.Cache.MetadataTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	return nil
}
