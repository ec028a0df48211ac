// Package config provides centralized configuration management for the
// muniquery service. It handles loading configuration from multiple
// sources, validation, and path resolution relative to the executable.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of
// precedence:
//
//	1. Environment variables (highest priority)
//	2. A YAML configuration file (muniquery.yaml, or MUNIQ_CONFIG_FILE)
//	3. Built-in defaults (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern MUNIQ_* for namespacing:
//
//	MUNIQ_SERVER_PORT=8080
//	MUNIQ_DATA_SOURCE_DSN=postgres://...
//	MUNIQ_ANALYSIS_HOTSPOT_MIN_QUANTITY=500
//	MUNIQ_CACHE_RESULT_TTL=5m
//	MUNIQ_LOGGING_LEVEL=info
//
// An empty MUNIQ_DATA_SOURCE_DSN means no live data source is attempted
// and the service runs from the local CSV fallback tables.
//
// # Path Management
//
// The Paths type resolves the data, reports and logs directories
// relative to the executable location, never the working directory:
//
//	paths, err := config.ResolvePaths(cfg.Paths)
//	tablePath := paths.TablePath(config.TradesFile)
//	reportPath := paths.ReportPath("top_traded.csv")
//
// # Validation
//
// All configuration is validated at load time: the server port, the
// analysis thresholds and the cache TTLs must be in range before the
// process starts serving.
package config
