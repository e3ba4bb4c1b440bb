// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Cache backend names accepted in CACHE_BACKEND.
const (
	CacheBackendMemory = "memory"
	CacheBackendSQLite = "sqlite"
)

// Config holds the engine configuration loaded from the environment.
type Config struct {
	SpecDir    string // directory of query spec YAML files (default "specs")
	DataDir    string // root directory for tabular file sources (default "data")
	MetaDBPath string // path to the SQLite state file (cache + audit)

	CacheBackend    string        // "memory" (default) or "sqlite"
	CacheDefaultTTL time.Duration // default cache entry lifetime, 0 = never expire
	CacheNamespace  string        // cache key namespace prefix (optional)

	LicenseCatalogPath string // optional YAML license catalog for provenance enrichment
	AuditLogPath       string // optional JSONL audit file, appended alongside the state DB

	StatsAPIBaseURL string        // remote statistics API base URL
	StatsAPITimeout time.Duration // remote call timeout (default 15s)
	StatsAPIRPS     float64       // remote call pacing, requests per second (default 4)

	LogLevel string // log level: debug, info, warn, error (default "info")
	Env      string // environment: "development" (default) or "production"

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the engine is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LoadFromEnv loads configuration from environment variables. Every field has
// a workable default; the engine can start from an empty environment.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		SpecDir:            os.Getenv("SPEC_DIR"),
		DataDir:            os.Getenv("DATA_DIR"),
		MetaDBPath:         os.Getenv("META_DB_PATH"),
		CacheBackend:       strings.ToLower(strings.TrimSpace(os.Getenv("CACHE_BACKEND"))),
		CacheNamespace:     os.Getenv("CACHE_NAMESPACE"),
		LicenseCatalogPath: os.Getenv("LICENSE_CATALOG_PATH"),
		AuditLogPath:       os.Getenv("AUDIT_LOG_PATH"),
		StatsAPIBaseURL:    os.Getenv("STATS_API_BASE_URL"),
		LogLevel:           os.Getenv("LOG_LEVEL"),
		Env:                os.Getenv("ENV"),
	}

	if v := os.Getenv("CACHE_DEFAULT_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("CACHE_DEFAULT_TTL: %w", err)
		}
		if d < 0 {
			return nil, fmt.Errorf("CACHE_DEFAULT_TTL must not be negative, got %s", d)
		}
		cfg.CacheDefaultTTL = d
	}
	if v := os.Getenv("STATS_API_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("STATS_API_TIMEOUT: %w", err)
		}
		cfg.StatsAPITimeout = d
	}
	if v := os.Getenv("STATS_API_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("STATS_API_RPS must be a positive number, got %q", v)
		}
		cfg.StatsAPIRPS = f
	}

	// Defaults
	if cfg.SpecDir == "" {
		cfg.SpecDir = "specs"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.MetaDBPath == "" {
		cfg.MetaDBPath = "dataquery_state.sqlite"
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = CacheBackendMemory
	}
	if cfg.CacheBackend != CacheBackendMemory && cfg.CacheBackend != CacheBackendSQLite {
		return nil, fmt.Errorf("CACHE_BACKEND must be %q or %q, got %q", CacheBackendMemory, CacheBackendSQLite, cfg.CacheBackend)
	}
	if cfg.StatsAPIBaseURL == "" {
		cfg.StatsAPIBaseURL = "https://api.worldbank.org/v2"
	}
	if cfg.StatsAPITimeout == 0 {
		cfg.StatsAPITimeout = 15 * time.Second
	}
	if cfg.StatsAPIRPS == 0 {
		cfg.StatsAPIRPS = 4
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if cfg.CacheBackend == CacheBackendMemory && cfg.CacheDefaultTTL == 0 {
		cfg.Warnings = append(cfg.Warnings, "memory cache with no CACHE_DEFAULT_TTL — entries live until invalidated or the process exits")
	}

	// Production mode: loose defaults are fatal errors.
	if cfg.IsProduction() {
		if os.Getenv("META_DB_PATH") == "" && cfg.CacheBackend == CacheBackendSQLite {
			return nil, fmt.Errorf("META_DB_PATH must be set in production when CACHE_BACKEND=sqlite")
		}
		if os.Getenv("SPEC_DIR") == "" {
			return nil, fmt.Errorf("SPEC_DIR must be set in production (ENV=production)")
		}
	}

	return cfg, nil
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = stripQuotes(value)
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
