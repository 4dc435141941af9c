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

// ModelConfig holds the external language model provider configuration.
type ModelConfig struct {
	BaseURL    string        // OpenAI-compatible endpoint (default: api.openai.com)
	APIKey     string        // bearer token for the provider
	Model      string        // model identifier (default "gpt-4o-mini")
	MaxRetries int           // transport-level retries for translate/insights (default 2)
	Timeout    time.Duration // per-call timeout for translation (default 30s)
}

// Configured returns true when an API key is present.
func (m *ModelConfig) Configured() bool {
	return m.APIKey != ""
}

// Config holds the configuration for the HTTP API, the data store, and the
// translation pipeline policies.
type Config struct {
	ListenAddr    string // HTTP listen address (default ":8080")
	DataDBPath    string // DuckDB database file; empty means in-memory
	MetaDBPath    string // SQLite metastore path (default "querydesk_meta.sqlite")
	LogLevel      string // log level: debug, info, warn, error (default "info")
	MaxUploadMB   int64  // maximum upload size in megabytes (default 100)
	RowCap        int    // result rows returned before truncation (default 1000)
	ExecTimeout   time.Duration // per-statement execution budget (default 10s)
	InsightsRows  int           // sample rows embedded in the insights prompt (default 50)
	InsightsLimit time.Duration // insights call timeout (default 30s)

	// Rate limiting
	RateLimitRPS   float64 // sustained requests per second (default 100)
	RateLimitBurst int     // burst capacity (default 200)

	// CORS
	CORSAllowedOrigins []string // allowed origins for CORS (default: ["*"])

	// HistoryRetentionDays controls how long query history is kept before
	// the nightly sweep prunes it (default 30).
	HistoryRetentionDays int

	// Model holds the language model provider configuration.
	Model ModelConfig

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

// MaxUploadBytes returns the upload size limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB * 1024 * 1024
}

// LoadFromEnv loads configuration from environment variables. Everything has
// a usable default except the model API key, which produces a warning when
// missing (translation and insights endpoints will refuse requests).
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		ListenAddr: os.Getenv("QUERYDESK_LISTEN_ADDR"),
		DataDBPath: os.Getenv("QUERYDESK_DATA_DB"),
		MetaDBPath: os.Getenv("QUERYDESK_META_DB"),
		LogLevel:   os.Getenv("QUERYDESK_LOG_LEVEL"),
		Model: ModelConfig{
			BaseURL: os.Getenv("QUERYDESK_MODEL_BASE_URL"),
			APIKey:  os.Getenv("QUERYDESK_MODEL_API_KEY"),
			Model:   os.Getenv("QUERYDESK_MODEL"),
		},
	}

	// The provider key falls back to the conventional variable so existing
	// deployments keep working.
	if cfg.Model.APIKey == "" {
		cfg.Model.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if v := os.Getenv("QUERYDESK_MAX_UPLOAD_MB"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxUploadMB = n
		}
	}
	if v := os.Getenv("QUERYDESK_ROW_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RowCap = n
		}
	}
	if v := os.Getenv("QUERYDESK_EXEC_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ExecTimeout = d
		}
	}
	if v := os.Getenv("QUERYDESK_MODEL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Model.Timeout = d
		}
	}
	if v := os.Getenv("QUERYDESK_INSIGHTS_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.InsightsLimit = d
		}
	}
	if v := os.Getenv("QUERYDESK_INSIGHTS_SAMPLE_ROWS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.InsightsRows = n
		}
	}
	if v := os.Getenv("QUERYDESK_MODEL_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Model.MaxRetries = n
		}
	}
	if v := os.Getenv("QUERYDESK_HISTORY_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HistoryRetentionDays = n
		}
	}

	// Rate limiting
	if v := os.Getenv("QUERYDESK_RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("QUERYDESK_RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}

	// CORS
	if v := os.Getenv("QUERYDESK_CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = origins
	}

	// Defaults
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.MetaDBPath == "" {
		cfg.MetaDBPath = "querydesk_meta.sqlite"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.MaxUploadMB == 0 {
		cfg.MaxUploadMB = 100
	}
	if cfg.RowCap == 0 {
		cfg.RowCap = 1000
	}
	if cfg.ExecTimeout == 0 {
		cfg.ExecTimeout = 10 * time.Second
	}
	if cfg.InsightsRows == 0 {
		cfg.InsightsRows = 50
	}
	if cfg.InsightsLimit == 0 {
		cfg.InsightsLimit = 30 * time.Second
	}
	if cfg.Model.Timeout == 0 {
		cfg.Model.Timeout = 30 * time.Second
	}
	if cfg.Model.MaxRetries == 0 {
		cfg.Model.MaxRetries = 2
	}
	if cfg.Model.Model == "" {
		cfg.Model.Model = "gpt-4o-mini"
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 100
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 200
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}
	if cfg.HistoryRetentionDays == 0 {
		cfg.HistoryRetentionDays = 30
	}

	if !cfg.Model.Configured() {
		cfg.Warnings = append(cfg.Warnings,
			"no model API key set; /query and /insights will return translation failures (set QUERYDESK_MODEL_API_KEY)")
	}

	return cfg, nil
}

// LoadDotEnv reads a .env file and sets any variables not already in the
// environment. Lines must be in KEY=VALUE format. Comments (#) and blank
// lines are skipped.
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
		value = stripQuotes(strings.TrimSpace(value))
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
