// Package config loads boxd settings from a json5 file, an optional
// ".local" override next to it, and BOXD_* environment variables, in that
// order of increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/titanous/json5"

	"github.com/Sternrassler/letterboxd-client/pkg/fetcher"
	"github.com/Sternrassler/letterboxd-client/pkg/logging"
	"github.com/Sternrassler/letterboxd-client/pkg/pagination"
)

// DefaultPath is read when no --config flag is given. A missing default
// file is not an error.
const DefaultPath = "boxd.json5"

// Config is the file and environment form of the settings. Durations are
// Go duration strings ("1.5s", "24h").
type Config struct {
	BaseURL         string `json:"base_url"`
	UserAgent       string `json:"user_agent"`
	RandomUserAgent bool   `json:"random_user_agent"`
	MinDelay        string `json:"min_delay"`
	MaxDelay        string `json:"max_delay"`
	Timeout         string `json:"timeout"`

	// RedisAddr enables the shared page cache and cooldown when set.
	RedisAddr    string `json:"redis_addr"`
	PageCacheTTL string `json:"page_cache_ttl"`

	// DBPath is the SQLite file for saved records and films.
	DBPath string `json:"db_path"`

	LogLevel  string `json:"log_level"`
	LogPretty bool   `json:"log_pretty"`

	// MetricsAddr serves /metrics when set, e.g. ":9090".
	MetricsAddr string `json:"metrics_addr"`

	DriftTolerance int `json:"drift_tolerance"`
	Parallelism    int `json:"parallelism"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		BaseURL:      fetcher.DefaultBaseURL,
		UserAgent:    "boxd/0.1 (+https://github.com/Sternrassler/letterboxd-client)",
		MinDelay:     "1s",
		MaxDelay:     "2s",
		Timeout:      "30s",
		PageCacheTTL: "6h",
		DBPath:       "boxd.db",
		LogLevel:     "info",
		Parallelism:  4,
	}
}

// Load builds the effective configuration. An empty path means
// DefaultPath.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	cfg := Default()
	file, err := ReadFile(path)
	switch {
	case err == nil:
		if err := mergo.Merge(&cfg, file, mergo.WithOverride); err != nil {
			return Config{}, fmt.Errorf("merge %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ReadFile reads name and merges "<base>.local.<ext>" over it. It returns
// os.ErrNotExist when neither file exists.
func ReadFile(name string) (Config, error) {
	var out Config
	found := false

	data, err := os.ReadFile(name)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(data) > 0 {
		if err := json5.Unmarshal(data, &out); err != nil {
			return out, fmt.Errorf("%s: %w", name, err)
		}
		found = true
	}

	local := localPath(name)
	data, err = os.ReadFile(local)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(data) > 0 {
		var override Config
		if err := json5.Unmarshal(data, &override); err != nil {
			return out, fmt.Errorf("%s: %w", local, err)
		}
		if err := mergo.Merge(&out, override, mergo.WithOverride); err != nil {
			return out, err
		}
		found = true
	}

	if !found {
		return out, os.ErrNotExist
	}
	return out, nil
}

func localPath(name string) string {
	dir, base := filepath.Dir(name), filepath.Base(name)
	ext := filepath.Ext(base)
	return filepath.Join(dir, strings.TrimSuffix(base, ext)+".local"+ext)
}

func applyEnv(cfg *Config) error {
	cfg.BaseURL = getEnv("BOXD_BASE_URL", cfg.BaseURL)
	cfg.UserAgent = getEnv("BOXD_USER_AGENT", cfg.UserAgent)
	cfg.MinDelay = getEnv("BOXD_MIN_DELAY", cfg.MinDelay)
	cfg.MaxDelay = getEnv("BOXD_MAX_DELAY", cfg.MaxDelay)
	cfg.Timeout = getEnv("BOXD_TIMEOUT", cfg.Timeout)
	cfg.RedisAddr = getEnv("BOXD_REDIS_ADDR", cfg.RedisAddr)
	cfg.PageCacheTTL = getEnv("BOXD_PAGE_CACHE_TTL", cfg.PageCacheTTL)
	cfg.DBPath = getEnv("BOXD_DB", cfg.DBPath)
	cfg.LogLevel = getEnv("BOXD_LOG_LEVEL", cfg.LogLevel)
	cfg.MetricsAddr = getEnv("BOXD_METRICS_ADDR", cfg.MetricsAddr)

	var err error
	if cfg.RandomUserAgent, err = envBool("BOXD_RANDOM_USER_AGENT", cfg.RandomUserAgent); err != nil {
		return err
	}
	if cfg.LogPretty, err = envBool("BOXD_LOG_PRETTY", cfg.LogPretty); err != nil {
		return err
	}
	if cfg.DriftTolerance, err = envInt("BOXD_DRIFT_TOLERANCE", cfg.DriftTolerance); err != nil {
		return err
	}
	if cfg.Parallelism, err = envInt("BOXD_PARALLELISM", cfg.Parallelism); err != nil {
		return err
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// Validate checks every field that can be checked without I/O.
func (c Config) Validate() error {
	if c.UserAgent == "" && !c.RandomUserAgent {
		return errors.New("user_agent is required unless random_user_agent is set")
	}
	for name, v := range map[string]string{
		"min_delay":      c.MinDelay,
		"max_delay":      c.MaxDelay,
		"timeout":        c.Timeout,
		"page_cache_ttl": c.PageCacheTTL,
	} {
		if _, err := parseDuration(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.DriftTolerance < 0 {
		return fmt.Errorf("drift_tolerance must not be negative, got %d", c.DriftTolerance)
	}
	if c.Parallelism < 1 {
		return fmt.Errorf("parallelism must be at least 1, got %d", c.Parallelism)
	}
	return nil
}

// Fetcher returns the HTTP client settings.
func (c Config) Fetcher() (fetcher.Config, error) {
	out := fetcher.DefaultConfig(c.UserAgent)
	out.BaseURL = c.BaseURL
	out.RandomUserAgent = c.RandomUserAgent

	var err error
	if out.MinDelay, err = parseDuration(c.MinDelay); err != nil {
		return out, fmt.Errorf("min_delay: %w", err)
	}
	if out.MaxDelay, err = parseDuration(c.MaxDelay); err != nil {
		return out, fmt.Errorf("max_delay: %w", err)
	}
	if c.Timeout != "" {
		if out.Timeout, err = parseDuration(c.Timeout); err != nil {
			return out, fmt.Errorf("timeout: %w", err)
		}
	}
	return out, nil
}

// CacheTTL returns the page cache lifetime.
func (c Config) CacheTTL() time.Duration {
	d, _ := parseDuration(c.PageCacheTTL)
	return d
}

// Aggregation returns the reconciliation settings.
func (c Config) Aggregation() pagination.Config {
	return pagination.Config{DriftTolerance: c.DriftTolerance}
}

// Logging returns the logger settings.
func (c Config) Logging() logging.Config {
	out := logging.DefaultConfig()
	out.Level = c.LogLevel
	out.Pretty = c.LogPretty
	return out
}

// parseDuration treats "" as zero.
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", s)
	}
	return d, nil
}
