// SPDX-License-Identifier: MIT

// Package config loads kinocore configuration from an optional YAML file,
// with environment variables taking precedence over file values.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Progress store backends.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

var ErrMissingCatalogURL = errors.New("config: catalog URL is required")

// Config holds all runtime settings for the client core.
type Config struct {
	// CatalogURL is the base URL of the movie/comment backend.
	CatalogURL string `yaml:"catalog_url"`
	// AuthURL is the base URL of the token-authenticated backend variant.
	// Defaults to CatalogURL when empty.
	AuthURL string `yaml:"auth_url"`
	// APIToken is the bearer token used against the auth variant.
	APIToken string `yaml:"api_token"`
	// DataDir holds local state: guest identity, cached session, durable
	// progress stores.
	DataDir string `yaml:"data_dir"`
	// ProgressBackend selects the progress store backend
	// (sqlite|badger|redis|memory).
	ProgressBackend string `yaml:"progress_backend"`
	RedisAddr       string `yaml:"redis_addr"`
	RedisDB         int    `yaml:"redis_db"`
	// HTTPTimeout bounds every backend request.
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	LogLevel    string        `yaml:"log_level"`
}

// Defaults returns the baseline configuration before file and env merging.
func Defaults() Config {
	return Config{
		CatalogURL:      "http://localhost:4000",
		DataDir:         defaultDataDir(),
		ProgressBackend: BackendSQLite,
		RedisAddr:       "localhost:6379",
		HTTPTimeout:     15 * time.Second,
		LogLevel:        "info",
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "kinocore")
	}
	return ".kinocore"
}

// Load builds the effective configuration: defaults, then the YAML file at
// path (if path is non-empty), then environment overrides, then validation.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		if err := mergeFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	mergeEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the operator
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// UnmarshalYAML merges file values over the existing (default) values.
// Absent keys leave the receiver untouched, and http_timeout accepts Go
// duration syntax ("15s"), which yaml cannot decode into a time.Duration
// directly.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		CatalogURL      string `yaml:"catalog_url"`
		AuthURL         string `yaml:"auth_url"`
		APIToken        string `yaml:"api_token"`
		DataDir         string `yaml:"data_dir"`
		ProgressBackend string `yaml:"progress_backend"`
		RedisAddr       string `yaml:"redis_addr"`
		RedisDB         *int   `yaml:"redis_db"`
		HTTPTimeout     string `yaml:"http_timeout"`
		LogLevel        string `yaml:"log_level"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	if raw.CatalogURL != "" {
		c.CatalogURL = raw.CatalogURL
	}
	if raw.AuthURL != "" {
		c.AuthURL = raw.AuthURL
	}
	if raw.APIToken != "" {
		c.APIToken = raw.APIToken
	}
	if raw.DataDir != "" {
		c.DataDir = raw.DataDir
	}
	if raw.ProgressBackend != "" {
		c.ProgressBackend = raw.ProgressBackend
	}
	if raw.RedisAddr != "" {
		c.RedisAddr = raw.RedisAddr
	}
	if raw.RedisDB != nil {
		c.RedisDB = *raw.RedisDB
	}
	if raw.HTTPTimeout != "" {
		d, err := time.ParseDuration(raw.HTTPTimeout)
		if err != nil {
			return fmt.Errorf("invalid http_timeout %q: %w", raw.HTTPTimeout, err)
		}
		c.HTTPTimeout = d
	}
	if raw.LogLevel != "" {
		c.LogLevel = raw.LogLevel
	}
	return nil
}

func mergeEnv(cfg *Config) {
	cfg.CatalogURL = ParseString("KINOCORE_CATALOG_URL", cfg.CatalogURL)
	cfg.AuthURL = ParseString("KINOCORE_AUTH_URL", cfg.AuthURL)
	cfg.APIToken = ParseString("KINOCORE_API_TOKEN", cfg.APIToken)
	cfg.DataDir = ParseString("KINOCORE_DATA_DIR", cfg.DataDir)
	cfg.ProgressBackend = ParseString("KINOCORE_PROGRESS_BACKEND", cfg.ProgressBackend)
	cfg.RedisAddr = ParseString("KINOCORE_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisDB = ParseInt("KINOCORE_REDIS_DB", cfg.RedisDB)
	cfg.HTTPTimeout = ParseDuration("KINOCORE_HTTP_TIMEOUT", cfg.HTTPTimeout)
	cfg.LogLevel = ParseString("KINOCORE_LOG_LEVEL", cfg.LogLevel)
}

// Validate checks the configuration for internal consistency.
func (c Config) Validate() error {
	if c.CatalogURL == "" {
		return ErrMissingCatalogURL
	}
	if _, err := url.Parse(c.CatalogURL); err != nil {
		return fmt.Errorf("config: invalid catalog URL %q: %w", c.CatalogURL, err)
	}
	if c.AuthURL != "" {
		if _, err := url.Parse(c.AuthURL); err != nil {
			return fmt.Errorf("config: invalid auth URL %q: %w", c.AuthURL, err)
		}
	}
	switch c.ProgressBackend {
	case BackendSQLite, BackendBadger, BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("config: unknown progress backend %q (supported: sqlite, badger, redis, memory)", c.ProgressBackend)
	}
	if c.ProgressBackend == BackendRedis && c.RedisAddr == "" {
		return errors.New("config: redis backend selected but redis_addr is empty")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("config: http_timeout must be positive, got %s", c.HTTPTimeout)
	}
	return nil
}

// EffectiveAuthURL returns the auth backend base, falling back to the
// catalog backend when no separate auth variant is configured.
func (c Config) EffectiveAuthURL() string {
	if c.AuthURL != "" {
		return c.AuthURL
	}
	return c.CatalogURL
}
