// Package config loads the triaged YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/concordia-platform/triage/internal/ratelimit"
	"github.com/concordia-platform/triage/internal/sentinel"
)

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr      string          `yaml:"addr"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig bounds per-client request rates. Zero values disable
// limiting.
type RateLimitConfig struct {
	MaxRequests   int `yaml:"max_requests"`
	WindowSeconds int `yaml:"window_seconds"`
}

// Limit converts the config into a limiter limit.
func (r RateLimitConfig) Limit() ratelimit.Limit {
	return ratelimit.Limit{
		MaxRequests: r.MaxRequests,
		Window:      time.Duration(r.WindowSeconds) * time.Second,
	}
}

// RedisConfig holds Redis backend connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StoreConfig selects and tunes the durable store backend.
type StoreConfig struct {
	// Backend is "memory" or "redis".
	Backend string `yaml:"backend"`
	// TimeoutSeconds bounds every store call; a timeout surfaces as a
	// typed store-unavailable failure, never a silent retry.
	TimeoutSeconds int         `yaml:"timeout_seconds"`
	Redis          RedisConfig `yaml:"redis"`
}

// Timeout returns the configured store timeout as a duration.
func (s StoreConfig) Timeout() time.Duration {
	if s.TimeoutSeconds <= 0 {
		return 3 * time.Second
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// RegistriesConfig locates the two federation registry files.
type RegistriesConfig struct {
	LocalPath       string `yaml:"local_path"`
	ContinentalPath string `yaml:"continental_path"`
}

// Config is the full triaged configuration.
type Config struct {
	Server     ServerConfig          `yaml:"server"`
	Store      StoreConfig           `yaml:"store"`
	Registries RegistriesConfig      `yaml:"registries"`
	// PoliciesPath and RulesPath are operator-owned files, hot-reloaded
	// on change.
	PoliciesPath string                `yaml:"policies_path"`
	RulesPath    string                `yaml:"rules_path"`
	Sentinel     []sentinel.SinkConfig `yaml:"sentinel"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8420"},
		Store:  StoreConfig{Backend: "memory", TimeoutSeconds: 3},
		Registries: RegistriesConfig{
			LocalPath:       "data/registry-local.jsonl",
			ContinentalPath: "data/registry-continental.jsonl",
		},
	}
}

// Load reads a config file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the daemon cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "", "memory", "redis":
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Backend == "redis" && c.Store.Redis.Addr == "" {
		return fmt.Errorf("config: redis backend requires store.redis.addr")
	}
	if c.Registries.LocalPath == "" || c.Registries.ContinentalPath == "" {
		return fmt.Errorf("config: both registry paths are required")
	}
	if c.Registries.LocalPath == c.Registries.ContinentalPath {
		return fmt.Errorf("config: registries must be distinct files")
	}
	return nil
}
