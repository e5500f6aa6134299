// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port int `yaml:"port"`
	// AllowedOrigins for browser WebSocket upgrades; empty allows all (dev).
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type BackendConfig struct {
	// BaseURL of the analysis service (query + volatility cone).
	BaseURL string `yaml:"base_url"`
	// IntradayBaseURL of the intraday quote service; defaults to BaseURL.
	IntradayBaseURL string        `yaml:"intraday_base_url"`
	Timeout         time.Duration `yaml:"timeout"`
}

type RealtimeConfig struct {
	// PollInterval between intraday fetches for the active subscription.
	PollInterval time.Duration `yaml:"poll_interval"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Backend  BackendConfig  `yaml:"backend"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Redis    RedisConfig    `yaml:"redis"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if v := os.Getenv("BACKEND_BASE_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if cfg.Backend.IntradayBaseURL == "" {
		cfg.Backend.IntradayBaseURL = cfg.Backend.BaseURL
	}
	if cfg.Backend.Timeout <= 0 {
		cfg.Backend.Timeout = 30 * time.Second
	}
	if cfg.Realtime.PollInterval <= 0 {
		cfg.Realtime.PollInterval = time.Minute
	}
	if cfg.Realtime.FetchTimeout <= 0 {
		cfg.Realtime.FetchTimeout = 15 * time.Second
	}
	// Keep cached intraday snapshots just under one polling interval so
	// a cache hit can never outlive the data it shadows.
	if cfg.Redis.TTL <= 0 || cfg.Redis.TTL >= cfg.Realtime.PollInterval {
		cfg.Redis.TTL = cfg.Realtime.PollInterval - 5*time.Second
	}

	// Minimal validation
	if cfg.Backend.BaseURL == "" {
		return nil, errors.New("backend.base_url is required")
	}
	if cfg.Redis.Enabled && cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required when redis.enabled")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
