package config

import (
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	// Path to the sqlite database file
	DatabasePath string `env:"DATABASE_PATH" envDefault:"database/listings.db"`

	// HTTP port for the read API
	Port string `env:"PORT" envDefault:"5250"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Upstream struct {
		// Base URL of the listing-count hierarchy endpoint
		BaseURL string `env:"UPSTREAM_BASE_URL" envDefault:"https://api.listings.example.com/v1"`

		// Timeout for one hierarchy fetch (in seconds)
		FetchTimeout int `env:"UPSTREAM_FETCH_TIMEOUT" envDefault:"30"`
	}

	Collection struct {
		// Cron expression for the daily collection trigger
		Cron string `env:"COLLECT_CRON" envDefault:"0 3 * * *"`

		// Run a collection pass immediately on startup
		RunOnStart bool `env:"COLLECT_ON_START" envDefault:"false"`
	}

	Cache struct {
		// Time-to-live for cached query results (in seconds)
		TTL int `env:"CACHE_TTL" envDefault:"300"`
	}
}

func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Upstream.FetchTimeout) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTL) * time.Second
}
