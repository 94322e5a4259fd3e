/*
Package config loads runtime configuration from the environment.

PURPOSE:
  One flat struct, environment-variable driven, with a .env file picked
  up in development. Nothing here is hot-reloadable; the process restarts
  to change configuration.
*/
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the full runtime configuration.
type Config struct {
	// Portal session. Required for any command that fetches.
	PortalURL      string `env:"PORTAL_URL"`
	PortalUsername string `env:"PORTAL_USERNAME"`
	PortalPassword string `env:"PORTAL_PASSWORD"`

	// Storage.
	DatabasePath string `env:"DATABASE_PATH" envDefault:"availability.db"`
	CacheDir     string `env:"CACHE_DIR" envDefault:".cache/grid"`

	// API server.
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`

	// Scraping.
	ScrapeInterval time.Duration `env:"SCRAPE_INTERVAL" envDefault:"5m"`
	HorizonDays    int           `env:"HORIZON_DAYS" envDefault:"7"`

	// Logging: trace, debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads a .env file if present, then the environment. Missing .env
// is not an error; a malformed environment value is.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// RequirePortal validates the settings a fetching command needs.
func (c Config) RequirePortal() error {
	if c.PortalURL == "" {
		return fmt.Errorf("PORTAL_URL is required")
	}
	if c.PortalUsername == "" || c.PortalPassword == "" {
		return fmt.Errorf("PORTAL_USERNAME and PORTAL_PASSWORD are required")
	}
	return nil
}
