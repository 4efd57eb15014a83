// Package config loads the application configuration from YAML and applies
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the histfill backfiller.
type Config struct {
	Storage  Storage        `yaml:"storage"`
	Server   Server         `yaml:"server"`
	Vendor   Vendor         `yaml:"vendor"`
	Backfill BackfillConfig `yaml:"backfill"`
	Logging  Logging        `yaml:"logging"`
	Schedule Schedule       `yaml:"schedule"`
}

// Storage holds paths for data output and the optional run recorder.
type Storage struct {
	OutputDir  string `yaml:"output_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration for serve mode.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Vendor holds credentials and endpoints for the market-data vendors.
type Vendor struct {
	EODHDBaseURL      string `yaml:"eodhd_base_url"`
	EODHDToken        string `yaml:"eodhd_api_token"`
	TwelveDataBaseURL string `yaml:"twelvedata_base_url"`
	TwelveDataKey     string `yaml:"twelvedata_api_key"`
}

// BackfillConfig holds parameters for a backfill run.
type BackfillConfig struct {
	TickersPath  string `yaml:"tickers_path"`
	FeaturesPath string `yaml:"features_path"`
	Years        int    `yaml:"years"`
	MaxWorkers   int    `yaml:"max_workers"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Schedule configures the cron daemon.
type Schedule struct {
	Cron string `yaml:"cron"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies defaults, and then applies environment variable
// overrides. A .env file in the working directory is loaded first when
// present.
func Load(path string) (*Config, error) {
	// Best effort: a missing .env is not an error.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Vendor.EODHDBaseURL == "" {
		cfg.Vendor.EODHDBaseURL = "https://eodhd.com/api"
	}
	if cfg.Vendor.TwelveDataBaseURL == "" {
		cfg.Vendor.TwelveDataBaseURL = "https://api.twelvedata.com"
	}
	if cfg.Backfill.Years <= 0 {
		cfg.Backfill.Years = 10
	}
	if cfg.Backfill.MaxWorkers <= 0 {
		cfg.Backfill.MaxWorkers = 8
	}
	if cfg.Backfill.TickersPath == "" {
		cfg.Backfill.TickersPath = "config/tickers.txt"
	}
	if cfg.Storage.OutputDir == "" {
		cfg.Storage.OutputDir = "output"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		cfg.Storage.OutputDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("EODHD_API_TOKEN"); v != "" {
		cfg.Vendor.EODHDToken = v
	}
	if v := os.Getenv("TWELVEDATA_API_KEY"); v != "" {
		cfg.Vendor.TwelveDataKey = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Backfill.MaxWorkers = n
		}
	}
}
