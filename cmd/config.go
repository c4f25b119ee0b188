package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/etnz/quotes/paginate"
	"gopkg.in/yaml.v3"
)

const (
	envPolygonKey      = "POLYGON_API_KEY"
	envAlphaVantageKey = "ALPHA_VANTAGE_API_KEY"
	envEODHDKey        = "EODHD_API_KEY"
)

// Config is the content of the configuration file. Every field is optional.
type Config struct {
	CacheDir            string `yaml:"cache_dir,omitempty"`
	CutoffHour          *int   `yaml:"cutoff_hour,omitempty"`
	Timezone            string `yaml:"timezone,omitempty"`
	Backoff             string `yaml:"backoff,omitempty"`
	MaxRateLimitSignals int    `yaml:"max_rate_limit_signals,omitempty"`
	PolygonAPIKey       string `yaml:"polygon_api_key,omitempty"`
	AlphaVantageAPIKey  string `yaml:"alpha_vantage_api_key,omitempty"`
	EODHDAPIKey         string `yaml:"eodhd_api_key,omitempty"`
}

// DefaultConfigPath is the configuration file in the user's config folder.
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "quotes", "config.yaml")
}

// DefaultCacheDir is the cache folder in the user's cache folder.
func DefaultCacheDir() string {
	return filepath.Join(xdg.CacheHome, "quotes")
}

// LoadConfig reads the configuration file at path. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := new(Config)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = DefaultCacheDir()
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.CutoffHour != nil && (*c.CutoffHour < 0 || *c.CutoffHour > 23) {
		return fmt.Errorf("cutoff_hour must be between 0 and 23, got %d", *c.CutoffHour)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.BackoffDuration(); err != nil {
		return err
	}
	if c.MaxRateLimitSignals < 0 {
		return fmt.Errorf("max_rate_limit_signals must be positive, got %d", c.MaxRateLimitSignals)
	}
	return nil
}

// applyEnv fills the API keys missing from the file with the environment.
func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv(envPolygonKey); v != "" {
		c.PolygonAPIKey = v
	}
	if v := getenv(envAlphaVantageKey); v != "" {
		c.AlphaVantageAPIKey = v
	}
	if v := getenv(envEODHDKey); v != "" {
		c.EODHDAPIKey = v
	}
}

// Location is the time zone of the cache cutoff and of the split dates.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.LoadLocation("America/New_York")
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Cutoff is the hour of the day, the day after, when cached data expires by default.
func (c *Config) Cutoff() int {
	if c.CutoffHour == nil {
		return 2
	}
	return *c.CutoffHour
}

// BackoffDuration is the wait after a rate limit signal.
func (c *Config) BackoffDuration() (time.Duration, error) {
	if c.Backoff == "" {
		return paginate.DefaultBackoff, nil
	}
	d, err := time.ParseDuration(c.Backoff)
	if err != nil {
		return 0, fmt.Errorf("invalid backoff %q: %w", c.Backoff, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid backoff %q: negative", c.Backoff)
	}
	return d, nil
}

// MaxSignals is the number of consecutive rate limit signals that abort a listing.
func (c *Config) MaxSignals() int {
	if c.MaxRateLimitSignals == 0 {
		return paginate.DefaultMaxSignals
	}
	return c.MaxRateLimitSignals
}
