// Package config loads paaplan settings from an optional paaplan.yaml,
// PAAPLAN_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/FranksOps/paaplan/internal/fingerprint"
)

// EnvPrefix prefixes every environment override, e.g. PAAPLAN_SERPAPI_KEY.
const EnvPrefix = "PAAPLAN"

// Storage selects the run store.
type Storage struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// WordPress holds fallback publishing credentials for sites whose profile
// carries none.
type WordPress struct {
	URL      string `mapstructure:"url"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// Config is the resolved configuration.
type Config struct {
	SerpAPIKey     string        `mapstructure:"serpapi_key"`
	AnthropicKey   string        `mapstructure:"anthropic_key"`
	AnthropicModel string        `mapstructure:"anthropic_model"`
	Delay          time.Duration `mapstructure:"delay"`
	Workers        int           `mapstructure:"workers"`
	Retries        int           `mapstructure:"retries"`
	Autocomplete   bool          `mapstructure:"autocomplete"`
	Fingerprint    string        `mapstructure:"fingerprint"`
	ProxiesFile    string        `mapstructure:"proxies_file"`
	LogLevel       string        `mapstructure:"log_level"`
	MetricsPort    int           `mapstructure:"metrics_port"`
	Storage        Storage       `mapstructure:"storage"`
	NATSURL        string        `mapstructure:"nats_url"`
	SitesFile      string        `mapstructure:"sites_file"`
	WordPress      WordPress     `mapstructure:"wordpress"`
}

var defaults = map[string]any{
	"serpapi_key":        "",
	"anthropic_key":      "",
	"anthropic_model":    "claude-sonnet-4-20250514",
	"delay":              2 * time.Second,
	"workers":            1,
	"retries":            0,
	"autocomplete":       true,
	"fingerprint":        string(fingerprint.ProfileChrome),
	"proxies_file":       "",
	"log_level":          "info",
	"metrics_port":       0,
	"storage.driver":     "",
	"storage.dsn":        "",
	"nats_url":           "",
	"sites_file":         "",
	"wordpress.url":      "",
	"wordpress.user":     "",
	"wordpress.password": "",
}

// New returns a viper instance with defaults and environment binding set
// up. Flags can be bound to it before Load.
func New() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("paaplan")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/paaplan")
	return v
}

// Load reads the config file (path, or the search path when empty) and
// decodes the merged settings. A missing file on the search path is fine;
// a missing explicit path is not.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Delay < 0 {
		return fmt.Errorf("config: delay must not be negative, got %v", c.Delay)
	}
	if c.Workers < 1 {
		return fmt.Errorf("config: workers must be at least 1, got %d", c.Workers)
	}
	if c.Retries < 0 {
		return fmt.Errorf("config: retries must not be negative, got %d", c.Retries)
	}
	if _, err := fingerprint.ParseProfile(c.Fingerprint); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Storage.Driver != "" && c.Storage.DSN == "" {
		return fmt.Errorf("config: storage driver %q needs storage.dsn", c.Storage.Driver)
	}
	return nil
}

// Credentialed reports whether a SerpAPI key is configured.
func (c *Config) Credentialed() bool {
	return strings.TrimSpace(c.SerpAPIKey) != ""
}
