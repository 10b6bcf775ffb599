package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/sosodev/duration"
	"github.com/spf13/viper"

	"github.com/manlikestiffler/smart-granary-system-v1/internal/models"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig               `mapstructure:"server"`
	Database   DatabaseConfig             `mapstructure:"database"`
	Store      StoreConfig                `mapstructure:"store"`
	Simulator  SimulatorConfig            `mapstructure:"simulator"`
	Data       DataConfig                 `mapstructure:"data"`
	Thresholds map[string]ThresholdConfig `mapstructure:"thresholds"`
	Log        LogConfig                  `mapstructure:"log"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// StoreConfig bounds the in-memory reading history
type StoreConfig struct {
	Capacity  int    `mapstructure:"capacity"`
	Retention string `mapstructure:"retention"` // ISO 8601 duration, e.g. P90D; empty keeps everything

	RetentionWindow time.Duration `mapstructure:"-"`
}

// SimulatorConfig controls the built-in synthetic reading source
type SimulatorConfig struct {
	Enabled  bool    `mapstructure:"enabled"`
	Interval string  `mapstructure:"interval"` // ISO 8601 (PT5S) or Go (5s) duration
	Jitter   float64 `mapstructure:"jitter"`

	Tick time.Duration `mapstructure:"-"`
}

// DataConfig represents data configuration
type DataConfig struct {
	RawDataFolder string `mapstructure:"raw_data_folder"`
}

// ThresholdConfig overrides the default bounds of one metric. Unset fields keep the default.
type ThresholdConfig struct {
	WarningLow   *float64 `mapstructure:"warning_low"`
	WarningHigh  *float64 `mapstructure:"warning_high"`
	CriticalLow  *float64 `mapstructure:"critical_low"`
	CriticalHigh *float64 `mapstructure:"critical_high"`
}

// LogConfig selects the log level
type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8888")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("database.path", "granary.db")
	v.SetDefault("store.capacity", 10000)
	v.SetDefault("store.retention", "P90D")
	v.SetDefault("simulator.enabled", false)
	v.SetDefault("simulator.interval", "PT5S")
	v.SetDefault("simulator.jitter", 0.05)
	v.SetDefault("data.raw_data_folder", "raw_data")
	v.SetDefault("log.level", "info")
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("GRANARY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig loads configuration from a file (JSON by default, any viper format by extension).
// GRANARY_* environment variables override file values, e.g. GRANARY_SERVER_PORT.
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.json"
	}

	v := newViper()
	v.SetConfigFile(configPath)
	if filepath.Ext(configPath) == "" {
		v.SetConfigType("json")
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return decode(v)
}

// LoadConfigWithDefaults loads config with fallback to defaults if file doesn't exist
func LoadConfigWithDefaults(configPath string) (*Config, error) {
	cfg, err := LoadConfig(configPath)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return decode(newViper())
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Store.Capacity < 0 {
		return fmt.Errorf("store.capacity must not be negative, got %d", c.Store.Capacity)
	}
	if c.Store.Retention != "" {
		window, err := ParseDuration(c.Store.Retention)
		if err != nil {
			return fmt.Errorf("store.retention: %w", err)
		}
		c.Store.RetentionWindow = window
	}

	tick, err := ParseDuration(c.Simulator.Interval)
	if err != nil {
		return fmt.Errorf("simulator.interval: %w", err)
	}
	if tick <= 0 {
		return fmt.Errorf("simulator.interval must be positive, got %s", c.Simulator.Interval)
	}
	c.Simulator.Tick = tick
	if c.Simulator.Jitter < 0 || c.Simulator.Jitter > 1 {
		return fmt.Errorf("simulator.jitter must be within [0, 1], got %g", c.Simulator.Jitter)
	}

	if _, err := c.Bounds(); err != nil {
		return err
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// ParseDuration accepts an ISO 8601 duration (P90D, PT5S) or a Go duration string (5s)
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(strings.ToUpper(s), "P") {
		d, err := duration.Parse(strings.ToUpper(s))
		if err != nil {
			return 0, fmt.Errorf("invalid ISO 8601 duration %q: %w", s, err)
		}
		return d.ToTimeDuration(), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}

// Bounds returns the default threshold table with the configured overrides applied
func (c *Config) Bounds() (map[models.Metric]models.Bounds, error) {
	bounds := models.DefaultBounds()
	for name, tc := range c.Thresholds {
		m, err := models.ParseMetric(strings.ToLower(name))
		if err != nil {
			return nil, fmt.Errorf("thresholds: %w", err)
		}
		b := bounds[m]
		override(&b.WarningLow, tc.WarningLow)
		override(&b.WarningHigh, tc.WarningHigh)
		override(&b.CriticalLow, tc.CriticalLow)
		override(&b.CriticalHigh, tc.CriticalHigh)
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("thresholds.%s: %w", m, err)
		}
		bounds[m] = b
	}
	return bounds, nil
}

func override(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

// ParseLevel maps debug, info, warn and error onto slog levels
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
