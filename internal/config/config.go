// Package config loads grib2grid settings from defaults, an optional YAML
// file and GRIB2GRID_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/geal-ai/grib2grid"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Log    LogConfig    `mapstructure:"log"`
	Bridge BridgeConfig `mapstructure:"bridge"`
	Server ServerConfig `mapstructure:"server"`
	Fetch  FetchConfig  `mapstructure:"fetch"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type BridgeConfig struct {
	Order    string `mapstructure:"order"`    // wesn or raw
	Fallback bool   `mapstructure:"fallback"` // try the generic extractor when the fast path fails
}

type ServerConfig struct {
	Addr          string        `mapstructure:"addr"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	BodyLimit     int           `mapstructure:"body_limit"`
	MaxGridPoints int           `mapstructure:"max_grid_points"` // largest grid the HTTP API accepts
}

type FetchConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("bridge.order", "wesn")
	v.SetDefault("bridge.fallback", true)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.body_limit", 64<<20)
	v.SetDefault("server.max_grid_points", 10_000_000)
	v.SetDefault("fetch.base_url", grib2grid.DefaultBaseURL)
	v.SetDefault("fetch.timeout", 120*time.Second)

	// Config file (optional)
	v.SetConfigName("grib2grid")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// Environment variables: GRIB2GRID_SERVER_ADDR → server.addr
	v.SetEnvPrefix("GRIB2GRID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Order returns the parsed bridge point order.
func (c *Config) Order() grib2grid.Order {
	o, _ := grib2grid.ParseOrder(c.Bridge.Order)
	return o
}

// Validate checks that configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level must be debug, info, warn or error, got %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("log.format must be json or text, got %q", c.Log.Format))
	}
	if _, err := grib2grid.ParseOrder(c.Bridge.Order); err != nil {
		errs = append(errs, "bridge.order: "+err.Error())
	}
	if c.Server.Addr == "" {
		errs = append(errs, "server.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Server.BodyLimit <= 0 {
		errs = append(errs, "server.body_limit must be positive")
	}
	if c.Server.MaxGridPoints <= 0 {
		errs = append(errs, "server.max_grid_points must be positive")
	}
	if u, err := url.Parse(c.Fetch.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("fetch.base_url must be an absolute URL, got %q", c.Fetch.BaseURL))
	}
	if c.Fetch.Timeout <= 0 {
		errs = append(errs, "fetch.timeout must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
