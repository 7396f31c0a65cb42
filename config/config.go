// Package config loads rescache settings from defaults, an optional YAML
// file and RESCACHE_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override,
// e.g. RESCACHE_RESPONSE_MAX_SIZE=500.
const EnvPrefix = "RESCACHE"

// Config is the full rescache configuration.
type Config struct {
	Resource ResourceConfig `mapstructure:"resource"`
	Response ResponseConfig `mapstructure:"response"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Store    StoreConfig    `mapstructure:"store"`
}

// ResourceConfig sizes the resource loader.
type ResourceConfig struct {
	CacheSize     int `mapstructure:"cache_size"`     // resident instances before LRU eviction
	MaxConcurrent int `mapstructure:"max_concurrent"` // simultaneous constructions
}

// ResponseConfig sizes the response cache and its janitor.
type ResponseConfig struct {
	MaxSize         int           `mapstructure:"max_size"`
	Duration        time.Duration `mapstructure:"duration"`         // lifetime of a cached answer
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"` // 0 disables the janitor
}

// LogConfig selects the log level and encoding.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json or console
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Addr      string `mapstructure:"addr"` // empty disables the /metrics listener
	Namespace string `mapstructure:"namespace"`
}

// StoreConfig locates the response-cache snapshot file.
type StoreConfig struct {
	Path string `mapstructure:"path"` // SQLite snapshot file; empty disables persistence
}

var defaults = map[string]any{
	"resource.cache_size":       1000,
	"resource.max_concurrent":   10,
	"response.max_size":         1000,
	"response.duration":         "24h",
	"response.cleanup_interval": "10m",
	"log.level":                 "info",
	"log.format":                "json",
	"metrics.addr":              ":8080",
	"metrics.namespace":         "rescache",
	"store.path":                "",
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := load(newViper(false))
	if err != nil {
		// defaults are static; this only fires on a programming error
		panic(err)
	}
	return cfg
}

// Load reads configuration. An explicit path must exist; with an empty path
// rescache.yaml is looked up in the working directory and $HOME/.rescache
// and silently skipped when absent.
func Load(path string) (*Config, error) {
	v := newViper(true)
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("rescache")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.rescache")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	cfg, err := load(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newViper(env bool) *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	if !env {
		return v
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Resource.CacheSize <= 0 {
		errs = append(errs, fmt.Errorf("resource.cache_size must be > 0, got %d", c.Resource.CacheSize))
	}
	if c.Resource.MaxConcurrent <= 0 {
		errs = append(errs, fmt.Errorf("resource.max_concurrent must be > 0, got %d", c.Resource.MaxConcurrent))
	}
	if c.Response.MaxSize <= 0 {
		errs = append(errs, fmt.Errorf("response.max_size must be > 0, got %d", c.Response.MaxSize))
	}
	if c.Response.Duration <= 0 {
		errs = append(errs, fmt.Errorf("response.duration must be > 0, got %s", c.Response.Duration))
	}
	if c.Response.CleanupInterval < 0 {
		errs = append(errs, fmt.Errorf("response.cleanup_interval must be >= 0, got %s", c.Response.CleanupInterval))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or console, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// YAML renders the effective configuration in the file format Load reads.
func (c *Config) YAML() ([]byte, error) {
	view := map[string]any{
		"resource": map[string]any{
			"cache_size":     c.Resource.CacheSize,
			"max_concurrent": c.Resource.MaxConcurrent,
		},
		"response": map[string]any{
			"max_size":         c.Response.MaxSize,
			"duration":         c.Response.Duration.String(),
			"cleanup_interval": c.Response.CleanupInterval.String(),
		},
		"log": map[string]any{
			"level":  c.Log.Level,
			"format": c.Log.Format,
		},
		"metrics": map[string]any{
			"addr":      c.Metrics.Addr,
			"namespace": c.Metrics.Namespace,
		},
		"store": map[string]any{
			"path": c.Store.Path,
		},
	}
	return yaml.Marshal(view)
}
