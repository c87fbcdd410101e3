// Package config loads and saves the Nandy daemon configuration.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fentz26/nandy/internal/engine"
	"github.com/fentz26/nandy/internal/models"
	"github.com/fentz26/nandy/internal/store"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. NANDY_DATABASE_DSN.
const EnvPrefix = "NANDY"

// Notifier drivers.
const (
	NotifyRedis = "redis"
	NotifyLog   = "log"
	NotifyNone  = "none"
)

// Config holds the daemon configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen   string         `yaml:"listen" mapstructure:"listen"`
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Notify   NotifyConfig   `yaml:"notify" mapstructure:"notify"`
	// Statuses are the status literals per kind.
	Statuses engine.Statuses `yaml:"statuses" mapstructure:"statuses"`
	// Language is stamped on routines that name none.
	Language string `yaml:"language" mapstructure:"language"`
	// Audit toggles the decision record trail.
	Audit bool `yaml:"audit" mapstructure:"audit"`
}

// DatabaseConfig selects the store backend.
type DatabaseConfig struct {
	// Driver is sqlite or pgx.
	Driver string `yaml:"driver" mapstructure:"driver"`
	// DSN is a file path for sqlite and a connection URL for pgx.
	DSN string `yaml:"dsn" mapstructure:"dsn"`
}

// NotifyConfig selects where change notifications go.
type NotifyConfig struct {
	// Driver is redis, log or none.
	Driver string      `yaml:"driver" mapstructure:"driver"`
	Redis  RedisConfig `yaml:"redis" mapstructure:"redis"`
	// Hook, when it names a command, runs alongside the driver.
	Hook   HookConfig  `yaml:"hook" mapstructure:"hook"`
}

// HookConfig is a local command fed every notification on stdin.
type HookConfig struct {
	Command        string   `yaml:"command" mapstructure:"command"`
	Args           []string `yaml:"args,omitempty" mapstructure:"args"`
	// Kinds limits the hook to these entity kinds; empty means all.
	Kinds          []string `yaml:"kinds,omitempty" mapstructure:"kinds"`
	TimeoutSeconds int      `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// RedisConfig is the pub/sub target for the redis driver.
type RedisConfig struct {
	Addr    string `yaml:"addr" mapstructure:"addr"`
	Channel string `yaml:"channel" mapstructure:"channel"`
}

// Dir returns ~/.nandy, or .nandy when there is no home directory.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".nandy"
	}
	return filepath.Join(home, ".nandy")
}

// DefaultPath returns ~/.nandy/config.yaml.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// DefaultConfig returns a configuration for a local SQLite daemon that logs
// its notifications.
func DefaultConfig() *Config {
	return &Config{
		Listen: "127.0.0.1:7467",
		Database: DatabaseConfig{
			Driver: store.DriverSQLite,
			DSN:    filepath.Join(Dir(), "nandy.db"),
		},
		Notify: NotifyConfig{
			Driver: NotifyLog,
			Redis: RedisConfig{
				Addr:    "127.0.0.1:6379",
				Channel: "nandy",
			},
		},
		Statuses: engine.DefaultStatuses(),
		Language: engine.DefaultLanguage,
		Audit:    true,
	}
}

// Load reads path over the defaults and then applies NANDY_* environment
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	base, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("encoding defaults: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(base)); err != nil {
		return nil, fmt.Errorf("reading defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, creating parent directories if needed.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}

	switch c.Database.Driver {
	case store.DriverSQLite, store.DriverPostgres:
	default:
		return fmt.Errorf("invalid database driver %q, must be: sqlite or pgx", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}

	switch c.Notify.Driver {
	case NotifyRedis:
		if c.Notify.Redis.Addr == "" {
			return fmt.Errorf("notify.redis.addr is required for the redis driver")
		}
	case NotifyLog, NotifyNone:
	default:
		return fmt.Errorf("invalid notify driver %q, must be: redis, log, or none", c.Notify.Driver)
	}
	if c.Notify.Hook.TimeoutSeconds < 0 {
		return fmt.Errorf("notify.hook.timeout_seconds cannot be negative")
	}
	for _, k := range c.Notify.Hook.Kinds {
		if !models.Kind(k).Valid() {
			return fmt.Errorf("notify.hook.kinds: unknown kind %q", k)
		}
	}

	kinds := map[string]engine.StatusNames{
		"routine": c.Statuses.Routine,
		"todo":    c.Statuses.ToDo,
		"area":    c.Statuses.Area,
		"act":     c.Statuses.Act,
	}
	for kind, names := range kinds {
		if names.Active == "" || names.Terminal == "" {
			return fmt.Errorf("statuses.%s needs both active and terminal", kind)
		}
		if names.Active == names.Terminal {
			return fmt.Errorf("statuses.%s active and terminal must differ", kind)
		}
	}
	return nil
}
