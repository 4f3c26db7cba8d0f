// Package config loads xdr-responder configuration from defaults, an
// optional YAML file and XDR_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// GetEnv returns the value of key from the environment, or defaultValue if unset or empty.
func GetEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return strings.TrimSpace(v)
	}
	return defaultValue
}

// GetEnvDuration returns the duration for key, or defaultValue if unset/invalid.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultValue
	}
	return d
}

// APIConfig holds the XDR tenant connection settings.
type APIConfig struct {
	ServerURL         string        `mapstructure:"server_url" validate:"required,url"`
	Key               string        `mapstructure:"key" validate:"required"`
	KeyID             string        `mapstructure:"key_id" validate:"required"`
	Advanced          bool          `mapstructure:"advanced"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"min=0"`
}

// VaultConfig points at a KV v2 secret holding api_key and api_key_id.
// Credentials are read from Vault only when Address and Path are set.
type VaultConfig struct {
	Address string `mapstructure:"address"`
	Token   string `mapstructure:"token"`
	Mount   string `mapstructure:"mount"`
	Path    string `mapstructure:"path"`
}

// Enabled reports whether credentials should be read from Vault.
func (v VaultConfig) Enabled() bool {
	return v.Address != "" && v.Path != ""
}

// PollerConfig holds incident polling settings. Interval, MaxFetch and
// FirstFetch are reloaded on config file changes.
type PollerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Interval        time.Duration `mapstructure:"interval" validate:"min=1s"`
	FirstFetch      string        `mapstructure:"first_fetch"`
	MaxFetch        int           `mapstructure:"max_fetch" validate:"min=1"`
	RetentionCount  int           `mapstructure:"retention_count" validate:"min=1"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown"`
}

// StateConfig selects where the poll high-water mark is kept.
type StateConfig struct {
	Backend  string `mapstructure:"backend" validate:"oneof=memory file redis"`
	Path     string `mapstructure:"path"`
	RedisURL string `mapstructure:"redis_url"`
	RedisKey string `mapstructure:"redis_key"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Config is the full daemon and CLI configuration.
type Config struct {
	API      APIConfig    `mapstructure:"api"`
	Vault    VaultConfig  `mapstructure:"vault"`
	Poller   PollerConfig `mapstructure:"poller"`
	State    StateConfig  `mapstructure:"state"`
	Server   ServerConfig `mapstructure:"server"`
	LogLevel string       `mapstructure:"log_level"`
}

var defaults = map[string]interface{}{
	"api.server_url":          "",
	"api.key":                 "",
	"api.key_id":              "",
	"api.advanced":            false,
	"api.timeout":             120 * time.Second,
	"api.requests_per_second": 0.0,

	"vault.address": "",
	"vault.token":   "",
	"vault.mount":   "secret",
	"vault.path":    "",

	"poller.enabled":          true,
	"poller.interval":         time.Minute,
	"poller.first_fetch":      "3 days",
	"poller.max_fetch":        50,
	"poller.retention_count":  1000,
	"poller.breaker_failures": 5,
	"poller.breaker_cooldown": 5 * time.Minute,

	"state.backend":   "memory",
	"state.path":      "/var/lib/xdr-responder/last-run.yaml",
	"state.redis_url": "",
	"state.redis_key": "",

	"server.http_addr":        ":8080",
	"server.shutdown_timeout": 30 * time.Second,

	"log_level": "info",
}

// Loader reads configuration and optionally watches the config file.
type Loader struct {
	v   *viper.Viper
	log *logrus.Logger
}

// NewLoader creates a Loader. An empty path reads defaults and environment
// only.
func NewLoader(path string, log *logrus.Logger) *Loader {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix("XDR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
	}
	return &Loader{v: v, log: log}
}

// Load reads the config file (if any) and decodes the result. It does not
// validate, since credentials may still come from Vault.
func (l *Loader) Load() (*Config, error) {
	if l.v.ConfigFileUsed() != "" {
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Watch calls onChange with the reloaded configuration whenever the config
// file changes. Reloads that fail to decode or validate are logged and
// skipped.
func (l *Loader) Watch(onChange func(*Config)) {
	if l.v.ConfigFileUsed() == "" {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		entry := l.log.WithFields(logrus.Fields{"file": e.Name, "op": e.Op.String()})
		var cfg Config
		if err := l.v.Unmarshal(&cfg); err != nil {
			entry.WithError(err).Warn("Ignoring config change")
			return
		}
		if err := validate.Struct(cfg.Poller); err != nil {
			entry.WithError(err).Warn("Ignoring invalid poller settings")
			return
		}
		entry.Info("Config reloaded")
		onChange(&cfg)
	})
	l.v.WatchConfig()
}

var validate = validator.New()

// Validate checks the configuration once credentials are resolved.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.State.Backend == "redis" && c.State.RedisURL == "" {
		return fmt.Errorf("invalid config: state.redis_url is required for the redis backend")
	}
	return nil
}

// ParseLogLevel returns the logrus level for name, defaulting to info.
func ParseLogLevel(name string) logrus.Level {
	lvl, err := logrus.ParseLevel(name)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
