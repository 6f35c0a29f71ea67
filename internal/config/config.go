// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads sessionauth configuration from a YAML file, command
// line flags and a few well-known environment variables.
package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/sessionauth/internal/auth"
	"github.com/holomush/sessionauth/internal/xdg"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Environment variables consulted when the matching URL is unset.
const (
	EnvDatabaseURL = "DATABASE_URL"
	EnvRedisURL    = "REDIS_URL"
)

// Config is the full sessionauth configuration.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http" json:"http"`
	Metrics  MetricsConfig  `koanf:"metrics" json:"metrics"`
	Log      LogConfig      `koanf:"log" json:"log"`
	Store    StoreConfig    `koanf:"store" json:"store"`
	Database DatabaseConfig `koanf:"database" json:"database"`
	Redis    RedisConfig    `koanf:"redis" json:"redis"`
	Auth     AuthConfig     `koanf:"auth" json:"auth"`
	Cookie   CookieConfig   `koanf:"cookie" json:"cookie"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr string `koanf:"addr" json:"addr" jsonschema:"description=API listen address (host:port)"`
}

// MetricsConfig configures the observability listener. An empty address
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" json:"addr,omitempty" jsonschema:"description=Metrics and health probe listen address"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format" json:"format" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" json:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// StoreConfig selects the user store.
type StoreConfig struct {
	Driver  string        `koanf:"driver" json:"driver" jsonschema:"enum=memory,enum=postgres,enum=redis"`
	Timeout time.Duration `koanf:"timeout" json:"timeout" jsonschema:"description=Per-call store timeout (Go duration)"`
}

// DatabaseConfig configures the postgres driver.
type DatabaseConfig struct {
	URL         string `koanf:"url" json:"url,omitempty" jsonschema:"description=PostgreSQL connection URL"`
	AutoMigrate bool   `koanf:"auto_migrate" json:"auto_migrate,omitempty"`
}

// RedisConfig configures the redis driver.
type RedisConfig struct {
	URL    string `koanf:"url" json:"url,omitempty" jsonschema:"description=Redis connection URL"`
	Prefix string `koanf:"prefix" json:"prefix,omitempty"`
}

// AuthConfig configures credential handling.
type AuthConfig struct {
	Verifier      string   `koanf:"verifier" json:"verifier" jsonschema:"enum=session,enum=basic"`
	Hasher        string   `koanf:"hasher" json:"hasher" jsonschema:"enum=bcrypt,enum=argon2id"`
	BcryptCost    int      `koanf:"bcrypt_cost" json:"bcrypt_cost" jsonschema:"minimum=4,maximum=31"`
	ExcludedPaths []string `koanf:"excluded_paths" json:"excluded_paths,omitempty" jsonschema:"description=Path patterns that skip authentication"`
}

// CookieConfig configures the session cookie.
type CookieConfig struct {
	Name   string `koanf:"name" json:"name"`
	Secure bool   `koanf:"secure" json:"secure"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		HTTP:    HTTPConfig{Addr: "127.0.0.1:5000"},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9100"},
		Log:     LogConfig{Format: "json", Level: "info"},
		Store:   StoreConfig{Driver: DriverMemory, Timeout: auth.DefaultStoreTimeout},
		Redis:   RedisConfig{Prefix: "sessionauth"},
		Auth: AuthConfig{
			Verifier:   auth.VerifierSession,
			Hasher:     auth.SchemeBcrypt,
			BcryptCost: 12,
		},
		Cookie: CookieConfig{Name: "session_id"},
	}
}

// DefaultExcludedPaths lists the routes served without a verified user.
func DefaultExcludedPaths() []string {
	return []string{"/", "/users", "/sessions", "/reset_password"}
}

// flagKeys maps command line flag names to config keys.
var flagKeys = map[string]string{
	"http-addr":     "http.addr",
	"metrics-addr":  "metrics.addr",
	"log-format":    "log.format",
	"log-level":     "log.level",
	"store":         "store.driver",
	"store-timeout": "store.timeout",
	"database-url":  "database.url",
	"auto-migrate":  "database.auto_migrate",
	"redis-url":     "redis.url",
	"verifier":      "auth.verifier",
	"hasher":        "auth.hasher",
	"bcrypt-cost":   "auth.bcrypt_cost",
}

// RegisterFlags adds the config override flags to flags.
func RegisterFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.String("http-addr", d.HTTP.Addr, "API listen address")
	flags.String("metrics-addr", d.Metrics.Addr, "metrics listen address (empty disables)")
	flags.String("log-format", d.Log.Format, "log format (json, text)")
	flags.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	flags.String("store", d.Store.Driver, "user store driver (memory, postgres, redis)")
	flags.Duration("store-timeout", d.Store.Timeout, "per-call store timeout")
	flags.String("database-url", "", "PostgreSQL URL (default $"+EnvDatabaseURL+")")
	flags.Bool("auto-migrate", false, "apply pending migrations on startup")
	flags.String("redis-url", "", "Redis URL (default $"+EnvRedisURL+")")
	flags.String("verifier", d.Auth.Verifier, "credential verifier (session, basic)")
	flags.String("hasher", d.Auth.Hasher, "password hash scheme (bcrypt, argon2id)")
	flags.Int("bcrypt-cost", d.Auth.BcryptCost, "bcrypt work factor")
}

// Load reads configuration. path may be empty, in which case the XDG
// default file is used if it exists. Flags that were set explicitly override
// file values; flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		path = defaultPath()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").Wrap(err)
	}
	if cfg.Auth.ExcludedPaths == nil {
		cfg.Auth.ExcludedPaths = DefaultExcludedPaths()
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// defaultPath returns the XDG config file if it exists.
func defaultPath() string {
	path, err := xdg.ConfigFile()
	if err != nil {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func (c *Config) applyEnv() {
	if c.Database.URL == "" {
		c.Database.URL = os.Getenv(EnvDatabaseURL)
	}
	if c.Redis.URL == "" {
		c.Redis.URL = os.Getenv(EnvRedisURL)
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	var problems []string
	if c.HTTP.Addr == "" {
		problems = append(problems, "http.addr is required")
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		problems = append(problems, "log.format must be json or text")
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Database.URL == "" {
			problems = append(problems, "database.url is required for the postgres driver")
		}
	case DriverRedis:
		if c.Redis.URL == "" {
			problems = append(problems, "redis.url is required for the redis driver")
		}
	default:
		problems = append(problems, "store.driver must be memory, postgres or redis")
	}
	if c.Store.Timeout <= 0 {
		problems = append(problems, "store.timeout must be positive")
	}
	switch c.Auth.Verifier {
	case auth.VerifierSession, auth.VerifierBasic:
	default:
		problems = append(problems, "auth.verifier must be session or basic")
	}
	switch c.Auth.Hasher {
	case auth.SchemeBcrypt, auth.SchemeArgon2id:
	default:
		problems = append(problems, "auth.hasher must be bcrypt or argon2id")
	}
	if c.Cookie.Name == "" {
		problems = append(problems, "cookie.name is required")
	}

	if len(problems) > 0 {
		return oops.Code("CONFIG_INVALID").
			With("problems", problems).
			Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Marshal renders c as config file YAML that Load reads back unchanged.
func (c *Config) Marshal() ([]byte, error) {
	values := map[string]any{
		"http.addr":             c.HTTP.Addr,
		"metrics.addr":          c.Metrics.Addr,
		"log.format":            c.Log.Format,
		"log.level":             c.Log.Level,
		"store.driver":          c.Store.Driver,
		"store.timeout":         c.Store.Timeout.String(),
		"database.auto_migrate": c.Database.AutoMigrate,
		"redis.prefix":          c.Redis.Prefix,
		"auth.verifier":         c.Auth.Verifier,
		"auth.hasher":           c.Auth.Hasher,
		"auth.bcrypt_cost":      c.Auth.BcryptCost,
		"auth.excluded_paths":   c.Auth.ExcludedPaths,
		"cookie.name":           c.Cookie.Name,
		"cookie.secure":         c.Cookie.Secure,
	}
	if c.Database.URL != "" {
		values["database.url"] = c.Database.URL
	}
	if c.Redis.URL != "" {
		values["redis.url"] = c.Redis.URL
	}

	k := koanf.New(".")
	for key, value := range values {
		if err := k.Set(key, value); err != nil {
			return nil, oops.Code("CONFIG_MARSHAL_FAILED").With("key", key).Wrap(err)
		}
	}
	data, err := k.Marshal(yaml.Parser())
	if err != nil {
		return nil, oops.Code("CONFIG_MARSHAL_FAILED").Wrap(err)
	}
	return data, nil
}

// WriteFile writes c to path, creating parent directories. An existing file
// is only replaced when overwrite is set.
func (c *Config) WriteFile(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return oops.Code("CONFIG_EXISTS").With("path", path).Errorf("config file already exists")
		} else if !errors.Is(err, fs.ErrNotExist) {
			return oops.Code("CONFIG_WRITE_FAILED").With("path", path).Wrap(err)
		}
	}

	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := xdg.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return oops.Code("CONFIG_WRITE_FAILED").With("path", path).Wrap(err)
	}
	return nil
}

// Schema returns the JSON Schema describing the config file.
func Schema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(&Config{})
	schema.Title = "sessionauth configuration"
	schema.Description = "Schema for the sessionauth config.yaml file"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code("CONFIG_SCHEMA_FAILED").Wrap(err)
	}
	return data, nil
}
