// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/sessionauth/pkg/errutil"
)

// isolate points the XDG config dir at an empty temp dir and clears the
// URL environment variables.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv(EnvDatabaseURL, "")
	t.Setenv(EnvRedisURL, "")
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("", nil)
	require.NoError(t, err)

	want := Default()
	want.Auth.ExcludedPaths = DefaultExcludedPaths()
	assert.Equal(t, &want, cfg)
}

func TestLoad_File(t *testing.T) {
	isolate(t)
	path := writeConfig(t, `
http:
  addr: 0.0.0.0:8080
store:
  driver: postgres
  timeout: 2s
database:
  url: postgres://sessionauth@localhost/sessionauth
auth:
  verifier: basic
  hasher: argon2id
  excluded_paths:
    - /status
cookie:
  name: sid
  secure: true
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr)
	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, 2*time.Second, cfg.Store.Timeout)
	assert.Equal(t, "postgres://sessionauth@localhost/sessionauth", cfg.Database.URL)
	assert.Equal(t, "basic", cfg.Auth.Verifier)
	assert.Equal(t, "argon2id", cfg.Auth.Hasher)
	assert.Equal(t, []string{"/status"}, cfg.Auth.ExcludedPaths)
	assert.Equal(t, CookieConfig{Name: "sid", Secure: true}, cfg.Cookie)
	// Unset keys keep their defaults.
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
}

func TestLoad_XDGDefaultFile(t *testing.T) {
	isolate(t)
	dir := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "sessionauth")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log:\n  format: text\n"), 0o600))

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	isolate(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_LOAD_FAILED")
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "http:\n  addr: 0.0.0.0:8080\nlog:\n  format: text\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse([]string{
		"--http-addr", "127.0.0.1:9999",
		"--store", "redis",
		"--redis-url", "redis://localhost:6379/0",
		"--store-timeout", "750ms",
	}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9999", cfg.HTTP.Addr)
	assert.Equal(t, DriverRedis, cfg.Store.Driver)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, 750*time.Millisecond, cfg.Store.Timeout)
	// Unchanged flags do not clobber file values.
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_EnvironmentURLs(t *testing.T) {
	isolate(t)
	t.Setenv(EnvDatabaseURL, "postgres://env/db")
	t.Setenv(EnvRedisURL, "redis://env:6379")
	path := writeConfig(t, "store:\n  driver: postgres\n")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/db", cfg.Database.URL)
	assert.Equal(t, "redis://env:6379", cfg.Redis.URL)
}

func TestLoad_FileURLBeatsEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv(EnvDatabaseURL, "postgres://env/db")
	path := writeConfig(t, "database:\n  url: postgres://file/db\n")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "postgres://file/db", cfg.Database.URL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty http addr", func(c *Config) { c.HTTP.Addr = "" }},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }},
		{"unknown driver", func(c *Config) { c.Store.Driver = "sqlite" }},
		{"postgres without url", func(c *Config) { c.Store.Driver = DriverPostgres }},
		{"redis without url", func(c *Config) { c.Store.Driver = DriverRedis }},
		{"zero timeout", func(c *Config) { c.Store.Timeout = 0 }},
		{"unknown verifier", func(c *Config) { c.Auth.Verifier = "jwt" }},
		{"unknown hasher", func(c *Config) { c.Auth.Hasher = "md5" }},
		{"empty cookie name", func(c *Config) { c.Cookie.Name = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
		})
	}

	t.Run("defaults are valid", func(t *testing.T) {
		cfg := Default()
		assert.NoError(t, cfg.Validate())
	})
}

func TestLoad_InvalidFileFailsValidation(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "store:\n  driver: cassandra\n")

	_, err := Load(path, nil)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}

func TestSchema(t *testing.T) {
	data, err := Schema()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "sessionauth configuration", doc["title"])

	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok, "schema has no properties")
	for _, key := range []string{"http", "store", "database", "redis", "auth", "cookie"} {
		assert.Contains(t, props, key)
	}
	assert.Contains(t, string(data), `"postgres"`)
}

func TestWriteFile_RoundTrips(t *testing.T) {
	isolate(t)

	cfg := Default()
	cfg.Auth.ExcludedPaths = []string{"/", "/status/*"}
	cfg.Auth.Verifier = "basic"
	cfg.Store.Timeout = 750 * time.Millisecond
	cfg.Redis.URL = "redis://localhost:6379/1"

	path := filepath.Join(t.TempDir(), "nested", "dir", "config.yaml")
	require.NoError(t, cfg.WriteFile(path, false))

	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())

	loaded, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, &cfg, loaded)
}

func TestWriteFile_Existing(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "log:\n  level: debug\n")
	cfg := Default()

	err := cfg.WriteFile(path, false)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_EXISTS")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "log:\n  level: debug\n", string(data), "existing file is untouched")

	require.NoError(t, cfg.WriteFile(path, true))
	loaded, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "info", loaded.Log.Level)
}
