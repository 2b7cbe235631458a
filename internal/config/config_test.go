package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/oprema/internal/analytics"
	"github.com/erazemk/oprema/internal/store"
)

func write(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, int64(5<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, int64(4), cfg.Identity.CurrentUserID)
	assert.Equal(t, store.DriverJSON, cfg.Storage.Driver)
	assert.Equal(t, analytics.Preset2W, cfg.DefaultPreset())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Server, cfg.Server)
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "oprema.yaml")
	write(t, path, `
server:
  addr: ":8080"
storage:
  driver: sqlite
  sqlite_path: /var/lib/oprema/db.sqlite3
analytics:
  timezone: UTC
  default_preset: month
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "uploads", cfg.Server.UploadsDir, "unset keys keep defaults")
	assert.Equal(t, store.DriverSQLite, cfg.StoreOptions().Driver)
	assert.Equal(t, analytics.PresetMonth, cfg.DefaultPreset())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oprema.yaml")
	write(t, path, "server: [unterminated")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("environment beats yaml", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "oprema.yaml")
		write(t, path, "server:\n  addr: \":8080\"\n")
		t.Setenv("OPREMA_ADDR", ":9090")
		t.Setenv("OPREMA_CURRENT_USER_ID", "2")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, ":9090", cfg.Server.Addr)
		assert.Equal(t, int64(2), cfg.Identity.CurrentUserID)
	})

	t.Run("dot env next to the config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "oprema.yaml")
		write(t, filepath.Join(dir, ".env"), "OPREMA_TOKEN_SECRET=from-dotenv\n")
		t.Setenv("OPREMA_TOKEN_SECRET", "")
		os.Unsetenv("OPREMA_TOKEN_SECRET")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "from-dotenv", cfg.Identity.TokenSecret)
	})

	t.Run("bad number", func(t *testing.T) {
		t.Setenv("OPREMA_MAX_UPLOAD_BYTES", "lots")
		_, err := Load("")
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mongo" }},
		{"empty data dir", func(c *Config) { c.Storage.DataDir = "" }},
		{"sqlite without path", func(c *Config) { c.Storage.Driver = store.DriverSQLite; c.Storage.SQLitePath = "" }},
		{"zero user", func(c *Config) { c.Identity.CurrentUserID = 0 }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad timezone", func(c *Config) { c.Analytics.Timezone = "Mars/Olympus_Mons" }},
		{"bad preset", func(c *Config) { c.Analytics.DefaultPreset = "year" }},
		{"custom preset", func(c *Config) { c.Analytics.DefaultPreset = "custom" }},
		{"zero upload limit", func(c *Config) { c.Server.MaxUploadBytes = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
