// Package config loads server settings from a YAML file, an optional .env
// file and OPREMA_* environment variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/erazemk/oprema/internal/analytics"
	"github.com/erazemk/oprema/internal/store"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "OPREMA_"

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "oprema.yaml"

// Config is the full server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Identity  IdentityConfig  `yaml:"identity"`
	Log       LogConfig       `yaml:"log"`
	Analytics AnalyticsConfig `yaml:"analytics"`
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Addr           string `yaml:"addr"`
	PublicDir      string `yaml:"public_dir"`
	UploadsDir     string `yaml:"uploads_dir"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// StorageConfig selects the backend.
type StorageConfig struct {
	Driver     string `yaml:"driver"`
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// IdentityConfig selects the acting user. TokenSecret enables bearer tokens.
type IdentityConfig struct {
	CurrentUserID int64  `yaml:"current_user_id"`
	TokenSecret   string `yaml:"token_secret"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// AnalyticsConfig controls the analytics window defaults.
type AnalyticsConfig struct {
	Timezone      string `yaml:"timezone"`
	DefaultPreset string `yaml:"default_preset"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":3000",
			UploadsDir:     "uploads",
			MaxUploadBytes: 5 << 20,
		},
		Storage: StorageConfig{
			Driver:     store.DriverJSON,
			DataDir:    "data",
			SQLitePath: "oprema.sqlite3",
		},
		Identity: IdentityConfig{
			CurrentUserID: 4,
		},
		Log: LogConfig{
			Level: "info",
		},
		Analytics: AnalyticsConfig{
			Timezone:      "Local",
			DefaultPreset: string(analytics.DefaultPreset),
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies .env and
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	envFile := ".env"
	if path != "" {
		envFile = filepath.Join(filepath.Dir(path), ".env")
	}
	if err := loadDotEnv(envFile); err != nil {
		return nil, err
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv sets variables from path that are not already set.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int64) error {
		v, ok := os.LookupEnv(EnvPrefix + key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
		return nil
	}

	str("ADDR", &c.Server.Addr)
	str("PUBLIC_DIR", &c.Server.PublicDir)
	str("UPLOADS_DIR", &c.Server.UploadsDir)
	if err := num("MAX_UPLOAD_BYTES", &c.Server.MaxUploadBytes); err != nil {
		return err
	}
	str("STORAGE_DRIVER", &c.Storage.Driver)
	str("DATA_DIR", &c.Storage.DataDir)
	str("SQLITE_PATH", &c.Storage.SQLitePath)
	if err := num("CURRENT_USER_ID", &c.Identity.CurrentUserID); err != nil {
		return err
	}
	str("TOKEN_SECRET", &c.Identity.TokenSecret)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FILE", &c.Log.File)
	str("TIMEZONE", &c.Analytics.Timezone)
	str("DEFAULT_PRESET", &c.Analytics.DefaultPreset)
	return nil
}

// ValidLogLevels lists the accepted log levels.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// Validate checks the configuration for unusable values.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is empty")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.max_upload_bytes must be positive")
	}
	switch c.Storage.Driver {
	case store.DriverJSON:
		if c.Storage.DataDir == "" {
			return fmt.Errorf("storage.data_dir is empty")
		}
	case store.DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is empty")
		}
	default:
		return fmt.Errorf("invalid storage driver: %s (valid: %s, %s)", c.Storage.Driver, store.DriverJSON, store.DriverSQLite)
	}
	if c.Identity.CurrentUserID <= 0 {
		return fmt.Errorf("identity.current_user_id must be positive")
	}

	validLevel := false
	for _, l := range ValidLogLevels {
		if strings.EqualFold(c.Log.Level, l) {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("invalid log level: %s (valid: %v)", c.Log.Level, ValidLogLevels)
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	p, err := analytics.ParsePreset(c.Analytics.DefaultPreset)
	if err != nil || p == analytics.PresetCustom {
		return fmt.Errorf("invalid analytics.default_preset: %s", c.Analytics.DefaultPreset)
	}
	return nil
}

// Location resolves analytics.timezone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Analytics.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Analytics.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid analytics.timezone: %w", err)
	}
	return loc, nil
}

// DefaultPreset returns the configured default preset.
func (c *Config) DefaultPreset() analytics.Preset {
	p, err := analytics.ParsePreset(c.Analytics.DefaultPreset)
	if err != nil || p == analytics.PresetCustom {
		return analytics.DefaultPreset
	}
	return p
}

// StoreOptions maps the storage section onto store.Options.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Driver:     c.Storage.Driver,
		DataDir:    c.Storage.DataDir,
		SQLitePath: c.Storage.SQLitePath,
	}
}
