// Package config resolves lanatus settings from flags, LANATUS_* environment
// variables and .env files, in that order of precedence.
package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roach88/lanatus/internal/store"
)

// Setting keys. Each is also a flag name and, upper-cased with a LANATUS_
// prefix, an environment variable.
const (
	KeyDriver   = "driver"
	KeyDB       = "db"
	KeyLogLevel = "log-level"
	KeyFormat   = "format"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config is the resolved configuration of one lanatus invocation.
type Config struct {
	Driver   string
	DB       string
	LogLevel slog.Level
	Format   string
}

// New returns a viper instance reading LANATUS_* environment variables,
// with defaults for every key.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("lanatus")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv() // read in environment variables that match

	v.SetDefault(KeyDriver, store.DriverSQLite)
	v.SetDefault(KeyDB, "lanatus.db")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyFormat, FormatText)
	return v
}

// LoadEnvFiles loads .env.local and .env from dir into the process
// environment. Variables that are already set are never overwritten, so
// .env.local wins over .env. Missing files are ignored.
func LoadEnvFiles(dir string) {
	_ = godotenv.Load(filepath.Join(dir, ".env.local"))
	_ = godotenv.Load(filepath.Join(dir, ".env"))
}

// BindFlags makes flags take precedence over the environment.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	if err := v.BindPFlags(flags); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}
	return nil
}

// Load reads and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Driver: v.GetString(KeyDriver),
		DB:     v.GetString(KeyDB),
		Format: v.GetString(KeyFormat),
	}

	switch cfg.Driver {
	case store.DriverSQLite, store.DriverPostgres:
	default:
		return Config{}, fmt.Errorf("invalid %s %q: must be %q or %q", KeyDriver, cfg.Driver, store.DriverSQLite, store.DriverPostgres)
	}
	if cfg.DB == "" {
		return Config{}, fmt.Errorf("%s is required", KeyDB)
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString(KeyLogLevel))); err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", KeyLogLevel, err)
	}
	switch cfg.Format {
	case FormatText, FormatJSON:
	default:
		return Config{}, fmt.Errorf("invalid %s %q: must be %q or %q", KeyFormat, cfg.Format, FormatText, FormatJSON)
	}
	return cfg, nil
}
