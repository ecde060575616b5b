// Package config loads contactgraph settings.
//
// Sources in order of precedence:
//  1. Command-line flags (bound by the cli package)
//  2. CONTACTGRAPH_* environment variables
//  3. .env.local, then .env in the working directory
//  4. Config file (--config, ./contactgraph.yaml or ~/.contactgraph.yaml)
//  5. Defaults
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. CONTACTGRAPH_STORE_PATH.
const EnvPrefix = "CONTACTGRAPH"

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds the application configuration.
type Config struct {
	Store  StoreConfig
	Server ServerConfig
	Log    LogConfig
	Otel   OtelConfig

	// ConfigFile is the file that was read, or "" when none was found.
	ConfigFile string
}

// StoreConfig selects and locates the contact store.
type StoreConfig struct {
	Driver string
	Path   string
	DSN    string
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string
	Format string
	Output string
}

// OtelConfig configures trace export.
type OtelConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

// SetDefaults registers the default for every key. Keys without a default
// are invisible to AutomaticEnv lookups through Get.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.path", "contactgraph.db")
	v.SetDefault("store.dsn", "")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "auto")
	v.SetDefault("log.output", "stderr")
	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.endpoint", "")
	v.SetDefault("otel.service_name", "contactgraph")
}

// Load reads configuration into v and returns the validated result.
// A missing default config file is not an error; a missing explicit
// configFile is.
func Load(v *viper.Viper, configFile string) (Config, error) {
	loadEnvFiles(".")

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile == "" {
		configFile = findConfigFile()
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	cfg := FromViper(v)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromViper builds a Config from v without validating it.
func FromViper(v *viper.Viper) Config {
	return Config{
		Store: StoreConfig{
			Driver: strings.ToLower(v.GetString("store.driver")),
			Path:   v.GetString("store.path"),
			DSN:    v.GetString("store.dsn"),
		},
		Server: ServerConfig{
			Addr:         v.GetString("server.addr"),
			ReadTimeout:  v.GetDuration("server.read_timeout"),
			WriteTimeout: v.GetDuration("server.write_timeout"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Otel: OtelConfig{
			Enabled:     v.GetBool("otel.enabled"),
			Endpoint:    v.GetString("otel.endpoint"),
			ServiceName: v.GetString("otel.service_name"),
		},
		ConfigFile: v.ConfigFileUsed(),
	}
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for the sqlite driver"))
		}
	case DriverPostgres:
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q (want %s or %s)", c.Store.Driver, DriverSQLite, DriverPostgres))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, errors.New("server.read_timeout must be positive"))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, errors.New("server.write_timeout must be positive"))
	}
	if c.Otel.Enabled && c.Otel.Endpoint == "" {
		errs = append(errs, errors.New("otel.endpoint is required when otel.enabled is set"))
	}
	return errors.Join(errs...)
}

// loadEnvFiles loads .env.local and .env from dir. Variables already in the
// environment win, and .env.local wins over .env.
func loadEnvFiles(dir string) {
	for _, name := range []string{".env.local", ".env"} {
		_ = godotenv.Load(filepath.Join(dir, name))
	}
}

func findConfigFile() string {
	candidates := []string{"contactgraph.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".contactgraph.yaml"))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
