// Package config loads the server configuration from an optional .env file,
// an optional YAML file and HOURS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Environments select the log handler in cmd/server.
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds the configuration settings for the server.
type Config struct {
	Env      string         `yaml:"env"`      // Env is the current environment: local, dev, prod.
	HTTP     HTTPConfig     `yaml:"http"`     // HTTP holds the listener settings.
	Storage  StorageConfig  `yaml:"storage"`  // Storage selects the repository backend.
	Database PostgresConfig `yaml:"postgres"` // Database holds the postgres configuration.
	Engine   EngineConfig   `yaml:"engine"`   // Engine holds computation settings.
}

type HTTPConfig struct {
	Port string `yaml:"port"`
}

type StorageConfig struct {
	Driver     string `yaml:"driver"`      // memory, sqlite or postgres
	SQLitePath string `yaml:"sqlite_path"` // Path of the SQLite file.
}

// PostgresConfig struct holds the configuration details for connecting to a PostgreSQL database.
type PostgresConfig struct {
	Host     string `yaml:"host"`     // Host is the database server address.
	Port     string `yaml:"port"`     // Port is the database server port.
	User     string `yaml:"user"`     // User is the database user.
	Password string `yaml:"password"` // Password is the database user's password.
	Name     string `yaml:"db_name"`  // Name is the name of the database.
}

type EngineConfig struct {
	Precision       int32         `yaml:"precision"`
	OverlapPolicy   string        `yaml:"overlap_policy"`
	WorkdayStart    string        `yaml:"workday_start"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// Load reads configuration. path may be empty, in which case only the
// environment and defaults are used.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("HOURS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("env", EnvLocal)
	v.SetDefault("http.port", "8080")
	v.SetDefault("storage.driver", DriverMemory)
	v.SetDefault("storage.sqlite_path", "./data/hours.db")
	v.SetDefault("postgres.port", "5432")
	v.SetDefault("engine.precision", 2)
	v.SetDefault("engine.overlap_policy", "fail")
	v.SetDefault("engine.workday_start", "08:00")
	v.SetDefault("engine.refresh_interval", time.Hour)

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file does not exist: %s", path)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	}

	cfg := &Config{
		Env:  v.GetString("env"),
		HTTP: HTTPConfig{Port: v.GetString("http.port")},
		Storage: StorageConfig{
			Driver:     v.GetString("storage.driver"),
			SQLitePath: v.GetString("storage.sqlite_path"),
		},
		Database: PostgresConfig{
			Host:     v.GetString("postgres.host"),
			Port:     v.GetString("postgres.port"),
			User:     v.GetString("postgres.user"),
			Password: v.GetString("postgres.password"),
			Name:     v.GetString("postgres.db_name"),
		},
		Engine: EngineConfig{
			Precision:       v.GetInt32("engine.precision"),
			OverlapPolicy:   v.GetString("engine.overlap_policy"),
			WorkdayStart:    v.GetString("engine.workday_start"),
			RefreshInterval: v.GetDuration("engine.refresh_interval"),
		},
	}
	return cfg, nil
}

// Validate reports every missing or invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		errs = append(errs, fmt.Errorf("env must be one of local, dev, prod, got %q", c.Env))
	}
	if c.HTTP.Port == "" {
		errs = append(errs, errors.New("http.port is required"))
	}
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage.sqlite_path is required for sqlite"))
		}
	case DriverPostgres:
		if c.Database.Host == "" || c.Database.User == "" || c.Database.Name == "" {
			errs = append(errs, errors.New("postgres.host, postgres.user and postgres.db_name are required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}
	if c.Engine.Precision < 0 || c.Engine.Precision > 10 {
		errs = append(errs, fmt.Errorf("engine.precision must be between 0 and 10, got %d", c.Engine.Precision))
	}
	if c.Engine.OverlapPolicy != "fail" && c.Engine.OverlapPolicy != "latest" {
		errs = append(errs, fmt.Errorf("engine.overlap_policy must be fail or latest, got %q", c.Engine.OverlapPolicy))
	}
	if _, err := time.Parse("15:04", c.Engine.WorkdayStart); err != nil {
		errs = append(errs, fmt.Errorf("engine.workday_start must be HH:MM, got %q", c.Engine.WorkdayStart))
	}
	if c.Engine.RefreshInterval < 0 {
		errs = append(errs, errors.New("engine.refresh_interval must not be negative"))
	}
	return errors.Join(errs...)
}
