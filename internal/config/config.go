// Package config provides configuration loading for the application.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/davidjwriter/money-tracker/internal/common"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides of config keys (MONEY_STORE_TABLE, ...).
const EnvPrefix = "MONEY"

// DefaultTableName is the credential table used when none is configured.
const DefaultTableName = "PlaidAccessKeys"

// Config is the fully resolved application configuration.
type Config struct {
	Plaid   PlaidConfig
	Store   StoreConfig
	Server  ServerConfig
	Report  ReportConfig
	Logging LoggingConfig
}

// PlaidConfig holds aggregator settings.
type PlaidConfig struct {
	ClientID    string
	Secret      string
	Environment string
	BaseURL     string
	Timeout     time.Duration
}

// StoreConfig holds credential store settings.
type StoreConfig struct {
	Driver        string
	Path          string
	DSN           string
	Table         string
	WriteAttempts int
}

// ServerConfig holds inbound HTTP settings.
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// ReportConfig holds weekly report schedule settings.
type ReportConfig struct {
	Schedule string
	Enabled  bool
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string
	Format string
}

// SetDefaults registers default values and environment bindings on v.
// The bare variable names used by the original deployment are honored too.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("plaid.environment", "sandbox")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", defaultDBPath())
	v.SetDefault("store.table", DefaultTableName)
	v.SetDefault("store.write_attempts", 1)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("report.schedule", "0 9 * * MON")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("plaid.client_id", EnvPrefix+"_PLAID_CLIENT_ID", "PLAID_CLIENT_ID")
	_ = v.BindEnv("plaid.secret", EnvPrefix+"_PLAID_SECRET", "PLAID_API_KEY", "PLAID_SECRET")
	_ = v.BindEnv("plaid.environment", EnvPrefix+"_PLAID_ENVIRONMENT", "PLAID_ENV")
	_ = v.BindEnv("store.table", EnvPrefix+"_STORE_TABLE", "TABLE_NAME")
	_ = v.BindEnv("store.dsn", EnvPrefix+"_STORE_DSN", "DATABASE_URL")
}

// Load resolves the configuration from v once at process start.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Plaid: PlaidConfig{
			ClientID:    strings.TrimSpace(v.GetString("plaid.client_id")),
			Secret:      strings.TrimSpace(v.GetString("plaid.secret")),
			Environment: v.GetString("plaid.environment"),
			BaseURL:     v.GetString("plaid.base_url"),
			Timeout:     v.GetDuration("plaid.timeout"),
		},
		Store: StoreConfig{
			Driver:        v.GetString("store.driver"),
			Path:          ExpandPath(v.GetString("store.path")),
			DSN:           v.GetString("store.dsn"),
			Table:         strings.TrimSpace(v.GetString("store.table")),
			WriteAttempts: v.GetInt("store.write_attempts"),
		},
		Server: ServerConfig{
			Addr:            v.GetString("server.addr"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Report: ReportConfig{
			Enabled:  v.GetBool("report.enabled"),
			Schedule: v.GetString("report.schedule"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks structural settings. Missing Plaid credentials and table name
// are not startup errors; they fail the individual call that needs them.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("%w: store.path is required for the sqlite driver", common.ErrConfiguration)
		}
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("%w: store.dsn is required for the postgres driver", common.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown store driver %q (must be sqlite or postgres)", common.ErrConfiguration, c.Store.Driver)
	}

	if c.Store.WriteAttempts < 1 {
		return fmt.Errorf("%w: store.write_attempts must be at least 1", common.ErrConfiguration)
	}
	if c.Plaid.Timeout < 0 {
		return fmt.Errorf("%w: plaid.timeout cannot be negative", common.ErrConfiguration)
	}
	if c.Plaid.BaseURL == "" {
		switch c.Plaid.Environment {
		case "sandbox", "development", "production":
		default:
			return fmt.Errorf("%w: invalid plaid environment %q", common.ErrConfiguration, c.Plaid.Environment)
		}
	}
	return nil
}

// Secrets returns the secret provider view of this configuration.
func (c *Config) Secrets() *Secrets {
	return NewSecrets(c.Plaid.ClientID, c.Plaid.Secret, c.Store.Table)
}

// ExpandPath expands ~ and environment variables in a file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "money-tracker.db"
	}
	return filepath.Join(home, ".local", "share", "money-tracker", "credentials.db")
}
