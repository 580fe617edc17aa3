package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Credit ledger backends.
const (
	CreditStorePostgres = "postgres"
	CreditStoreMongo    = "mongo"
)

type Config struct {
	AppName     string `env:"APP_NAME" envDefault:"Agency CRM API v1.0"`
	Port        string `env:"PORT" envDefault:"3000"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	CreditStore string `env:"CREDIT_STORE" envDefault:"postgres"`

	Database struct {
		URL             string `env:"URL"`
		Host            string `env:"HOST" envDefault:"localhost"`
		Port            string `env:"PORT" envDefault:"5432"`
		User            string `env:"USER" envDefault:"postgres"`
		Password        string `env:"PASSWORD"`
		Name            string `env:"NAME" envDefault:"agency_crm"`
		TimeZone        string `env:"TIMEZONE" envDefault:"Europe/Paris"`
		MaxIdleConns    int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
		MaxOpenConns    int    `env:"MAX_OPEN_CONNS" envDefault:"100"`
		ConnMaxLifetime int    `env:"CONN_MAX_LIFETIME" envDefault:"3600"`
	} `envPrefix:"DATABASE_"`

	Mongo struct {
		URI            string `env:"URI" envDefault:"mongodb://localhost:27017"`
		Database       string `env:"DB" envDefault:"agency_crm"`
		ConnectTimeout int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
	} `envPrefix:"MONGO_"`

	JWT struct {
		Secret   string `env:"SECRET,required,notEmpty"`
		Issuer   string `env:"ISSUER" envDefault:"agency-crm-api"`
		TTLHours int    `env:"TTL_HOURS" envDefault:"24"`
	} `envPrefix:"JWT_"`

	Seed struct {
		AdminEmail    string `env:"ADMIN_EMAIL" envDefault:"admin@example.com"`
		AdminPassword string `env:"ADMIN_PASSWORD"`
	} `envPrefix:"SEED_"`
}

// Load reads an optional .env file, then parses the environment into a Config.
func Load() (*Config, error) {
	// A missing .env is fine; the process environment still applies.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		aggErr := env.AggregateError{}
		if errors.As(err, &aggErr) && len(aggErr.Errors) > 0 {
			return nil, aggErr.Errors[0]
		}
		return nil, err
	}

	switch cfg.CreditStore {
	case CreditStorePostgres, CreditStoreMongo:
	default:
		return nil, fmt.Errorf("unknown CREDIT_STORE %q", cfg.CreditStore)
	}
	return cfg, nil
}

// DSN returns DATABASE_URL when set, otherwise a key/value DSN built from the DATABASE_* parts.
func (c *Config) DSN() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=%s",
		c.Database.Host, c.Database.User, c.Database.Password, c.Database.Name, c.Database.Port, c.Database.TimeZone,
	)
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
