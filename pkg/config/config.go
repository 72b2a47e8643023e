// Package config loads service configuration from defaults, an optional
// config.toml and STOCKFORECAST_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override (app.port -> STOCKFORECAST_APP_PORT).
const EnvPrefix = "STOCKFORECAST"

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds all configuration for the service.
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Log      LogConfig
	Access   AccessConfig
	Worker   WorkerConfig
	HTTP     HTTPConfig
	Storage  StorageConfig
}

type AppConfig struct {
	Name string `validate:"required"`
	Env  string `validate:"oneof=development staging production test"`
	Port string `validate:"required,numeric"`
}

type DatabaseConfig struct {
	DSN      string
	MaxConns int32 `validate:"gte=1"`
	MinConns int32 `validate:"gte=0,ltefield=MaxConns"`
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int `validate:"gte=0,lte=15"`
}

type JWTConfig struct {
	Secret    string        `validate:"required,min=16"`
	Issuer    string        `validate:"required"`
	AccessTTL time.Duration `validate:"gt=0"`
}

type LogConfig struct {
	Level       string `validate:"oneof=debug info warn error"`
	Development bool
}

// AccessConfig holds the CEL read policy for forecast rows.
type AccessConfig struct {
	ReadPolicy string `validate:"required"`
}

type WorkerConfig struct {
	PollInterval         time.Duration `validate:"gt=0"`
	BatchSize            int           `validate:"gte=1,lte=10000"`
	RecomputeInterval    time.Duration `validate:"gte=0"`
	RecomputeHorizonDays int           `validate:"gte=1,lte=366"`
}

type HTTPConfig struct {
	ReadTimeout    time.Duration `validate:"gt=0"`
	WriteTimeout   time.Duration `validate:"gt=0"`
	IdempotencyTTL time.Duration `validate:"gte=0"`
}

type StorageConfig struct {
	Driver string `validate:"oneof=postgres memory"`
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "stockforecast")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "stockforecast")
	v.SetDefault("jwt.access_ttl", 15*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("access.read_policy", `admin || roles.exists(r, r in ["stock.manager", "stock.user"])`)

	v.SetDefault("worker.poll_interval", 2*time.Second)
	v.SetDefault("worker.batch_size", 100)
	v.SetDefault("worker.recompute_interval", time.Hour)
	v.SetDefault("worker.recompute_horizon_days", 30)

	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.idempotency_ttl", 24*time.Hour)

	v.SetDefault("storage.driver", StoragePostgres)
}

// Load reads configuration. When file is empty, config.toml is looked up in
// the working directory and /etc/stockforecast; a missing file is not an error.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/stockforecast")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			DSN:      v.GetString("database.dsn"),
			MaxConns: v.GetInt32("database.max_conns"),
			MinConns: v.GetInt32("database.min_conns"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:    v.GetString("jwt.secret"),
			Issuer:    v.GetString("jwt.issuer"),
			AccessTTL: v.GetDuration("jwt.access_ttl"),
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
		},
		Access: AccessConfig{
			ReadPolicy: v.GetString("access.read_policy"),
		},
		Worker: WorkerConfig{
			PollInterval:         v.GetDuration("worker.poll_interval"),
			BatchSize:            v.GetInt("worker.batch_size"),
			RecomputeInterval:    v.GetDuration("worker.recompute_interval"),
			RecomputeHorizonDays: v.GetInt("worker.recompute_horizon_days"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdempotencyTTL: v.GetDuration("http.idempotency_ttl"),
		},
		Storage: StorageConfig{
			Driver: v.GetString("storage.driver"),
		},
	}

	return cfg, nil
}

// Validate checks struct constraints and cross-field requirements.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Storage.Driver == StoragePostgres && c.Database.DSN == "" {
		return errors.New("invalid config: database.dsn is required for postgres storage")
	}
	return nil
}
