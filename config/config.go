/*
Package config loads service configuration.

PRIORITY (highest first):
  1. Environment variables with the BATCH_ prefix (BATCH_DATABASE_DRIVER, ...)
  2. A .env file in the working directory (loaded into the environment)
  3. The config file passed to Load (yaml, toml or json), if any
  4. Built-in defaults

KEYS:
  app.name, app.env
  http.port, http.read_timeout, http.write_timeout, http.idle_timeout,
  http.cors_allow_origins
  database.driver      memory | sqlite | postgres
  database.path        sqlite file, ":memory:" allowed
  database.dsn         postgres DSN
  redis.addr           empty disables the Redis settlement lock
  redis.password, redis.db
  lock.ttl, lock.retry_interval, lock.max_retries
  log.level, log.format, log.output
  audit.enabled, audit.interval
  phone.default_region region used to parse local mobile numbers
*/
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

const envPrefix = "BATCH"

type Config struct {
	App      AppConfig
	HTTP     HTTPConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Lock     LockConfig
	Log      LogConfig
	Audit    AuditConfig
	Phone    PhoneConfig
}

type AppConfig struct {
	Name string
	Env  string
}

type HTTPConfig struct {
	Port             int
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	CORSAllowOrigins []string
}

type DatabaseConfig struct {
	Driver string
	Path   string
	DSN    string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis server is configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type LockConfig struct {
	TTL           time.Duration
	RetryInterval time.Duration
	MaxRetries    int
}

type LogConfig struct {
	Level  string
	Format string
	Output string
}

type AuditConfig struct {
	Enabled  bool
	Interval time.Duration
}

type PhoneConfig struct {
	DefaultRegion string
}

// Load reads configuration. path may be empty.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env: %w", err)
	}

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Booleans cannot be told apart from "unset" after GetBool.
	v.SetDefault("audit.enabled", true)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		HTTP: HTTPConfig{
			Port:             v.GetInt("http.port"),
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
		},
		Database: DatabaseConfig{
			Driver: v.GetString("database.driver"),
			Path:   v.GetString("database.path"),
			DSN:    v.GetString("database.dsn"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Lock: LockConfig{
			TTL:           v.GetDuration("lock.ttl"),
			RetryInterval: v.GetDuration("lock.retry_interval"),
			MaxRetries:    v.GetInt("lock.max_retries"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Audit: AuditConfig{
			Enabled:  v.GetBool("audit.enabled"),
			Interval: v.GetDuration("audit.interval"),
		},
		Phone: PhoneConfig{
			DefaultRegion: v.GetString("phone.default_region"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills empty fields.
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "batchbalance"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if len(cfg.HTTP.CORSAllowOrigins) == 0 {
		cfg.HTTP.CORSAllowOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "batchbalance.db"
	}
	if cfg.Lock.TTL == 0 {
		cfg.Lock.TTL = 30 * time.Second
	}
	if cfg.Lock.RetryInterval == 0 {
		cfg.Lock.RetryInterval = 100 * time.Millisecond
	}
	if cfg.Lock.MaxRetries == 0 {
		cfg.Lock.MaxRetries = 50
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		if cfg.App.Env == "production" {
			cfg.Log.Format = "json"
		} else {
			cfg.Log.Format = "console"
		}
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Audit.Interval == 0 {
		cfg.Audit.Interval = time.Hour
	}
	if cfg.Phone.DefaultRegion == "" {
		cfg.Phone.DefaultRegion = "NG"
	}
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "memory", "sqlite":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver must be memory, sqlite or postgres, got %q", c.Database.Driver)
	}

	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Lock.TTL < 0 || c.Lock.RetryInterval < 0 || c.Lock.MaxRetries < 0 {
		return fmt.Errorf("lock settings cannot be negative")
	}
	if c.Audit.Interval < time.Second {
		return fmt.Errorf("audit.interval must be at least 1s, got %s", c.Audit.Interval)
	}

	if c.App.Env == "production" {
		if c.Database.Driver == "memory" {
			return fmt.Errorf("database.driver cannot be memory in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("http.cors_allow_origins cannot be '*' in production")
			}
		}
	}
	return nil
}
