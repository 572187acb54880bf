package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults when nothing is set", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)

		assert.Equal(t, "batchbalance", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, 8080, cfg.HTTP.Port)
		assert.Equal(t, "sqlite", cfg.Database.Driver)
		assert.Equal(t, "batchbalance.db", cfg.Database.Path)
		assert.False(t, cfg.Redis.Enabled())
		assert.Equal(t, 30*time.Second, cfg.Lock.TTL)
		assert.Equal(t, "console", cfg.Log.Format)
		assert.True(t, cfg.Audit.Enabled)
		assert.Equal(t, time.Hour, cfg.Audit.Interval)
		assert.Equal(t, "NG", cfg.Phone.DefaultRegion)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("BATCH_HTTP_PORT", "9090")
		t.Setenv("BATCH_DATABASE_DRIVER", "memory")
		t.Setenv("BATCH_REDIS_ADDR", "localhost:6379")
		t.Setenv("BATCH_LOCK_TTL", "5s")
		t.Setenv("BATCH_AUDIT_ENABLED", "false")

		cfg, err := Load("")
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.HTTP.Port)
		assert.Equal(t, "memory", cfg.Database.Driver)
		assert.True(t, cfg.Redis.Enabled())
		assert.Equal(t, 5*time.Second, cfg.Lock.TTL)
		assert.False(t, cfg.Audit.Enabled)
	})

	t.Run("config file with env taking precedence", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "batchbalance.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
app:
  env: staging
log:
  level: debug
  format: json
database:
  driver: sqlite
  path: /tmp/shop.db
`), 0o600))
		t.Setenv("BATCH_LOG_LEVEL", "warn")

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "staging", cfg.App.Env)
		assert.Equal(t, "json", cfg.Log.Format)
		assert.Equal(t, "warn", cfg.Log.Level)
		assert.Equal(t, "/tmp/shop.db", cfg.Database.Path)
	})

	t.Run("missing config file is an error", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "database.driver"},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = "postgres" }, "database.dsn"},
		{"bad port", func(c *Config) { c.HTTP.Port = 70000 }, "http.port"},
		{"tiny audit interval", func(c *Config) { c.Audit.Interval = time.Millisecond }, "audit.interval"},
		{"memory in production", func(c *Config) {
			c.App.Env = "production"
			c.Database.Driver = "memory"
		}, "production"},
		{"wildcard cors in production", func(c *Config) {
			c.App.Env = "production"
			c.HTTP.CORSAllowOrigins = []string{"*"}
		}, "cors"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			applyDefaults(cfg)
			tt.mutate(cfg)

			err := cfg.validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("postgres with dsn", func(t *testing.T) {
		cfg := &Config{}
		applyDefaults(cfg)
		cfg.Database.Driver = "postgres"
		cfg.Database.DSN = "host=localhost dbname=batches"
		assert.NoError(t, cfg.validate())
	})
}
