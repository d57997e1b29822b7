package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
store:
  driver: MySQL
mysql:
  dsn: "u:p@tcp(db:3306)/auctions"
auth:
  jwt_secret: s3cret
bidding:
  lock_timeout: 2s
realtime:
  allow_anonymous: false
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, DriverMySQL, cfg.Store.Driver)
	assert.Equal(t, 2*time.Second, cfg.Bidding.LockTimeout)
	assert.Equal(t, 10*time.Second, cfg.Bidding.LockTTL)
	assert.False(t, cfg.Realtime.AllowAnonymous)
	assert.Equal(t, "@every 1m", cfg.Sweeper.Schedule)
	assert.Equal(t, "0.0.0.0:9090", cfg.Address())
	require.NoError(t, cfg.Validate())
}

func TestLoadFromFile_EnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("SERVER_PORT", "7000")

	cfg, err := LoadFromFile(writeConfig(t, "log:\n  level: debug\n"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Store:   StoreConfig{Driver: DriverJSON, Path: "data/auctions.json"},
			Auth:    AuthConfig{JWTSecret: "x"},
			Bidding: BiddingConfig{LockTimeout: time.Second, LockTTL: 10 * time.Second},
			Redis:   RedisConfig{Address: "localhost:6379"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"json_without_path", func(c *Config) { c.Store.Path = "" }, "store.path"},
		{"mysql_without_dsn", func(c *Config) { c.Store.Driver = DriverMySQL }, "mysql.dsn"},
		{"unknown_driver", func(c *Config) { c.Store.Driver = "sqlite" }, "unknown store.driver"},
		{"no_secret", func(c *Config) { c.Auth.JWTSecret = "" }, "jwt_secret"},
		{"zero_lock_timeout", func(c *Config) { c.Bidding.LockTimeout = 0 }, "lock_timeout"},
		{"lock_ttl_too_short", func(c *Config) {
			c.Store.Driver, c.MySQL.DSN = DriverMySQL, "dsn"
			c.Redis.Enabled = true
			c.Bidding.LockTTL = time.Second
		}, "lock_ttl"},
		{"json_with_redis", func(c *Config) { c.Redis.Enabled = true }, "single-instance"},
		{"mysql_with_redis", func(c *Config) {
			c.Store.Driver, c.MySQL.DSN = DriverMySQL, "dsn"
			c.Redis.Enabled = true
		}, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			tc.mutate(c)
			err := c.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
