package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultRPCURL, cfg.RPCURL)
	assert.Equal(t, DefaultProgramID, cfg.ProgramID)
	assert.Equal(t, ":8000", cfg.HTTPAddr)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 10*time.Minute, cfg.Broadcast.Interval)
	assert.Equal(t, time.Minute, cfg.Broadcast.InitialDelay)
	assert.Equal(t, 50, cfg.Broadcast.MarketLimit)
	assert.Equal(t, 3, cfg.Broadcast.TopN)
	assert.Equal(t, 8, cfg.Broadcast.Fanout)
	assert.Equal(t, 20.0, cfg.Broadcast.SendRate)
	assert.Equal(t, 10, cfg.Poller.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Poller.Interval)
	assert.False(t, cfg.HasBot())
	require.NoError(t, cfg.Validate())
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, `
bot_token: "123:abc"
rpc_url: "https://rpc.example"
request_timeout: 5s
log:
  level: debug
  format: json
storage:
  driver: sqlite
  sqlite_path: /tmp/edgeai.db
broadcast:
  interval: 2m
  top_n: 5
poller:
  max_attempts: 3
  interval: 1s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.HasBot())
	assert.Equal(t, "https://rpc.example", cfg.RPCURL)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, 2*time.Minute, cfg.Broadcast.Interval)
	assert.Equal(t, 5, cfg.Broadcast.TopN)
	assert.Equal(t, 3, cfg.Poller.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Poller.Interval)
	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "rpc_url: https://from-file\n")

	t.Setenv("RPC_URL", "https://from-env")
	t.Setenv("BOT_TOKEN", "tok")
	t.Setenv("PORT", "9090")
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("POSTGRES_DSN", "postgres://u:p@localhost/db")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://from-env", cfg.RPCURL)
	assert.Equal(t, "tok", cfg.BotToken)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("PORT", "not-a-port")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad program id", func(c *Config) { c.ProgramID = "not-base58-0OIl" }},
		{"bad fee wallet", func(c *Config) { c.FeeWallet = "short" }},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mongo" }},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = DriverPostgres }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"zero attempts", func(c *Config) { c.Poller.MaxAttempts = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
