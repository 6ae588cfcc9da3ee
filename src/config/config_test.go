package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
name: "fleet-observer-test"
host: "127.0.0.1"
port: 8000
log_level: "ERROR"

store:
  backend: "memory"

queue:
  backend: "memory"

storage:
  db_type: "sqlite"
  db_path: "test.db"

ingest:
  live_source_tag: "live"
  instruments:
    - "EURUSD"
  spread_baselines:
    EURUSD: 2.0

registry: {}

sources:
  - name: "icmarkets"
    type: "ecn"
    spread_multiplier: 1.0
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// -----------------------------------------------------------------------------

func TestNewConfigAppliesDefaults(t *testing.T) {
	cfg, err := NewConfig(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "fleet-observer-test", cfg.Name)
	assert.Equal(t, 500, cfg.Store.OpTimeoutMs)
	assert.Equal(t, "confirmations", cfg.Queue.Key)
	assert.Equal(t, 2000, cfg.Queue.PollTimeoutMs)
	assert.Equal(t, 1024, cfg.Queue.BufferSize)
	assert.Equal(t, 30, cfg.Ingest.TickTTLSeconds)
	assert.Equal(t, 50, cfg.Ingest.HistoryDepth)
	assert.Equal(t, 60, cfg.Registry.HeartbeatTimeoutSeconds)
	assert.Equal(t, 30, cfg.Registry.SweepIntervalSeconds)
	assert.Equal(t, 90, cfg.Storage.RetentionDays)
}

func TestNewConfigMissingFile(t *testing.T) {
	_, err := NewConfig("/nonexistent/config.yaml")
	assert.Error(t, err)
}

// -----------------------------------------------------------------------------

func TestValidation(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad store backend",
			mutate:  func(c *Config) { c.Store.Backend = "etcd" },
			wantErr: "unsupported store backend",
		},
		{
			name:    "redis store without address",
			mutate:  func(c *Config) { c.Store.Backend = "redis"; c.Store.RedisAddr = "" },
			wantErr: "redis address",
		},
		{
			name:    "missing live source tag",
			mutate:  func(c *Config) { c.Ingest.LiveSourceTag = "" },
			wantErr: "live source tag",
		},
		{
			name:    "no instruments",
			mutate:  func(c *Config) { c.Ingest.Instruments = nil },
			wantErr: "at least one supported instrument",
		},
		{
			name:    "instrument without baseline",
			mutate:  func(c *Config) { c.Ingest.Instruments = append(c.Ingest.Instruments, "XAUUSD") },
			wantErr: "no spread baseline",
		},
		{
			name:    "bad source type",
			mutate:  func(c *Config) { c.Sources[0].Type = "prime" },
			wantErr: "unsupported type",
		},
		{
			name:    "non-positive multiplier",
			mutate:  func(c *Config) { c.Sources[0].SpreadMultiplier = 0 },
			wantErr: "positive spread multiplier",
		},
		{
			name:    "privileged port",
			mutate:  func(c *Config) { c.Port = 80 },
			wantErr: "invalid server port",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := NewConfig(writeConfig(t, validYAML))
			require.NoError(t, err)

			tc.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

// -----------------------------------------------------------------------------

func TestSaveRoundTrip(t *testing.T) {
	cfg, err := NewConfig(writeConfig(t, validYAML))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, cfg.Save(path))

	reloaded, err := NewConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Name, reloaded.Name)
	assert.Equal(t, cfg.Ingest.Instruments, reloaded.Ingest.Instruments)
	assert.Equal(t, cfg.Sources, reloaded.Sources)
}
