package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/spectrad/errors"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.BrokerURL)
	assert.Equal(t, 1024, cfg.Ingest.QueueSize)
	assert.False(t, cfg.Ingest.AutoCreateSessions, "auto-create is opt-in")
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"mqtt": {"broker_url": "tcp://broker:1883", "client_id": "spectrad-1"},
		"store": {"path": "/var/lib/spectrad/sessions.db"},
		"ingest": {"queue_size": 64, "auto_create_sessions": true}
	}`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.BrokerURL)
	assert.Equal(t, "spectrad-1", cfg.MQTT.ClientID)
	assert.Equal(t, "/var/lib/spectrad/sessions.db", cfg.Store.Path)
	assert.Equal(t, 64, cfg.Ingest.QueueSize)
	assert.True(t, cfg.Ingest.AutoCreateSessions)

	// Untouched sections keep defaults.
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
}

func TestKeepAliveAcceptsDurationForms(t *testing.T) {
	tests := []struct {
		name string
		json string
		want Duration
	}{
		{"string form", `{"mqtt": {"broker_url": "tcp://b:1883", "client_id": "c", "keep_alive": "45s"}}`,
			Duration(45 * time.Second)},
		{"nanosecond integer form", `{"mqtt": {"broker_url": "tcp://b:1883", "client_id": "c", "keep_alive": 45000000000}}`,
			Duration(45 * time.Second)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.json), 0o600))

			cfg, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.MQTT.KeepAlive)
		})
	}
}

func TestKeepAliveRejectsBadString(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path,
		[]byte(`{"mqtt": {"broker_url": "tcp://b:1883", "client_id": "c", "keep_alive": "soon"}}`), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"mqtt": {"broker_url": "tcp://file:1883", "client_id": "spectrad"}
	}`), 0o600))

	t.Setenv("SPECTRAD_MQTT_BROKER_URL", "tcp://env:1883")
	t.Setenv("SPECTRAD_MQTT_KEEP_ALIVE", "45s")
	t.Setenv("SPECTRAD_INGEST_QUEUE_SIZE", "32")
	t.Setenv("SPECTRAD_INGEST_AUTO_CREATE_SESSIONS", "true")
	t.Setenv("SPECTRAD_GATEWAY_ENABLED", "false")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tcp://env:1883", cfg.MQTT.BrokerURL)
	assert.Equal(t, Duration(45*time.Second), cfg.MQTT.KeepAlive)
	assert.Equal(t, 32, cfg.Ingest.QueueSize)
	assert.True(t, cfg.Ingest.AutoCreateSessions)
	assert.False(t, cfg.Gateway.Enabled)
}

func TestEnvUnparsableFallsBack(t *testing.T) {
	t.Setenv("SPECTRAD_INGEST_QUEUE_SIZE", "lots")
	t.Setenv("SPECTRAD_GATEWAY_ENABLED", "definitely")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.Ingest.QueueSize)
	assert.True(t, cfg.Gateway.Enabled)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty broker url", func(c *Config) { c.MQTT.BrokerURL = "" }},
		{"empty client id", func(c *Config) { c.MQTT.ClientID = "" }},
		{"empty nats url", func(c *Config) { c.NATS.URL = "" }},
		{"empty store path", func(c *Config) { c.Store.Path = "" }},
		{"gateway port out of range", func(c *Config) { c.Gateway.Port = 70000 }},
		{"metrics port negative", func(c *Config) { c.Metrics.Port = -1 }},
		{"negative queue size", func(c *Config) { c.Ingest.QueueSize = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
