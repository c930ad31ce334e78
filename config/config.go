// Package config loads and validates the spectrad configuration from a JSON
// file with SPECTRAD_* environment overrides. Env wins over file, file wins
// over defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/c360/spectrad/errors"
)

// Config represents the complete application configuration
type Config struct {
	MQTT    MQTTConfig    `json:"mqtt"`
	NATS    NATSConfig    `json:"nats"`
	Store   StoreConfig   `json:"store"`
	Gateway GatewayConfig `json:"gateway"`
	Metrics MetricsConfig `json:"metrics"`
	Ingest  IngestConfig  `json:"ingest"`
}

// MQTTConfig defines the broker connection for device traffic
type MQTTConfig struct {
	BrokerURL string   `json:"broker_url"`
	ClientID  string   `json:"client_id"`
	Username  string   `json:"username,omitempty"`
	Password  string   `json:"password,omitempty"`
	KeepAlive Duration `json:"keep_alive,omitempty"`
}

// NATSConfig defines the fan-out bus connection
type NATSConfig struct {
	URL string `json:"url"`
}

// StoreConfig defines session persistence
type StoreConfig struct {
	Path string `json:"path"`
}

// GatewayConfig defines the viewer websocket gateway
type GatewayConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port"`
	Path    string `json:"path,omitempty"`
}

// MetricsConfig defines the Prometheus scrape endpoint
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port"`
	Path    string `json:"path,omitempty"`
}

// IngestConfig defines coordinator behavior
type IngestConfig struct {
	QueueSize int `json:"queue_size"`

	// AutoCreateSessions lazily creates sessions referenced by inbound
	// readings. Off by default; unknown sessions are dropped.
	AutoCreateSessions bool `json:"auto_create_sessions"`
}

// Default returns the baseline configuration
func Default() *Config {
	return &Config{
		MQTT: MQTTConfig{
			BrokerURL: "tcp://localhost:1883",
			ClientID:  "spectrad",
			KeepAlive: Duration(30 * time.Second),
		},
		NATS:    NATSConfig{URL: "nats://localhost:4222"},
		Store:   StoreConfig{Path: "spectrad.db"},
		Gateway: GatewayConfig{Enabled: true, Port: 8765, Path: "/ws/session/"},
		Metrics: MetricsConfig{Enabled: true, Port: 9090, Path: "/metrics"},
		Ingest:  IngestConfig{QueueSize: 1024},
	}
}

// Load reads configuration from the given file (optional), applies
// environment overrides, and validates the result. An empty path skips the
// file and uses defaults plus env.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WrapFatal(err, "config", "Load", path)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapInvalid(err, "config", "Load", "parse config file")
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides file values with SPECTRAD_* environment variables
func (c *Config) applyEnv() {
	c.MQTT.BrokerURL = getEnv("SPECTRAD_MQTT_BROKER_URL", c.MQTT.BrokerURL)
	c.MQTT.ClientID = getEnv("SPECTRAD_MQTT_CLIENT_ID", c.MQTT.ClientID)
	c.MQTT.Username = getEnv("SPECTRAD_MQTT_USERNAME", c.MQTT.Username)
	c.MQTT.Password = getEnv("SPECTRAD_MQTT_PASSWORD", c.MQTT.Password)
	c.MQTT.KeepAlive = Duration(getEnvDuration("SPECTRAD_MQTT_KEEP_ALIVE", time.Duration(c.MQTT.KeepAlive)))

	c.NATS.URL = getEnv("SPECTRAD_NATS_URL", c.NATS.URL)
	c.Store.Path = getEnv("SPECTRAD_STORE_PATH", c.Store.Path)

	c.Gateway.Enabled = getEnvBool("SPECTRAD_GATEWAY_ENABLED", c.Gateway.Enabled)
	c.Gateway.Port = getEnvInt("SPECTRAD_GATEWAY_PORT", c.Gateway.Port)
	c.Gateway.Path = getEnv("SPECTRAD_GATEWAY_PATH", c.Gateway.Path)

	c.Metrics.Enabled = getEnvBool("SPECTRAD_METRICS_ENABLED", c.Metrics.Enabled)
	c.Metrics.Port = getEnvInt("SPECTRAD_METRICS_PORT", c.Metrics.Port)
	c.Metrics.Path = getEnv("SPECTRAD_METRICS_PATH", c.Metrics.Path)

	c.Ingest.QueueSize = getEnvInt("SPECTRAD_INGEST_QUEUE_SIZE", c.Ingest.QueueSize)
	c.Ingest.AutoCreateSessions = getEnvBool("SPECTRAD_INGEST_AUTO_CREATE_SESSIONS", c.Ingest.AutoCreateSessions)
}

// Validate checks the configuration for unusable values
func (c *Config) Validate() error {
	if c.MQTT.BrokerURL == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate", "mqtt.broker_url")
	}
	if c.MQTT.ClientID == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate", "mqtt.client_id")
	}
	if c.NATS.URL == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate", "nats.url")
	}
	if c.Store.Path == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate", "store.path")
	}
	if err := validatePort("gateway.port", c.Gateway.Port); err != nil {
		return err
	}
	if err := validatePort("metrics.port", c.Metrics.Port); err != nil {
		return err
	}
	if c.Ingest.QueueSize < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("ingest.queue_size %d is negative", c.Ingest.QueueSize),
			"config", "Validate", "queue size")
	}
	return nil
}

func validatePort(field string, port int) error {
	if port < 0 || port > 65535 {
		return errors.WrapInvalid(
			fmt.Errorf("%s %d out of range", field, port),
			"config", "Validate", field)
	}
	return nil
}
