package mqttclient

import (
	"log"
	"time"
)

// Logger interface for injecting custom loggers
type Logger interface {
	Printf(format string, v ...any)
	Errorf(format string, v ...any)
	Debugf(format string, v ...any)
}

// defaultLogger implements Logger using standard log package
type defaultLogger struct{}

func (l *defaultLogger) Printf(format string, v ...any) {
	log.Printf("[MQTT] "+format, v...)
}

func (l *defaultLogger) Errorf(format string, v ...any) {
	log.Printf("[MQTT ERROR] "+format, v...)
}

func (l *defaultLogger) Debugf(_ string, _ ...any) {
	// Silent by default
}

// ClientOption is a functional option for configuring the Client
type ClientOption func(*Client) error

// WithLogger sets a custom logger for the client
func WithLogger(logger Logger) ClientOption {
	return func(c *Client) error {
		if logger == nil {
			logger = &defaultLogger{}
		}
		c.logger = logger
		return nil
	}
}

// WithCredentials sets username and password for broker authentication
func WithCredentials(username, password string) ClientOption {
	return func(c *Client) error {
		c.username = username
		c.password = password
		return nil
	}
}

// WithCleanSession controls whether the broker discards session state on
// disconnect. Leave false so QoS 1 messages queued while offline are
// delivered after reconnect.
func WithCleanSession(clean bool) ClientOption {
	return func(c *Client) error {
		c.cleanSession = clean
		return nil
	}
}

// WithConnectTimeout sets the timeout for connect and per-call token waits
func WithConnectTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		c.connectTimeout = d
		return nil
	}
}

// WithMaxReconnectInterval caps the auto-reconnect backoff
func WithMaxReconnectInterval(d time.Duration) ClientOption {
	return func(c *Client) error {
		c.maxReconnect = d
		return nil
	}
}

// WithKeepAlive sets the MQTT keepalive interval
func WithKeepAlive(d time.Duration) ClientOption {
	return func(c *Client) error {
		c.keepAlive = d
		return nil
	}
}

// WithConnectCallback sets a callback invoked on every successful connect,
// including reconnects
func WithConnectCallback(fn func()) ClientOption {
	return func(c *Client) error {
		c.onConnect = fn
		return nil
	}
}

// WithConnectionLostCallback sets a callback for connection loss events
func WithConnectionLostCallback(fn func(error)) ClientOption {
	return func(c *Client) error {
		c.onConnectionLost = fn
		return nil
	}
}
