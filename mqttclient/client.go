package mqttclient

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/c360/spectrad/errors"
)

// ConnectionStatus represents the state of the MQTT connection
type ConnectionStatus int

// Possible connection statuses
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
)

// String returns the string representation of ConnectionStatus
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// MessageHandler processes one inbound message delivery. Alias form so
// plain funcs and consumer-side interfaces interchange freely.
type MessageHandler = func(topic string, payload []byte)

// Client wraps a paho MQTT client with lifecycle management and status
// tracking. Deliveries use QoS 1, so handlers must tolerate redelivery.
type Client struct {
	brokerURL string
	clientID  string
	logger    Logger

	username       string
	password       string
	cleanSession   bool
	connectTimeout time.Duration
	maxReconnect   time.Duration
	keepAlive      time.Duration

	conn mqtt.Client

	status atomic.Value // stores ConnectionStatus

	// Callbacks
	onConnect        func()
	onConnectionLost func(error)

	subsMu sync.Mutex
	subs   map[string]byte // topic filter -> qos, replayed on reconnect

	closeMu sync.Mutex
	closed  atomic.Bool
}

// NewClient creates a new MQTT client with optional configuration
func NewClient(brokerURL, clientID string, opts ...ClientOption) (*Client, error) {
	if brokerURL == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Client", "NewClient", "broker url")
	}
	if clientID == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Client", "NewClient", "client id")
	}

	c := &Client{
		brokerURL:      brokerURL,
		clientID:       clientID,
		logger:         &defaultLogger{},
		connectTimeout: 10 * time.Second,
		maxReconnect:   time.Minute,
		keepAlive:      30 * time.Second,
		subs:           map[string]byte{},
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "NewClient", "apply option")
		}
	}

	c.status.Store(StatusDisconnected)
	return c, nil
}

// BrokerURL returns the broker URL the client connects to
func (c *Client) BrokerURL() string {
	return c.brokerURL
}

// ClientID returns the MQTT client identifier
func (c *Client) ClientID() string {
	return c.clientID
}

// Status returns the current connection status
func (c *Client) Status() ConnectionStatus {
	val := c.status.Load()
	if val == nil {
		return StatusDisconnected
	}
	return val.(ConnectionStatus)
}

func (c *Client) setStatus(status ConnectionStatus) {
	c.status.Store(status)
}

// IsHealthy returns true if the connection is established
func (c *Client) IsHealthy() bool {
	return c.Status() == StatusConnected
}

func (c *Client) buildOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(c.brokerURL).
		SetClientID(c.clientID).
		SetCleanSession(c.cleanSession).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(c.maxReconnect).
		SetConnectTimeout(c.connectTimeout).
		SetKeepAlive(c.keepAlive).
		SetOrderMatters(true)

	if c.username != "" {
		opts.SetUsername(c.username)
		opts.SetPassword(c.password)
	}

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		c.setStatus(StatusConnected)
		c.logger.Printf("Connected to MQTT broker at %s", c.brokerURL)
		c.resubscribe()
		if c.onConnect != nil {
			go c.onConnect()
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.setStatus(StatusReconnecting)
		c.logger.Errorf("MQTT connection lost: %v", err)
		if c.onConnectionLost != nil {
			go c.onConnectionLost(err)
		}
	})
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		c.setStatus(StatusReconnecting)
		c.logger.Debugf("Reconnecting to MQTT broker at %s", c.brokerURL)
	})

	return opts
}

// Connect establishes the connection to the MQTT broker. Auto-reconnect is
// always enabled; after the initial connect succeeds, paho owns recovery.
func (c *Client) Connect(ctx context.Context) error {
	c.setStatus(StatusConnecting)
	c.logger.Printf("Connecting to MQTT broker at %s", c.brokerURL)

	conn := mqtt.NewClient(c.buildOptions())
	c.conn = conn

	token := conn.Connect()

	done := make(chan struct{})
	go func() {
		token.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		conn.Disconnect(0)
		c.setStatus(StatusDisconnected)
		return errors.WrapTransient(ctx.Err(), "Client", "Connect", "connection cancelled")
	}

	if err := token.Error(); err != nil {
		c.setStatus(StatusDisconnected)
		return errors.WrapTransient(err, "Client", "Connect", "establish connection")
	}

	c.setStatus(StatusConnected)
	return nil
}

// Subscribe registers a handler for a topic filter at the given QoS. The
// subscription is recorded and replayed after a reconnect, which covers
// brokers that drop session state.
func (c *Client) Subscribe(topicFilter string, qos byte, handler MessageHandler) error {
	if c.conn == nil {
		return errors.WrapTransient(errors.ErrNoConnection, "Client", "Subscribe", topicFilter)
	}

	token := c.conn.Subscribe(topicFilter, qos, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(c.connectTimeout) {
		return errors.WrapTransient(errors.ErrNoConnection, "Client", "Subscribe", "subscribe timeout")
	}
	if err := token.Error(); err != nil {
		return errors.WrapTransient(err, "Client", "Subscribe", topicFilter)
	}

	c.subsMu.Lock()
	c.subs[topicFilter] = qos
	c.subsMu.Unlock()

	c.logger.Debugf("Subscribed to %s (qos %d)", topicFilter, qos)
	return nil
}

// Unsubscribe removes a topic filter subscription. Best effort: a failure
// is reported but leaves the client usable.
func (c *Client) Unsubscribe(topicFilter string) error {
	if c.conn == nil {
		return errors.WrapTransient(errors.ErrNoConnection, "Client", "Unsubscribe", topicFilter)
	}

	c.subsMu.Lock()
	delete(c.subs, topicFilter)
	c.subsMu.Unlock()

	token := c.conn.Unsubscribe(topicFilter)
	if !token.WaitTimeout(c.connectTimeout) {
		return errors.WrapTransient(errors.ErrNoConnection, "Client", "Unsubscribe", "unsubscribe timeout")
	}
	if err := token.Error(); err != nil {
		return errors.WrapTransient(err, "Client", "Unsubscribe", topicFilter)
	}

	c.logger.Debugf("Unsubscribed from %s", topicFilter)
	return nil
}

// Publish sends a message to a topic at the given QoS
func (c *Client) Publish(topic string, qos byte, payload []byte) error {
	if c.conn == nil || !c.conn.IsConnected() {
		return errors.WrapTransient(errors.ErrNoConnection, "Client", "Publish", topic)
	}

	token := c.conn.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(c.connectTimeout) {
		return errors.WrapTransient(errors.ErrNoConnection, "Client", "Publish", "publish timeout")
	}
	if err := token.Error(); err != nil {
		return errors.WrapTransient(err, "Client", "Publish", topic)
	}
	return nil
}

// resubscribe replays recorded subscriptions after a reconnect. Handlers
// registered with Subscribe are kept by paho; this only re-issues filters
// for brokers that discarded session state.
func (c *Client) resubscribe() {
	c.subsMu.Lock()
	filters := make(map[string]byte, len(c.subs))
	for f, qos := range c.subs {
		filters[f] = qos
	}
	c.subsMu.Unlock()

	if len(filters) == 0 {
		return
	}
	token := c.conn.SubscribeMultiple(filters, nil)
	if token.WaitTimeout(c.connectTimeout) && token.Error() != nil {
		c.logger.Errorf("Resubscribe after reconnect failed: %v", token.Error())
	}
}

// Close disconnects from the broker, allowing in-flight messages the given
// quiesce time to complete. Safe to call more than once.
func (c *Client) Close(quiesce time.Duration) error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed.Load() {
		return nil
	}
	c.closed.Store(true)

	if c.conn != nil && c.conn.IsConnected() {
		c.conn.Disconnect(uint(quiesce.Milliseconds()))
	}
	c.setStatus(StatusDisconnected)
	c.logger.Printf("Disconnected from MQTT broker at %s", c.brokerURL)
	return nil
}
