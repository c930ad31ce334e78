// Package ws provides the websocket viewer gateway. Browsers connect to
// GET {path}{session_id}; the gateway sends a snapshot of the session from
// the store, then forwards fan-out events for that session until the client
// disconnects.
package ws

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/c360/spectrad/codec"
	"github.com/c360/spectrad/component"
	"github.com/c360/spectrad/errors"
	"github.com/c360/spectrad/natsclient"
	"github.com/c360/spectrad/notify"
	"github.com/c360/spectrad/store"
)

// Bus is the subscribing side of the fan-out transport.
type Bus interface {
	SubscribeDetached(ctx context.Context, subject string, handler func(context.Context, []byte)) (*natsclient.Subscription, error)
}

// SnapshotStore reads the session state sent to a viewer on connect.
type SnapshotStore interface {
	GetSession(ctx context.Context, sessionID string) (*store.Session, error)
	CountReadings(ctx context.Context, sessionID string) (int, error)
}

// Config holds gateway configuration
type Config struct {
	Port int    `json:"port"`
	Path string `json:"path"` // URL prefix, default /ws/session/

	PingInterval time.Duration `json:"ping_interval"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// Validate implements config validation for the gateway
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.WrapInvalid(
			fmt.Errorf("invalid port %d", c.Port),
			"Config", "Validate", "port validation")
	}
	return nil
}

// DefaultConfig returns sensible defaults for the gateway
func DefaultConfig() Config {
	return Config{
		Port:         8765,
		Path:         "/ws/session/",
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// GatewayDeps holds runtime dependencies for the gateway
type GatewayDeps struct {
	Name   string
	Config Config
	Bus    Bus
	Store  SnapshotStore
	Logger *slog.Logger
}

// Gateway bridges per-session fan-out subjects to browser websockets.
type Gateway struct {
	name         string
	port         int
	pathPrefix   string
	pingInterval time.Duration
	writeTimeout time.Duration

	bus    Bus
	store  SnapshotStore
	logger *slog.Logger

	upgrader websocket.Upgrader
	server   *http.Server

	running   atomic.Bool
	startTime time.Time
	mu        sync.Mutex
	wg        sync.WaitGroup

	connections  atomic.Int64
	messagesSent atomic.Int64
	errorCount   atomic.Int64
	lastActivity atomic.Value // stores time.Time
}

// Ensure Gateway implements the component contracts
var _ component.Lifecycle = (*Gateway)(nil)
var _ component.Inspectable = (*Gateway)(nil)

// NewGateway creates a viewer gateway from its dependencies
func NewGateway(deps GatewayDeps) *Gateway {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "ws-gateway")
	}

	cfg := deps.Config
	if cfg.Port == 0 {
		cfg.Port = DefaultConfig().Port
	}
	if cfg.Path == "" {
		cfg.Path = DefaultConfig().Path
	}
	if !strings.HasSuffix(cfg.Path, "/") {
		cfg.Path += "/"
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultConfig().PingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}

	g := &Gateway{
		name:         deps.Name,
		port:         cfg.Port,
		pathPrefix:   cfg.Path,
		pingInterval: cfg.PingInterval,
		writeTimeout: cfg.WriteTimeout,
		bus:          deps.Bus,
		store:        deps.Store,
		logger:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Viewers are served to local dashboards; origin policy is
			// enforced by the fronting proxy.
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
	}
	g.lastActivity.Store(time.Time{})
	return g
}

// Meta returns the component metadata
func (g *Gateway) Meta() component.Metadata {
	name := g.name
	if name == "" {
		name = "ws-gateway"
	}
	return component.Metadata{
		Name:        name,
		Type:        "gateway",
		Description: fmt.Sprintf("Websocket viewer gateway on :%d%s", g.port, g.pathPrefix),
		Version:     "1.0.0",
	}
}

// Health returns the current health status of the component
func (g *Gateway) Health() component.HealthStatus {
	return component.HealthStatus{
		Healthy:    g.running.Load(),
		LastCheck:  time.Now(),
		ErrorCount: int(g.errorCount.Load()),
		Uptime:     time.Since(g.startTime),
	}
}

// DataFlow returns the current data flow metrics
func (g *Gateway) DataFlow() component.FlowMetrics {
	messages := g.messagesSent.Load()
	lastActivity, _ := g.lastActivity.Load().(time.Time)

	var messagesPerSecond, errorRate float64
	if uptime := time.Since(g.startTime).Seconds(); uptime > 0 {
		messagesPerSecond = float64(messages) / uptime
	}
	if messages > 0 {
		errorRate = float64(g.errorCount.Load()) / float64(messages)
	}

	return component.FlowMetrics{
		MessagesPerSecond: messagesPerSecond,
		ErrorRate:         errorRate,
		LastActivity:      lastActivity,
	}
}

// Initialize validates dependencies before Start
func (g *Gateway) Initialize() error {
	if g.bus == nil {
		return errors.WrapInvalid(fmt.Errorf("nil bus"),
			"ws-gateway", "Initialize", "bus validation")
	}
	if g.store == nil {
		return errors.WrapInvalid(fmt.Errorf("nil store"),
			"ws-gateway", "Initialize", "store validation")
	}
	return nil
}

// Start launches the HTTP server serving websocket upgrades
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running.Load() {
		return nil // Already running, idempotent
	}

	mux := http.NewServeMux()
	mux.HandleFunc(g.pathPrefix, func(w http.ResponseWriter, r *http.Request) {
		g.handleSession(ctx, w, r)
	})

	g.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", g.port),
		Handler: mux,
	}

	g.running.Store(true)
	g.startTime = time.Now()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		if err := g.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			g.errorCount.Add(1)
			g.logger.Error("Gateway server exited", "error", err)
			g.running.Store(false)
		}
	}()

	g.logger.Info("Viewer gateway started", "port", g.port, "path", g.pathPrefix)
	return nil
}

// Stop shuts the HTTP server down, closing viewer connections
func (g *Gateway) Stop(timeout time.Duration) error {
	if !g.running.Load() {
		return nil
	}
	g.running.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	g.mu.Lock()
	server := g.server
	g.mu.Unlock()

	if server != nil {
		if err := server.Shutdown(ctx); err != nil {
			_ = server.Close()
		}
	}

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		return errors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout),
			"ws-gateway", "Stop", "graceful shutdown")
	}

	g.logger.Info("Viewer gateway stopped")
	return nil
}

// handleSession upgrades one viewer connection and streams that session's
// updates to it.
func (g *Gateway) handleSession(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimPrefix(r.URL.Path, g.pathPrefix)
	if sessionID == "" || strings.Contains(sessionID, "/") {
		http.Error(w, "session id required", http.StatusBadRequest)
		return
	}
	if _, err := uuid.Parse(sessionID); err != nil {
		http.Error(w, "session id must be a UUID", http.StatusBadRequest)
		return
	}

	// Existence check only; the snapshot itself is read after the fan-out
	// subscription is in place so no update can slip between the two.
	if _, err := g.store.GetSession(r.Context(), sessionID); err != nil {
		if errors.Is(err, errors.ErrUnknownSession) {
			http.Error(w, "unknown session", http.StatusNotFound)
			return
		}
		g.errorCount.Add(1)
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.errorCount.Add(1)
		g.logger.Warn("Websocket upgrade failed", "session_id", sessionID, "error", err)
		return
	}

	g.connections.Add(1)
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer g.connections.Add(-1)
		g.serveConn(ctx, conn, sessionID)
	}()
}

// serveConn owns one viewer connection: subscribe, snapshot, then forwarded
// events, with ping keepalive. Returns when the client goes away or the
// gateway stops.
func (g *Gateway) serveConn(ctx context.Context, conn *websocket.Conn, sessionID string) {
	defer conn.Close()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Slow consumers skip events rather than stall the bus handler; the
	// next event carries the full session state anyway.
	events := make(chan []byte, 16)
	sub, err := g.bus.SubscribeDetached(connCtx, notify.Subject(sessionID), func(_ context.Context, data []byte) {
		select {
		case events <- data:
		default:
		}
	})
	if err != nil {
		g.errorCount.Add(1)
		g.logger.Warn("Fan-out subscribe failed", "session_id", sessionID, "error", err)
		return
	}
	defer func() { _ = sub.Unsubscribe() }()

	// Snapshot is read after the subscription exists. A completion event
	// published while the viewer was connecting is then either in the
	// snapshot or delivered through the subscription; it cannot fall in
	// between. Sessions emit exactly one completion event, so a miss here
	// would leave the viewer on in_progress forever.
	snapshot, err := g.store.GetSession(connCtx, sessionID)
	if err != nil {
		g.errorCount.Add(1)
		g.logger.Warn("Snapshot read failed", "session_id", sessionID, "error", err)
		return
	}
	pointCount, err := g.store.CountReadings(connCtx, sessionID)
	if err != nil {
		g.errorCount.Add(1)
		g.logger.Warn("Snapshot read failed", "session_id", sessionID, "error", err)
		return
	}

	// Read side: consume control frames, detect disconnect.
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * g.pingInterval))
	})
	_ = conn.SetReadDeadline(time.Now().Add(2 * g.pingInterval))
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	event := codec.NewSessionUpdate(snapshot.ID, string(snapshot.Status), pointCount, snapshot.UpdatedAt)
	data, err := event.Encode()
	if err != nil {
		g.errorCount.Add(1)
		return
	}
	if err := g.writeMessage(conn, data); err != nil {
		return
	}

	ticker := time.NewTicker(g.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-connCtx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(g.writeTimeout))
			return
		case data := <-events:
			if err := g.writeMessage(conn, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(g.writeTimeout)); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) writeMessage(conn *websocket.Conn, data []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(g.writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		g.errorCount.Add(1)
		return err
	}
	g.messagesSent.Add(1)
	g.lastActivity.Store(time.Now())
	return nil
}
