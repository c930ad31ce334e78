// Package main implements the entry point for the spectrad daemon.
// Spectrad ingests spectral readings from devices over MQTT, drives the
// session state machine, and fans out session updates over NATS to
// websocket viewers.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/c360/spectrad/config"
	"github.com/c360/spectrad/control"
	"github.com/c360/spectrad/gateway/ws"
	"github.com/c360/spectrad/ingest"
	"github.com/c360/spectrad/metric"
	"github.com/c360/spectrad/mqttclient"
	"github.com/c360/spectrad/natsclient"
	"github.com/c360/spectrad/notify"
	"github.com/c360/spectrad/session"
	"github.com/c360/spectrad/store"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "spectrad"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	// Run application with proper error handling
	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	// Parse and validate CLI flags
	cliCfg, logger, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	// Load and validate configuration
	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	ctx := context.Background()

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = st.Close() }()

	metricsRegistry := metric.NewMetricsRegistry()

	mqttClient, err := connectMQTT(ctx, cfg, metricsRegistry.CoreMetrics())
	if err != nil {
		return err
	}
	defer func() { _ = mqttClient.Close(time.Second) }()

	// One-shot mode: start a measurement on a device and exit.
	if cliCfg.StartDevice != "" {
		return startMeasurement(ctx, mqttClient, st, logger, cliCfg.StartDevice, cliCfg.PatientID)
	}

	natsClient, err := connectNATS(ctx, cfg, metricsRegistry.CoreMetrics())
	if err != nil {
		return err
	}
	defer func() { _ = natsClient.Close(ctx) }()

	pipeline, err := buildPipeline(cfg, st, mqttClient, natsClient, metricsRegistry, logger)
	if err != nil {
		return err
	}

	// Run application with signal handling
	return runWithSignalHandling(ctx, pipeline, cliCfg.ShutdownTimeout)
}

// initializeCLI parses flags and sets up logging
func initializeCLI() (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting spectrad (spectral session ingestion)",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, logger, false, nil
}

// connectMQTT creates the broker client and establishes the connection
func connectMQTT(ctx context.Context, cfg *config.Config, metrics *metric.Metrics) (*mqttclient.Client, error) {
	opts := []mqttclient.ClientOption{
		mqttclient.WithConnectCallback(func() {
			metrics.RecordMQTTStatus(true)
		}),
		mqttclient.WithConnectionLostCallback(func(err error) {
			metrics.RecordMQTTStatus(false)
			slog.Warn("MQTT connection lost", "error", err)
		}),
	}
	if cfg.MQTT.KeepAlive > 0 {
		opts = append(opts, mqttclient.WithKeepAlive(time.Duration(cfg.MQTT.KeepAlive)))
	}
	if cfg.MQTT.Username != "" {
		opts = append(opts, mqttclient.WithCredentials(cfg.MQTT.Username, cfg.MQTT.Password))
	}

	mqttClient, err := mqttclient.NewClient(cfg.MQTT.BrokerURL, cfg.MQTT.ClientID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create MQTT client: %w", err)
	}

	slog.Info("Connecting to MQTT broker", "broker_url", cfg.MQTT.BrokerURL)
	connCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := mqttClient.Connect(connCtx); err != nil {
		return nil, fmt.Errorf("connect to MQTT broker: %w", err)
	}

	return mqttClient, nil
}

// connectNATS creates the fan-out client and waits for it to be ready
func connectNATS(ctx context.Context, cfg *config.Config, metrics *metric.Metrics) (*natsclient.Client, error) {
	natsClient, err := natsclient.NewClient(cfg.NATS.URL,
		natsclient.WithName(appName),
		natsclient.WithHealthChangeCallback(func(healthy bool) {
			metrics.RecordNATSStatus(healthy)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	slog.Info("Connecting to NATS", "url", cfg.NATS.URL)
	if err := natsClient.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := natsClient.WaitForConnection(connCtx); err != nil {
		return nil, fmt.Errorf("NATS connection timeout: %w", err)
	}

	return natsClient, nil
}

// startMeasurement runs the one-shot -start-device mode
func startMeasurement(
	ctx context.Context,
	mqttClient *mqttclient.Client,
	st *store.Store,
	logger *slog.Logger,
	deviceID, patientID string,
) error {
	publisher := control.NewPublisher(mqttClient, st, logger)

	sessionID, err := publisher.StartMeasurement(ctx, deviceID, patientID)
	if err != nil {
		return fmt.Errorf("start measurement: %w", err)
	}

	// Session id on stdout so scripts can capture it
	fmt.Println(sessionID)
	return nil
}

// pipeline bundles the long-running components in start order
type pipeline struct {
	coordinator *ingest.Coordinator
	gateway     *ws.Gateway
	metrics     *metric.Server
}

// buildPipeline wires the ingestion coordinator, viewer gateway, and metrics
// server from connected infrastructure
func buildPipeline(
	cfg *config.Config,
	st *store.Store,
	mqttClient *mqttclient.Client,
	natsClient *natsclient.Client,
	metricsRegistry *metric.MetricsRegistry,
	logger *slog.Logger,
) (*pipeline, error) {
	engine := session.NewEngine(st, session.Policy{
		AutoCreateSessions: cfg.Ingest.AutoCreateSessions,
	}, logger.With("component", "session-engine"))

	notifier := notify.NewPublisher(natsClient, logger.With("component", "notify"))

	coordinator := ingest.NewCoordinator(ingest.CoordinatorDeps{
		Name:            "ingest",
		Config:          ingest.Config{QueueSize: cfg.Ingest.QueueSize},
		Transport:       mqttClient,
		Engine:          engine,
		Devices:         st,
		Notifier:        notifier,
		MetricsRegistry: metricsRegistry,
		Logger:          logger.With("component", "ingest"),
	})
	if err := coordinator.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize coordinator: %w", err)
	}

	p := &pipeline{coordinator: coordinator}

	if cfg.Gateway.Enabled {
		gateway := ws.NewGateway(ws.GatewayDeps{
			Name:   "ws-gateway",
			Config: ws.Config{Port: cfg.Gateway.Port, Path: cfg.Gateway.Path},
			Bus:    natsClient,
			Store:  st,
			Logger: logger.With("component", "ws-gateway"),
		})
		if err := gateway.Initialize(); err != nil {
			return nil, fmt.Errorf("initialize gateway: %w", err)
		}
		p.gateway = gateway
	}

	if cfg.Metrics.Enabled {
		p.metrics = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, metricsRegistry)
	}

	return p, nil
}

// start brings the pipeline up: metrics first so startup is observable, then
// the gateway, then the coordinator which begins consuming device traffic
func (p *pipeline) start(ctx context.Context) error {
	if p.metrics != nil {
		go func() {
			if err := p.metrics.Start(); err != nil {
				slog.Error("Metrics server exited", "error", err)
			}
		}()
		slog.Info("Metrics server started", "address", p.metrics.Address())
	}

	if p.gateway != nil {
		if err := p.gateway.Start(ctx); err != nil {
			return fmt.Errorf("start gateway: %w", err)
		}
	}

	if err := p.coordinator.Start(ctx); err != nil {
		return fmt.Errorf("start coordinator: %w", err)
	}

	return nil
}

// stop tears the pipeline down in reverse order: stop intake first so no new
// work arrives while the gateway and metrics server drain
func (p *pipeline) stop(timeout time.Duration) error {
	var firstErr error

	if err := p.coordinator.Stop(timeout); err != nil {
		slog.Error("Error stopping coordinator", "error", err)
		firstErr = err
	}

	if p.gateway != nil {
		if err := p.gateway.Stop(timeout); err != nil {
			slog.Error("Error stopping gateway", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if p.metrics != nil {
		if err := p.metrics.Stop(); err != nil {
			slog.Error("Error stopping metrics server", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// runWithSignalHandling starts the pipeline and handles shutdown signals
func runWithSignalHandling(ctx context.Context, p *pipeline, shutdownTimeout time.Duration) error {
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if err := p.start(signalCtx); err != nil {
		return err
	}
	slog.Info("Spectrad started successfully (ingestion pipeline ready)")

	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	if err := p.stop(shutdownTimeout); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("Spectrad shutdown complete")
	return nil
}
