package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	Debug           bool
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool

	// One-shot mode: publish a start_measurement command for this device and
	// exit instead of running the ingestion pipeline.
	StartDevice string
	PatientID   string
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	// Define flags with environment variable fallback
	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("SPECTRAD_CONFIG", ""),
		"Path to configuration file, empty for defaults (env: SPECTRAD_CONFIG)")

	flag.StringVar(&cfg.ConfigPath, "c",
		getEnv("SPECTRAD_CONFIG", ""),
		"Path to configuration file, empty for defaults (env: SPECTRAD_CONFIG)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("SPECTRAD_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: SPECTRAD_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("SPECTRAD_LOG_FORMAT", "json"),
		"Log format: json, text (env: SPECTRAD_LOG_FORMAT)")

	flag.BoolVar(&cfg.Debug, "debug",
		getEnvBool("SPECTRAD_DEBUG", false),
		"Enable debug mode (env: SPECTRAD_DEBUG)")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("SPECTRAD_SHUTDOWN_TIMEOUT", 30*time.Second),
		"Graceful shutdown timeout (env: SPECTRAD_SHUTDOWN_TIMEOUT)")

	flag.StringVar(&cfg.StartDevice, "start-device", "",
		"Publish a start_measurement command to this device ID and exit")

	flag.StringVar(&cfg.PatientID, "patient", "",
		"Patient identifier attached to the session (only with -start-device)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	// Custom usage
	flag.Usage = func() {
		printDetailedHelp()
	}

	flag.Parse()

	// Override log level if debug is set
	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	// Skip validation for special flags
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	// Config file is optional; if given it must exist
	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}

	// Validate log level
	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	// Validate log format
	validFormats := []string{"json", "text"}
	if !contains(validFormats, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	if cfg.PatientID != "" && cfg.StartDevice == "" {
		return fmt.Errorf("-patient requires -start-device")
	}

	return nil
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - Spectral Session Ingestion

Usage: %s [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Run with custom config
  %s --config=/etc/spectrad/config.json

  # Run with debug logging
  %s --log-level=debug --log-format=text

  # Run with environment variables
  export SPECTRAD_MQTT_BROKER_URL=tcp://broker:1883
  export SPECTRAD_LOG_LEVEL=debug
  %s

  # Start a measurement on a device and exit
  %s --start-device=spectro-01 --patient=patient-42

  # Validate configuration only
  %s --config=/etc/spectrad/config.json --validate

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Utility function to check if slice contains string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
