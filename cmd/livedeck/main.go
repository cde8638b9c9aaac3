// Command livedeck is an interactive control panel for a live video mixer
// speaking obs-websocket v5.
//
// It keeps one resilient connection to the mixer: dropped sessions are
// retried with exponential backoff, commands issued during an outage are
// queued and replayed on reconnect, and a short-lived state cache answers
// repeated state queries.
//
// Usage:
//
//	livedeck [flags]
//
// Flags:
//
//	-config string      Configuration file path (YAML)
//	-address string     Mixer websocket URL (overrides the config file)
//	-password string    Mixer password (overrides the config file)
//	-connect            Connect at startup
//	-capture string     Write a protocol capture to this file
//	-log-level string   Log level: debug, info, warn, error
//	-log-format string  Log format: text, json
//
// Examples:
//
//	# Connect to a local mixer
//	livedeck -connect
//
//	# Use a config file and capture the session
//	livedeck -config /etc/livedeck/studio.yaml -capture studio.dlog
//
//	# Inspect the capture afterwards
//	livedeck-log view -category state studio.dlog
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/livedeck/livedeck-go/cmd/livedeck/interactive"
	"github.com/livedeck/livedeck-go/pkg/config"
	"github.com/livedeck/livedeck-go/pkg/control"
	"github.com/livedeck/livedeck-go/pkg/discovery"
	"github.com/livedeck/livedeck-go/pkg/log"
)

var (
	configFile = flag.String("config", "", "Configuration file path (YAML)")
	address    = flag.String("address", "", "Mixer websocket URL (overrides the config file)")
	password   = flag.String("password", "", "Mixer password (overrides the config file)")
	connect    = flag.Bool("connect", false, "Connect at startup")
	capture    = flag.String("capture", "", "Write a protocol capture to this file")
	logLevel   = flag.String("log-level", "", "Log level: debug, info, warn, error")
	logFormat  = flag.String("log-format", "", "Log format: text, json")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	console, err := interactive.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(console.Stderr(), cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	opts := []control.Option{
		control.WithLogger(logger),
		control.WithNotifier(console),
	}

	// Only set the capture when a file is open to avoid a typed-nil logger.
	var fileLogger *log.FileLogger
	if cfg.Capture.File != "" {
		fileLogger, err = log.NewFileLogger(cfg.Capture.File)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create capture file: %v\n", err)
			os.Exit(1)
		}
		var sinks []log.Logger
		sinks = append(sinks, fileLogger)
		if logger.Enabled(context.Background(), slog.LevelDebug) {
			sinks = append(sinks, log.NewSlogAdapter(logger))
		}
		opts = append(opts, control.WithCapture(log.NewMultiLogger(sinks...)))
		logger.Info("capturing protocol", "file", fileLogger.Path())
	}

	ctrl := control.New(cfg.ControlConfig(), opts...)

	browser := discovery.NewBrowser(discovery.BrowserConfig{
		Service: cfg.Discovery.Service,
		Domain:  cfg.Discovery.Domain,
		Timeout: cfg.Discovery.Timeout,
	}, logger)
	defer browser.Stop()

	console.Attach(ctrl, browser, interactive.Defaults{
		Address:  cfg.Connection.Address,
		Password: cfg.Connection.ResolvedPassword(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal", "signal", sig.String())
			cancel()
			console.Close()
		case <-ctx.Done():
		}
	}()

	if cfg.Connection.AutoConnect {
		if err := ctrl.Connect(ctx, cfg.Connection.Address, cfg.Connection.ResolvedPassword()); err != nil {
			logger.Warn("initial connect failed", "address", cfg.Connection.Address, "error", err)
		}
	}

	console.Run(ctx, cancel)

	if err := ctrl.Disconnect(); err != nil {
		logger.Warn("disconnect", "error", err)
	}
	if fileLogger != nil {
		written, dropped := fileLogger.Stats()
		if err := fileLogger.Close(); err != nil {
			logger.Warn("close capture file", "error", err)
		}
		logger.Info("capture closed", "events", written, "dropped", dropped)
	}
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadAndValidate(*configFile)
	if err != nil {
		return nil, err
	}

	if *address != "" {
		cfg.Connection.Address = *address
	}
	if *password != "" {
		cfg.Connection.Password = *password
	}
	if *connect {
		cfg.Connection.AutoConnect = true
	}
	if *capture != "" {
		cfg.Capture.File = *capture
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(w io.Writer, cfg config.LogConfig) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
}
