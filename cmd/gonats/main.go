package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sadewadee/gonats"
	"github.com/sadewadee/gonats/internal/config"
	"github.com/sadewadee/gonats/internal/diagnostics"
)

var version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "connect", "run":
		connect()
	case "version":
		fmt.Printf("gonats v%s\n", version)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func connect() {
	cfgPath := "gonats.yaml"
	if len(os.Args) > 2 {
		cfgPath = os.Args[2]
	}

	logger, startupCloser := setupLogger("info", "json", "stdout")
	if startupCloser != nil {
		defer startupCloser.Close()
	}
	logger.Info("gonats starting", "version", version)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "path", cfgPath, "error", err)
		os.Exit(1)
	}

	if startupCloser != nil {
		_ = startupCloser.Close()
		startupCloser = nil
	}
	logger, logCloser := setupLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if logCloser != nil {
		defer logCloser.Close()
	}

	opts := []gonats.Option{
		gonats.WithLogger(logger),
		gonats.WithVersion(version),
		gonats.WithSendTimeout(cfg.Connection.SendTimeout.Duration()),
	}
	if cfg.Auth.User != "" {
		opts = append(opts, gonats.WithUser(cfg.Auth.User), gonats.WithPassword(cfg.Auth.Password))
	}
	if cfg.Auth.AuthToken != "" {
		opts = append(opts, gonats.WithAuthToken(cfg.Auth.AuthToken))
	}
	if cfg.TLS.Enabled {
		tlsCfg, err := cfg.TLS.BuildTLSConfig()
		if err != nil {
			logger.Error("failed to build tls config", "error", err)
			os.Exit(1)
		}
		opts = append(opts, gonats.WithTLSConfig(tlsCfg))
	}
	if cfg.Connection.WebSocketURL != "" {
		opts = append(opts, gonats.WithWebSocket(cfg.Connection.WebSocketURL))
	}

	client := gonats.New(cfg.Connection.Host, cfg.Connection.Port, opts...)

	ctx, cancelConnect := context.WithTimeout(context.Background(), cfg.Connection.ConnectTimeout.Duration())
	defer cancelConnect()

	if err := client.Start(ctx); err != nil {
		logger.Error("failed to connect", "error", err)
		os.Exit(1)
	}
	logger.Info("gonats connected", "host", cfg.Connection.Host, "port", cfg.Connection.Port)

	var reporter *diagnostics.Reporter
	reportCtx, cancelReport := context.WithCancel(context.Background())
	defer cancelReport()
	if cfg.Diagnostics.Enabled {
		reporter = diagnostics.NewReporter(client, cfg.Diagnostics.DumpPath, cfg.Diagnostics.Interval.Duration(), logger)
		reporter.Start(reportCtx)
		logger.Info("diagnostics reporter started", "dump_path", cfg.Diagnostics.DumpPath)
	}

	client.Subscribe(">", "")
	client.AddCallback("", func(f *gonats.Frame) {
		logger.Info("message received", "subject", f.Subject, "bytes", len(f.Payload))
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("gonats ready")

	<-quit
	logger.Info("shutdown signal received")

	if reporter != nil {
		reporter.Stop()
	}

	if err := client.Close(); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("gonats stopped")
}

func setupLogger(level, format, output string) (*slog.Logger, io.Closer) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	writer, closer := resolveLogOutput(output)
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(writer, opts)
	} else {
		handler = slog.NewJSONHandler(writer, opts)
	}

	return slog.New(handler), closer
}

func resolveLogOutput(output string) (io.Writer, io.Closer) {
	switch output {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return os.Stdout, nil
		}
		return f, f
	}
}

func printUsage() {
	fmt.Println(`gonats - NATS pub/sub client

Usage:
  gonats <command> [options]

Commands:
  connect [config]   Connect using the given config (default: gonats.yaml)
  run [config]       Alias for connect
  version            Show version
  help               Show this help

Signals:
  SIGINT/SIGTERM     Graceful shutdown

Examples:
  gonats connect
  gonats connect /etc/gonats/gonats.yaml
  gonats version`)
}
