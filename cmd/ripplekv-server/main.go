// Command ripplekv-server runs the ripplekv network server: an
// in-memory key-value store exposed over RESP-2 on a single TCP port.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/ripplekv/ripplekv/internal/server"
	"github.com/ripplekv/ripplekv/internal/telemetry"
	"github.com/ripplekv/ripplekv/pkg/config"
	"github.com/ripplekv/ripplekv/pkg/store"
)

func main() {
	app := &cli.App{
		Name:  "ripplekv-server",
		Usage: "run the ripplekv RESP-2 key-value server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "TCP port to listen on",
				EnvVars: []string{"RIPPLEKV_PORT"},
				Value:   config.DefaultServerPort,
			},
			&cli.IntFlag{
				Name:    "connections",
				Aliases: []string{"c"},
				Usage:   "maximum concurrent client connections",
				EnvVars: []string{"RIPPLEKV_MAX_CONNECTIONS"},
				Value:   config.DefaultMaxConnections,
			},
			&cli.IntFlag{
				Name:    "idle-timeout",
				Usage:   "seconds of inactivity before a connection is closed",
				EnvVars: []string{"RIPPLEKV_IDLE_TIMEOUT"},
				Value:   config.DefaultIdleTimeoutSec,
			},
			&cli.Int64Flag{
				Name:    "max-bytes",
				Usage:   "byte budget for live keys and values before LRU eviction kicks in",
				EnvVars: []string{"RIPPLEKV_MAX_BYTES"},
				Value:   config.DefaultMaxBytes,
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log level: debug, info, warn, error",
				EnvVars: []string{"RIPPLEKV_LOG_LEVEL"},
				Value:   config.DefaultLogLevel,
			},
			&cli.IntFlag{
				Name:    "metrics-port",
				Usage:   "port to serve Prometheus /metrics on; 0 disables it",
				EnvVars: []string{"RIPPLEKV_METRICS_PORT"},
				Value:   9090,
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "ripplekv-server:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg := &config.ServerConfig{
		Port:            c.Int("port"),
		MaxConnections:  c.Int("connections"),
		IdleTimeoutSecs: c.Int("idle-timeout"),
		MaxBytes:        c.Int64("max-bytes"),
		LogLevel:        c.String("log-level"),
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	if metricsPort := c.Int("metrics-port"); metricsPort > 0 {
		go serveMetrics(metricsPort, sugar)
	}

	kv := store.New(store.Options{
		MaxBytes: cfg.MaxBytes,
		Metrics:  telemetry.StoreMetrics{},
		Logger:   sugar,
	})
	defer kv.Close()

	srv := server.New(kv, server.Options{
		Port:           cfg.Port,
		MaxConnections: cfg.MaxConnections,
		IdleTimeout:    time.Duration(cfg.IdleTimeoutSecs) * time.Second,
		Metrics:        telemetry.ServerMetrics{},
		Logger:         sugar,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server exited: %w", err)
		}
		return nil
	case sig := <-sigCh:
		sugar.Infow("received signal, shutting down", "signal", sig.String())
		srv.Stop()
		return nil
	}
}

func buildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	return cfg.Build()
}

func serveMetrics(port int, logger *zap.SugaredLogger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.MetricsHandler())
	addr := fmt.Sprintf(":%d", port)
	logger.Infow("metrics server listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Errorw("metrics server stopped", "error", err)
	}
}
