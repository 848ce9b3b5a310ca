package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/poiesic/membridge/bridge"
	"github.com/poiesic/membridge/mcpserver"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

var version = "dev"

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Serve the knowledge base tools over MCP on stdio",
		Action: serveAction,
		Flags: []cli.Flag{
			sessionFlag(),
			&cli.StringFlag{
				Name:    "metrics-addr",
				Usage:   "Address for the Prometheus /metrics endpoint (disabled when empty)",
				EnvVars: []string{"MEMBRIDGE_METRICS_ADDR"},
			},
			&cli.DurationFlag{
				Name:  "settle",
				Usage: "Wait this long after a write before reindexing, so bursts share one pass",
			},
		},
	}
}

func serveAction(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := bridge.NewMetrics(registry)

	tools, err := newTools(c, db,
		bridge.WithMetrics(metrics),
		bridge.WithSettleDelay(c.Duration("settle")),
	)
	if err != nil {
		return err
	}
	defer tools.Close()

	if addr := c.String("metrics-addr"); addr != "" {
		srv := startMetricsServer(addr, registry)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	server, err := mcpserver.New(tools, mcpserver.Config{
		Version:   version,
		SessionID: c.String("session"),
		Logger:    slog.Default(),
	})
	if err != nil {
		return err
	}
	slog.Info("serving knowledge base", "db", c.String("db"), "session", server.SessionID())
	return server.Run(ctx)
}

func startMetricsServer(addr string, registry *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "addr", addr, "err", err)
		}
	}()
	slog.Info("serving metrics", "addr", addr)
	return srv
}
