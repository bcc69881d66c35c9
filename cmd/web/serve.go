package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"

	"github.com/fatih/color"
	"github.com/pkg/errors"

	"static-server/internal/browser"
	"static-server/internal/config"
	"static-server/internal/handler"
	"static-server/internal/metrics"
	"static-server/internal/server"
	"static-server/internal/service"
)

// run serves cfg until ctx is cancelled. Nothing is bound if the root
// directory cannot be resolved.
func run(ctx context.Context, cfg config.Config, out io.Writer, logger *slog.Logger, opener browser.Opener) error {
	root, err := cfg.ResolveRoot()
	if err != nil {
		return err
	}
	if err := os.Chdir(root); err != nil {
		return errors.Wrapf(err, "failed to enter root %s", root)
	}

	files, err := handler.NewFileHandler(root)
	if err != nil {
		return err
	}
	defer files.Close()

	m := metrics.NewMetrics()

	var events *handler.EventHandler
	if cfg.GameMetrics {
		rateLimiter := service.NewRateLimiter(cfg.EventsPerMinute)
		eventService := service.NewEventService(m.EnableGame(), rateLimiter, logger)
		events = handler.NewEventHandler(eventService, logger)
	}

	srv := server.New(server.Options{
		Port:            cfg.Port,
		MetricsPort:     cfg.MetricsPort,
		MaxConnections:  cfg.MaxConnections,
		ShutdownTimeout: cfg.ShutdownTimeout,
	},
		handler.NewFileServer(files, m, logger),
		handler.NewMetricsServer(m, events),
		logger,
	)

	if err := srv.Listen(ctx); err != nil {
		return err
	}

	port, metricsPort := portOf(srv.Addr()), portOf(srv.MetricsAddr())
	printBanner(out, root, port, metricsPort, cfg.GameMetrics)
	logger.Info("server listening",
		"root", root,
		"port", port,
		"metrics_port", metricsPort,
		"game_metrics", cfg.GameMetrics,
	)

	if err := opener.Open(cfg.BrowserURL(port)); err != nil {
		logger.Warn("failed to open browser", "error", err)
	}

	err = srv.Serve(ctx)

	snapshot := m.GetSnapshot()
	logger.Info("server stopped",
		"requests_total", snapshot[metrics.RequestsTotalName],
		"active_requests", snapshot[metrics.ActiveRequestsName],
	)
	return err
}

func printBanner(out io.Writer, root string, port, metricsPort int, game bool) {
	bold := color.New(color.Bold)
	cyan := color.New(color.FgCyan)

	bold.Fprintf(out, "Serving %s\n", root)
	fmt.Fprint(out, "Serving application at: ")
	cyan.Fprintf(out, "http://0.0.0.0:%d\n", port)
	fmt.Fprint(out, "Prometheus metrics available at: ")
	cyan.Fprintf(out, "http://0.0.0.0:%d%s\n", metricsPort, handler.MetricsPath)
	if game {
		fmt.Fprint(out, "Game events accepted at: ")
		cyan.Fprintf(out, "http://0.0.0.0:%d%s\n", metricsPort, handler.EventsPath)
	}
}

func portOf(addr net.Addr) int {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}
