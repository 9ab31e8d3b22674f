package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"iqfeed_go/internal/app"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file")
	pprofAddr := flag.String("pprof", "", "pprof listen address, e.g. localhost:6060 (disabled when empty)")
	flag.Parse()

	// 1. Pprof Server (for performance profiling)
	if *pprofAddr != "" {
		go func() {
			slog.Info("Pprof server started", slog.String("addr", *pprofAddr))
			if err := http.ListenAndServe(*pprofAddr, nil); err != nil {
				slog.Error("Pprof server failed", slog.Any("error", err))
			}
		}()
	}

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(*configPath); err != nil {
		slog.Error("Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Dispatcher, relay and feeds
	if err := bootstrap.Start(ctx); err != nil {
		slog.Error("Startup failed", slog.Any("error", err))
		shutdown(bootstrap)
		stop()
		os.Exit(1)
	}

	slog.InfoContext(ctx, "IQFeed client running. Press Ctrl+C to exit.")

	// Feeds do not reconnect: stop on signal or once every feed has ended.
	exitCode := 0
	select {
	case <-ctx.Done():
		slog.Info("Shutting down gracefully...")
	case <-bootstrap.Done():
		slog.Warn("All feeds stopped, shutting down")
		exitCode = 1
	}

	if err := shutdown(bootstrap); err != nil {
		slog.Error("Shutdown incomplete", slog.Any("error", err))
		exitCode = 1
	}
	stop()
	os.Exit(exitCode)
}

func shutdown(b *app.Bootstrap) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return b.Shutdown(ctx)
}
