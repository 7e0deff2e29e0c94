package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"tapebook/internal/app"
	"tapebook/internal/event"
	"tapebook/internal/infra"
	"tapebook/internal/ingest"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("🕵️ Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Warn("pprof server stopped", slog.Any("error", err))
		}
	}()

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(*configPath); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := bootstrap.Config

	// 4. Replay the tape, if configured
	if cfg.Replay.TapePath != "" {
		f, err := os.Open(cfg.Replay.TapePath)
		if err != nil {
			slog.Error("❌ Cannot open tape", slog.Any("error", err))
			os.Exit(1)
		}
		processed, err := ingest.Replay(bootstrap.Router, f)
		f.Close()
		if err != nil {
			slog.Error("❌ Replay halted on contract violation",
				slog.Int("processed", processed), slog.Any("error", err))
			os.Exit(1)
		}
		snap := infra.GlobalMetrics.GetSnapshot()
		slog.Info("✨ Replay complete",
			slog.Int("events", processed),
			slog.Uint64("fills", snap.Fills),
			slog.Uint64("book_changes", snap.BookChanges),
			slog.Duration("avg_latency", snap.AvgLatency))
	}

	// 5. Live feed, if configured
	if cfg.Feed.Enabled {
		inbox := make(chan event.Event, 1024)
		worker := ingest.NewFeedWorker(cfg.Feed.WSURL, bootstrap.Markets, inbox)
		if err := worker.Connect(ctx); err != nil {
			slog.Error("Failed to connect feed", slog.Any("error", err))
			os.Exit(1)
		}
		defer worker.Disconnect()
		slog.InfoContext(ctx, "✅ Feed worker started. Press Ctrl+C to exit.")

		// Single-threaded hotpath: the only goroutine touching the router.
		for {
			select {
			case <-ctx.Done():
				slog.InfoContext(ctx, "👋 Shutting down gracefully...")
				return
			case ev := <-inbox:
				if _, _, err := bootstrap.Router.Process(ev); err != nil {
					slog.Error("❌ Halting on contract violation", slog.Any("error", err))
					return
				}
			}
		}
	}
}
