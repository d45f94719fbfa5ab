package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"crypto_dash/internal/app"
	"crypto_dash/internal/infra"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// 1. Pprof Server (for performance profiling)
	if os.Getenv("CRYPTO_DASH_PPROF") != "" {
		go func() {
			// Localhost only for security
			slog.Info("Pprof server started on localhost:6060")
			if err := http.ListenAndServe("localhost:6060", nil); err != nil {
				slog.Error("Pprof server failed", slog.Any("error", err))
			}
		}()
	}

	// 2. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(ctx); err != nil {
		slog.Error("Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	infra.PrintBanner(bootstrap.Config)

	slog.InfoContext(ctx, "Dashboard fully operational. Press Ctrl+C to exit.",
		slog.String("addr", bootstrap.Config.Server.Addr))

	// 4. Run until a signal or a component failure
	if err := bootstrap.Run(ctx); err != nil {
		slog.Error("Dashboard stopped with error", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("Shut down gracefully")
}
