// Command server runs the marketplace catalog and reputation API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/GabrijelGordic/Suzeraj/internal/app"
	"github.com/GabrijelGordic/Suzeraj/internal/config"
	"github.com/GabrijelGordic/Suzeraj/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		slog.Error("market service exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New("market-service", cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("market service starting",
		slog.String("environment", cfg.Environment),
		slog.Int("http_port", cfg.HTTPPort),
		slog.Group("backends",
			slog.String("store", cfg.StoreBackend),
			slog.String("wishlist", cfg.WishlistBackend),
			slog.String("search", cfg.SearchBackend),
		),
		slog.Bool("kafka", cfg.KafkaEnabled),
	)

	a, err := app.NewApp(cfg, log)
	if err != nil {
		return fmt.Errorf("wire application: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		return err
	}
	log.Info("market service stopped")
	return nil
}
