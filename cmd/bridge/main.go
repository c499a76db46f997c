package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/wBanano/wban-backend/pkg/app"
	"github.com/wBanano/wban-backend/pkg/config"
)

var (
	configPath = flag.String("config", "config.yaml", "Path to configuration file")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting wBAN bridge")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bridge, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to assemble bridge", zap.Error(err))
	}

	if err := bridge.Run(ctx); err != nil {
		logger.Fatal("Bridge stopped with error", zap.Error(err))
	}
	logger.Info("Bridge stopped")
}
