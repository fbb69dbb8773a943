package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/manish0301/subscription-pro/adapter/cli"
	"github.com/manish0301/subscription-pro/internal/app"
	mcpinternal "github.com/manish0301/subscription-pro/internal/mcp"
	"github.com/manish0301/subscription-pro/pkg/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	logger := app.NewLogger(cfg, "subpro-mcp", cli.Version, os.Stdout)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	container, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}
	defer container.Close()

	if cfg.OutboxProcessorEnabled {
		container.OutboxProcessor.Start(ctx)
	}

	if err := mcpinternal.Serve(ctx, cfg, cli.NewApp(container), logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}
