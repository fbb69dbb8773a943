package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/manish0301/subscription-pro/adapter/cli"
	cliBilling "github.com/manish0301/subscription-pro/adapter/cli/billing"
	"github.com/manish0301/subscription-pro/adapter/cli/subscription"
	"github.com/manish0301/subscription-pro/internal/app"
	"github.com/manish0301/subscription-pro/pkg/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	cfg, err := config.Load()
	logger := app.NewLogger(cfg, "subpro", cli.Version, os.Stderr)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cli.SetLogger(logger)

	container, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}
	defer container.Close()

	// Deliver lifecycle events while the command runs.
	if cfg.OutboxProcessorEnabled {
		container.OutboxProcessor.Start(ctx)
	} else {
		logger.Debug("outbox processor disabled in CLI")
	}

	cli.SetApp(cli.NewApp(container))

	cli.AddCommand(subscription.Cmd)
	cli.AddCommand(cliBilling.Cmd)

	cli.Execute(ctx)

	// Flush events written by the command before exiting.
	if cfg.OutboxProcessorEnabled {
		if err := container.OutboxProcessor.ProcessOnce(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("final outbox flush failed", "error", err)
		}
	}
}
