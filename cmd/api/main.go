package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/manish0301/subscription-pro/adapter/api"
	"github.com/manish0301/subscription-pro/adapter/cli"
	"github.com/manish0301/subscription-pro/internal/app"
	"github.com/manish0301/subscription-pro/pkg/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	logger := app.NewLogger(cfg, "subpro-api", cli.Version, os.Stdout)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if cfg.APIAdminToken == "" {
		if cfg.IsProduction() {
			logger.Error("API_ADMIN_TOKEN is required in production")
			os.Exit(1)
		}
		logger.Warn("API admin token not set; admin routes are unreachable")
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

	serverCfg := api.DefaultServerConfig()
	serverCfg.Addr = cfg.APIAddr
	serverCfg.AdminToken = cfg.APIAdminToken
	serverCfg.RatePerSecond = cfg.APIRatePerSecond
	serverCfg.RateBurst = cfg.APIRateBurst

	server := api.NewServer(serverCfg, api.Handlers{
		CreateSubscription:  container.CreateSubscriptionHandler,
		PauseSubscription:   container.PauseSubscriptionHandler,
		ResumeSubscription:  container.ResumeSubscriptionHandler,
		CancelSubscription:  container.CancelSubscriptionHandler,
		SkipDelivery:        container.SkipDeliveryHandler,
		ChangeSchedule:      container.ChangeScheduleHandler,
		RunBillingCycle:     container.RunBillingCycleHandler,
		GetSubscription:     container.GetSubscriptionHandler,
		ListSubscriptions:   container.ListSubscriptionsHandler,
		ListBillingAttempts: container.ListBillingAttemptsHandler,
		ListBillingFailures: container.ListBillingFailuresHandler,
	}, container.Health, container.Metrics, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "addr", serverCfg.Addr)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("api server error", "error", err)
	}

	logger.Info("shutting down api server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api server shutdown error", "error", err)
	}
}
