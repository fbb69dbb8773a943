package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/manish0301/subscription-pro/internal/subscriptions/application/commands"
	"github.com/manish0301/subscription-pro/internal/subscriptions/application/queries"
	"github.com/manish0301/subscription-pro/pkg/observability"
)

type billingRunInput struct {
	AsOf  string `json:"as_of,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

type billingFailuresInput struct {
	Since string `json:"since,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

func (t *toolset) registerBillingTools(srv *mcp.Server) {
	srv.Tool("billing_run").
		Description("Charge every active subscription due on or before as_of (YYYY-MM-DD, default today) and advance its next delivery date").
		Handler(t.billingRun)

	srv.Tool("billing_failures").
		Description("List failed charges since a date (default 7 days ago) for dunning follow-up").
		Handler(t.billingFailures)

	srv.Tool("health").
		Description("Check database and dependency health").
		Handler(t.health)
}

func (t *toolset) billingRun(ctx context.Context, input billingRunInput) (*commands.BillingCycleResult, error) {
	if t.app.RunBillingCycleHandler == nil {
		return nil, fmt.Errorf("billing run %w", errNoDatabase)
	}
	asOf, err := parseDate(input.AsOf, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	return t.app.RunBillingCycleHandler.Handle(ctx, commands.RunBillingCycleCommand{AsOf: asOf, Limit: input.Limit})
}

func (t *toolset) billingFailures(ctx context.Context, input billingFailuresInput) ([]queries.BillingAttemptDTO, error) {
	if t.app.ListBillingFailuresHandler == nil {
		return nil, fmt.Errorf("billing failures %w", errNoDatabase)
	}
	since, err := parseDate(input.Since, time.Now().UTC().AddDate(0, 0, -7))
	if err != nil {
		return nil, err
	}
	return t.app.ListBillingFailuresHandler.Handle(ctx, queries.ListBillingFailuresQuery{
		Actor: t.app.Actor,
		Since: since,
		Limit: input.Limit,
	})
}

func (t *toolset) health(ctx context.Context, _ struct{}) (*observability.OverallHealth, error) {
	if t.app.Health == nil {
		return nil, fmt.Errorf("health %w", errNoDatabase)
	}
	health := t.app.Health.Check(ctx)
	return &health, nil
}
