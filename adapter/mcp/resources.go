package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/manish0301/subscription-pro/internal/subscriptions/application/queries"
)

// RegisterResources registers MCP resources that expose billing state.
func RegisterResources(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return fmt.Errorf("server is required")
	}
	app := deps.App

	srv.Resource("subpro://billing/failures").
		Name("Billing failures").
		Description("Failed charges from the last 7 days").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			if app == nil || app.ListBillingFailuresHandler == nil {
				return nil, fmt.Errorf("billing failures %w", errNoDatabase)
			}
			failures, err := app.ListBillingFailuresHandler.Handle(ctx, queries.ListBillingFailuresQuery{
				Actor: app.Actor,
				Since: time.Now().UTC().AddDate(0, 0, -7),
				Limit: 200,
			})
			if err != nil {
				return nil, err
			}
			return jsonResource(uri, failures)
		})

	srv.Resource("subpro://health").
		Name("Health").
		Description("Database, Redis and broker health").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			if app == nil || app.Health == nil {
				return nil, fmt.Errorf("health %w", errNoDatabase)
			}
			return jsonResource(uri, app.Health.Check(ctx))
		})

	return nil
}

func jsonResource(uri string, v any) (*mcp.ResourceContent, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return &mcp.ResourceContent{
		URI:      uri,
		MimeType: "application/json",
		Text:     string(data),
	}, nil
}
