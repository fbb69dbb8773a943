package mcp

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/mcp-go"
)

// RegisterPrompts registers MCP prompts for common billing workflows.
func RegisterPrompts(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return fmt.Errorf("server is required")
	}

	srv.Prompt("dunning_review").
		Description("Review recent failed charges and decide which subscriptions to retry, pause or cancel.").
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			return &mcp.PromptResult{
				Description: "Dunning Review",
				Messages: []mcp.PromptMessage{
					{
						Role: string(mcp.RoleUser),
						Content: mcp.TextContent{
							Type: "text",
							Text: `Review failed subscription charges. Please:

1. Read the subpro://billing/failures resource
2. Group the failures by subscription and count consecutive declines
3. For each subscription, look at its history with subscription_attempts

Then recommend one action per subscription:
- retry on the next billing_run when the decline looks transient
- subscription_pause when it has failed three or more cycles in a row
- subscription_cancel only when the customer asked for it

Do not run billing_run or change any subscription until I confirm.`,
						},
					},
				},
			}, nil
		})

	srv.Prompt("billing_run_report").
		Description("Run billing for a date and summarize the outcome.").
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			asOf := args["as_of"]
			if asOf == "" {
				asOf = "today"
			}
			return &mcp.PromptResult{
				Description: "Billing Run Report",
				Messages: []mcp.PromptMessage{
					{
						Role: string(mcp.RoleUser),
						Content: mcp.TextContent{
							Type: "text",
							Text: fmt.Sprintf(`Run billing_run as of %s. Report how many subscriptions were due,
how many were charged, and list each failure with its kind and reason.
For gateway failures, check subpro://health before suggesting a rerun.`, asOf),
						},
					},
				},
			}, nil
		})

	return nil
}
