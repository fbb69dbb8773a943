package mcp

import (
	"errors"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/manish0301/subscription-pro/adapter/cli"
)

// ToolDependencies provides handlers and context for MCP tools.
type ToolDependencies struct {
	App *cli.App
}

// toolset holds the handlers behind every registered tool.
type toolset struct {
	app *cli.App
}

// RegisterCLITools registers MCP tools that mirror CLI functionality.
func RegisterCLITools(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return errors.New("server is required")
	}
	if deps.App == nil {
		return errors.New("app is required")
	}

	t := &toolset{app: deps.App}
	t.registerSubscriptionTools(srv)
	t.registerBillingTools(srv)
	return nil
}
