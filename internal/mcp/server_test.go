package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manish0301/subscription-pro/adapter/cli"
	"github.com/manish0301/subscription-pro/pkg/config"
	"github.com/manish0301/subscription-pro/pkg/observability"
)

func TestNewServer(t *testing.T) {
	_, err := NewServer(nil, nil)
	assert.Error(t, err)

	srv, err := NewServer(&cli.App{}, observability.NewNopLogger())
	require.NoError(t, err)
	assert.NotNil(t, srv)
}

func TestServe_RequiresTokenInProduction(t *testing.T) {
	cfg := &config.Config{AppEnv: "production", MCPAddr: "127.0.0.1:0"}
	err := Serve(context.Background(), cfg, &cli.App{}, observability.NewNopLogger())
	assert.ErrorContains(t, err, "MCP_AUTH_TOKEN")

	assert.Error(t, Serve(context.Background(), nil, &cli.App{}, nil))
}
