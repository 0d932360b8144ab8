package aggregator

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"mcphub/pkg/logging"
)

func newServerHooks() *server.Hooks {
	hooks := &server.Hooks{}

	hooks.AddBeforeAny(func(ctx context.Context, id any, method mcp.MCPMethod, message any) {
		logging.Debug("Aggregator", "Handling %s (id=%v)", method, id)
	})

	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		logging.Error("Aggregator", err, "Request %s failed (id=%v)", method, id)
	})

	hooks.AddAfterInitialize(func(ctx context.Context, id any, message *mcp.InitializeRequest, result *mcp.InitializeResult) {
		clientName := message.Params.ClientInfo.Name
		logging.Info("Aggregator", "Client connected: %s", clientName)
	})

	return hooks
}
