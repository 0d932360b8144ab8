package upstream

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"mcphub/internal/config"
)

// mcpGoClient adapts the mcp-go SDK client to the MCPClient interface.
type mcpGoClient struct {
	inner *client.Client
	name  string

	// needsStart is false for stdio clients, whose transport is started
	// by the SDK constructor.
	needsStart bool
}

// NewClient builds a transport client for the given upstream definition.
// The switch over the kind tag is exhaustive; adding a transport kind is a
// compile-visible change here, not a runtime fallthrough.
func NewClient(def config.UpstreamDefinition) (MCPClient, error) {
	switch def.Kind {
	case config.UpstreamKindHTTP:
		var opts []transport.StreamableHTTPCOption
		if def.AuthToken != "" {
			opts = append(opts, transport.WithHTTPHeaders(map[string]string{
				"Authorization": "Bearer " + def.AuthToken,
			}))
		}
		inner, err := client.NewStreamableHttpClient(def.URL, opts...)
		if err != nil {
			return nil, fmt.Errorf("creating streamable-http client for %s: %w", def.Name, err)
		}
		return &mcpGoClient{inner: inner, name: def.Name, needsStart: true}, nil

	case config.UpstreamKindStdio:
		env := make([]string, 0, len(def.Env))
		for k, v := range def.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		inner, err := client.NewStdioMCPClient(def.Command, env, def.Args...)
		if err != nil {
			return nil, fmt.Errorf("creating stdio client for %s: %w", def.Name, err)
		}
		return &mcpGoClient{inner: inner, name: def.Name}, nil

	case config.UpstreamKindService:
		// Supervised services expose a local streamable-http endpoint on
		// their configured port.
		url := fmt.Sprintf("http://localhost:%d%s", def.Port, serviceEndpointPath(def))
		inner, err := client.NewStreamableHttpClient(url)
		if err != nil {
			return nil, fmt.Errorf("creating service client for %s: %w", def.Name, err)
		}
		return &mcpGoClient{inner: inner, name: def.Name, needsStart: true}, nil

	default:
		return nil, &ConfigError{Name: def.Name, Reason: fmt.Sprintf("unknown transport kind %q", def.Kind)}
	}
}

func serviceEndpointPath(def config.UpstreamDefinition) string {
	if def.HealthCheckPath != "" {
		return def.HealthCheckPath
	}
	return config.DefaultHealthCheckPath
}

// Initialize starts the transport (where needed) and performs the MCP
// handshake.
func (c *mcpGoClient) Initialize(ctx context.Context) error {
	if c.needsStart {
		if err := c.inner.Start(ctx); err != nil {
			return fmt.Errorf("starting transport for %s: %w", c.name, err)
		}
	}

	req := mcp.InitializeRequest{
		Params: struct {
			ProtocolVersion string                 `json:"protocolVersion"`
			Capabilities    mcp.ClientCapabilities `json:"capabilities"`
			ClientInfo      mcp.Implementation     `json:"clientInfo"`
		}{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo: mcp.Implementation{
				Name:    "mcphub",
				Version: "1.0.0",
			},
			Capabilities: mcp.ClientCapabilities{},
		},
	}

	if _, err := c.inner.Initialize(ctx, req); err != nil {
		return fmt.Errorf("handshake with %s: %w", c.name, err)
	}
	return nil
}

// Close shuts down the transport.
func (c *mcpGoClient) Close() error {
	return c.inner.Close()
}

// ListTools returns the tools the upstream advertises.
func (c *mcpGoClient) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	result, err := c.inner.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, err
	}
	return result.Tools, nil
}

// CallTool forwards a call using the upstream's original tool name.
func (c *mcpGoClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	req := mcp.CallToolRequest{
		Params: struct {
			Name      string    `json:"name"`
			Arguments any       `json:"arguments,omitempty"`
			Meta      *mcp.Meta `json:"_meta,omitempty"`
		}{
			Name:      name,
			Arguments: args,
		},
	}
	return c.inner.CallTool(ctx, req)
}

// Ping checks server responsiveness.
func (c *mcpGoClient) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return c.inner.Ping(pingCtx)
}
