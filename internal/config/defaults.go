package config

import "time"

// Defaults shared across the application.
const (
	DefaultHost            = "127.0.0.1"
	DefaultPort            = 3050
	DefaultHealthCheckPath = "/mcp"
	DefaultStartupTimeout  = 30 * time.Second

	// DefaultProbeTimeout bounds a single health probe request.
	DefaultProbeTimeout = 2 * time.Second

	// DefaultHandshakeTimeout bounds connection establishment against one
	// upstream server.
	DefaultHandshakeTimeout = 15 * time.Second

	// DefaultCallTimeout bounds a single forwarded tool call.
	DefaultCallTimeout = 60 * time.Second

	// DefaultDiscoveryTimeout bounds a single tool-listing request against
	// one upstream server.
	DefaultDiscoveryTimeout = 30 * time.Second

	// DefaultDiscoveryConcurrency bounds the startup discovery fan-out.
	DefaultDiscoveryConcurrency = 4
)

// DefaultUpstreams returns the upstream servers configured out of the box.
// A user-provided upstreams file replaces entries with the same name.
func DefaultUpstreams() []UpstreamDefinition {
	return []UpstreamDefinition{
		{
			Name: "gofastmcp",
			Kind: UpstreamKindHTTP,
			URL:  "https://gofastmcp.com/mcp",
		},
		{
			Name:    "context7",
			Kind:    UpstreamKindStdio,
			Command: "npx",
			Args:    []string{"-y", "@upstash/context7-mcp"},
		},
		{
			Name:       "filesystem",
			Kind:       UpstreamKindStdio,
			Command:    "npx",
			Args:       []string{"-y", "@modelcontextprotocol/server-filesystem", "."},
			WorkingDir: ".",
		},
		{
			Name:    "serena",
			Kind:    UpstreamKindService,
			Command: "uvx",
			Args: []string{
				"--from", "git+https://github.com/oraios/serena",
				"serena", "start-mcp-server",
				"--transport", "streamable-http",
				"--port", "9121",
				"--context", "ide-assistant",
			},
			Port:            9121,
			HealthCheckPath: DefaultHealthCheckPath,
			StartupTimeout:  DefaultStartupTimeout,
		},
	}
}
