package config

import (
	"time"
)

// UpstreamKind defines the transport used to reach an upstream MCP server.
type UpstreamKind string

const (
	// UpstreamKindHTTP is a remote server reached over streamable HTTP.
	UpstreamKindHTTP UpstreamKind = "http"
	// UpstreamKindStdio is a subprocess speaking MCP over stdin/stdout.
	UpstreamKindStdio UpstreamKind = "stdio"
	// UpstreamKindService is a locally supervised process exposing an HTTP
	// endpoint on a known port.
	UpstreamKindService UpstreamKind = "service"
)

// UpstreamDefinition declares a single upstream MCP server.
//
// Which fields are meaningful depends on Kind:
//   - http: URL, AuthToken
//   - stdio: Command, Args, Env, WorkingDir
//   - service: Command, Args, Env, WorkingDir, Port, HealthCheckPath, StartupTimeout
type UpstreamDefinition struct {
	Name string       `yaml:"name"`
	Kind UpstreamKind `yaml:"kind"`

	// Fields for Kind = "http"
	URL string `yaml:"url,omitempty"`
	// AuthToken is either a literal bearer token or an environment variable
	// reference of the form "$NAME", resolved when the upstream is added.
	AuthToken string `yaml:"authToken,omitempty"`

	// Fields for Kind = "stdio" and "service"
	Command    string            `yaml:"command,omitempty"`
	Args       []string          `yaml:"args,omitempty"`
	Env        map[string]string `yaml:"env,omitempty"`
	WorkingDir string            `yaml:"workingDir,omitempty"`

	// Fields for Kind = "service"
	Port            int           `yaml:"port,omitempty"`
	HealthCheckPath string        `yaml:"healthCheckPath,omitempty"`
	StartupTimeout  time.Duration `yaml:"startupTimeout,omitempty"`
}

// Config holds the runtime settings of the aggregator process.
type Config struct {
	// Host and Port the aggregator binds to.
	Host string
	Port int

	// APIToken gates the MCP tool-invocation endpoint. Empty means the
	// endpoint is open; that is an explicit operator choice.
	APIToken string

	// AdminPassword protects the administrative API login.
	AdminPassword string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// Debug forces debug logging regardless of LogLevel.
	Debug bool

	// UpstreamsFile is an optional YAML file with upstream definitions,
	// layered over the compiled-in defaults.
	UpstreamsFile string

	// Upstreams are the servers to connect at startup.
	Upstreams []UpstreamDefinition
}
