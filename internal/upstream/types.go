package upstream

import (
	"context"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"mcphub/internal/config"
)

// MCPClient is the narrow protocol surface the aggregator needs from an
// upstream connection. The wire-level implementation behind it (handshake,
// framing, transports) is the mcp-go SDK.
type MCPClient interface {
	// Initialize performs the protocol handshake.
	Initialize(ctx context.Context) error

	// Close shuts down the connection.
	Close() error

	// ListTools returns the tools the server advertises.
	ListTools(ctx context.Context) ([]mcp.Tool, error)

	// CallTool executes a tool by its original (unprefixed) name.
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error)

	// Ping checks whether the server is responsive.
	Ping(ctx context.Context) error
}

// Status describes the lifecycle of a configured upstream server.
//
// Transitions are monotonic within one pass (Connecting -> Ready ->
// Crashed|Stopped); only an explicit Reconnect starts a new pass.
type Status string

const (
	StatusConnecting Status = "Connecting"
	StatusReady      Status = "Ready"
	StatusCrashed    Status = "Crashed"
	StatusStopped    Status = "Stopped"
)

// Server is one registered upstream: its definition, its live client (if
// any), and its status. Each server carries its own lock so unrelated
// servers never serialize on each other.
type Server struct {
	mu      sync.RWMutex
	def     config.UpstreamDefinition
	client  MCPClient
	status  Status
	lastErr error
	since   time.Time

	// transitioning is held by the single goroutine allowed to drive this
	// server through a bring-up; removed makes a late bring-up discard its
	// client instead of resurrecting the entry.
	transitioning bool
	removed       bool
}

// Name returns the unique upstream name.
func (s *Server) Name() string {
	return s.def.Name
}

// Definition returns a copy of the upstream definition.
func (s *Server) Definition() config.UpstreamDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.def
}

// Status returns the current status.
func (s *Server) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// LastError returns the error recorded with the most recent failure.
func (s *Server) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Client returns the live client, or nil when the server is not Ready.
func (s *Server) Client() MCPClient {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.status != StatusReady {
		return nil
	}
	return s.client
}

func (s *Server) setStatus(status Status, err error) {
	s.mu.Lock()
	s.status = status
	s.lastErr = err
	s.since = time.Now()
	s.mu.Unlock()
}

// beginTransition claims the right to drive this server through a
// bring-up. It fails when another transition is already in flight.
func (s *Server) beginTransition() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transitioning {
		return false
	}
	s.transitioning = true
	return true
}

func (s *Server) endTransition() {
	s.mu.Lock()
	s.transitioning = false
	s.mu.Unlock()
}

// setClient attaches the live transport. It reports false when the server
// was removed while the bring-up was in flight; the caller must close the
// client instead of leaking it.
func (s *Server) setClient(c MCPClient) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removed {
		return false
	}
	s.client = c
	return true
}

// takeClient detaches and returns the client so the caller can close it
// outside the lock.
func (s *Server) takeClient() MCPClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.client
	s.client = nil
	return c
}

// detach marks the server removed and hands back the live client, if any.
// After detach no bring-up can attach a client to this entry.
func (s *Server) detach() MCPClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = true
	c := s.client
	s.client = nil
	return c
}
