// Package router resolves qualified tool names and forwards calls to the
// owning upstream. Routing failures (unknown tool, unavailable upstream)
// are typed and distinguishable from upstream-reported execution failures.
package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"mcphub/internal/catalog"
	"mcphub/internal/config"
	"mcphub/internal/upstream"
	"mcphub/pkg/logging"
)

// ErrToolNotFound means the qualified name does not resolve to any entry.
var ErrToolNotFound = errors.New("tool not found")

// ErrBackendUnavailable means the name resolved but the owning upstream has
// no usable connection, e.g. it crashed between discovery and the call.
var ErrBackendUnavailable = errors.New("upstream unavailable")

// ExecutionError wraps a failure reported while the call was being executed
// by the upstream, as opposed to a routing failure on our side.
type ExecutionError struct {
	Server string
	Tool   string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("executing %s on %s: %v", e.Tool, e.Server, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Router forwards qualified tool calls.
type Router struct {
	catalog     *catalog.Catalog
	registry    *upstream.Registry
	callTimeout time.Duration
}

// New creates a router over the given catalog and registry.
func New(cat *catalog.Catalog, reg *upstream.Registry) *Router {
	return &Router{
		catalog:     cat,
		registry:    reg,
		callTimeout: config.DefaultCallTimeout,
	}
}

// Call resolves qualified, forwards the call with the original tool name
// under a bounded timeout, and normalizes the result. Upstream state is
// never mutated here; a crashed upstream surfaces as ErrBackendUnavailable.
func (r *Router) Call(ctx context.Context, qualified string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	server, original, ok := r.catalog.Resolve(qualified)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, qualified)
	}

	client, err := r.registry.Get(server)
	if err != nil {
		return nil, fmt.Errorf("%w: %s (%v)", ErrBackendUnavailable, server, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	logging.Debug("Router", "Calling %s/%s", server, original)

	result, err := client.CallTool(callCtx, original, args)
	if err != nil {
		return nil, &ExecutionError{Server: server, Tool: original, Err: err}
	}

	return normalizeResult(server, original, result), nil
}
