package router

import (
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcphub/internal/catalog"
	"mcphub/internal/config"
	"mcphub/internal/supervisor"
	"mcphub/internal/upstream"
)

// routedClient implements upstream.MCPClient and records calls.
type routedClient struct {
	tools     []mcp.Tool
	callErr   error
	result    *mcp.CallToolResult
	returnNil bool
	lastName  string
	lastArgs  map[string]interface{}
}

func (c *routedClient) Initialize(ctx context.Context) error { return nil }
func (c *routedClient) Close() error                         { return nil }

func (c *routedClient) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	return c.tools, nil
}

func (c *routedClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	c.lastName = name
	c.lastArgs = args
	if c.callErr != nil {
		return nil, c.callErr
	}
	if c.returnNil {
		return nil, nil
	}
	if c.result != nil {
		return c.result, nil
	}
	return mcp.NewToolResultText("done"), nil
}

func (c *routedClient) Ping(ctx context.Context) error { return nil }

// setup builds a catalog and registry with one ready upstream named "fs"
// exposing the given tools.
func setup(t *testing.T, client *routedClient) (*Router, *upstream.Registry) {
	t.Helper()

	reg := upstream.NewRegistry(supervisor.New(), upstream.WithConnector(
		func(def config.UpstreamDefinition) (upstream.MCPClient, error) {
			return client, nil
		}))

	_, err := reg.Add(context.Background(), config.UpstreamDefinition{
		Name: "fs",
		Kind: config.UpstreamKindHTTP,
		URL:  "http://localhost:9000/mcp",
	})
	require.NoError(t, err)

	cat := catalog.New()
	require.NoError(t, cat.Refresh(context.Background(), "fs", client))

	return New(cat, reg), reg
}

func TestCallForwardsOriginalName(t *testing.T) {
	client := &routedClient{tools: []mcp.Tool{{Name: "read_file"}}}
	rt, _ := setup(t, client)

	args := map[string]interface{}{"path": "/tmp/x"}
	result, err := rt.Call(context.Background(), "fs_read_file", args)
	require.NoError(t, err)
	require.NotNil(t, result)

	// The upstream sees its own unprefixed name.
	assert.Equal(t, "read_file", client.lastName)
	assert.Equal(t, args, client.lastArgs)
}

func TestCallUnknownTool(t *testing.T) {
	client := &routedClient{tools: []mcp.Tool{{Name: "read_file"}}}
	rt, _ := setup(t, client)

	_, err := rt.Call(context.Background(), "fs_write_file", nil)
	require.ErrorIs(t, err, ErrToolNotFound)
}

func TestCallBackendUnavailable(t *testing.T) {
	client := &routedClient{tools: []mcp.Tool{{Name: "read_file"}}}
	rt, reg := setup(t, client)

	// The upstream crashes between discovery and the call; the entry is
	// still in the catalog until the purge lands.
	reg.MarkCrashed("fs", errors.New("process died"))

	_, err := rt.Call(context.Background(), "fs_read_file", nil)
	require.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestCallExecutionError(t *testing.T) {
	client := &routedClient{
		tools:   []mcp.Tool{{Name: "read_file"}},
		callErr: errors.New("upstream timeout"),
	}
	rt, _ := setup(t, client)

	_, err := rt.Call(context.Background(), "fs_read_file", nil)
	require.Error(t, err)

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "fs", execErr.Server)
	assert.Equal(t, "read_file", execErr.Tool)

	// Execution failures are distinguishable from routing failures.
	assert.NotErrorIs(t, err, ErrToolNotFound)
	assert.NotErrorIs(t, err, ErrBackendUnavailable)
}

func TestCallNormalizesNilResult(t *testing.T) {
	client := &routedClient{tools: []mcp.Tool{{Name: "read_file"}}}
	rt, _ := setup(t, client)

	// An upstream returning a nil result still yields a usable value.
	client.returnNil = true
	result, err := rt.Call(context.Background(), "fs_read_file", nil)
	require.NoError(t, err)
	require.NotNil(t, result)
}

// opaqueContent satisfies mcp.Content through the embedded text block but
// cannot be marshaled because of the channel field.
type opaqueContent struct {
	mcp.TextContent
	Stream chan struct{}
}

func TestCallDegradesNonSerializableContent(t *testing.T) {
	client := &routedClient{
		tools: []mcp.Tool{{Name: "read_file"}},
		result: &mcp.CallToolResult{
			Content: []mcp.Content{
				opaqueContent{Stream: make(chan struct{})},
				mcp.NewTextContent("still fine"),
			},
		},
	}
	rt, _ := setup(t, client)

	result, err := rt.Call(context.Background(), "fs_read_file", nil)
	require.NoError(t, err, "a bad content block must not fail the call")
	require.Len(t, result.Content, 2)

	// The offending block is replaced by its string form; the good block
	// passes through untouched.
	degraded, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok, "non-serializable block must degrade to text")
	assert.NotEmpty(t, degraded.Text)

	text, ok := mcp.AsTextContent(result.Content[1])
	require.True(t, ok)
	assert.Equal(t, "still fine", text.Text)
}

func TestNormalizeResultKeepsTextContent(t *testing.T) {
	result := &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent("hello"),
		},
	}

	normalized := normalizeResult("srv", "tool", result)
	require.Len(t, normalized.Content, 1)

	text, ok := mcp.AsTextContent(normalized.Content[0])
	require.True(t, ok)
	assert.Equal(t, "hello", text.Text)
}

func TestNormalizeResultNil(t *testing.T) {
	normalized := normalizeResult("srv", "tool", nil)
	require.NotNil(t, normalized)
	assert.Empty(t, normalized.Content)
}
