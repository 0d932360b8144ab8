package router

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"mcphub/pkg/logging"
)

// normalizeResult ensures every content block of an upstream result can be
// serialized onto our wire. Blocks that cannot be marshaled are replaced by
// their string representation; the call still succeeds, and the
// degradation is logged with the tool and the offending type.
func normalizeResult(server, tool string, result *mcp.CallToolResult) *mcp.CallToolResult {
	if result == nil {
		return &mcp.CallToolResult{}
	}

	for i, content := range result.Content {
		if _, ok := mcp.AsTextContent(content); ok {
			continue
		}
		if _, err := json.Marshal(content); err == nil {
			continue
		}

		logging.Warn("Router", "Result of %s/%s contains non-serializable %T, degrading to string",
			server, tool, content)
		result.Content[i] = mcp.NewTextContent(fmt.Sprintf("%v", content))
	}

	return result
}
