// Package auth gates the MCP tool-invocation endpoint (bearer token) and
// the administrative API (session tokens with expiry). Both gates are pure
// accept/reject checks with no side effects on the rest of the system.
package auth

import (
	"crypto/subtle"
	"strings"
)

// Gate checks bearer tokens on the tool-invocation endpoint.
type Gate struct {
	apiToken string
}

// NewGate creates a gate for the configured API token. An empty token
// leaves the endpoint open; that is an explicit operator choice, not a
// default, and is logged as a caveat at startup.
func NewGate(apiToken string) *Gate {
	return &Gate{apiToken: apiToken}
}

// Open reports whether the endpoint runs without token protection.
func (g *Gate) Open() bool {
	return g.apiToken == ""
}

// AuthorizeToolCall validates an Authorization header value. Comparison is
// constant-time so the token cannot be probed byte by byte.
func (g *Gate) AuthorizeToolCall(authorization string) bool {
	if g.Open() {
		return true
	}

	token, ok := strings.CutPrefix(authorization, "Bearer ")
	if !ok {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(token), []byte(g.apiToken)) == 1
}
