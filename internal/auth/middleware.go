package auth

import (
	"encoding/json"
	"net"
	"net/http"
)

// BearerMiddleware protects the MCP endpoints with the API token gate.
// Requests without a valid bearer token are rejected before they reach any
// MCP machinery.
func BearerMiddleware(gate *Gate, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !gate.AuthorizeToolCall(r.Header.Get("Authorization")) {
			writeAuthError(w, http.StatusUnauthorized, "missing or invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SessionMiddleware protects the administrative API with session tokens,
// read from the X-Session-Token header or the session cookie.
func SessionMiddleware(store *SessionStore, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !store.Validate(SessionToken(r)) {
			writeAuthError(w, http.StatusUnauthorized, "missing or expired session")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SessionToken extracts the session token from a request.
func SessionToken(r *http.Request) string {
	if token := r.Header.Get("X-Session-Token"); token != "" {
		return token
	}
	if cookie, err := r.Cookie("session_id"); err == nil {
		return cookie.Value
	}
	return ""
}

// ClientIP returns the remote address without the port, for rate limiting.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
