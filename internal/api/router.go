// Package api exposes the administrative HTTP surface: server management,
// request inspection, and login. All endpoints speak JSON and, except for
// login, require a live admin session.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"mcphub/internal/auth"
	"mcphub/internal/catalog"
	"mcphub/internal/config"
	"mcphub/internal/tracking"
	"mcphub/internal/upstream"
)

// ServerManager is the mutation surface the API drives. It is implemented
// by the aggregator, which keeps registry, catalog and the exposed tool set
// consistent across changes.
type ServerManager interface {
	AddServer(ctx context.Context, def config.UpstreamDefinition) error
	RemoveServer(ctx context.Context, name string) error
	ReconnectServer(ctx context.Context, name string) error
}

// Handler serves the administrative API.
type Handler struct {
	manager  ServerManager
	registry *upstream.Registry
	catalog  *catalog.Catalog
	tracker  *tracking.Manager
	sessions *auth.SessionStore
}

// NewHandler wires the admin API over the given components.
func NewHandler(manager ServerManager, reg *upstream.Registry, cat *catalog.Catalog, tracker *tracking.Manager, sessions *auth.SessionStore) *Handler {
	return &Handler{
		manager:  manager,
		registry: reg,
		catalog:  cat,
		tracker:  tracker,
		sessions: sessions,
	}
}

// Routes builds the chi router for the /api subtree.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Post("/login", h.login)

	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return auth.SessionMiddleware(h.sessions, next)
		})

		r.Post("/logout", h.logout)

		r.Get("/servers", h.listServers)
		r.Post("/servers/http", h.addServer(config.UpstreamKindHTTP))
		r.Post("/servers/stdio", h.addServer(config.UpstreamKindStdio))
		r.Post("/servers/service", h.addServer(config.UpstreamKindService))
		r.Delete("/servers/{name}", h.removeServer)
		r.Post("/servers/{name}/reconnect", h.reconnectServer)

		r.Get("/requests", h.listRequests)
		r.Get("/requests/stats", h.requestStats)
	})

	return r
}
