// Package aggregator exposes the merged tool namespace over one MCP SSE
// endpoint and keeps the advertised tool set in sync with the catalog. It
// also hosts the administrative API and the metrics endpoint on the same
// listener.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mcphub/internal/api"
	"mcphub/internal/auth"
	"mcphub/internal/catalog"
	"mcphub/internal/config"
	"mcphub/internal/router"
	"mcphub/internal/supervisor"
	"mcphub/internal/tracking"
	"mcphub/internal/upstream"
	"mcphub/pkg/logging"
)

const serverName = "mcphub"

// Server is the aggregated MCP server plus its HTTP surface.
type Server struct {
	cfg      *config.Config
	sup      *supervisor.Supervisor
	registry *upstream.Registry
	catalog  *catalog.Catalog
	router   *router.Router
	tracker  *tracking.Manager
	gate     *auth.Gate
	sessions *auth.SessionStore

	mcpServer  *server.MCPServer
	sseServer  *server.SSEServer
	httpServer *http.Server

	// qualified names of tools currently registered on the MCP server
	exposed map[string]struct{}

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.Mutex
}

// New wires the aggregator over the shared components.
func New(cfg *config.Config, sup *supervisor.Supervisor, reg *upstream.Registry, cat *catalog.Catalog, rt *router.Router, tracker *tracking.Manager) *Server {
	return &Server{
		cfg:      cfg,
		sup:      sup,
		registry: reg,
		catalog:  cat,
		router:   rt,
		tracker:  tracker,
		gate:     auth.NewGate(cfg.APIToken),
		sessions: auth.NewSessionStore(cfg.AdminPassword),
		exposed:  make(map[string]struct{}),
	}
}

// Start builds the MCP server and begins serving. It returns once the
// listener goroutine is running; errors from the listener are logged.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.mcpServer != nil {
		s.mu.Unlock()
		return errors.New("aggregator already started")
	}

	s.ctx, s.cancelFunc = context.WithCancel(ctx)

	s.mcpServer = server.NewMCPServer(
		serverName,
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithLogging(),
		server.WithHooks(newServerHooks()),
	)

	baseURL := fmt.Sprintf("http://%s:%d", s.cfg.Host, s.cfg.Port)
	s.sseServer = server.NewSSEServer(
		s.mcpServer,
		server.WithBaseURL(baseURL),
		server.WithSSEEndpoint("/sse"),
		server.WithMessageEndpoint("/message"),
		server.WithKeepAlive(true),
		server.WithKeepAliveInterval(30*time.Second),
	)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.buildMux(),
	}
	s.mu.Unlock()

	if s.gate.Open() {
		logging.Warn("Aggregator", "MCP_API_TOKEN not set, tool endpoint is unauthenticated")
	}

	s.wg.Add(2)
	go s.monitorCatalog()
	go s.consumeSupervisorEvents()

	s.syncTools()

	httpServer := s.httpServer
	go func() {
		logging.Info("Aggregator", "Serving MCP aggregator on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("Aggregator", err, "HTTP server error")
		}
	}()

	return nil
}

// Stop shuts the whole surface down: the listener first so no new work
// arrives, then the background monitors, then all upstreams. Supervised
// processes stop in parallel, each under its own grace period.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.mcpServer == nil {
		s.mu.Unlock()
		return errors.New("aggregator not started")
	}
	httpServer := s.httpServer
	cancelFunc := s.cancelFunc
	s.mu.Unlock()

	logging.Info("Aggregator", "Shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Warn("Aggregator", "HTTP shutdown error: %v", err)
	}

	cancelFunc()
	s.wg.Wait()

	s.registry.Shutdown()
	s.sup.StopAll(ctx)

	s.mu.Lock()
	s.mcpServer = nil
	s.sseServer = nil
	s.httpServer = nil
	s.mu.Unlock()

	logging.Info("Aggregator", "Shutdown complete")
	return nil
}

// buildMux composes the HTTP surface: MCP transport behind the bearer
// gate, the admin API behind sessions, and open health/metrics endpoints.
func (s *Server) buildMux() http.Handler {
	apiHandler := api.NewHandler(s, s.registry, s.catalog, s.tracker, s.sessions)

	r := chi.NewRouter()
	r.Handle("/sse", auth.BearerMiddleware(s.gate, s.sseServer.SSEHandler()))
	r.Handle("/message", auth.BearerMiddleware(s.gate, s.sseServer.MessageHandler()))
	r.Mount("/api", apiHandler.Routes())
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return r
}

// AddServer registers an upstream and, when it comes up ready, discovers
// its tools. Connectivity failures are not errors here; the upstream stays
// registered as crashed and can be reconnected explicitly.
func (s *Server) AddServer(ctx context.Context, def config.UpstreamDefinition) error {
	srv, err := s.registry.Add(ctx, def)
	if err != nil {
		return err
	}

	if client := srv.Client(); client != nil {
		if err := s.catalog.Refresh(ctx, srv.Name(), client); err != nil {
			logging.Error("Aggregator", err, "Initial discovery failed for %s", srv.Name())
		}
	}

	s.updateConnectedGauge()
	return nil
}

// RemoveServer tears an upstream down and purges its tools.
func (s *Server) RemoveServer(ctx context.Context, name string) error {
	err := s.registry.Remove(ctx, name)
	// The catalog purge happens even if the teardown reported a problem;
	// a half-removed upstream must not keep routable tools.
	s.catalog.RemoveServer(name)
	s.updateConnectedGauge()
	return err
}

// ReconnectServer re-establishes an upstream and refreshes its tools.
func (s *Server) ReconnectServer(ctx context.Context, name string) error {
	if err := s.registry.Reconnect(ctx, name); err != nil {
		s.updateConnectedGauge()
		return err
	}

	client, err := s.registry.Get(name)
	if err == nil {
		if derr := s.catalog.Refresh(ctx, name, client); derr != nil {
			logging.Error("Aggregator", derr, "Discovery after reconnect failed for %s", name)
		}
	}

	s.updateConnectedGauge()
	return nil
}

// monitorCatalog keeps the advertised tool set aligned with the catalog.
func (s *Server) monitorCatalog() {
	defer s.wg.Done()

	updates := s.catalog.Updates()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-updates:
			s.syncTools()
		}
	}
}

// syncTools diffs the catalog against the currently registered tools and
// applies the delta in batches.
func (s *Server) syncTools() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mcpServer == nil {
		return
	}

	entries := s.catalog.All()

	current := make(map[string]struct{}, len(entries))
	var toAdd []server.ServerTool
	for _, entry := range entries {
		current[entry.Qualified] = struct{}{}
		if _, ok := s.exposed[entry.Qualified]; !ok {
			toAdd = append(toAdd, server.ServerTool{
				Tool:    entry.Tool,
				Handler: s.makeToolHandler(entry.Qualified),
			})
		}
	}

	var toRemove []string
	for name := range s.exposed {
		if _, ok := current[name]; !ok {
			toRemove = append(toRemove, name)
		}
	}

	if len(toRemove) > 0 {
		logging.Debug("Aggregator", "Removing %d tools", len(toRemove))
		s.mcpServer.DeleteTools(toRemove...)
	}
	if len(toAdd) > 0 {
		logging.Debug("Aggregator", "Adding %d tools", len(toAdd))
		s.mcpServer.AddTools(toAdd...)
	}

	s.exposed = current
	tracking.ToolsRegistered.Set(float64(len(current)))
	logging.Info("Aggregator", "Exposing %d tools", len(current))
}

// makeToolHandler builds the MCP handler for one qualified tool. Routing
// and execution failures both surface as tool error results; the transport
// stays healthy either way.
func (s *Server) makeToolHandler(qualified string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := make(map[string]interface{})
		if req.Params.Arguments != nil {
			if argsMap, ok := req.Params.Arguments.(map[string]interface{}); ok {
				args = argsMap
			}
		}

		owner, originalName, _ := s.catalog.Resolve(qualified)
		id := s.tracker.Begin(owner, originalName)
		s.tracker.Start(id)

		result, err := s.router.Call(ctx, qualified, args)
		if err != nil {
			s.tracker.Complete(id, err.Error())
			return mcp.NewToolResultError(err.Error()), nil
		}

		errMsg := ""
		if result.IsError {
			errMsg = "upstream reported error"
		}
		s.tracker.Complete(id, errMsg)
		return result, nil
	}
}

// consumeSupervisorEvents reacts to process lifecycle events. A crash
// detaches the upstream's client and purges its tools; nothing restarts
// automatically.
func (s *Server) consumeSupervisorEvents() {
	defer s.wg.Done()

	events := s.sup.Events()
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-events:
			s.handleSupervisorEvent(ev)
		}
	}
}

func (s *Server) handleSupervisorEvent(ev supervisor.Event) {
	switch ev.Type {
	case supervisor.EventRunning:
		logging.Debug("Aggregator", "Process %s running (pid %d)", ev.Name, ev.PID)
	case supervisor.EventCrashed:
		cause := ev.Err
		if cause == nil {
			cause = fmt.Errorf("process exited with code %d", ev.ExitCode)
		}
		s.registry.MarkCrashed(ev.Name, cause)
		s.catalog.RemoveServer(ev.Name)
		s.updateConnectedGauge()
	case supervisor.EventStopped:
		logging.Debug("Aggregator", "Process %s stopped", ev.Name)
	}
}

func (s *Server) updateConnectedGauge() {
	ready := 0
	for _, srv := range s.registry.List() {
		if srv.Status() == upstream.StatusReady {
			ready++
		}
	}
	tracking.UpstreamsConnected.Set(float64(ready))
}

// Endpoint returns the SSE endpoint URL clients connect to.
func (s *Server) Endpoint() string {
	return fmt.Sprintf("http://%s:%d/sse", s.cfg.Host, s.cfg.Port)
}
