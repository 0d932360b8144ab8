// Package upstream owns the set of configured upstream MCP servers and
// their live transport clients. It validates definitions, resolves secret
// indirection, delegates Service-kind process lifecycle to the supervisor,
// and records per-server status for the admin surface.
package upstream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mcphub/internal/config"
	"mcphub/internal/supervisor"
	"mcphub/pkg/logging"
)

// ConnectFunc builds a transport client for a definition. The default is
// NewClient; tests swap in fakes so the registry can be exercised without
// real servers.
type ConnectFunc func(def config.UpstreamDefinition) (MCPClient, error)

// Option customizes a Registry.
type Option func(*Registry)

// WithConnector replaces the transport constructor.
func WithConnector(connect ConnectFunc) Option {
	return func(r *Registry) { r.connect = connect }
}

// WithHandshakeTimeout bounds the Initialize call per upstream.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(r *Registry) { r.handshakeTimeout = d }
}

// Registry is the connection registry: at most one Server per name, each
// with its own status and client. Connection failures are recorded per
// server, never retried inline, and never propagated to other servers.
type Registry struct {
	mu      sync.RWMutex
	servers map[string]*Server

	sup              *supervisor.Supervisor
	connect          ConnectFunc
	handshakeTimeout time.Duration
}

// NewRegistry creates a registry whose Service-kind upstreams are spawned
// through sup.
func NewRegistry(sup *supervisor.Supervisor, opts ...Option) *Registry {
	r := &Registry{
		servers:          make(map[string]*Server),
		sup:              sup,
		connect:          NewClient,
		handshakeTimeout: config.DefaultHandshakeTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add validates and registers an upstream, then attempts to bring it up.
// Only configuration problems are returned as errors; connectivity problems
// are recorded in the server's status instead. On a ConfigError no server
// is created.
func (r *Registry) Add(ctx context.Context, def config.UpstreamDefinition) (*Server, error) {
	if ce := validateDefinition(def); ce != nil {
		return nil, ce
	}

	resolved, ce := resolveSecrets(def)
	if ce != nil {
		ce.Name = def.Name
		return nil, ce
	}

	// The new entry is born transitioning so a concurrent Reconnect cannot
	// start a second bring-up before this one finishes.
	srv := &Server{def: resolved, status: StatusConnecting, since: time.Now(), transitioning: true}

	r.mu.Lock()
	if _, exists := r.servers[def.Name]; exists {
		r.mu.Unlock()
		return nil, &ConfigError{Name: def.Name, Reason: "an upstream with this name already exists"}
	}
	r.servers[def.Name] = srv
	r.mu.Unlock()

	logging.Info("Registry", "Added upstream %s (%s)", def.Name, def.Kind)

	r.bringUp(ctx, srv)
	srv.endTransition()
	return srv, nil
}

// bringUp spawns the process (Service kind) and establishes the transport
// client. Failures land in the server's status as Crashed.
func (r *Registry) bringUp(ctx context.Context, srv *Server) {
	def := srv.Definition()

	if def.Kind == config.UpstreamKindService {
		spec := supervisor.Spec{
			Name:           def.Name,
			Command:        def.Command,
			Args:           def.Args,
			Env:            def.Env,
			WorkingDir:     def.WorkingDir,
			HealthURL:      fmt.Sprintf("http://localhost:%d%s", def.Port, def.HealthCheckPath),
			ProbeTimeout:   config.DefaultProbeTimeout,
			StartupTimeout: def.StartupTimeout,
		}
		if _, err := r.sup.Start(ctx, spec); err != nil {
			logging.Error("Registry", err, "Upstream %s failed to start", def.Name)
			srv.setStatus(StatusCrashed, err)
			return
		}
	}

	client, err := r.connect(def)
	if err != nil {
		logging.Error("Registry", err, "Upstream %s client construction failed", def.Name)
		srv.setStatus(StatusCrashed, err)
		return
	}

	handshakeCtx, cancel := context.WithTimeout(ctx, r.handshakeTimeout)
	defer cancel()

	if err := client.Initialize(handshakeCtx); err != nil {
		logging.Error("Registry", err, "Upstream %s handshake failed", def.Name)
		client.Close()
		srv.setStatus(StatusCrashed, err)
		return
	}

	if !srv.setClient(client) {
		// Removed while the handshake was in flight; the transport must
		// not outlive the entry.
		logging.Info("Registry", "Upstream %s was removed during bring-up, discarding client", def.Name)
		client.Close()
		return
	}
	srv.setStatus(StatusReady, nil)
	logging.Info("Registry", "Upstream %s is ready", def.Name)
}

// Remove tears down an upstream: transport client, supervised process, and
// the registry entry. Each step is best-effort so a stuck process cannot
// block the cleanup of the rest.
func (r *Registry) Remove(ctx context.Context, name string) error {
	r.mu.Lock()
	srv, ok := r.servers[name]
	if ok {
		delete(r.servers, name)
	}
	r.mu.Unlock()

	if !ok {
		return ErrServerNotFound
	}

	if client := srv.detach(); client != nil {
		if err := client.Close(); err != nil {
			logging.Warn("Registry", "Error closing client for %s: %v", name, err)
		}
	}

	if srv.Definition().Kind == config.UpstreamKindService {
		if err := r.sup.Stop(ctx, name); err != nil {
			logging.Warn("Registry", "Error stopping process for %s: %v", name, err)
		}
	}

	srv.setStatus(StatusStopped, nil)
	logging.Info("Registry", "Removed upstream %s", name)
	return nil
}

// Reconnect explicitly re-establishes a crashed or stopped upstream. This
// is the only way back into Connecting; nothing reconnects automatically.
func (r *Registry) Reconnect(ctx context.Context, name string) error {
	r.mu.RLock()
	srv, ok := r.servers[name]
	r.mu.RUnlock()

	if !ok {
		return ErrServerNotFound
	}

	// One transition per server at a time; a second concurrent reconnect
	// would race this one's client construction and leak a transport.
	if !srv.beginTransition() {
		return fmt.Errorf("upstream %s is already reconnecting", name)
	}
	defer srv.endTransition()

	if client := srv.takeClient(); client != nil {
		client.Close()
	}

	def := srv.Definition()
	if def.Kind == config.UpstreamKindService {
		// A previous process may still be tracked as crashed; clear it.
		if err := r.sup.Stop(ctx, name); err != nil {
			logging.Warn("Registry", "Error clearing old process for %s: %v", name, err)
		}
	}

	srv.setStatus(StatusConnecting, nil)
	logging.Info("Registry", "Reconnecting upstream %s", name)
	r.bringUp(ctx, srv)

	if srv.Status() != StatusReady {
		return fmt.Errorf("reconnect of %s failed: %w", name, srv.LastError())
	}
	return nil
}

// Get returns the live client for a Ready upstream.
func (r *Registry) Get(name string) (MCPClient, error) {
	r.mu.RLock()
	srv, ok := r.servers[name]
	r.mu.RUnlock()

	if !ok {
		return nil, ErrServerNotFound
	}
	client := srv.Client()
	if client == nil {
		return nil, fmt.Errorf("%w: %s is %s", ErrServerNotReady, name, srv.Status())
	}
	return client, nil
}

// GetServer returns the registry entry regardless of its status.
func (r *Registry) GetServer(name string) (*Server, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	srv, ok := r.servers[name]
	return srv, ok
}

// List returns a snapshot of all registered upstreams.
func (r *Registry) List() []*Server {
	r.mu.RLock()
	defer r.mu.RUnlock()

	servers := make([]*Server, 0, len(r.servers))
	for _, srv := range r.servers {
		servers = append(servers, srv)
	}
	return servers
}

// MarkCrashed records that an upstream's process or connection died. The
// client is detached and closed; the definition stays so an explicit
// reconnect can revive it.
func (r *Registry) MarkCrashed(name string, cause error) {
	r.mu.RLock()
	srv, ok := r.servers[name]
	r.mu.RUnlock()

	if !ok {
		return
	}

	if client := srv.takeClient(); client != nil {
		client.Close()
	}
	srv.setStatus(StatusCrashed, cause)
	logging.Warn("Registry", "Upstream %s marked crashed: %v", name, cause)
}

// Shutdown closes every live client. Supervised processes are stopped by
// the caller through the supervisor so their grace periods run in parallel.
func (r *Registry) Shutdown() {
	r.mu.RLock()
	servers := make([]*Server, 0, len(r.servers))
	for _, srv := range r.servers {
		servers = append(servers, srv)
	}
	r.mu.RUnlock()

	for _, srv := range servers {
		if client := srv.takeClient(); client != nil {
			if err := client.Close(); err != nil {
				logging.Warn("Registry", "Error closing client for %s: %v", srv.Name(), err)
			}
		}
		srv.setStatus(StatusStopped, nil)
	}
}

// resolveSecrets resolves $VAR indirection in the secret-bearing fields of
// a definition. Env values support indirection too; the command and args do
// not, matching the wire shapes in the admin API.
func resolveSecrets(def config.UpstreamDefinition) (config.UpstreamDefinition, *ConfigError) {
	if def.AuthToken != "" {
		token, ce := resolveSecret(def.AuthToken)
		if ce != nil {
			return def, ce
		}
		def.AuthToken = token
	}

	if len(def.Env) > 0 {
		env := make(map[string]string, len(def.Env))
		for k, v := range def.Env {
			resolved, ce := resolveSecret(v)
			if ce != nil {
				return def, ce
			}
			env[k] = resolved
		}
		def.Env = env
	}

	return def, nil
}
