// Package catalog aggregates per-upstream tool listings into one flat,
// prefixed namespace. Every exposed name is <server>_<tool>, so names from
// different upstreams can never collide; a server's entries are replaced
// atomically on refresh and purged the moment it stops being Ready.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"mcphub/internal/config"
	"mcphub/internal/upstream"
	"mcphub/pkg/logging"
)

// Separator joins the upstream name and the original tool name.
const Separator = "_"

// ToolEntry is one aggregated tool. Tool carries the upstream's schema
// untouched except for the prefixed name.
type ToolEntry struct {
	Qualified string
	Server    string
	Original  string
	Tool      mcp.Tool
}

// DiscoveryError reports a failed listing against one upstream. The
// upstream keeps zero entries until a later refresh succeeds.
type DiscoveryError struct {
	Server string
	Err    error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovering tools from %s: %v", e.Server, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// QualifiedName builds the exposed name for a tool of an upstream.
func QualifiedName(server, tool string) string {
	return server + Separator + tool
}

// Catalog is the aggregated tool directory.
type Catalog struct {
	mu          sync.RWMutex
	byServer    map[string][]ToolEntry
	byQualified map[string]ToolEntry

	discoveryTimeout time.Duration

	// updateChan carries a pulse whenever the directory changed.
	updateChan chan struct{}
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{
		byServer:         make(map[string][]ToolEntry),
		byQualified:      make(map[string]ToolEntry),
		discoveryTimeout: config.DefaultDiscoveryTimeout,
		updateChan:       make(chan struct{}, 1),
	}
}

// Refresh lists the tools of one upstream and atomically replaces its
// entries. On a failed listing the upstream ends up with zero entries, not
// stale ones; other upstreams are untouched either way.
func (c *Catalog) Refresh(ctx context.Context, server string, client upstream.MCPClient) error {
	listCtx, cancel := context.WithTimeout(ctx, c.discoveryTimeout)
	defer cancel()

	tools, err := client.ListTools(listCtx)
	if err != nil {
		c.RemoveServer(server)
		return &DiscoveryError{Server: server, Err: err}
	}

	entries := make([]ToolEntry, 0, len(tools))
	for _, tool := range tools {
		prefixed := tool
		prefixed.Name = QualifiedName(server, tool.Name)
		entries = append(entries, ToolEntry{
			Qualified: prefixed.Name,
			Server:    server,
			Original:  tool.Name,
			Tool:      prefixed,
		})
	}

	c.mu.Lock()
	c.replaceLocked(server, entries)
	c.mu.Unlock()
	c.notifyUpdate()

	logging.Info("Catalog", "Refreshed %s: %d tools", server, len(entries))
	return nil
}

// RefreshAll runs discovery for the given upstreams with bounded
// concurrency. Each failure is contained to its upstream; the slowest or
// most broken upstream never delays the others beyond its own timeout.
func (c *Catalog) RefreshAll(ctx context.Context, reg *upstream.Registry, concurrency int) {
	if concurrency <= 0 {
		concurrency = 1
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, srv := range reg.List() {
		client := srv.Client()
		if client == nil {
			continue
		}

		wg.Add(1)
		go func(name string, client upstream.MCPClient) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := c.Refresh(ctx, name, client); err != nil {
				logging.Error("Catalog", err, "Discovery failed for %s", name)
			}
		}(srv.Name(), client)
	}

	wg.Wait()
}

// RemoveServer purges all entries of one upstream.
func (c *Catalog) RemoveServer(server string) {
	c.mu.Lock()
	_, had := c.byServer[server]
	c.replaceLocked(server, nil)
	c.mu.Unlock()

	if had {
		c.notifyUpdate()
		logging.Debug("Catalog", "Purged entries for %s", server)
	}
}

// replaceLocked swaps the entries of one server and rebuilds the qualified
// index for the affected names. Caller holds the write lock.
func (c *Catalog) replaceLocked(server string, entries []ToolEntry) {
	for _, old := range c.byServer[server] {
		if current, ok := c.byQualified[old.Qualified]; ok && current.Server == server {
			delete(c.byQualified, old.Qualified)
		}
	}

	if len(entries) == 0 {
		delete(c.byServer, server)
		return
	}

	c.byServer[server] = entries
	for _, entry := range entries {
		if prev, ok := c.byQualified[entry.Qualified]; ok && prev.Server != entry.Server {
			// Only reachable through a duplicate-name race during
			// concurrent add; the later refresh wins.
			logging.Warn("Catalog", "Qualified name %s already owned by %s, replaced by %s",
				entry.Qualified, prev.Server, entry.Server)
		}
		c.byQualified[entry.Qualified] = entry
	}
}

// All returns every entry, sorted by qualified name for stable listings.
func (c *Catalog) All() []ToolEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make([]ToolEntry, 0, len(c.byQualified))
	for _, entry := range c.byQualified {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Qualified < entries[j].Qualified
	})
	return entries
}

// Resolve maps a qualified name back to its upstream and original name.
func (c *Catalog) Resolve(qualified string) (server, original string, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, found := c.byQualified[qualified]
	if !found {
		return "", "", false
	}
	return entry.Server, entry.Original, true
}

// Count returns the number of entries for one upstream.
func (c *Catalog) Count(server string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byServer[server])
}

// Updates returns a channel that pulses when the directory changed.
func (c *Catalog) Updates() <-chan struct{} {
	return c.updateChan
}

func (c *Catalog) notifyUpdate() {
	select {
	case c.updateChan <- struct{}{}:
	default:
		// A pulse is already pending.
	}
}

// SplitQualified splits a qualified name on the first separator. It does
// not consult the directory; use Resolve for authoritative mapping.
func SplitQualified(qualified string) (server, original string, err error) {
	parts := strings.SplitN(qualified, Separator, 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid qualified name: %s", qualified)
	}
	return parts[0], parts[1], nil
}
