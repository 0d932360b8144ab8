// Package tracking records tool invocations in a bounded in-memory store
// and exposes Prometheus metrics for them. Records are held for observation
// only; nothing in the call path depends on them.
package tracking

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"mcphub/pkg/logging"
)

const (
	maxRecords      = 1000
	retentionPeriod = 24 * time.Hour
)

// Manager tracks tool invocations. Oldest records are evicted once the
// store exceeds maxRecords, and anything older than the retention period is
// dropped opportunistically on writes.
type Manager struct {
	mu      sync.RWMutex
	records map[string]*RequestRecord

	// insertion order, oldest first, for LRU eviction
	order []string

	now func() time.Time
}

// NewManager creates an empty tracking manager.
func NewManager() *Manager {
	return &Manager{
		records: make(map[string]*RequestRecord),
		now:     time.Now,
	}
}

// Begin registers a new invocation and returns its record ID.
func (m *Manager) Begin(server, tool string) string {
	id := uuid.NewString()
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.pruneLocked()

	m.records[id] = &RequestRecord{
		ID:        id,
		Server:    server,
		Tool:      tool,
		Status:    StatusPending,
		CreatedAt: now,
	}
	m.order = append(m.order, id)

	return id
}

// Start marks the invocation as in progress.
func (m *Manager) Start(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return
	}
	now := m.now()
	rec.Status = StatusInProgress
	rec.StartedAt = &now
}

// Complete marks the invocation as finished. A non-empty errMsg records a
// failure; the duration is measured from StartedAt when set, otherwise from
// CreatedAt.
func (m *Manager) Complete(id string, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return
	}

	now := m.now()
	rec.CompletedAt = &now

	from := rec.CreatedAt
	if rec.StartedAt != nil {
		from = *rec.StartedAt
	}
	rec.DurationMS = now.Sub(from).Milliseconds()

	if errMsg != "" {
		rec.Status = StatusFailed
		rec.Error = errMsg
	} else {
		rec.Status = StatusCompleted
	}

	observeCall(rec.Server, string(rec.Status), now.Sub(from))
}

// Get returns a copy of the record, if retained.
func (m *Manager) Get(id string) (RequestRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return RequestRecord{}, false
	}
	return *rec, true
}

// List returns all retained records, newest first, capped at limit.
// A limit of 0 means no cap.
func (m *Manager) List(limit int) []RequestRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]RequestRecord, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// GetStatistics aggregates the retained records.
func (m *Manager) GetStatistics() Statistics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Statistics{
		ByStatus: make(map[string]int),
		ByServer: make(map[string]int),
	}

	var durationSum int64
	var completed int
	for _, rec := range m.records {
		stats.Total++
		stats.ByStatus[string(rec.Status)]++
		stats.ByServer[rec.Server]++
		if rec.CompletedAt != nil {
			durationSum += rec.DurationMS
			completed++
		}
	}
	if completed > 0 {
		stats.AvgDurationMS = float64(durationSum) / float64(completed)
	}

	return stats
}

// pruneLocked evicts expired records and, if still over capacity, the
// oldest ones. Caller holds the write lock.
func (m *Manager) pruneLocked() {
	cutoff := m.now().Add(-retentionPeriod)

	kept := m.order[:0]
	for _, id := range m.order {
		rec, ok := m.records[id]
		if !ok {
			continue
		}
		if rec.CreatedAt.Before(cutoff) {
			delete(m.records, id)
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept

	for len(m.order) >= maxRecords {
		evicted := m.order[0]
		m.order = m.order[1:]
		delete(m.records, evicted)
		logging.Debug("Tracking", "Evicted request record %s", evicted)
	}
}
