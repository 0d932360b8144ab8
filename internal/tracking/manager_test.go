package tracking

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestLifecycle(t *testing.T) {
	m := NewManager()

	now := time.Now()
	m.now = func() time.Time { return now }

	id := m.Begin("github", "search")
	require.NotEmpty(t, id)

	rec, ok := m.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusPending, rec.Status)
	assert.Equal(t, "github", rec.Server)
	assert.Equal(t, "search", rec.Tool)

	m.Start(id)
	rec, _ = m.Get(id)
	assert.Equal(t, StatusInProgress, rec.Status)
	require.NotNil(t, rec.StartedAt)

	now = now.Add(250 * time.Millisecond)
	m.Complete(id, "")

	rec, _ = m.Get(id)
	assert.Equal(t, StatusCompleted, rec.Status)
	require.NotNil(t, rec.CompletedAt)
	assert.Equal(t, int64(250), rec.DurationMS)
	assert.Empty(t, rec.Error)
}

func TestCompleteWithError(t *testing.T) {
	m := NewManager()

	id := m.Begin("fs", "read_file")
	m.Start(id)
	m.Complete(id, "upstream timeout")

	rec, ok := m.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, rec.Status)
	assert.Equal(t, "upstream timeout", rec.Error)
}

func TestUnknownIDsAreIgnored(t *testing.T) {
	m := NewManager()
	m.Start("no-such-id")
	m.Complete("no-such-id", "")

	_, ok := m.Get("no-such-id")
	assert.False(t, ok)
}

func TestListNewestFirst(t *testing.T) {
	m := NewManager()

	now := time.Now()
	m.now = func() time.Time { return now }

	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, m.Begin("srv", fmt.Sprintf("tool%d", i)))
		now = now.Add(time.Second)
	}

	records := m.List(0)
	require.Len(t, records, 5)
	assert.Equal(t, ids[4], records[0].ID)
	assert.Equal(t, ids[0], records[4].ID)

	limited := m.List(2)
	require.Len(t, limited, 2)
	assert.Equal(t, ids[4], limited[0].ID)
}

func TestGetStatistics(t *testing.T) {
	m := NewManager()

	now := time.Now()
	m.now = func() time.Time { return now }

	good := m.Begin("github", "search")
	m.Start(good)
	now = now.Add(100 * time.Millisecond)
	m.Complete(good, "")

	bad := m.Begin("fs", "read_file")
	m.Start(bad)
	now = now.Add(300 * time.Millisecond)
	m.Complete(bad, "boom")

	m.Begin("fs", "write_file") // still pending

	stats := m.GetStatistics()
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[string(StatusCompleted)])
	assert.Equal(t, 1, stats.ByStatus[string(StatusFailed)])
	assert.Equal(t, 1, stats.ByStatus[string(StatusPending)])
	assert.Equal(t, 2, stats.ByServer["fs"])
	assert.Equal(t, 1, stats.ByServer["github"])
	assert.InDelta(t, 200.0, stats.AvgDurationMS, 0.01)
}

func TestEvictionAtCapacity(t *testing.T) {
	m := NewManager()

	first := m.Begin("srv", "tool")
	for i := 1; i < maxRecords+10; i++ {
		m.Begin("srv", "tool")
	}

	_, ok := m.Get(first)
	assert.False(t, ok, "oldest record should have been evicted")

	assert.LessOrEqual(t, m.GetStatistics().Total, maxRecords)
}

func TestRetentionExpiry(t *testing.T) {
	m := NewManager()

	now := time.Now()
	m.now = func() time.Time { return now }

	old := m.Begin("srv", "tool")

	now = now.Add(retentionPeriod + time.Minute)
	fresh := m.Begin("srv", "tool")

	_, ok := m.Get(old)
	assert.False(t, ok, "expired record should be pruned")
	_, ok = m.Get(fresh)
	assert.True(t, ok)
}
