package tracking

import (
	"time"
)

// RequestStatus is the lifecycle state of a tracked tool invocation.
type RequestStatus string

const (
	StatusPending    RequestStatus = "pending"
	StatusInProgress RequestStatus = "in_progress"
	StatusCompleted  RequestStatus = "completed"
	StatusFailed     RequestStatus = "failed"
)

// RequestRecord captures one tool invocation end to end.
type RequestRecord struct {
	ID          string        `json:"id"`
	Server      string        `json:"server"`
	Tool        string        `json:"tool"`
	Status      RequestStatus `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
	StartedAt   *time.Time    `json:"startedAt,omitempty"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
	DurationMS  int64         `json:"durationMs,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// Statistics is an aggregate view over the retained records.
type Statistics struct {
	Total         int            `json:"total"`
	ByStatus      map[string]int `json:"byStatus"`
	ByServer      map[string]int `json:"byServer"`
	AvgDurationMS float64        `json:"avgDurationMs"`
}
