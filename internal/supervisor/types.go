package supervisor

import (
	"errors"
	"fmt"
	"time"
)

// State describes where a supervised process is in its lifecycle.
//
// Transitions are monotonic within one lifecycle pass:
//
//	NotStarted -> Launching -> HealthChecking -> Running -> Crashed | Stopped
//
// A failed spawn or an exhausted health-check budget short-circuits to
// Crashed. Re-launching a crashed process is a new pass through Start.
type State string

const (
	StateNotStarted     State = "NotStarted"
	StateLaunching      State = "Launching"
	StateHealthChecking State = "HealthChecking"
	StateRunning        State = "Running"
	StateCrashed        State = "Crashed"
	StateStopped        State = "Stopped"
)

// EventType classifies process lifecycle events emitted by the supervisor.
type EventType int

const (
	// EventRunning is emitted once a process passed its health check.
	EventRunning EventType = iota
	// EventCrashed is emitted when a running process exits unexpectedly.
	EventCrashed
	// EventStopped is emitted after a deliberate Stop completed.
	EventStopped
)

// Event notifies consumers about a process state change. Crash events carry
// the exit error so the registry can record why the backend went away.
type Event struct {
	Name     string
	Type     EventType
	PID      int
	ExitCode int
	Err      error
}

// Spec declares a process to supervise.
type Spec struct {
	Name       string
	Command    string
	Args       []string
	Env        map[string]string
	WorkingDir string

	// HealthURL is probed until it answers with a status below 500.
	HealthURL string

	// ProbeInterval is the pause between health probes.
	ProbeInterval time.Duration

	// ProbeTimeout bounds a single probe request.
	ProbeTimeout time.Duration

	// StartupTimeout bounds the whole launch-and-health-check phase.
	StartupTimeout time.Duration

	// StopGrace is how long Stop waits after SIGTERM before SIGKILL.
	StopGrace time.Duration
}

// ErrHealthCheckTimeout is returned when a process never became healthy
// within its startup budget. The process has been terminated by then.
var ErrHealthCheckTimeout = errors.New("health check budget exhausted")

// SpawnError wraps a failure to launch a process at all (missing executable,
// permission denied, early exit before the first successful probe).
type SpawnError struct {
	Name string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawning %s: %v", e.Name, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }
