// Package supervisor owns the lifecycle of locally spawned upstream
// processes: launch, health check, crash detection, and bounded-grace
// shutdown. State changes are published on an event channel so the registry
// and catalog can react without sharing mutable flags with the watchers.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mcphub/pkg/logging"
)

const eventBufferSize = 128

// Supervisor manages a set of supervised processes keyed by upstream name.
// Each process gets its own health-check goroutine and exit watcher; a
// failure of one never affects supervision of the others.
type Supervisor struct {
	mu     sync.RWMutex
	procs  map[string]*Handle
	events chan Event

	// launches counts Start calls per name; anything past the first is a
	// restart (explicit reconnects only, nothing restarts automatically).
	launches map[string]int
}

// New creates an empty supervisor.
func New() *Supervisor {
	return &Supervisor{
		procs:    make(map[string]*Handle),
		events:   make(chan Event, eventBufferSize),
		launches: make(map[string]int),
	}
}

// Events returns the channel on which lifecycle events are delivered. The
// channel is never closed; consumers stop by dropping their receive loop.
func (s *Supervisor) Events() <-chan Event {
	return s.events
}

// Start launches the process described by spec and blocks until it is
// healthy or failed. On success the process is in StateRunning and an exit
// watcher keeps running until the process terminates.
func (s *Supervisor) Start(ctx context.Context, spec Spec) (*Handle, error) {
	s.mu.Lock()
	if existing, ok := s.procs[spec.Name]; ok {
		if st := existing.State(); st == StateLaunching || st == StateHealthChecking || st == StateRunning {
			s.mu.Unlock()
			return nil, fmt.Errorf("process %s is already supervised (state %s)", spec.Name, st)
		}
	}
	s.mu.Unlock()

	logging.Info("Supervisor", "Starting process %s: %s %v", spec.Name, spec.Command, spec.Args)

	handle, err := launch(spec)
	if err != nil {
		return nil, &SpawnError{Name: spec.Name, Err: err}
	}

	s.mu.Lock()
	s.procs[spec.Name] = handle
	handle.restartCount = s.launches[spec.Name]
	s.launches[spec.Name]++
	s.mu.Unlock()

	if handle.restartCount > 0 {
		logging.Info("Supervisor", "Process %s restarted (pid %d, restart %d)", spec.Name, handle.pid, handle.restartCount)
	} else {
		logging.Info("Supervisor", "Process %s started with pid %d", spec.Name, handle.pid)
	}

	handle.setState(StateHealthChecking)

	budget := spec.StartupTimeout
	if budget <= 0 {
		budget = 30 * time.Second
	}

	if err := newHealthChecker(spec).wait(ctx, budget, handle.done); err != nil {
		handle.setState(StateCrashed)
		handle.mu.Lock()
		handle.lastErr = err
		handle.mu.Unlock()

		// Terminate whatever is left; a half-started process must not
		// linger after we reported failure.
		select {
		case <-handle.done:
		default:
			handle.terminate(graceOf(spec))
		}

		if err == ErrHealthCheckTimeout {
			logging.Error("Supervisor", err, "Process %s never became healthy within %s", spec.Name, budget)
			return nil, ErrHealthCheckTimeout
		}
		return nil, &SpawnError{Name: spec.Name, Err: err}
	}

	handle.setState(StateRunning)
	logging.Info("Supervisor", "Process %s is healthy at %s", spec.Name, spec.HealthURL)

	s.emit(Event{Name: spec.Name, Type: EventRunning, PID: handle.pid})

	go s.watchExit(handle)

	return handle, nil
}

// watchExit waits for the process to terminate and classifies the exit.
// Deliberate stops are reported by Stop itself; everything else is a crash.
func (s *Supervisor) watchExit(h *Handle) {
	<-h.done

	if h.isStopping() {
		return
	}

	h.mu.Lock()
	h.state = StateCrashed
	h.lastErr = h.waitErr
	exitCode := h.exitCode
	h.mu.Unlock()

	logging.Warn("Supervisor", "Process %s (pid %d) exited unexpectedly with code %d", h.spec.Name, h.pid, exitCode)

	s.emit(Event{
		Name:     h.spec.Name,
		Type:     EventCrashed,
		PID:      h.pid,
		ExitCode: exitCode,
		Err:      h.waitErr,
	})
}

// Stop terminates the named process: SIGTERM, bounded grace, then SIGKILL.
// The process ends in StateStopped regardless of how it went down. Stopping
// an unknown or already-finished process is not an error.
func (s *Supervisor) Stop(ctx context.Context, name string) error {
	s.mu.Lock()
	handle, ok := s.procs[name]
	if ok {
		delete(s.procs, name)
	}
	s.mu.Unlock()

	if !ok {
		return nil
	}

	if !handle.markStopping() {
		// Already crashed or stopped; nothing left to terminate.
		return nil
	}

	logging.Info("Supervisor", "Stopping process %s (pid %d)", name, handle.pid)
	handle.terminate(graceOf(handle.spec))
	handle.setState(StateStopped)

	s.emit(Event{Name: name, Type: EventStopped, PID: handle.pid})
	return nil
}

// StopAll terminates every supervised process in parallel, each bounded by
// its own grace period. Used during shutdown.
func (s *Supervisor) StopAll(ctx context.Context) {
	s.mu.RLock()
	names := make([]string, 0, len(s.procs))
	for name := range s.procs {
		names = append(names, name)
	}
	s.mu.RUnlock()

	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			if err := s.Stop(ctx, name); err != nil {
				logging.Warn("Supervisor", "Error stopping %s: %v", name, err)
			}
		}(name)
	}
	wg.Wait()
}

// Status reports the state of the named process.
func (s *Supervisor) Status(name string) (State, bool) {
	s.mu.RLock()
	handle, ok := s.procs[name]
	s.mu.RUnlock()

	if !ok {
		return StateNotStarted, false
	}
	return handle.State(), true
}

// Get returns the handle for the named process.
func (s *Supervisor) Get(name string) (*Handle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	handle, ok := s.procs[name]
	return handle, ok
}

func (s *Supervisor) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		logging.Warn("Supervisor", "Event buffer full, dropping %v for %s", ev.Type, ev.Name)
	}
}

func graceOf(spec Spec) time.Duration {
	if spec.StopGrace > 0 {
		return spec.StopGrace
	}
	return 5 * time.Second
}
