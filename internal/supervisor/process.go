package supervisor

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"mcphub/pkg/logging"
)

// Handle represents one supervised process. All state mutations go through
// its mutex; the exit watcher and Stop coordinate via the stopping flag so a
// deliberate termination is never reported as a crash.
type Handle struct {
	spec      Spec
	cmd       *exec.Cmd
	pid       int
	startedAt time.Time

	mu       sync.Mutex
	state    State
	stopping bool
	lastErr  error
	exitCode int

	// restartCount is 0 for the first launch of a name, set once by the
	// supervisor before the handle is visible to anyone else.
	restartCount int

	// done is closed once the process has exited and Wait returned.
	done    chan struct{}
	waitErr error
}

// PID returns the operating system process id.
func (h *Handle) PID() int { return h.pid }

// StartedAt returns when the process was launched.
func (h *Handle) StartedAt() time.Time { return h.startedAt }

// RestartCount reports how many earlier launches this name had.
func (h *Handle) RestartCount() int { return h.restartCount }

// State returns the current lifecycle state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// LastError returns the error recorded for the most recent failure, if any.
func (h *Handle) LastError() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}

// ExitCode returns the recorded exit code after a crash or stop.
func (h *Handle) ExitCode() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode
}

func (h *Handle) setState(s State) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

// launch spawns the process and wires up output forwarding plus the exit
// notification channel. The caller owns the state machine around it.
func launch(spec Spec) (*Handle, error) {
	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Env = os.Environ()
	for k, v := range spec.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	if spec.WorkingDir != "" {
		cmd.Dir = spec.WorkingDir
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe for %s: %w", spec.Name, err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		stdoutPipe.Close()
		return nil, fmt.Errorf("stderr pipe for %s: %w", spec.Name, err)
	}

	if err := cmd.Start(); err != nil {
		stdoutPipe.Close()
		stderrPipe.Close()
		return nil, err
	}

	h := &Handle{
		spec:      spec,
		cmd:       cmd,
		pid:       cmd.Process.Pid,
		startedAt: time.Now(),
		state:     StateLaunching,
		done:      make(chan struct{}),
	}

	go func() {
		scanner := bufio.NewScanner(stdoutPipe)
		for scanner.Scan() {
			logging.Debug("Supervisor", "[%s stdout] %s", spec.Name, scanner.Text())
		}
	}()
	go func() {
		scanner := bufio.NewScanner(stderrPipe)
		for scanner.Scan() {
			logging.Debug("Supervisor", "[%s stderr] %s", spec.Name, scanner.Text())
		}
	}()

	go func() {
		err := cmd.Wait()
		h.mu.Lock()
		h.waitErr = err
		h.exitCode = cmd.ProcessState.ExitCode()
		h.mu.Unlock()
		close(h.done)
	}()

	return h, nil
}

// terminate sends SIGTERM to the process group, waits up to grace, then
// SIGKILLs. It returns once the process has exited.
func (h *Handle) terminate(grace time.Duration) {
	// Negative pid addresses the whole process group set up at launch.
	_ = syscall.Kill(-h.pid, syscall.SIGTERM)

	select {
	case <-h.done:
		return
	case <-time.After(grace):
	}

	logging.Warn("Supervisor", "Process %s (pid %d) ignored SIGTERM, killing", h.spec.Name, h.pid)
	_ = syscall.Kill(-h.pid, syscall.SIGKILL)
	<-h.done
}

// markStopping flags the handle so the exit watcher treats the upcoming exit
// as deliberate. Returns false if the process already left Running state.
func (h *Handle) markStopping() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateStopped || h.state == StateCrashed {
		return false
	}
	h.stopping = true
	return true
}

func (h *Handle) isStopping() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopping
}
