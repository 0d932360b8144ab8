package supervisor

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"mcphub/pkg/logging"
)

// healthChecker polls a local HTTP endpoint until it responds, the budget
// runs out, or the process exits underneath it.
type healthChecker struct {
	url           string
	probeInterval time.Duration
	probeTimeout  time.Duration
}

func newHealthChecker(spec Spec) *healthChecker {
	interval := spec.ProbeInterval
	if interval <= 0 {
		interval = time.Second
	}
	probeTimeout := spec.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = 2 * time.Second
	}
	return &healthChecker{
		url:           spec.HealthURL,
		probeInterval: interval,
		probeTimeout:  probeTimeout,
	}
}

// wait blocks until the endpoint is healthy. A closed exited channel means
// the process died first; that wins over the timeout so the caller can
// report the real cause.
func (hc *healthChecker) wait(ctx context.Context, budget time.Duration, exited <-chan struct{}) error {
	deadline := time.Now().Add(budget)
	ticker := time.NewTicker(hc.probeInterval)
	defer ticker.Stop()

	for {
		if err := hc.probe(ctx); err == nil {
			return nil
		} else {
			logging.Debug("Supervisor", "Health probe %s not ready: %v", hc.url, err)
		}

		if time.Now().After(deadline) {
			return ErrHealthCheckTimeout
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-exited:
			return fmt.Errorf("process exited before becoming healthy")
		case <-ticker.C:
		}
	}
}

// probe issues one GET against the health endpoint. Any response below 500
// counts as healthy; MCP servers commonly answer 4xx on a bare GET while
// still being up.
func (hc *healthChecker) probe(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, hc.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, hc.url, nil)
	if err != nil {
		return fmt.Errorf("building probe request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("health endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
