package supervisor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeStatusClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		healthy bool
	}{
		{name: "200 is healthy", status: http.StatusOK, healthy: true},
		{name: "404 is healthy", status: http.StatusNotFound, healthy: true},
		{name: "405 is healthy", status: http.StatusMethodNotAllowed, healthy: true},
		{name: "499 is healthy", status: 499, healthy: true},
		{name: "500 is unhealthy", status: http.StatusInternalServerError, healthy: false},
		{name: "503 is unhealthy", status: http.StatusServiceUnavailable, healthy: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			hc := newHealthChecker(Spec{HealthURL: srv.URL})
			err := hc.probe(context.Background())

			if tt.healthy {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestProbeConnectionRefused(t *testing.T) {
	hc := newHealthChecker(Spec{HealthURL: "http://127.0.0.1:1/unreachable"})
	assert.Error(t, hc.probe(context.Background()))
}

func TestWaitReturnsWhenProcessExits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	exited := make(chan struct{})
	close(exited)

	hc := newHealthChecker(Spec{HealthURL: srv.URL, ProbeInterval: 10 * time.Millisecond})
	err := hc.wait(context.Background(), time.Second, exited)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited before becoming healthy")
}

func TestWaitHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	hc := newHealthChecker(Spec{HealthURL: srv.URL, ProbeInterval: 10 * time.Millisecond})
	err := hc.wait(ctx, time.Minute, make(chan struct{}))
	require.ErrorIs(t, err, context.Canceled)
}
