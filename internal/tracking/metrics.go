package tracking

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	toolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcphub_tool_calls_total",
		Help: "Total tool calls routed to upstream servers",
	}, []string{"server", "status"})

	toolCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mcphub_tool_call_duration_seconds",
		Help:    "Tool call duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"server"})

	// UpstreamsConnected is maintained by the server lifecycle, not by the
	// tracking manager.
	UpstreamsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mcphub_upstreams_connected",
		Help: "Number of upstream servers in the ready state",
	})

	ToolsRegistered = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mcphub_tools_registered",
		Help: "Number of tools currently exposed in the merged catalog",
	})
)

func observeCall(server, status string, duration time.Duration) {
	toolCallsTotal.WithLabelValues(server, status).Inc()
	toolCallDuration.WithLabelValues(server).Observe(duration.Seconds())
}
