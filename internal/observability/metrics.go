package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting bridge metrics.
//
// The metrics system is built on Prometheus and tracks:
//   - Tool invocations routed through the dispatcher
//   - DAW command flow on the TCP channel, by tier
//   - OSC bridge requests and chunked-response reassembly
//   - Transport reconnects and catalog populates
//   - Error rates categorized by component and kind
type Metrics struct {
	// ToolExecutionCounter counts tool invocations.
	// Labels: tool, status (ok|error)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool
	// Buckets: 0.01s, 0.05s, 0.1s, 0.5s, 1s, 5s, 10s, 30s, 60s
	ToolExecutionDuration *prometheus.HistogramVec

	// DawCommandCounter counts commands sent on the TCP channel.
	// Labels: tier (0|1|2), status (success|error)
	DawCommandCounter *prometheus.CounterVec

	// DawCommandDuration measures TCP command round-trip time in seconds.
	// Labels: tier
	// Buckets: 0.005s, 0.01s, 0.05s, 0.1s, 0.5s, 1s, 5s, 15s, 60s
	DawCommandDuration *prometheus.HistogramVec

	// BridgeRequestCounter counts OSC bridge requests.
	// Labels: address, status (success|error|busy|timeout)
	BridgeRequestCounter *prometheus.CounterVec

	// BridgeChunksReassembled counts chunk envelopes consumed during
	// reassembly, including duplicates (labeled separately).
	// Labels: outcome (used|duplicate|stray)
	BridgeChunksReassembled *prometheus.CounterVec

	// ReconnectCounter counts transport reconnect attempts.
	// Labels: transport (tcp|osc), status (success|error)
	ReconnectCounter *prometheus.CounterVec

	// CatalogPopulateCounter counts catalog populate runs.
	// Labels: source (disk|daw), status (success|empty)
	CatalogPopulateCounter *prometheus.CounterVec

	// CatalogItems is a gauge tracking the current catalog size.
	CatalogItems prometheus.Gauge

	// RealtimeDatagrams counts fire-and-forget realtime sends.
	// Labels: status (sent|error)
	RealtimeDatagrams *prometheus.CounterVec

	// ErrorCounter tracks errors by component and kind.
	// Labels: component (pipeline|bridge|catalog|dispatcher), kind
	ErrorCounter *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
// This should be called once at application startup; metrics are
// registered with the default registry and served by the dashboard's
// /metrics endpoint.
func NewMetrics() *Metrics {
	return &Metrics{
		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livebridge_tool_executions_total",
				Help: "Total number of tool executions by tool name and status",
			},
			[]string{"tool", "status"},
		),

		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "livebridge_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool"},
		),

		DawCommandCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livebridge_daw_commands_total",
				Help: "Total number of DAW commands by tier and status",
			},
			[]string{"tier", "status"},
		),

		DawCommandDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "livebridge_daw_command_duration_seconds",
				Help:    "Round-trip duration of DAW commands in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
			},
			[]string{"tier"},
		),

		BridgeRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livebridge_bridge_requests_total",
				Help: "Total number of OSC bridge requests by address and status",
			},
			[]string{"address", "status"},
		),

		BridgeChunksReassembled: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livebridge_bridge_chunks_total",
				Help: "Chunk envelopes seen during reassembly by outcome",
			},
			[]string{"outcome"},
		),

		ReconnectCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livebridge_transport_reconnects_total",
				Help: "Transport reconnect attempts by transport and status",
			},
			[]string{"transport", "status"},
		),

		CatalogPopulateCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livebridge_catalog_populates_total",
				Help: "Catalog populate runs by source and status",
			},
			[]string{"source", "status"},
		),

		CatalogItems: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "livebridge_catalog_items",
				Help: "Current number of items in the browser catalog cache",
			},
		),

		RealtimeDatagrams: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livebridge_realtime_datagrams_total",
				Help: "Fire-and-forget realtime datagrams by status",
			},
			[]string{"status"},
		),

		ErrorCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livebridge_errors_total",
				Help: "Total number of errors by component and kind",
			},
			[]string{"component", "kind"},
		),
	}
}

// Nop returns a Metrics whose collectors are not registered anywhere.
// Tests use it to avoid duplicate registration on the default registry.
func Nop() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		ToolExecutionCounter:    f.NewCounterVec(prometheus.CounterOpts{Name: "t1", Help: "t"}, []string{"tool", "status"}),
		ToolExecutionDuration:   f.NewHistogramVec(prometheus.HistogramOpts{Name: "t2", Help: "t"}, []string{"tool"}),
		DawCommandCounter:       f.NewCounterVec(prometheus.CounterOpts{Name: "t3", Help: "t"}, []string{"tier", "status"}),
		DawCommandDuration:      f.NewHistogramVec(prometheus.HistogramOpts{Name: "t4", Help: "t"}, []string{"tier"}),
		BridgeRequestCounter:    f.NewCounterVec(prometheus.CounterOpts{Name: "t5", Help: "t"}, []string{"address", "status"}),
		BridgeChunksReassembled: f.NewCounterVec(prometheus.CounterOpts{Name: "t6", Help: "t"}, []string{"outcome"}),
		ReconnectCounter:        f.NewCounterVec(prometheus.CounterOpts{Name: "t7", Help: "t"}, []string{"transport", "status"}),
		CatalogPopulateCounter:  f.NewCounterVec(prometheus.CounterOpts{Name: "t8", Help: "t"}, []string{"source", "status"}),
		CatalogItems:            f.NewGauge(prometheus.GaugeOpts{Name: "t9", Help: "t"}),
		RealtimeDatagrams:       f.NewCounterVec(prometheus.CounterOpts{Name: "t10", Help: "t"}, []string{"status"}),
		ErrorCounter:            f.NewCounterVec(prometheus.CounterOpts{Name: "t11", Help: "t"}, []string{"component", "kind"}),
	}
}
