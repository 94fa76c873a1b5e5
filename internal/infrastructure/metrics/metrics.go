package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gateway metrics
var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcp",
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Request duration histogram
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mcp",
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"method", "endpoint", "status"},
	)

	// Tool invocations
	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcp",
			Subsystem: "gateway",
			Name:      "tool_calls_total",
			Help:      "Total tool invocations by outcome",
		},
		[]string{"tool", "provider", "status"},
	)

	ToolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mcp",
			Subsystem: "gateway",
			Name:      "tool_duration_seconds",
			Help:      "Tool execution duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"tool"},
	)

	// Provider errors
	ProviderErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcp",
			Subsystem: "gateway",
			Name:      "provider_errors_total",
			Help:      "Total model provider call failures",
		},
		[]string{"provider", "error_type"},
	)

	// Model dispatch duration
	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mcp",
			Subsystem: "gateway",
			Name:      "dispatch_duration_seconds",
			Help:      "Model dispatch round duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"provider", "model"},
	)

	// Store fallback events
	StoreFallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcp",
			Subsystem: "gateway",
			Name:      "store_fallback_total",
			Help:      "Primary store failures that fell back to the in-memory store",
		},
		[]string{"operation"},
	)

	// Store health gauge
	StoreHealth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mcp",
			Subsystem: "gateway",
			Name:      "store_health",
			Help:      "Primary store health (1=healthy, 0=degraded)",
		},
	)

	// State flushes
	StateFlushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcp",
			Subsystem: "gateway",
			Name:      "state_flushes_total",
			Help:      "State manager flush attempts by outcome",
		},
		[]string{"status"},
	)
)

// RecordRequest records an HTTP request with its duration
func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint, status).Observe(durationSec)
}

// RecordToolCall records a tool invocation outcome
func RecordToolCall(toolName, provider, status string, durationSec float64) {
	ToolCallsTotal.WithLabelValues(toolName, provider, status).Inc()
	ToolDuration.WithLabelValues(toolName).Observe(durationSec)
}

// RecordProviderError records a model provider error
func RecordProviderError(provider, errorType string) {
	ProviderErrorsTotal.WithLabelValues(provider, errorType).Inc()
}

// RecordDispatch records the duration of one model dispatch round
func RecordDispatch(provider, model string, durationSec float64) {
	DispatchDuration.WithLabelValues(provider, model).Observe(durationSec)
}

// RecordStoreFallback records a primary store failure handled by fallback
func RecordStoreFallback(operation string) {
	StoreFallbackTotal.WithLabelValues(operation).Inc()
}

// SetStoreHealth sets the primary store health gauge
func SetStoreHealth(healthy bool) {
	val := 0.0
	if healthy {
		val = 1.0
	}
	StoreHealth.Set(val)
}

// RecordStateFlush records a state manager flush attempt
func RecordStateFlush(status string) {
	StateFlushesTotal.WithLabelValues(status).Inc()
}
