// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Optical path
	PathTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "odemis_path_transitions_total",
		Help: "Optical path transitions, partitioned by target mode and outcome.",
	}, []string{"mode", "status"})

	PathTransitionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odemis_path_transition_duration_seconds",
		Help:    "Time from issuing the first move to the last move completing.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"mode"})

	PathMoveFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "odemis_path_move_failures_total",
		Help: "Actuator moves that failed during a path transition.",
	}, []string{"role"})

	PathMovesAbandoned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "odemis_path_moves_abandoned_total",
		Help: "Actuator moves still running when the caller stopped waiting.",
	}, []string{"role"})

	PathComponentsMissing = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "odemis_path_components_missing_total",
		Help: "Components referenced by a mode but absent from the microscope.",
	}, []string{"role"})

	ModeGuesses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "odemis_path_mode_guesses_total",
		Help: "Mode inference requests, partitioned by inferred mode (\"none\" on failure).",
	}, []string{"mode"})

	CurrentModeInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "odemis_path_current_mode",
		Help: "Set to 1 for the mode the optical path is currently in.",
	}, []string{"mode"})

	// Remote actuators
	BridgeCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "odemis_bridge_commands_total",
		Help: "Move commands sent to remote actuators, partitioned by outcome.",
	}, []string{"role", "status"})

	BridgePublishRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odemis_bridge_publish_retries_total",
		Help: "Command publish attempts retried while the broker was unavailable.",
	})

	// HTTP API
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "odemis_http_requests_total",
		Help: "HTTP requests, partitioned by method and status code.",
	}, []string{"method", "code"})

	HTTPRateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odemis_http_rate_limited_total",
		Help: "HTTP requests rejected by the rate limiter.",
	})

	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "odemis_websocket_clients",
		Help: "Number of connected WebSocket clients.",
	})
)
