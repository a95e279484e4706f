// Package metrics declares the Prometheus metrics for the game-session server.
//
// Naming convention: namespace_subsystem_name
//   - namespace: banter_bus (application-level grouping)
//   - subsystem: websocket, room, dispatch, circuit_breaker, rate_limit, redis, store, player (feature-level grouping)
//   - name: specific metric (connections_active, events_total, etc.)
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveWebSocketConnections tracks the current number of open connections.
	ActiveWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "banter_bus",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// ActiveRooms tracks the current number of in-memory room handles.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "banter_bus",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active rooms held by the transport hub",
	})

	// RoomParticipants tracks the number of connected sockets per room.
	RoomParticipants = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "banter_bus",
		Subsystem: "room",
		Name:      "participants_count",
		Help:      "Number of connected sockets in each room",
	}, []string{"room_id"})

	// EventsTotal tracks the total number of inbound events processed.
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "banter_bus",
		Subsystem: "dispatch",
		Name:      "events_total",
		Help:      "Total inbound events processed by the dispatcher",
	}, []string{"event", "status"})

	// EventProcessingDuration tracks handler latency.
	EventProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "banter_bus",
		Subsystem: "dispatch",
		Name:      "event_processing_seconds",
		Help:      "Time spent processing an inbound event end to end",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"event"})

	// CircuitBreakerState tracks circuit breaker state: 0 closed, 1 open, 2 half-open.
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "banter_bus",
		Subsystem: "circuit_breaker",
		Name:      "state",
		Help:      "Current state of the circuit breaker (0: Closed, 1: Open, 2: Half-Open)",
	}, []string{"service"})

	// CircuitBreakerFailures tracks requests rejected by a tripped breaker.
	CircuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "banter_bus",
		Subsystem: "circuit_breaker",
		Name:      "failures_total",
		Help:      "Total requests rejected by the circuit breaker",
	}, []string{"service"})

	// RateLimitExceeded tracks requests rejected by the rate limiter.
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "banter_bus",
		Subsystem: "rate_limit",
		Name:      "exceeded_total",
		Help:      "Total number of requests that exceeded the rate limit",
	}, []string{"endpoint", "reason"})

	// RateLimitRequests tracks requests checked against the rate limiter.
	RateLimitRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "banter_bus",
		Subsystem: "rate_limit",
		Name:      "requests_total",
		Help:      "Total number of requests checked against the rate limiter",
	}, []string{"endpoint"})

	// RedisOperationsTotal tracks the total number of Redis operations.
	RedisOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "banter_bus",
		Subsystem: "redis",
		Name:      "operations_total",
		Help:      "Total number of Redis operations",
	}, []string{"operation", "status"})

	// RedisOperationDuration tracks the duration of Redis operations.
	RedisOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "banter_bus",
		Subsystem: "redis",
		Name:      "operation_duration_seconds",
		Help:      "Duration of Redis operations",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	// StoreOperationsTotal tracks document-store operations by repository and status.
	StoreOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "banter_bus",
		Subsystem: "store",
		Name:      "operations_total",
		Help:      "Total number of document store operations",
	}, []string{"repo", "operation", "status"})

	// PlayersDisconnectedSweep tracks players removed by the admin sweep.
	PlayersDisconnectedSweep = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "banter_bus",
		Subsystem: "player",
		Name:      "disconnect_sweep_removed_total",
		Help:      "Total players removed from rooms by the disconnect sweep",
	})
)

func IncConnection() {
	ActiveWebSocketConnections.Inc()
}

func DecConnection() {
	ActiveWebSocketConnections.Dec()
}
