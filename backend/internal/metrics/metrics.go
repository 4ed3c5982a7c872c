package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"thinkflow/backend/internal/state"
)

var (
	// GraphMutations counts recorded graph mutations by history action
	GraphMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "thinkflow_graph_mutations_total",
		Help: "Total number of recorded graph mutations",
	}, []string{"action"})

	// HistoryOperations counts undo/redo requests and whether they applied
	HistoryOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "thinkflow_history_operations_total",
		Help: "Total number of undo/redo operations",
	}, []string{"operation", "applied"})

	// ChatRequests counts chat turns by mode (complete, stream) and outcome
	ChatRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "thinkflow_chat_requests_total",
		Help: "Total number of chat turns",
	}, []string{"mode", "outcome"})

	// ChatDuration tracks LLM round-trip latency
	ChatDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "thinkflow_chat_duration_seconds",
		Help:    "Duration of chat turns including the LLM call",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"mode"})

	// ContextMessages tracks how many messages context resolution injects
	ContextMessages = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "thinkflow_context_messages",
		Help:    "Number of messages produced by context resolution",
		Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
	})

	// PersistenceOperations counts backend calls
	PersistenceOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "thinkflow_persistence_operations_total",
		Help: "Total number of persistence backend operations",
	}, []string{"backend", "operation", "outcome"})
)

// ObserveMutation is a graph.Store mutation hook
func ObserveMutation(action state.HistoryAction) {
	GraphMutations.WithLabelValues(string(action)).Inc()
}

// ObserveHistory records an undo or redo attempt
func ObserveHistory(operation string, applied bool) {
	HistoryOperations.WithLabelValues(operation, boolLabel(applied)).Inc()
}

// ObserveChat records a finished chat turn
func ObserveChat(mode string, started time.Time, err error) {
	ChatRequests.WithLabelValues(mode, outcome(err)).Inc()
	ChatDuration.WithLabelValues(mode).Observe(time.Since(started).Seconds())
}

// ObservePersistence records a backend call
func ObservePersistence(backend, operation string, err error) {
	PersistenceOperations.WithLabelValues(backend, operation, outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
