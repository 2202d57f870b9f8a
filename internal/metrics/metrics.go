package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsActive tracks currently registered browser sessions
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agent_sessions_active",
			Help: "Number of active browser sessions in the pool",
		},
	)

	// SessionsCreated tracks total sessions provisioned
	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agent_sessions_created_total",
			Help: "Total number of browser sessions created",
		},
	)

	// SessionsEvicted tracks sessions closed by the idle eviction loop
	SessionsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agent_sessions_evicted_total",
			Help: "Total number of browser sessions evicted for idleness",
		},
	)

	// AcquireDenied tracks capacity denials by reason
	AcquireDenied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_acquire_denied_total",
			Help: "Total number of session acquisitions denied",
		},
		[]string{"reason"},
	)

	// ErrorsClassified tracks classified faults by taxonomy value
	ErrorsClassified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_errors_classified_total",
			Help: "Total number of faults routed through the error classifier",
		},
		[]string{"severity", "category"},
	)

	// RetriesTotal tracks unit-of-work retries
	RetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agent_retries_total",
			Help: "Total number of unit-of-work retries",
		},
	)
)
