package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MandatesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ap2_mandates_created_total",
		Help: "Total number of mandates issued, labelled by mandate type.",
	}, []string{"mandate_type"})

	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ap2_mandate_transitions_total",
		Help: "Lifecycle operations attempted, labelled by operation and result.",
	}, []string{"op", "result"})

	PaymentsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ap2_payments_executed_total",
		Help: "Settlement attempts, labelled by rail and gateway status.",
	}, []string{"rail", "status"})

	RiskChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ap2_risk_checks_total",
		Help: "Risk screens performed, labelled by resulting level.",
	}, []string{"risk_level"})

	AuditEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ap2_audit_events_total",
		Help: "Audit events appended, labelled by event kind.",
	}, []string{"event"})

	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ap2_sessions_active",
		Help: "Number of sessions currently held in memory.",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ap2_http_request_duration_ms",
		Help:    "HTTP request latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	}, []string{"method", "code"})
)
