// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ResyncTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seenarr_resync_total",
		Help: "Full resyncs by result (ok, skipped, failed, expired).",
	}, []string{"result"})

	ResyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "seenarr_resync_duration_seconds",
		Help:    "Duration of completed resyncs.",
		Buckets: prometheus.DefBuckets,
	})

	SweepItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seenarr_sweep_items_total",
		Help: "Shows evaluated by the migration sweep by outcome.",
	}, []string{"outcome"})

	SagaCompensations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seenarr_saga_compensations_total",
		Help: "Compensating remote calls issued after a partial saga failure.",
	}, []string{"result"})

	IntentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seenarr_intents_total",
		Help: "Remote intents drained by result.",
	}, []string{"result"})

	IntentsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "seenarr_intents_pending",
		Help: "Remote intents waiting to be mirrored.",
	})

	LibraryItems = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "seenarr_library_items",
		Help: "Items per local list.",
	}, []string{"list"})

	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "seenarr_circuit_breaker_state",
		Help: "Circuit breaker state (0 closed, 1 half-open, 2 open).",
	}, []string{"name"})

	CircuitBreakerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seenarr_circuit_breaker_requests_total",
		Help: "Requests through the circuit breaker by result.",
	}, []string{"name", "result"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seenarr_http_requests_total",
		Help: "HTTP requests served by route pattern and status code.",
	}, []string{"route", "code"})

	BackupTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seenarr_backup_total",
		Help: "Backup exports by result.",
	}, []string{"result"})
)

// Result labels
const (
	ResultOK       = "ok"
	ResultFailed   = "failed"
	ResultSkipped  = "skipped"
	ResultExpired  = "expired"
	ResultRejected = "rejected"
	ResultDropped  = "dropped"
)
