package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_requests_latency_seconds",
			Help:    "Latency of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// Liquidação
	TransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_transactions_total",
			Help: "Transactions written per operation type and final status",
		},
		[]string{"operation", "status"},
	)
	SagaCompensations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_saga_compensations_total",
			Help: "Outbound transfers compensated (credit back) by cause",
		},
		[]string{"cause"}, // peer_error|peer_rejected|poll_rejected|expired|connection
	)
	SagaPollAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "settlement_saga_poll_attempts",
			Help:    "Status polls issued before a terminal answer or budget exhaustion",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		},
	)
	InboundTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_inbound_total",
			Help: "Inbound notifications by kind and outcome",
		},
		[]string{"kind", "outcome"}, // outcome: applied|duplicate|rejected|error
	)
	ReconciledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_reconciled_total",
			Help: "Pending transactions resolved by the reconciliation sweep",
		},
		[]string{"status"},
	)
	PeerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "settlement_switch_request_seconds",
			Help:    "Latency of switch calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "outcome"},
	)
	QueueRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_queue_retries_total",
			Help: "Queue deliveries scheduled for retry or dead-lettered",
		},
		[]string{"queue", "action"}, // action: retry|dead_letter|discard
	)

	initOnce sync.Once
)

// Handler para o endpoint /metrics
var Handler = promhttp.Handler

// Init registra os coletores no registry padrão (idempotente).
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestsTotal, RequestLatency,
			TransactionsTotal, SagaCompensations, SagaPollAttempts,
			InboundTotal, ReconciledTotal, PeerLatency, QueueRetries,
		)
	})
}
