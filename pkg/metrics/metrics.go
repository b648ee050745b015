// Package metrics provides Prometheus metrics for the clover service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "clover"

var (
	NegotiationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dsp",
			Name:      "negotiations_total",
			Help:      "Total number of contract negotiations by asset type and outcome",
		},
		[]string{"asset_type", "outcome"},
	)

	NegotiationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dsp",
			Name:      "negotiation_duration_seconds",
			Help:      "Duration from catalog request to authorized transfer in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"asset_type"},
	)

	PendingNegotiations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dsp",
			Name:      "pending_negotiations",
			Help:      "Number of negotiations currently in flight",
		},
	)

	EdrTokensReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "edr",
			Name:      "tokens_received_total",
			Help:      "Total number of EDR tokens received by source",
		},
		[]string{"source"},
	)

	ReconciliationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "runs_total",
			Help:      "Total number of reconciliation runs by asset type and outcome",
		},
		[]string{"asset_type", "outcome"},
	)

	ReconciliationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "duration_seconds",
			Help:      "Duration of reconciliation runs in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"asset_type"},
	)

	ReconciledRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "records_total",
			Help:      "Total number of records written by successful reconciliations",
		},
		[]string{"asset_type"},
	)

	ErpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "erp",
			Name:      "requests_total",
			Help:      "Total number of ERP adapter requests by asset type and status",
		},
		[]string{"asset_type", "status"},
	)

	ErpResponsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "erp",
			Name:      "responses_total",
			Help:      "Total number of ERP adapter answers by outcome",
		},
		[]string{"outcome"},
	)

	SchedulerTuples = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "tuples",
			Help:      "Number of ERP trigger tuples seen by the last scheduler run",
		},
	)

	SchedulerFired = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "fired_total",
			Help:      "Total number of ERP requests fired by the scheduler",
		},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http_client",
			Name:      "requests_total",
			Help:      "Total number of outbound HTTP requests",
		},
		[]string{"peer", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http_client",
			Name:      "request_duration_seconds",
			Help:      "Duration of outbound HTTP requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"peer"},
	)

	QueueJobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "jobs_processed_total",
			Help:      "Total number of jobs processed from the queue",
		},
		[]string{"type", "status"},
	)

	QueueJobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "jobs_in_flight",
			Help:      "Number of jobs currently being processed",
		},
	)

	DLQJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dlq",
			Name:      "jobs_total",
			Help:      "Total number of jobs sent to dead letter queue",
		},
		[]string{"type", "reason"},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "hits_total",
			Help:      "Total number of rejected partner requests",
		},
		[]string{"partner_bpnl"},
	)

	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)

	KafkaPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "kafka",
			Name:      "publish_duration_seconds",
			Help:      "Duration of Kafka publish operations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		},
	)
)

func RecordNegotiation(assetType, outcome string, durationSeconds float64) {
	NegotiationsTotal.WithLabelValues(assetType, outcome).Inc()
	NegotiationDuration.WithLabelValues(assetType).Observe(durationSeconds)
}

func RecordReconciliation(assetType, outcome string, records int, durationSeconds float64) {
	ReconciliationsTotal.WithLabelValues(assetType, outcome).Inc()
	ReconciliationDuration.WithLabelValues(assetType).Observe(durationSeconds)
	if records > 0 {
		ReconciledRecords.WithLabelValues(assetType).Add(float64(records))
	}
}

func RecordErpRequest(assetType, status string) {
	ErpRequestsTotal.WithLabelValues(assetType, status).Inc()
}

func RecordHTTPRequest(peer, statusCode string, durationSeconds float64) {
	HTTPRequestsTotal.WithLabelValues(peer, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(peer).Observe(durationSeconds)
}

func RecordQueueJob(jobType, status string) {
	QueueJobsProcessed.WithLabelValues(jobType, status).Inc()
}

func RecordDLQJob(jobType, reason string) {
	DLQJobsTotal.WithLabelValues(jobType, reason).Inc()
}

func RecordKafkaPublish(topic, status string, durationSeconds float64) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
	KafkaPublishDuration.Observe(durationSeconds)
}
