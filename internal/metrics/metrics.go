// Package metrics exposes Prometheus collectors for the sync engine.
// Collectors are registered with the default registry; a CLI run can dump
// them to a node_exporter textfile with WriteTextfile.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// SyncRecordsTotal counts records pulled per entity type.
	SyncRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgersync_records_synced_total",
			Help: "Total number of records pulled from the accounting service",
		},
		[]string{"entity_type"},
	)

	// SyncRecordsMalformed counts rows dropped because they could not be decoded.
	SyncRecordsMalformed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgersync_records_malformed_total",
			Help: "Rows returned by the accounting service that could not be decoded",
		},
		[]string{"entity_type"},
	)

	// SyncEntityOutcomes counts per-entity-type outcomes (success, failed, skipped, cancelled).
	SyncEntityOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgersync_entity_sync_total",
			Help: "Entity type sync attempts by outcome",
		},
		[]string{"entity_type", "outcome"},
	)

	// SyncDuration tracks the duration of whole sync runs.
	SyncDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ledgersync_sync_duration_seconds",
			Help:    "Duration of sync runs",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)

	// RateLimitWaitSeconds tracks how long callers queued for a permit.
	RateLimitWaitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ledgersync_ratelimit_wait_seconds",
			Help:    "Time spent waiting for a rate limiter permit",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		},
	)

	// RateLimitRejected counts permits refused because the queue was full or the wait too long.
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgersync_ratelimit_rejected_total",
			Help: "Rate limiter permits refused",
		},
		[]string{"reason"},
	)

	// CircuitOpen is 1 while the breaker for an identity is open.
	CircuitOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ledgersync_circuit_open",
			Help: "Whether the circuit breaker for a remote service identity is open",
		},
		[]string{"identity"},
	)

	// TokenRefreshTotal counts refresh attempts by result (success, transient, permanent).
	TokenRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgersync_token_refresh_total",
			Help: "OAuth token refresh attempts by result",
		},
		[]string{"result"},
	)
)

func init() {
	// Register metrics with the default registry
	prometheus.MustRegister(SyncRecordsTotal)
	prometheus.MustRegister(SyncRecordsMalformed)
	prometheus.MustRegister(SyncEntityOutcomes)
	prometheus.MustRegister(SyncDuration)
	prometheus.MustRegister(RateLimitWaitSeconds)
	prometheus.MustRegister(RateLimitRejected)
	prometheus.MustRegister(CircuitOpen)
	prometheus.MustRegister(TokenRefreshTotal)
}

// WriteTextfile writes the default registry in text exposition format to path.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
