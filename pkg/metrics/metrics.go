package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Inventory metrics
	InventoryDatasetsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dynamo_inventory_datasets_total",
			Help: "Total number of datasets held in the inventory",
		},
	)

	InventorySitesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dynamo_inventory_sites_total",
			Help: "Total number of sites by status",
		},
		[]string{"status"},
	)

	InventoryBlockReplicasTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dynamo_inventory_block_replicas_total",
			Help: "Total number of block replicas held in the inventory",
		},
	)

	// Synchronizer metrics
	SyncCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dynamo_sync_cycles_total",
			Help: "Total number of synchronization cycles by outcome",
		},
		[]string{"outcome"},
	)

	SyncCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dynamo_sync_cycle_duration_seconds",
			Help:    "Time taken for a full synchronization cycle in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)

	SyncPhaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dynamo_sync_phase_duration_seconds",
			Help:    "Time taken per synchronizer phase in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"phase"},
	)

	SyncChunksFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dynamo_sync_chunks_failed_total",
			Help: "Total number of adapter query chunks that exhausted retries",
		},
		[]string{"adapter"},
	)

	// REST client metrics
	RESTRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dynamo_rest_requests_total",
			Help: "Total number of REST requests by resource and status",
		},
		[]string{"resource", "status"},
	)

	RESTRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dynamo_rest_request_duration_seconds",
			Help:    "REST request duration in seconds by resource",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"resource"},
	)

	// Store metrics
	StoreLoadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dynamo_store_load_duration_seconds",
			Help:    "Time taken to load the inventory from the persistent store",
			Buckets: prometheus.DefBuckets,
		},
	)

	StoreSaveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dynamo_store_save_duration_seconds",
			Help:    "Time taken to save the inventory to the persistent store",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Detox metrics
	DetoxDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dynamo_detox_decisions_total",
			Help: "Total number of Detox policy decisions by verdict",
		},
		[]string{"decision"},
	)

	DetoxDeletionBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dynamo_detox_deletion_bytes_total",
			Help: "Total bytes scheduled for deletion by site",
		},
		[]string{"site"},
	)

	// Enforcer / Dealer metrics
	ReplicationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dynamo_replication_requests_total",
			Help: "Total number of replication requests emitted by engine",
		},
		[]string{"engine"},
	)

	PolicyEvalDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dynamo_policy_eval_duration_seconds",
			Help:    "Time taken to evaluate a policy over a partition",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"policy"},
	)
)

func init() {
	prometheus.MustRegister(InventoryDatasetsTotal)
	prometheus.MustRegister(InventorySitesTotal)
	prometheus.MustRegister(InventoryBlockReplicasTotal)
	prometheus.MustRegister(SyncCyclesTotal)
	prometheus.MustRegister(SyncCycleDuration)
	prometheus.MustRegister(SyncPhaseDuration)
	prometheus.MustRegister(SyncChunksFailedTotal)
	prometheus.MustRegister(RESTRequestsTotal)
	prometheus.MustRegister(RESTRequestDuration)
	prometheus.MustRegister(StoreLoadDuration)
	prometheus.MustRegister(StoreSaveDuration)
	prometheus.MustRegister(DetoxDecisionsTotal)
	prometheus.MustRegister(DetoxDeletionBytesTotal)
	prometheus.MustRegister(ReplicationRequestsTotal)
	prometheus.MustRegister(PolicyEvalDuration)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
