/*
Package metrics provides Prometheus metrics collection and exposition for
Dynamo.

Metrics are defined as package-level variables registered at init and
updated from the components that own the underlying counters: the
synchronizer (cycle/phase duration, chunk failures), the REST client
(request count/duration by resource), the persistent store (load/save
duration), and the policy engines (decisions, replication requests emitted).

# Usage

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SyncCycleDuration)

	metrics.DetoxDecisionsTotal.WithLabelValues("delete").Inc()

# Exposition

metrics.Handler() returns the standard promhttp handler; cmd/dynamo
serves it when --metrics-addr is set.
*/
package metrics
