package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// ReadStatus is the outcome of a typed read from an embedded store.
type ReadStatus string

const (
	ReadStatusFound    ReadStatus = "found"
	ReadStatusNotFound ReadStatus = "not_found"
	ReadStatusBadValue ReadStatus = "bad_value" // Stored bytes did not decode into the requested type.
	ReadStatusError    ReadStatus = "error"
)

// KVStoreMetrics are the metrics of an embedded key-value store.
type KVStoreMetrics struct {
	// Name of the store, e.g. "delegation_local".
	store string

	reads  *prometheus.CounterVec
	writes *prometheus.CounterVec
}

// NewDefaultKVStoreMetrics creates Prometheus metric instrumentation for the
// embedded store named `store`.
func NewDefaultKVStoreMetrics(pkg string, store string) *KVStoreMetrics {
	return &KVStoreMetrics{
		store: store,
		reads: registerOnce(prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: fmt.Sprintf("%s_kvstore_reads", pkg),
				Help: "How many typed reads hit an embedded store, partitioned by store and status.",
			},
			[]string{"store", "status"},
		)),
		writes: registerOnce(prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: fmt.Sprintf("%s_kvstore_writes", pkg),
				Help: "How many writes an embedded store accepts or fails, partitioned by store, operation and status.",
			},
			[]string{"store", "operation", "status"},
		)),
	}
}

// Reads returns the read counter for `status`.
func (m *KVStoreMetrics) Reads(status ReadStatus) prometheus.Counter {
	return m.reads.WithLabelValues(m.store, string(status))
}

// Writes returns the write counter for `operation`, labelled by the outcome `err`.
func (m *KVStoreMetrics) Writes(operation string, err error) prometheus.Counter {
	return m.writes.WithLabelValues(m.store, operation, statusLabel(err))
}
