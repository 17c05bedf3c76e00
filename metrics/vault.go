package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// VaultMetrics track committed vault operations.
type VaultMetrics struct {
	operations *prometheus.CounterVec
	volume     *prometheus.CounterVec
}

// NewDefaultVaultMetrics creates Prometheus metric instrumentation for vault
// operations:
//
// 1. Counts of committed operations, partitioned by kind and privacy.
// 2. Native asset volume moved, partitioned by kind.
func NewDefaultVaultMetrics(pkg string) VaultMetrics {
	return VaultMetrics{
		operations: registerOnce(prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: fmt.Sprintf("%s_vault_operations", pkg),
				Help: "How many vault operations were committed, partitioned by kind and privacy.",
			},
			[]string{"kind", "private"},
		)),
		volume: registerOnce(prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: fmt.Sprintf("%s_vault_volume", pkg),
				Help: "Native asset moved by vault operations in base units, partitioned by kind.",
			},
			[]string{"kind"},
		)),
	}
}

// Operations returns the counter of committed operations of `kind`.
func (m *VaultMetrics) Operations(kind string, private bool) prometheus.Counter {
	return m.operations.WithLabelValues(kind, fmt.Sprintf("%t", private))
}

// Volume returns the counter of native asset moved by operations of `kind`.
func (m *VaultMetrics) Volume(kind string) prometheus.Counter {
	return m.volume.WithLabelValues(kind)
}
