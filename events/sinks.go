// Package events implements the sinks that committed vault operations are
// reported to.
package events

import (
	"context"
	"errors"

	"github.com/obscura-labs/obscura/log"
	"github.com/obscura-labs/obscura/metrics"
	"github.com/obscura-labs/obscura/vault"
)

// Multi fans events out to several sinks. Every sink sees every event; the
// errors of all failing sinks are joined.
type Multi []vault.EventSink

func (m Multi) Emit(ctx context.Context, ev *vault.Event) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Emit(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes events to a logger.
type LogSink struct {
	logger *log.Logger
}

func NewLogSink(logger *log.Logger) *LogSink {
	return &LogSink{logger: logger.WithModule("events")}
}

func (s *LogSink) Emit(_ context.Context, ev *vault.Event) error {
	keyvals := []interface{}{
		"kind", ev.Kind,
		"actor", ev.Actor,
		"timestamp", ev.Timestamp,
	}
	if ev.ConcernsVault() {
		keyvals = append(keyvals,
			"vault", ev.Vault,
			"vault_id", ev.VaultID,
			"balance", ev.Balance,
			"nonce", ev.Nonce,
			"private", ev.Private,
		)
	}
	if ev.Amount != 0 {
		keyvals = append(keyvals, "amount", ev.Amount)
	}
	// Recipients of private transfers stay out of the logs.
	if !ev.Counterparty.IsZero() && !(ev.Kind == vault.EventPrivateTransfer && ev.Private) {
		keyvals = append(keyvals, "counterparty", ev.Counterparty)
	}
	s.logger.Info("vault event", keyvals...)
	return nil
}

// MetricsSink counts events in prometheus.
type MetricsSink struct {
	metrics metrics.VaultMetrics
}

func NewMetricsSink(pkg string) *MetricsSink {
	return &MetricsSink{metrics: metrics.NewDefaultVaultMetrics(pkg)}
}

func (s *MetricsSink) Emit(_ context.Context, ev *vault.Event) error {
	kind := string(ev.Kind)
	s.metrics.Operations(kind, ev.Private).Inc()
	if ev.Amount != 0 {
		s.metrics.Volume(kind).Add(float64(ev.Amount))
	}
	return nil
}
