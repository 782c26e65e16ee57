package metrics

import (
	"context"
	"sync"

	"share-worker/internal/contextkeys"
	"share-worker/internal/core/port"
)

// LogMetricsAdapter keeps process-lifetime counters and emits one structured
// "metrics" log line per published batch, for log-based metric extraction.
type LogMetricsAdapter struct {
	mu        sync.Mutex
	totals    port.Counters
	namespace string
	service   string
	logger    port.LoggerPort
}

func NewLogMetricsAdapter(namespace, service string, logger port.LoggerPort) *LogMetricsAdapter {
	return &LogMetricsAdapter{
		totals:    make(port.Counters),
		namespace: namespace,
		service:   service,
		logger:    logger,
	}
}

func (a *LogMetricsAdapter) Publish(ctx context.Context, counters port.Counters) {
	a.mu.Lock()
	for name, value := range counters {
		a.totals[name] += value
	}
	a.mu.Unlock()

	logger := a.logger
	if logger == nil {
		logger = contextkeys.LoggerFromContext(ctx)
	}
	fields := port.Fields{
		"metric_namespace": a.namespace,
		"service":          a.service,
		"metrics":          copyCounters(counters),
	}
	if traceID := contextkeys.TraceIDFromContext(ctx); traceID != "" {
		fields["trace_id"] = traceID
	}
	logger.Info("metrics", fields)
}

// Snapshot returns a copy of the lifetime totals.
func (a *LogMetricsAdapter) Snapshot() port.Counters {
	a.mu.Lock()
	defer a.mu.Unlock()
	return copyCounters(a.totals)
}

func copyCounters(c port.Counters) port.Counters {
	out := make(port.Counters, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}
