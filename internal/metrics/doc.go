// Package metrics provides real-time metrics collection for the
// upstream selector.
//
// It uses a channel-based event pipeline to asynchronously collect:
//   - Probe counts and outcomes per upstream
//   - Probe round-trip times with percentile calculations (P50, P95, P99)
//   - Cache hit and selection frequencies
//   - HTTP status code distribution
//   - Health status transitions
//
// The collector runs in a dedicated goroutine and processes events
// without blocking the probing path. Events are sent via a buffered
// channel with non-blocking semantics; a full buffer drops events
// rather than stalling callers.
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, prometheus.DefaultRegisterer, logger)
//	collector.Start(ctx)
//
//	collector.Emit(metrics.Event{
//		Type:     metrics.EventProbeCompleted,
//		Upstream: "server1",
//		Duration: 150 * time.Millisecond,
//		Status:   health.StatusHealthy,
//	})
//
//	snapshot := collector.Snapshot()
//
// Every counter is mirrored to the Prometheus registry handed to
// NewCollector, so the same events feed both /stats and /metrics.
// Graceful shutdown drains the channel to prevent data loss.
package metrics
