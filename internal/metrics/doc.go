// Package metrics collects statistics about calls the gateway forwards to the
// upstream Oracle table.
//
// It uses a channel-based event pipeline to asynchronously collect:
//   - Call counts per HTTP method
//   - Outcomes per method (upstream status code or failure kind)
//   - Latencies with percentile calculations (P50, P95, P99)
//   - The result of the last upstream connectivity probe
//
// The collector runs in a dedicated goroutine and never blocks the request
// path: Emit drops events when the buffer is full.
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, baseURL, logger)
//	collector.Start(ctx)
//
//	collector.Emit(metrics.MetricEvent{
//		Type:     metrics.EventUpstreamCompleted,
//		Method:   http.MethodGet,
//		Outcome:  "200",
//		Duration: 150 * time.Millisecond,
//	})
//
//	snapshot := collector.Snapshot()
//
// The same events feed Prometheus counters and histograms registered on a
// private registry, served by PrometheusHandler. Pending events are drained
// when the context passed to Start is cancelled.
package metrics
