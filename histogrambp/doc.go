// Package histogrambp provides the lock-free latency histogram that backs the
// service's /metrics endpoint, along with its plain text rendering.
//
// A Histogram is built once by the service's composition root and shared by
// reference between every request goroutine and the metrics handler:
//
//	hist := histogrambp.New(histogrambp.DefaultBuckets)
//	// in each request handler, exactly once:
//	hist.ObserveDuration(time.Since(start))
//	// in the metrics handler:
//	histogrambp.WriteText(w, histogrambp.DefaultMetricName, hist.Snapshot())
//
// Observe increments every bucket whose upper bound is >= the observed value,
// so the stored counts are already "less than or equal" counts.
// WriteText then renders them as a running total across ascending bounds.
// Both steps are kept as-is so the output stays comparable with other
// implementations of the same benchmark.
//
// Histogram also implements prometheus.Collector, reporting the stored counts
// as a regular Prometheus histogram for registries served through promhttp.
package histogrambp
