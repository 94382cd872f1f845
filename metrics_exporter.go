package redsift

import (
	"context"
	"time"
)

// MetricsExporter periodically flushes search profiler summaries into a
// Metrics implementation (e.g. Prometheus), then clears the profiler so
// nothing is reported twice.
type MetricsExporter struct {
	profiler *SearchProfiler
	metrics  Metrics
	interval time.Duration
	stopCh   chan struct{}
}

// NewMetricsExporter creates a new metrics exporter
func NewMetricsExporter(profiler *SearchProfiler, metrics Metrics, interval time.Duration) *MetricsExporter {
	return &MetricsExporter{
		profiler: profiler,
		metrics:  metrics,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins exporting metrics periodically until Stop or ctx cancellation.
func (e *MetricsExporter) Start(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.export()
		case <-e.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop stops the exporter
func (e *MetricsExporter) Stop() {
	close(e.stopCh)
}

// ExportOnce exports metrics once (useful for testing or manual export)
func (e *MetricsExporter) ExportOnce() {
	e.export()
}

func (e *MetricsExporter) export() {
	profiles := e.profiler.Profiles()
	if len(profiles) == 0 {
		return
	}
	summary := e.profiler.Summary()

	for _, profile := range profiles {
		if profile.Error != nil {
			continue
		}
		e.metrics.Timing(MetricSearchDuration, profile.Duration, "namespace", profile.Namespace)
		e.metrics.Histogram(MetricSearchResults, float64(profile.ResultCount), "namespace", profile.Namespace)
	}

	e.metrics.Gauge("redsift.profiler.searches", float64(summary.TotalSearches))
	e.metrics.Gauge("redsift.profiler.slow_searches", float64(summary.SlowSearches))
	e.metrics.Gauge("redsift.profiler.errors", float64(summary.Errors))
	e.metrics.Timing("redsift.profiler.p95", summary.P95Duration)
	e.metrics.Timing("redsift.profiler.p99", summary.P99Duration)

	// avoid re-exporting on the next tick
	e.profiler.Clear()
}
