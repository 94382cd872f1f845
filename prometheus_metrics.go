package redsift

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics implements the Metrics interface using Prometheus
type PrometheusMetrics struct {
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	registry   *prometheus.Registry
}

// NewPrometheusMetrics creates a new Prometheus metrics instance
// If registry is nil, uses the default Prometheus registry
func NewPrometheusMetrics(registry *prometheus.Registry) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer.(*prometheus.Registry)
	}

	pm := &PrometheusMetrics{
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		registry:   registry,
	}

	pm.registerDefaultMetrics()
	return pm
}

// registerDefaultMetrics registers all standard redsift metrics
func (p *PrometheusMetrics) registerDefaultMetrics() {
	p.counters[MetricIndexUpdate] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "redsift",
			Subsystem: "index",
			Name:      "updates_total",
			Help:      "Total number of index entry updates",
		},
		[]string{"namespace", "column"},
	)

	p.counters[MetricIndexErrors] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "redsift",
			Subsystem: "index",
			Name:      "errors_total",
			Help:      "Total number of index maintenance errors",
		},
		[]string{"namespace", "column"},
	)

	p.counters[MetricSearchError] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "redsift",
			Subsystem: "search",
			Name:      "errors_total",
			Help:      "Total number of failed searches",
		},
		[]string{"namespace"},
	)

	p.counters[MetricAffixMatches] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "redsift",
			Subsystem: "affix",
			Name:      "matches_total",
			Help:      "Total number of members matched by affix scans",
		},
		[]string{"namespace"},
	)

	p.histograms[MetricSearchDuration] = promauto.With(p.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "redsift",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Search execution duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"namespace"},
	)

	p.histograms[MetricSearchResults] = promauto.With(p.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "redsift",
			Subsystem: "search",
			Name:      "results",
			Help:      "Number of identifiers returned by searches",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000, 10000},
		},
		[]string{"namespace"},
	)

	p.histograms[MetricEstimateDuration] = promauto.With(p.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "redsift",
			Subsystem: "planner",
			Name:      "estimate_duration_seconds",
			Help:      "Work estimation round-trip duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"namespace"},
	)

	p.gauges[MetricTempKeysCreated] = promauto.With(p.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "redsift",
			Subsystem: "search",
			Name:      "temp_keys",
			Help:      "Temporary accumulator keys created by the last search",
		},
		[]string{},
	)

	p.counters[MetricCachedResults] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "redsift",
			Subsystem: "search",
			Name:      "cached_results_total",
			Help:      "Total number of results retained under expiring keys",
		},
		[]string{"namespace"},
	)

	p.counters[MetricIndexRemove] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "redsift",
			Subsystem: "index",
			Name:      "removals_total",
			Help:      "Total number of index entry removals",
		},
		[]string{"namespace", "column"},
	)

	p.histograms[MetricCountDuration] = promauto.With(p.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "redsift",
			Subsystem: "search",
			Name:      "count_duration_seconds",
			Help:      "Count execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"namespace"},
	)

	p.histograms[MetricSaveDuration] = promauto.With(p.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "redsift",
			Subsystem: "model",
			Name:      "save_duration_seconds",
			Help:      "Entity save duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"namespace"},
	)

	p.histograms[MetricDeleteDuration] = promauto.With(p.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "redsift",
			Subsystem: "model",
			Name:      "delete_duration_seconds",
			Help:      "Entity delete duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"namespace"},
	)
}

// Increment increments a Prometheus counter
func (p *PrometheusMetrics) Increment(name string, tags ...string) {
	counter, ok := p.counters[name]
	if !ok {
		// Create dynamic counter if it doesn't exist
		counter = promauto.With(p.registry).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "redsift",
				Name:      sanitizeMetricName(name),
				Help:      "Dynamic counter: " + name,
			},
			p.extractLabels(tags),
		)
		p.counters[name] = counter
	}

	labels := p.extractLabelValues(tags)
	counter.With(labels).Inc()
}

// Gauge sets a Prometheus gauge value
func (p *PrometheusMetrics) Gauge(name string, value float64, tags ...string) {
	gauge, ok := p.gauges[name]
	if !ok {
		// Create dynamic gauge if it doesn't exist
		gauge = promauto.With(p.registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "redsift",
				Name:      sanitizeMetricName(name),
				Help:      "Dynamic gauge: " + name,
			},
			p.extractLabels(tags),
		)
		p.gauges[name] = gauge
	}

	labels := p.extractLabelValues(tags)
	gauge.With(labels).Set(value)
}

// Histogram records a value in a Prometheus histogram
func (p *PrometheusMetrics) Histogram(name string, value float64, tags ...string) {
	histogram, ok := p.histograms[name]
	if !ok {
		// Create dynamic histogram if it doesn't exist
		histogram = promauto.With(p.registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "redsift",
				Name:      sanitizeMetricName(name),
				Help:      "Dynamic histogram: " + name,
				Buckets:   prometheus.DefBuckets,
			},
			p.extractLabels(tags),
		)
		p.histograms[name] = histogram
	}

	labels := p.extractLabelValues(tags)
	histogram.With(labels).Observe(value)
}

// Timing records a duration in a Prometheus histogram
func (p *PrometheusMetrics) Timing(name string, duration time.Duration, tags ...string) {
	p.Histogram(name, duration.Seconds(), tags...)
}

// sanitizeMetricName makes a dotted metric name valid for Prometheus.
func sanitizeMetricName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}

// extractLabels extracts label names from tags (every even index)
func (p *PrometheusMetrics) extractLabels(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}

	labels := make([]string, 0, len(tags)/2)
	for i := 0; i < len(tags); i += 2 {
		labels = append(labels, tags[i])
	}
	return labels
}

// extractLabelValues creates a label map from tags (key-value pairs)
func (p *PrometheusMetrics) extractLabelValues(tags []string) prometheus.Labels {
	if len(tags) == 0 {
		return prometheus.Labels{}
	}

	labels := make(prometheus.Labels)
	for i := 0; i < len(tags)-1; i += 2 {
		labels[tags[i]] = tags[i+1]
	}
	return labels
}

// GetRegistry returns the underlying Prometheus registry
func (p *PrometheusMetrics) GetRegistry() *prometheus.Registry {
	return p.registry
}
