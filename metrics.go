package redsift

import "time"

// Metrics provides observability for redsift operations
type Metrics interface {
	// Increment increases a counter by 1
	Increment(name string, tags ...string)

	// Gauge sets an absolute value
	Gauge(name string, value float64, tags ...string)

	// Histogram records a value distribution (latency, size, etc)
	Histogram(name string, value float64, tags ...string)

	// Timing records a duration
	Timing(name string, duration time.Duration, tags ...string)
}

// NoOpMetrics is a metrics collector that does nothing
type NoOpMetrics struct{}

func (m *NoOpMetrics) Increment(name string, tags ...string)                      {}
func (m *NoOpMetrics) Gauge(name string, value float64, tags ...string)           {}
func (m *NoOpMetrics) Histogram(name string, value float64, tags ...string)       {}
func (m *NoOpMetrics) Timing(name string, duration time.Duration, tags ...string) {}

// InMemoryMetrics stores metrics in memory for testing
type InMemoryMetrics struct {
	Counters   map[string]int
	Gauges     map[string]float64
	Histograms map[string][]float64
	Timings    map[string][]time.Duration
}

func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		Counters:   make(map[string]int),
		Gauges:     make(map[string]float64),
		Histograms: make(map[string][]float64),
		Timings:    make(map[string][]time.Duration),
	}
}

func (m *InMemoryMetrics) Increment(name string, tags ...string) {
	m.Counters[name]++
}

func (m *InMemoryMetrics) Gauge(name string, value float64, tags ...string) {
	m.Gauges[name] = value
}

func (m *InMemoryMetrics) Histogram(name string, value float64, tags ...string) {
	m.Histograms[name] = append(m.Histograms[name], value)
}

func (m *InMemoryMetrics) Timing(name string, duration time.Duration, tags ...string) {
	m.Timings[name] = append(m.Timings[name], duration)
}

// Common metric names
const (
	MetricSearchDuration   = "redsift.search.duration"
	MetricSearchResults    = "redsift.search.results"
	MetricSearchError      = "redsift.search.error"
	MetricCountDuration    = "redsift.count.duration"
	MetricEstimateDuration = "redsift.estimate.duration"
	MetricIndexUpdate      = "redsift.index.update"
	MetricIndexRemove      = "redsift.index.remove"
	MetricIndexErrors      = "redsift.index.errors"
	MetricAffixScans       = "redsift.affix.scans"
	MetricAffixMatches     = "redsift.affix.matches"
	MetricSaveDuration     = "redsift.save.duration"
	MetricDeleteDuration   = "redsift.delete.duration"
	MetricCachedResults    = "redsift.search.cached_results"
	MetricTempKeysCreated  = "redsift.search.temp_keys"
)
