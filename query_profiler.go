package redsift

import (
	"sort"
	"sync"
	"time"
)

// SearchProfile tracks execution details for a single search
type SearchProfile struct {
	Namespace   string
	StartTime   time.Time
	Duration    time.Duration
	Columns     []string // filter columns in planned (cheapest-first) order
	Estimates   []int64  // the planner's cost estimates, same order
	ResultCount int
	Cached      bool  // result retained under an expiring key
	Error       error // any error that occurred
}

// SearchProfiler collects and reports search performance. Attach one to a
// GeneralIndex via SetProfiler; profiling is off unless attached.
type SearchProfiler struct {
	mu            sync.RWMutex
	profiles      []SearchProfile
	slowThreshold time.Duration
	enabled       bool
}

// NewSearchProfiler creates a new search profiler
func NewSearchProfiler() *SearchProfiler {
	return &SearchProfiler{
		slowThreshold: 100 * time.Millisecond,
		enabled:       true,
	}
}

// SetSlowThreshold sets the duration threshold for slow searches
func (p *SearchProfiler) SetSlowThreshold(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.slowThreshold = d
}

// SetEnabled enables or disables profiling
func (p *SearchProfiler) SetEnabled(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = enabled
}

// start begins profiling one search; returns nil when disabled.
func (p *SearchProfiler) start(namespace string) *SearchProfile {
	p.mu.RLock()
	enabled := p.enabled
	p.mu.RUnlock()

	if !enabled {
		return nil
	}
	return &SearchProfile{Namespace: namespace, StartTime: time.Now()}
}

// record stores a completed profile.
func (p *SearchProfiler) record(profile *SearchProfile) {
	if profile == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.enabled {
		return
	}
	profile.Duration = time.Since(profile.StartTime)
	p.profiles = append(p.profiles, *profile)
}

// Profiles returns a copy of all recorded profiles
func (p *SearchProfiler) Profiles() []SearchProfile {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]SearchProfile, len(p.profiles))
	copy(result, p.profiles)
	return result
}

// SlowSearches returns searches that exceeded the slow threshold
func (p *SearchProfiler) SlowSearches() []SearchProfile {
	p.mu.RLock()
	defer p.mu.RUnlock()

	slow := make([]SearchProfile, 0)
	for _, profile := range p.profiles {
		if profile.Duration > p.slowThreshold {
			slow = append(slow, profile)
		}
	}
	return slow
}

// Clear discards all recorded profiles
func (p *SearchProfiler) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profiles = nil
}

// ProfileSummary is a statistical summary of recorded searches
type ProfileSummary struct {
	TotalSearches   int
	SlowSearches    int
	Errors          int
	AverageDuration time.Duration
	P50Duration     time.Duration
	P95Duration     time.Duration
	P99Duration     time.Duration
	ByNamespace     map[string]NamespaceStats
}

// NamespaceStats aggregates searches of one namespace
type NamespaceStats struct {
	Count           int
	TotalDuration   time.Duration
	AverageDuration time.Duration
	MaxDuration     time.Duration
	MinDuration     time.Duration
	TotalResults    int
	Errors          int
}

// Summary returns a statistical summary of all profiles
func (p *SearchProfiler) Summary() ProfileSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	summary := ProfileSummary{
		TotalSearches: len(p.profiles),
		ByNamespace:   make(map[string]NamespaceStats),
	}
	if len(p.profiles) == 0 {
		return summary
	}

	durations := make([]time.Duration, 0, len(p.profiles))
	var total time.Duration

	for _, profile := range p.profiles {
		durations = append(durations, profile.Duration)
		total += profile.Duration

		if profile.Duration > p.slowThreshold {
			summary.SlowSearches++
		}
		if profile.Error != nil {
			summary.Errors++
		}

		stats := summary.ByNamespace[profile.Namespace]
		stats.Count++
		stats.TotalDuration += profile.Duration
		stats.TotalResults += profile.ResultCount
		if profile.Error != nil {
			stats.Errors++
		}
		if profile.Duration > stats.MaxDuration {
			stats.MaxDuration = profile.Duration
		}
		if stats.MinDuration == 0 || profile.Duration < stats.MinDuration {
			stats.MinDuration = profile.Duration
		}
		summary.ByNamespace[profile.Namespace] = stats
	}

	for ns, stats := range summary.ByNamespace {
		stats.AverageDuration = stats.TotalDuration / time.Duration(stats.Count)
		summary.ByNamespace[ns] = stats
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	summary.AverageDuration = total / time.Duration(len(durations))
	summary.P50Duration = percentile(durations, 50)
	summary.P95Duration = percentile(durations, 95)
	summary.P99Duration = percentile(durations, 99)
	return summary
}

// percentile reads the pct-th percentile from an ascending-sorted slice.
func percentile(sorted []time.Duration, pct int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := len(sorted) * pct / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
