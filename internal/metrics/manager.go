package metrics

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Manager holds in-memory metrics keyed by "topic/function" paths.
// Safe for concurrent use.
type Manager struct {
	mu          sync.Mutex
	timings     map[string]*TimingMetric
	successFail map[string]*SuccessFailMetric
	outcomes    map[string]*OutcomeMetric
}

// NewManager creates an empty metrics manager
func NewManager() *Manager {
	return &Manager{
		timings:     make(map[string]*TimingMetric),
		successFail: make(map[string]*SuccessFailMetric),
		outcomes:    make(map[string]*OutcomeMetric),
	}
}

// buildPath creates a normalized path from topic and function
func buildPath(topic, function string) string {
	if function == "" {
		return topic
	}
	return fmt.Sprintf("%s/%s", topic, function)
}

// RecordDuration records a duration sample
func (m *Manager) RecordDuration(topic, function string, d time.Duration) {
	if m == nil {
		return
	}
	path := buildPath(topic, function)

	m.mu.Lock()
	metric, ok := m.timings[path]
	if !ok {
		metric = &TimingMetric{Min: d}
		m.timings[path] = metric
	}
	m.mu.Unlock()

	metric.mu.Lock()
	defer metric.mu.Unlock()

	metric.Count++
	metric.Total += d
	metric.Last = d
	if d < metric.Min {
		metric.Min = d
	}
	if d > metric.Max {
		metric.Max = d
	}
	if len(metric.samples) < maxSamples {
		metric.samples = append(metric.samples, d)
	} else {
		metric.samples[metric.sampleIdx] = d
		metric.sampleIdx = (metric.sampleIdx + 1) % maxSamples
	}
}

func (m *Manager) successFailFor(path string) *SuccessFailMetric {
	m.mu.Lock()
	defer m.mu.Unlock()
	metric, ok := m.successFail[path]
	if !ok {
		metric = &SuccessFailMetric{FailureReasons: make(map[string]int64)}
		m.successFail[path] = metric
	}
	return metric
}

// RecordSuccess records a successful operation
func (m *Manager) RecordSuccess(topic, function string) {
	if m == nil {
		return
	}
	metric := m.successFailFor(buildPath(topic, function))

	metric.mu.Lock()
	defer metric.mu.Unlock()
	metric.Success++
	metric.LastSuccess = time.Now()
}

// RecordFailure records a failed operation with an optional reason
func (m *Manager) RecordFailure(topic, function, reason string) {
	if m == nil {
		return
	}
	metric := m.successFailFor(buildPath(topic, function))

	metric.mu.Lock()
	defer metric.mu.Unlock()
	metric.Failures++
	metric.LastFailure = time.Now()
	if reason != "" {
		metric.FailureReasons[reason]++
	}
}

// RecordOutcome records a specific outcome
func (m *Manager) RecordOutcome(topic, function, outcome string) {
	if m == nil {
		return
	}
	path := buildPath(topic, function)

	m.mu.Lock()
	metric, ok := m.outcomes[path]
	if !ok {
		metric = &OutcomeMetric{Outcomes: make(map[string]int64)}
		m.outcomes[path] = metric
	}
	m.mu.Unlock()

	metric.mu.Lock()
	defer metric.mu.Unlock()
	metric.Outcomes[outcome]++
	metric.Total++
	metric.LastOutcome = outcome
}

// Snapshot returns every metric, sorted by path then type.
func (m *Manager) Snapshot() []Snapshot {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Snapshot
	for path, metric := range m.timings {
		metric.mu.Lock()
		avg := float64(0)
		if metric.Count > 0 {
			avg = ms(metric.Total) / float64(metric.Count)
		}
		out = append(out, Snapshot{Path: path, Type: TypeTiming, Data: TimingSnapshot{
			Count:  metric.Count,
			AvgMs:  avg,
			MinMs:  ms(metric.Min),
			MaxMs:  ms(metric.Max),
			LastMs: ms(metric.Last),
			P95Ms:  calculatePercentile(metric.samples, 95),
		}})
		metric.mu.Unlock()
	}

	for path, metric := range m.successFail {
		metric.mu.Lock()
		rate := float64(0)
		if total := metric.Success + metric.Failures; total > 0 {
			rate = float64(metric.Success) / float64(total) * 100
		}
		reasons := make(map[string]int64, len(metric.FailureReasons))
		for k, v := range metric.FailureReasons {
			reasons[k] = v
		}
		out = append(out, Snapshot{Path: path, Type: TypeSuccessFail, Data: SuccessFailSnapshot{
			Success:        metric.Success,
			Failures:       metric.Failures,
			SuccessRate:    rate,
			FailureReasons: reasons,
		}})
		metric.mu.Unlock()
	}

	for path, metric := range m.outcomes {
		metric.mu.Lock()
		outcomes := make(map[string]int64, len(metric.Outcomes))
		for k, v := range metric.Outcomes {
			outcomes[k] = v
		}
		out = append(out, Snapshot{Path: path, Type: TypeOutcome, Data: OutcomeSnapshot{
			Outcomes: outcomes,
			Total:    metric.Total,
		}})
		metric.mu.Unlock()
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Type < out[j].Type
	})
	return out
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// calculatePercentile calculates the Nth percentile from samples
func calculatePercentile(samples []time.Duration, percentile int) float64 {
	if len(samples) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	idx := (len(sorted) * percentile) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return ms(sorted[idx])
}
