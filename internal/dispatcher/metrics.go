package dispatcher

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
)

// Metrics collects dispatch statistics.
type Metrics struct {
	mu sync.RWMutex

	// Per-tag metrics
	tagMetrics map[string]*TagMetrics

	// Global counters
	totalDispatches uint64
	totalUnmatched  uint64
	totalPanics     uint64

	// Timing
	totalDuration time.Duration
}

// TagMetrics holds metrics for a specific tag.
type TagMetrics struct {
	Tag            string
	DispatchCount  uint64
	UnmatchedCount uint64
	PanicCount     uint64
	TotalDuration  time.Duration
	MinDuration    time.Duration
	MaxDuration    time.Duration
	LastDispatch   time.Time

	latency *LatencyTracker
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		tagMetrics: make(map[string]*TagMetrics),
	}
}

func (m *Metrics) entry(tag string) *TagMetrics {
	tm := m.tagMetrics[tag]
	if tm == nil {
		tm = &TagMetrics{Tag: tag, latency: NewLatencyTracker()}
		m.tagMetrics[tag] = tm
	}
	return tm
}

// RecordDispatch records a handled message.
func (m *Metrics) RecordDispatch(tag string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalDispatches++
	m.totalDuration += duration

	tm := m.entry(tag)
	if tm.DispatchCount == 0 || duration < tm.MinDuration {
		tm.MinDuration = duration
	}
	if duration > tm.MaxDuration {
		tm.MaxDuration = duration
	}
	tm.DispatchCount++
	tm.TotalDuration += duration
	tm.LastDispatch = time.Now()
	tm.latency.Record(duration)
}

// RecordUnmatched records a message routed to the fallback.
func (m *Metrics) RecordUnmatched(tag string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalUnmatched++
	m.entry(tag).UnmatchedCount++
}

// RecordPanic records a recovered handler panic.
func (m *Metrics) RecordPanic(tag string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalPanics++
	m.entry(tag).PanicCount++
}

// TotalDispatches returns the number of handled messages.
func (m *Metrics) TotalDispatches() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalDispatches
}

// TotalUnmatched returns the number of messages routed to the fallback.
func (m *Metrics) TotalUnmatched() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalUnmatched
}

// TotalPanics returns the number of panics recovered.
func (m *Metrics) TotalPanics() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalPanics
}

// TopTags returns the n most dispatched tags.
func (m *Metrics) TopTags(n int) []*TagMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tags := make([]*TagMetrics, 0, len(m.tagMetrics))
	for _, tm := range m.tagMetrics {
		copy := *tm
		tags = append(tags, &copy)
	}

	sort.Slice(tags, func(i, j int) bool {
		if tags[i].DispatchCount != tags[j].DispatchCount {
			return tags[i].DispatchCount > tags[j].DispatchCount
		}
		return tags[i].Tag < tags[j].Tag
	})

	if n > len(tags) {
		n = len(tags)
	}
	return tags[:n]
}

// MetricsSnapshot is a point-in-time copy of the global counters.
type MetricsSnapshot struct {
	TotalDispatches uint64
	TotalUnmatched  uint64
	TotalPanics     uint64
	TotalDuration   time.Duration
	AverageDuration time.Duration
	TagCount        int
	Timestamp       time.Time
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := MetricsSnapshot{
		TotalDispatches: m.totalDispatches,
		TotalUnmatched:  m.totalUnmatched,
		TotalPanics:     m.totalPanics,
		TotalDuration:   m.totalDuration,
		TagCount:        len(m.tagMetrics),
		Timestamp:       time.Now(),
	}

	if m.totalDispatches > 0 {
		snapshot.AverageDuration = m.totalDuration / time.Duration(m.totalDispatches)
	}

	return snapshot
}

// Latency returns the latency distribution for the tag.
func (tm *TagMetrics) Latency() LatencyStats {
	if tm.latency == nil {
		return LatencyStats{}
	}
	return tm.latency.Stats()
}

// AverageDuration returns the average handler duration for the tag.
func (tm *TagMetrics) AverageDuration() time.Duration {
	if tm.DispatchCount == 0 {
		return 0
	}
	return tm.TotalDuration / time.Duration(tm.DispatchCount)
}

// MarshalLogObject encodes the tag's counters and latency percentiles.
func (tm *TagMetrics) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	lat := tm.Latency()
	enc.AddString("tag", tm.Tag)
	enc.AddUint64("dispatches", tm.DispatchCount)
	enc.AddUint64("unmatched", tm.UnmatchedCount)
	enc.AddUint64("panics", tm.PanicCount)
	enc.AddDuration("p50", lat.P50)
	enc.AddDuration("p95", lat.P95)
	enc.AddDuration("p99", lat.P99)
	return nil
}
