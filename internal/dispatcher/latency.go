package dispatcher

import (
	"math"
	"sync"
	"time"
)

// latencyBounds are the upper bounds, in microseconds, of all but the last
// histogram bucket.
var latencyBounds = [...]uint64{10, 50, 100, 500, 1000, 5000, 10000, 50000, 100000}

// LatencyTracker accumulates handler durations. Mean and variance use
// Welford's online algorithm; percentiles are estimated from a fixed
// histogram.
type LatencyTracker struct {
	mu sync.RWMutex

	count    uint64
	minNanos uint64
	maxNanos uint64
	mean     float64
	m2       float64

	buckets [len(latencyBounds) + 1]uint64
}

// NewLatencyTracker creates an empty tracker.
func NewLatencyTracker() *LatencyTracker {
	return &LatencyTracker{minNanos: math.MaxUint64}
}

// Record adds one measurement.
func (lt *LatencyTracker) Record(d time.Duration) {
	nanos := uint64(max(d.Nanoseconds(), 0))
	f := float64(nanos)

	lt.mu.Lock()
	defer lt.mu.Unlock()

	lt.count++
	delta := f - lt.mean
	lt.mean += delta / float64(lt.count)
	lt.m2 += delta * (f - lt.mean)

	lt.minNanos = min(lt.minNanos, nanos)
	lt.maxNanos = max(lt.maxNanos, nanos)

	micros := nanos / 1000
	i := 0
	for i < len(latencyBounds) && micros >= latencyBounds[i] {
		i++
	}
	lt.buckets[i]++
}

// LatencyStats is a snapshot of a tracker.
type LatencyStats struct {
	Count  uint64
	Min    time.Duration
	Max    time.Duration
	Mean   time.Duration
	StdDev time.Duration
	P50    time.Duration
	P95    time.Duration
	P99    time.Duration
}

// Stats returns the current statistics.
func (lt *LatencyTracker) Stats() LatencyStats {
	lt.mu.RLock()
	defer lt.mu.RUnlock()

	if lt.count == 0 {
		return LatencyStats{}
	}

	stats := LatencyStats{
		Count: lt.count,
		Min:   time.Duration(lt.minNanos),
		Max:   time.Duration(lt.maxNanos),
		Mean:  time.Duration(lt.mean),
		P50:   lt.percentileLocked(50),
		P95:   lt.percentileLocked(95),
		P99:   lt.percentileLocked(99),
	}
	if lt.count > 1 {
		if variance := lt.m2 / float64(lt.count-1); variance > 0 {
			stats.StdDev = time.Duration(math.Sqrt(variance))
		}
	}
	return stats
}

// percentileLocked returns the midpoint of the bucket holding the p-th
// percentile. The open last bucket reports its lower bound.
func (lt *LatencyTracker) percentileLocked(p uint64) time.Duration {
	target := max((p*lt.count+99)/100, 1)

	var cumulative uint64
	for i, n := range lt.buckets {
		cumulative += n
		if cumulative < target {
			continue
		}
		switch i {
		case 0:
			return time.Duration(latencyBounds[0]/2) * time.Microsecond
		case len(latencyBounds):
			return time.Duration(latencyBounds[i-1]) * time.Microsecond
		default:
			return time.Duration((latencyBounds[i-1]+latencyBounds[i])/2) * time.Microsecond
		}
	}
	return time.Duration(latencyBounds[len(latencyBounds)-1]) * time.Microsecond
}
