package dispatcher_test

import (
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dshills/portsdriver/internal/dispatcher"
	"github.com/dshills/portsdriver/internal/message"
	"github.com/dshills/portsdriver/internal/port"
)

func TestLatencyTrackerEmpty(t *testing.T) {
	lt := dispatcher.NewLatencyTracker()
	if stats := lt.Stats(); stats != (dispatcher.LatencyStats{}) {
		t.Errorf("expected zero stats, got %+v", stats)
	}
}

func TestLatencyTrackerStats(t *testing.T) {
	lt := dispatcher.NewLatencyTracker()
	for _, d := range []time.Duration{
		2 * time.Microsecond,
		4 * time.Microsecond,
		6 * time.Microsecond,
		200 * time.Microsecond,
	} {
		lt.Record(d)
	}

	stats := lt.Stats()
	if stats.Count != 4 {
		t.Errorf("count = %d, want 4", stats.Count)
	}
	if stats.Min != 2*time.Microsecond || stats.Max != 200*time.Microsecond {
		t.Errorf("min/max = %v/%v", stats.Min, stats.Max)
	}
	if stats.Mean != 53*time.Microsecond {
		t.Errorf("mean = %v, want 53µs", stats.Mean)
	}
	if stats.StdDev <= 0 {
		t.Errorf("expected positive stddev, got %v", stats.StdDev)
	}
	// Three of four samples fall in the <10µs bucket.
	if stats.P50 != 5*time.Microsecond {
		t.Errorf("p50 = %v, want 5µs", stats.P50)
	}
	// The slowest sample sits in the 100µs to 500µs bucket.
	if stats.P99 != 300*time.Microsecond {
		t.Errorf("p99 = %v, want 300µs", stats.P99)
	}
}

func TestLatencyTrackerOpenBucket(t *testing.T) {
	lt := dispatcher.NewLatencyTracker()
	lt.Record(time.Second)

	if p := lt.Stats().P50; p != 100*time.Millisecond {
		t.Errorf("p50 = %v, want 100ms", p)
	}
}

func TestTagLatency(t *testing.T) {
	d := dispatcher.New(dispatcher.DefaultConfig().WithMetrics())
	plugin := dispatcher.Table{
		"A": func(port.Sender, json.RawMessage) {},
	}
	if err := d.Install(nil, port.Discard, plugin); err != nil {
		t.Fatalf("install: %v", err)
	}
	_ = d.Dispatch(message.Raw("A", nil))
	_ = d.Dispatch(message.Raw("A", nil))

	top := d.Metrics().TopTags(1)
	if len(top) != 1 {
		t.Fatalf("expected one tag, got %d", len(top))
	}
	if got := top[0].Latency().Count; got != 2 {
		t.Errorf("latency count = %d, want 2", got)
	}
}

func TestSlowHandlerLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	d := dispatcher.New(
		dispatcher.DefaultConfig().WithSlowThreshold(time.Millisecond),
		dispatcher.WithLogger(zap.New(core)),
	)
	plugin := dispatcher.Table{
		"Slow": func(port.Sender, json.RawMessage) { time.Sleep(5 * time.Millisecond) },
		"Fast": func(port.Sender, json.RawMessage) {},
	}
	if err := d.Install(nil, port.Discard, plugin); err != nil {
		t.Fatalf("install: %v", err)
	}

	_ = d.Dispatch(message.Raw("Fast", nil))
	_ = d.Dispatch(message.Raw("Slow", nil))

	entries := logs.FilterMessage("slow handler").All()
	if len(entries) != 1 {
		t.Fatalf("expected one slow handler warning, got %d", len(entries))
	}
	if tag := entries[0].ContextMap()["tag"]; tag != "Slow" {
		t.Errorf("tag = %v, want Slow", tag)
	}
}
