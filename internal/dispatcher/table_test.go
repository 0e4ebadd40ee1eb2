package dispatcher_test

import (
	"encoding/json"
	"testing"

	"github.com/dshills/portsdriver/internal/dispatcher"
	"github.com/dshills/portsdriver/internal/port"
)

// marker returns a handler that records name into *got when called.
func marker(got *string, name string) dispatcher.Handler {
	return func(port.Sender, json.RawMessage) {
		*got = name
	}
}

func TestMergeLastWins(t *testing.T) {
	var got string
	p1 := dispatcher.Table{"A": marker(&got, "p1.A"), "B": marker(&got, "p1.B")}
	p2 := dispatcher.Table{"B": marker(&got, "p2.B"), "C": marker(&got, "p2.C")}
	p3 := dispatcher.Table{"C": marker(&got, "p3.C")}

	merged := dispatcher.Merge(p1, p2, p3)

	if len(merged) != 3 {
		t.Fatalf("expected 3 tags, got %d", len(merged))
	}

	tests := []struct {
		tag  string
		want string
	}{
		{"A", "p1.A"},
		{"B", "p2.B"},
		{"C", "p3.C"},
	}
	for _, tt := range tests {
		merged[tt.tag](port.Discard, nil)
		if got != tt.want {
			t.Errorf("tag %s: expected handler %s, got %s", tt.tag, tt.want, got)
		}
	}
}

func TestMergeDoesNotModifyInputs(t *testing.T) {
	var got string
	p1 := dispatcher.Table{"A": marker(&got, "p1")}
	p2 := dispatcher.Table{"A": marker(&got, "p2")}

	merged := dispatcher.Merge(p1, p2)
	merged["Z"] = marker(&got, "z")

	p1["A"](port.Discard, nil)
	if got != "p1" {
		t.Errorf("expected p1 entry to be untouched, got %s", got)
	}
	if p1.Has("Z") || p2.Has("Z") {
		t.Error("expected inputs not to share the merged map")
	}
}

func TestMergeEmpty(t *testing.T) {
	merged := dispatcher.Merge()
	if merged == nil || len(merged) != 0 {
		t.Errorf("expected empty non-nil table, got %v", merged)
	}

	merged = dispatcher.Merge(nil, dispatcher.Table{}, nil)
	if len(merged) != 0 {
		t.Errorf("expected nil tables to be skipped, got %d tags", len(merged))
	}
}

func TestTableTags(t *testing.T) {
	noop := func(port.Sender, json.RawMessage) {}
	table := dispatcher.Table{"b": noop, "a": noop, "c": noop}

	tags := table.Tags()
	want := []string{"a", "b", "c"}
	if len(tags) != len(want) {
		t.Fatalf("expected %d tags, got %d", len(want), len(tags))
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Errorf("tags[%d]: expected %s, got %s", i, want[i], tags[i])
		}
	}
}
