package dispatcher_test

import (
	"encoding/json"
	"testing"

	"github.com/dshills/portsdriver/internal/dispatcher"
	"github.com/dshills/portsdriver/internal/port"
)

func TestIsInstallTag(t *testing.T) {
	tests := []struct {
		tag  string
		want bool
	}{
		{"InstallLocalStorageListener", true},
		{"Install", true},
		{"InstallX", true},
		{"install", false},
		{"LocalStorageInstall", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := dispatcher.IsInstallTag(tt.tag); got != tt.want {
			t.Errorf("IsInstallTag(%q) = %v, want %v", tt.tag, got, tt.want)
		}
	}
}

func TestInstallHooksOrder(t *testing.T) {
	noop := func(port.Sender, json.RawMessage) {}
	p1 := dispatcher.Table{"InstallB": noop, "Log": noop, "InstallA": noop}
	p2 := dispatcher.Table{"InstallA": noop, "SetTitle": noop}

	hooks := dispatcher.InstallHooks(p1, p2)

	want := []struct {
		plugin int
		tag    string
	}{
		{0, "InstallA"},
		{0, "InstallB"},
		{1, "InstallA"},
	}
	if len(hooks) != len(want) {
		t.Fatalf("expected %d hooks, got %d", len(want), len(hooks))
	}
	for i, w := range want {
		if hooks[i].Plugin != w.plugin || hooks[i].Tag != w.tag {
			t.Errorf("hook %d: expected (%d, %s), got (%d, %s)", i, w.plugin, w.tag, hooks[i].Plugin, hooks[i].Tag)
		}
	}
}

func TestInstallHooksNone(t *testing.T) {
	noop := func(port.Sender, json.RawMessage) {}
	if hooks := dispatcher.InstallHooks(dispatcher.Table{"Log": noop}, nil); len(hooks) != 0 {
		t.Errorf("expected no hooks, got %d", len(hooks))
	}
}
