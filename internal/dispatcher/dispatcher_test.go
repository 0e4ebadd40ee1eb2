package dispatcher_test

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/dshills/portsdriver/internal/dispatcher"
	"github.com/dshills/portsdriver/internal/message"
	"github.com/dshills/portsdriver/internal/port"
)

// recorder collects fallback invocations.
type recorder struct {
	mu   sync.Mutex
	msgs []message.Message
}

func (r *recorder) fallback(_ port.Sender, msg message.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

func TestNewWithDefaults(t *testing.T) {
	d := dispatcher.NewWithDefaults()

	if d == nil {
		t.Fatal("expected non-nil dispatcher")
	}
	if d.State() != dispatcher.Uninstalled {
		t.Errorf("expected uninstalled, got %s", d.State())
	}

	// Metrics should be nil by default
	if d.Metrics() != nil {
		t.Error("expected nil metrics by default")
	}
	if d.Tags() != nil {
		t.Error("expected no tags before install")
	}
}

func TestNewWithMetrics(t *testing.T) {
	d := dispatcher.New(dispatcher.DefaultConfig().WithMetrics())

	if d.Metrics() == nil {
		t.Error("expected non-nil metrics when enabled")
	}
}

func TestDispatchBeforeInstall(t *testing.T) {
	d := dispatcher.NewWithDefaults()

	err := d.Dispatch(message.Raw("Log", []byte(`"x"`)))
	if !errors.Is(err, dispatcher.ErrNotInstalled) {
		t.Errorf("expected ErrNotInstalled, got %v", err)
	}
	if err := d.Run(context.Background()); !errors.Is(err, dispatcher.ErrNotInstalled) {
		t.Errorf("expected ErrNotInstalled from Run, got %v", err)
	}
}

func TestDispatchMatchedHandler(t *testing.T) {
	inbound := port.SenderFunc(func(message.Message) {})

	var calls int
	var gotIn port.Sender
	var gotPayload json.RawMessage
	plugin := dispatcher.Table{
		"Echo": func(in port.Sender, payload json.RawMessage) {
			calls++
			gotIn = in
			gotPayload = payload
		},
	}

	rec := &recorder{}
	d := dispatcher.New(dispatcher.DefaultConfig(), dispatcher.WithFallback(rec.fallback))
	if err := d.Install(nil, inbound, plugin); err != nil {
		t.Fatalf("install: %v", err)
	}

	payload := `{"b":[1,2,3],"a":"x"}`
	if err := d.Dispatch(message.Raw("Echo", []byte(payload))); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if calls != 1 {
		t.Errorf("expected handler called once, got %d", calls)
	}
	if string(gotPayload) != payload {
		t.Errorf("expected payload %s unmodified, got %s", payload, gotPayload)
	}
	if gotIn == nil {
		t.Error("expected handler to receive the inbound sender")
	}
	if rec.count() != 0 {
		t.Errorf("expected fallback not called, got %d", rec.count())
	}
}

func TestDispatchUnmatchedUsesFallback(t *testing.T) {
	rec := &recorder{}
	d := dispatcher.New(dispatcher.DefaultConfig().WithMetrics(), dispatcher.WithFallback(rec.fallback))

	handled := 0
	plugin := dispatcher.Table{"Known": func(port.Sender, json.RawMessage) { handled++ }}
	if err := d.Install(nil, port.Discard, plugin); err != nil {
		t.Fatalf("install: %v", err)
	}

	msg := message.Raw("Unknown", []byte(`{"n":1}`))
	if err := d.Dispatch(msg); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if rec.count() != 1 {
		t.Fatalf("expected fallback called once, got %d", rec.count())
	}
	if rec.msgs[0].Tag != msg.Tag || string(rec.msgs[0].Payload) != string(msg.Payload) {
		t.Errorf("expected fallback to receive the original message, got %v", rec.msgs[0])
	}
	if handled != 0 {
		t.Error("expected no handler to run")
	}
	if d.Metrics().TotalUnmatched() != 1 {
		t.Errorf("expected 1 unmatched, got %d", d.Metrics().TotalUnmatched())
	}
}

func TestDispatchInstallTagIsNotRoutable(t *testing.T) {
	rec := &recorder{}
	d := dispatcher.New(dispatcher.DefaultConfig(), dispatcher.WithFallback(rec.fallback))

	hookCalls := 0
	plugin := dispatcher.Table{"InstallX": func(port.Sender, json.RawMessage) { hookCalls++ }}
	if err := d.Install(nil, port.Discard, plugin); err != nil {
		t.Fatalf("install: %v", err)
	}

	_ = d.Dispatch(message.Raw("InstallX", nil))

	if hookCalls != 1 {
		t.Errorf("expected hook to run only at install, got %d calls", hookCalls)
	}
	if rec.count() != 1 {
		t.Errorf("expected dispatch of install tag to reach the fallback")
	}
	if len(d.Tags()) != 0 {
		t.Errorf("expected install tag to be excluded from Tags, got %v", d.Tags())
	}
}

func TestInstallRunsHooksBeforeDispatch(t *testing.T) {
	pair := port.NewPair(4)
	d := dispatcher.NewWithDefaults()

	var events []string
	var hookPayload json.RawMessage = json.RawMessage("unset")
	plugin := dispatcher.Table{
		"InstallX": func(in port.Sender, payload json.RawMessage) {
			events = append(events, "hook")
			hookPayload = payload
			if in == nil {
				t.Error("expected hook to receive the inbound sender")
			}
		},
		"Ping": func(port.Sender, json.RawMessage) {
			events = append(events, "ping")
		},
	}

	pair.Emit(message.Raw("Ping", nil))

	if err := d.Install(pair.Outbound(), pair.Sender(), plugin); err != nil {
		t.Fatalf("install: %v", err)
	}
	if d.State() != dispatcher.Installed {
		t.Fatalf("expected installed, got %s", d.State())
	}
	if len(events) != 1 || events[0] != "hook" {
		t.Fatalf("expected only the hook to have run, got %v", events)
	}
	if hookPayload != nil {
		t.Errorf("expected hook payload to be nil, got %s", hookPayload)
	}

	pair.Close()
	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(events) != 2 || events[1] != "ping" {
		t.Errorf("expected hook then ping, got %v", events)
	}
}

func TestInstallTwiceRejected(t *testing.T) {
	d := dispatcher.NewWithDefaults()

	hookCalls := 0
	plugin := dispatcher.Table{"InstallX": func(port.Sender, json.RawMessage) { hookCalls++ }}

	if err := d.Install(nil, port.Discard, plugin); err != nil {
		t.Fatalf("first install: %v", err)
	}
	err := d.Install(nil, port.Discard, plugin)
	if !errors.Is(err, dispatcher.ErrAlreadyInstalled) {
		t.Errorf("expected ErrAlreadyInstalled, got %v", err)
	}
	if hookCalls != 1 {
		t.Errorf("expected hooks to run once, got %d", hookCalls)
	}
}

func TestInstallValidation(t *testing.T) {
	d := dispatcher.NewWithDefaults()

	if err := d.Install(nil, nil); !errors.Is(err, dispatcher.ErrNilInbound) {
		t.Errorf("expected ErrNilInbound, got %v", err)
	}

	err := d.Install(nil, port.Discard, dispatcher.Table{"Broken": nil})
	if !errors.Is(err, dispatcher.ErrNilHandler) {
		t.Errorf("expected ErrNilHandler, got %v", err)
	}

	// A rejected install does not consume the one-shot transition.
	if err := d.Install(nil, port.Discard); err != nil {
		t.Errorf("expected install to succeed after validation errors, got %v", err)
	}
}

func TestInstallHookPanicPropagates(t *testing.T) {
	d := dispatcher.NewWithDefaults()
	plugin := dispatcher.Table{"InstallBoom": func(port.Sender, json.RawMessage) { panic("boom") }}

	defer func() {
		if r := recover(); r != "boom" {
			t.Errorf("expected hook panic to propagate, got %v", r)
		}
		if d.State() != dispatcher.Uninstalled {
			t.Errorf("expected dispatcher to stay uninstalled, got %s", d.State())
		}
	}()

	_ = d.Install(nil, port.Discard, plugin)
	t.Fatal("expected Install to panic")
}

func TestHandlerPanicPropagatesByDefault(t *testing.T) {
	d := dispatcher.NewWithDefaults()
	plugin := dispatcher.Table{"Boom": func(port.Sender, json.RawMessage) { panic("boom") }}
	if err := d.Install(nil, port.Discard, plugin); err != nil {
		t.Fatalf("install: %v", err)
	}

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic to propagate")
		}
	}()
	_ = d.Dispatch(message.Raw("Boom", nil))
}

func TestHandlerPanicRecovery(t *testing.T) {
	config := dispatcher.DefaultConfig().WithPanicRecovery(true).WithMetrics()
	d := dispatcher.New(config)

	after := 0
	plugin := dispatcher.Table{
		"Boom":  func(port.Sender, json.RawMessage) { panic("boom") },
		"After": func(port.Sender, json.RawMessage) { after++ },
	}
	if err := d.Install(nil, port.Discard, plugin); err != nil {
		t.Fatalf("install: %v", err)
	}

	if err := d.Dispatch(message.Raw("Boom", nil)); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	_ = d.Dispatch(message.Raw("After", nil))

	if after != 1 {
		t.Error("expected dispatch to continue after a recovered panic")
	}
	if d.Metrics().TotalPanics() != 1 {
		t.Errorf("expected 1 panic recorded, got %d", d.Metrics().TotalPanics())
	}
}

func TestRunSequentialOrder(t *testing.T) {
	pair := port.NewPair(16)
	d := dispatcher.NewWithDefaults()

	var order []int
	active := 0
	plugin := dispatcher.Table{
		"Step": func(_ port.Sender, payload json.RawMessage) {
			active++
			if active != 1 {
				t.Error("expected handlers not to overlap")
			}
			var n int
			_ = json.Unmarshal(payload, &n)
			order = append(order, n)
			active--
		},
	}
	if err := d.Install(pair.Outbound(), pair.Sender(), plugin); err != nil {
		t.Fatalf("install: %v", err)
	}

	for i := 0; i < 10; i++ {
		pair.Emit(message.Raw("Step", []byte(strconv.Itoa(i))))
	}
	pair.Close()

	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	for i, n := range order {
		if n != i {
			t.Fatalf("expected messages in order, got %v", order)
		}
	}
	if len(order) != 10 {
		t.Errorf("expected 10 messages, got %d", len(order))
	}
}

func TestRunContextCancel(t *testing.T) {
	pair := port.NewPair(1)
	d := dispatcher.NewWithDefaults()
	if err := d.Install(pair.Outbound(), pair.Sender()); err != nil {
		t.Fatalf("install: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunWithoutOutbound(t *testing.T) {
	d := dispatcher.NewWithDefaults()
	if err := d.Install(nil, port.Discard); err != nil {
		t.Fatalf("install: %v", err)
	}
	if err := d.Run(context.Background()); !errors.Is(err, dispatcher.ErrNoOutbound) {
		t.Errorf("expected ErrNoOutbound, got %v", err)
	}
}

func TestHandlerRepliesOnInbound(t *testing.T) {
	pair := port.NewPair(4)
	d := dispatcher.NewWithDefaults()

	plugin := dispatcher.Table{
		"Ping": func(in port.Sender, payload json.RawMessage) {
			in.Send(message.Raw("Pong", payload))
		},
	}
	if err := d.Install(pair.Outbound(), pair.Sender(), plugin); err != nil {
		t.Fatalf("install: %v", err)
	}

	if err := d.Dispatch(message.Raw("Ping", []byte("7"))); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	reply := <-pair.Inbound()
	if reply.Tag != "Pong" || string(reply.Payload) != "7" {
		t.Errorf("unexpected reply %v", reply)
	}
}

func TestMetricsRecorded(t *testing.T) {
	d := dispatcher.New(dispatcher.DefaultConfig().WithMetrics())
	plugin := dispatcher.Table{
		"A": func(port.Sender, json.RawMessage) {},
		"B": func(port.Sender, json.RawMessage) {},
	}
	if err := d.Install(nil, port.Discard, plugin); err != nil {
		t.Fatalf("install: %v", err)
	}

	for i := 0; i < 3; i++ {
		_ = d.Dispatch(message.Raw("A", nil))
	}
	_ = d.Dispatch(message.Raw("B", nil))
	_ = d.Dispatch(message.Raw("C", nil))

	m := d.Metrics()
	if m.TotalDispatches() != 4 {
		t.Errorf("expected 4 dispatches, got %d", m.TotalDispatches())
	}
	top := m.TopTags(1)
	if len(top) != 1 || top[0].Tag != "A" || top[0].DispatchCount != 3 {
		t.Errorf("expected A to be the top tag with 3 dispatches, got %+v", top)
	}

	snap := m.Snapshot()
	if snap.TotalUnmatched != 1 || snap.TagCount != 3 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}
