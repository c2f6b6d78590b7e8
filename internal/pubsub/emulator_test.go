package pubsub

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kichnu/iotdash/internal/device"
)

// ============================================================================
// Test fixtures
// ============================================================================

type controlCall struct {
	deviceID string
	command  string
}

// fakeTransport is a scripted Transport. When fetchEntered is set,
// DevicesStatus signals it and blocks until fetchRelease is closed.
type fakeTransport struct {
	mu          sync.Mutex
	status      device.ServerStatus
	statusErr   error
	snapshot    device.Snapshot
	fetchErr    error
	controlResp device.ControlResponse
	controlErr  error
	controls    []controlCall
	fetchCalls  int

	fetchEntered chan struct{}
	fetchRelease chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		status:      device.ServerStatus{Status: device.StatusOK, MQTTConnected: true},
		snapshot:    device.Snapshot{},
		controlResp: device.ControlResponse{Status: device.StatusOK},
	}
}

func (f *fakeTransport) Status(_ context.Context) (device.ServerStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, f.statusErr
}

func (f *fakeTransport) DevicesStatus(_ context.Context) (device.Snapshot, error) {
	f.mu.Lock()
	f.fetchCalls++
	snap, err := f.snapshot, f.fetchErr
	entered, release := f.fetchEntered, f.fetchRelease
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
		<-release
	}
	return snap, err
}

func (f *fakeTransport) ControlDevice(_ context.Context, deviceID, command string) (device.ControlResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.controls = append(f.controls, controlCall{deviceID: deviceID, command: command})
	return f.controlResp, f.controlErr
}

func (f *fakeTransport) setStatusErr(err error) {
	f.mu.Lock()
	f.statusErr = err
	f.mu.Unlock()
}

// recorder collects handler invocations.
type recorder struct {
	mu    sync.Mutex
	calls map[string][]string
	order []string
}

func newRecorder() *recorder {
	return &recorder{calls: make(map[string][]string)}
}

func (r *recorder) handler(topic, payload string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[topic] = append(r.calls[topic], payload)
	r.order = append(r.order, topic)
}

func (r *recorder) get(topic string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls[topic]...)
}

func (r *recorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

func strPtr(s string) *string { return &s }

// connectedEmulator returns an emulator marked connected without a loop,
// so tests can drive ticks directly.
func connectedEmulator(ft *fakeTransport) *Emulator {
	e := New(ft)
	e.state = StateConnected
	return e
}

func waitSignal(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

// ============================================================================
// Fan-out
// ============================================================================

func TestEmulator_SnapshotFanOut(t *testing.T) {
	ft := newFakeTransport()
	ft.snapshot = device.Snapshot{
		"dev1": {Status: strPtr("on"), Values: map[string]string{"brightness": "42"}},
	}
	e := connectedEmulator(ft)
	rec := newRecorder()
	e.Subscribe("iot/device/dev1/status", rec.handler)
	e.Subscribe("iot/device/dev1/value/brightness", rec.handler)

	e.tick(context.Background(), e.generation)

	if got := rec.get("iot/device/dev1/status"); len(got) != 1 || got[0] != "on" {
		t.Errorf("status deliveries = %v, want [on]", got)
	}
	if got := rec.get("iot/device/dev1/value/brightness"); len(got) != 1 || got[0] != "42" {
		t.Errorf("brightness deliveries = %v, want [42]", got)
	}
}

func TestEmulator_EveryTickRedelivers(t *testing.T) {
	ft := newFakeTransport()
	ft.snapshot = device.Snapshot{"dev1": {Status: strPtr("off")}}
	e := connectedEmulator(ft)
	rec := newRecorder()
	e.Subscribe("iot/device/dev1/status", rec.handler)

	for i := 0; i < 3; i++ {
		e.tick(context.Background(), e.generation)
	}

	if got := rec.get("iot/device/dev1/status"); len(got) != 3 {
		t.Errorf("deliveries = %d, want 3 (one per tick)", len(got))
	}
}

func TestEmulator_NullStatusSkipped(t *testing.T) {
	ft := newFakeTransport()
	ft.snapshot = device.Snapshot{
		"th1": {Status: nil, Values: map[string]string{"temperature": "21.5"}},
	}
	e := connectedEmulator(ft)
	rec := newRecorder()
	e.Subscribe("iot/device/th1/status", rec.handler)
	e.Subscribe("iot/device/th1/value/temperature", rec.handler)

	e.tick(context.Background(), e.generation)

	if got := rec.get("iot/device/th1/status"); len(got) != 0 {
		t.Errorf("status deliveries = %v, want none", got)
	}
	if got := rec.get("iot/device/th1/value/temperature"); len(got) != 1 {
		t.Errorf("temperature deliveries = %v, want 1", got)
	}
}

func TestEmulator_UnsubscribeStopsDelivery(t *testing.T) {
	ft := newFakeTransport()
	ft.snapshot = device.Snapshot{"dev1": {Status: strPtr("on")}}
	e := connectedEmulator(ft)
	rec := newRecorder()
	e.Subscribe("iot/device/dev1/status", rec.handler)
	e.Unsubscribe("iot/device/dev1/status")

	e.tick(context.Background(), e.generation)

	if rec.total() != 0 {
		t.Errorf("deliveries = %d, want 0", rec.total())
	}
}

func TestEmulator_DispatchOrder(t *testing.T) {
	ft := newFakeTransport()
	ft.snapshot = device.Snapshot{
		"b": {Status: strPtr("1"), Values: map[string]string{"z": "1", "y": "2"}},
		"a": {Status: strPtr("2")},
	}
	e := connectedEmulator(ft)
	rec := newRecorder()
	for _, tp := range []string{
		"iot/device/a/status",
		"iot/device/b/status",
		"iot/device/b/value/y",
		"iot/device/b/value/z",
	} {
		e.Subscribe(tp, rec.handler)
	}

	e.tick(context.Background(), e.generation)

	want := []string{
		"iot/device/a/status",
		"iot/device/b/status",
		"iot/device/b/value/y",
		"iot/device/b/value/z",
	}
	if len(rec.order) != len(want) {
		t.Fatalf("order = %v, want %v", rec.order, want)
	}
	for i := range want {
		if rec.order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, rec.order[i], want[i])
		}
	}
}

func TestEmulator_CustomNamespace(t *testing.T) {
	ft := newFakeTransport()
	ft.snapshot = device.Snapshot{"fan": {Status: strPtr("on")}}
	e := New(ft, WithNamespace("home"))
	e.state = StateConnected
	rec := newRecorder()
	e.Subscribe("home/device/fan/status", rec.handler)
	e.Subscribe("iot/device/fan/status", rec.handler)

	e.tick(context.Background(), e.generation)

	if len(rec.get("home/device/fan/status")) != 1 {
		t.Error("namespaced topic not delivered")
	}
	if len(rec.get("iot/device/fan/status")) != 0 {
		t.Error("default namespace topic should not be delivered")
	}
}

func TestEmulator_HandlerPanicRecovered(t *testing.T) {
	ft := newFakeTransport()
	ft.snapshot = device.Snapshot{
		"a": {Status: strPtr("on")},
		"b": {Status: strPtr("on")},
	}
	e := connectedEmulator(ft)
	rec := newRecorder()
	e.Subscribe("iot/device/a/status", func(string, string) { panic("boom") })
	e.Subscribe("iot/device/b/status", rec.handler)

	e.tick(context.Background(), e.generation)

	if len(rec.get("iot/device/b/status")) != 1 {
		t.Error("delivery after a panicking handler was skipped")
	}
}

// ============================================================================
// Failures and cancellation
// ============================================================================

func TestEmulator_FetchFailureKeepsConnected(t *testing.T) {
	ft := newFakeTransport()
	ft.fetchErr = errors.New("connection refused")
	e := connectedEmulator(ft)

	var reported error
	e.SetOnError(func(err error) { reported = err })

	e.tick(context.Background(), e.generation)

	if !errors.Is(reported, ErrTransport) {
		t.Errorf("reported error = %v, want ErrTransport", reported)
	}
	if e.State() != StateConnected {
		t.Errorf("State() = %v, want connected", e.State())
	}
}

func TestEmulator_InFlightFetchDroppedAfterDisconnect(t *testing.T) {
	ft := newFakeTransport()
	ft.snapshot = device.Snapshot{"dev1": {Status: strPtr("on")}}
	ft.fetchEntered = make(chan struct{}, 1)
	ft.fetchRelease = make(chan struct{})
	e := connectedEmulator(ft)
	rec := newRecorder()
	e.Subscribe("iot/device/dev1/status", rec.handler)

	gen := e.generation
	done := make(chan struct{})
	go func() {
		e.tick(context.Background(), gen)
		close(done)
	}()

	waitSignal(t, ft.fetchEntered, "fetch to start")
	e.Disconnect()
	// A new session subscribes the same topic; the stale fetch must still
	// not reach it.
	e.Subscribe("iot/device/dev1/status", rec.handler)
	close(ft.fetchRelease)
	waitSignal(t, done, "tick to finish")

	if rec.total() != 0 {
		t.Errorf("deliveries after Disconnect = %d, want 0", rec.total())
	}
}

func TestEmulator_DisconnectWaitsForRunningHandler(t *testing.T) {
	ft := newFakeTransport()
	ft.snapshot = device.Snapshot{
		"dev1": {Status: strPtr("on")},
		"dev2": {Status: strPtr("on")},
	}
	e := connectedEmulator(ft)

	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	e.Subscribe("iot/device/dev1/status", func(string, string) {
		entered <- struct{}{}
		<-release
	})

	var mu sync.Mutex
	disconnected := false
	lateCalls := 0
	e.Subscribe("iot/device/dev2/status", func(string, string) {
		mu.Lock()
		defer mu.Unlock()
		lateCalls++
	})

	gen := e.generation
	tickDone := make(chan struct{})
	go func() {
		e.tick(context.Background(), gen)
		close(tickDone)
	}()
	waitSignal(t, entered, "dev1 handler to start")

	disconnectDone := make(chan struct{})
	go func() {
		e.Disconnect()
		mu.Lock()
		disconnected = true
		mu.Unlock()
		close(disconnectDone)
	}()

	select {
	case <-disconnectDone:
		t.Fatal("Disconnect() returned while a handler was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	waitSignal(t, disconnectDone, "Disconnect to return")
	waitSignal(t, tickDone, "tick to finish")

	mu.Lock()
	defer mu.Unlock()
	if !disconnected || lateCalls != 0 {
		t.Errorf("dev2 handler calls = %d, want 0 once Disconnect started", lateCalls)
	}
}

func TestEmulator_StaleGenerationIgnored(t *testing.T) {
	ft := newFakeTransport()
	ft.snapshot = device.Snapshot{"dev1": {Status: strPtr("on")}}
	e := connectedEmulator(ft)
	rec := newRecorder()
	e.Subscribe("iot/device/dev1/status", rec.handler)

	e.tick(context.Background(), e.generation+1)

	if rec.total() != 0 {
		t.Errorf("deliveries = %d, want 0", rec.total())
	}
	if ft.fetchCalls != 0 {
		t.Errorf("fetchCalls = %d, want 0", ft.fetchCalls)
	}
}

// ============================================================================
// Connectivity
// ============================================================================

func TestEmulator_ConnectEmitsConnected(t *testing.T) {
	ft := newFakeTransport()
	e := New(ft, WithPollInterval(time.Hour))
	connected := make(chan struct{}, 1)
	e.SetOnConnect(func() { connected <- struct{}{} })

	e.Connect(context.Background())
	defer e.Disconnect()

	waitSignal(t, connected, "connect event")
	if e.State() != StateConnected {
		t.Errorf("State() = %v, want connected", e.State())
	}
}

func TestEmulator_ConnectProbeFailure(t *testing.T) {
	ft := newFakeTransport()
	ft.statusErr = errors.New("dial tcp: connection refused")
	e := New(ft, WithPollInterval(time.Hour))

	disconnected := make(chan error, 1)
	e.SetOnDisconnect(func(err error) { disconnected <- err })

	e.Connect(context.Background())
	defer e.Disconnect()

	select {
	case err := <-disconnected:
		if !errors.Is(err, ErrTransport) {
			t.Errorf("disconnect cause = %v, want ErrTransport", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for disconnect event")
	}
	if e.State() != StateDisconnected {
		t.Errorf("State() = %v, want disconnected", e.State())
	}
}

func TestEmulator_BrokerDownIsDisconnected(t *testing.T) {
	ft := newFakeTransport()
	ft.status = device.ServerStatus{Status: device.StatusOK, MQTTConnected: false}
	e := New(ft, WithPollInterval(time.Hour))

	disconnected := make(chan error, 1)
	e.SetOnDisconnect(func(err error) { disconnected <- err })

	e.Connect(context.Background())
	defer e.Disconnect()

	select {
	case err := <-disconnected:
		if err != nil {
			t.Errorf("disconnect cause = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for disconnect event")
	}
}

func TestEmulator_SelfHeals(t *testing.T) {
	ft := newFakeTransport()
	ft.statusErr = errors.New("unavailable")
	ft.snapshot = device.Snapshot{"dev1": {Status: strPtr("on")}}
	e := New(ft, WithPollInterval(10*time.Millisecond))

	disconnected := make(chan struct{}, 1)
	connected := make(chan struct{}, 1)
	delivered := make(chan struct{}, 1)
	e.SetOnDisconnect(func(error) {
		select {
		case disconnected <- struct{}{}:
		default:
		}
	})
	e.SetOnConnect(func() {
		select {
		case connected <- struct{}{}:
		default:
		}
	})
	e.Subscribe("iot/device/dev1/status", func(string, string) {
		select {
		case delivered <- struct{}{}:
		default:
		}
	})

	e.Connect(context.Background())
	defer e.Disconnect()

	waitSignal(t, disconnected, "initial disconnect")
	ft.setStatusErr(nil)
	waitSignal(t, connected, "reconnect")
	waitSignal(t, delivered, "delivery after reconnect")
}

func TestEmulator_ConnectTwiceSingleTimer(t *testing.T) {
	ft := newFakeTransport()
	e := New(ft, WithPollInterval(time.Hour))

	e.Connect(context.Background())
	firstGen := e.generation
	e.Connect(context.Background())

	if got := e.activeTimers(); got != 1 {
		t.Errorf("activeTimers() after two Connects = %d, want 1", got)
	}
	if e.current(firstGen) {
		t.Error("first loop generation still current after second Connect")
	}

	e.Disconnect()
	if got := e.activeTimers(); got != 0 {
		t.Errorf("activeTimers() after Disconnect = %d, want 0", got)
	}
}

func TestEmulator_DisconnectIdempotent(t *testing.T) {
	ft := newFakeTransport()
	e := New(ft)
	e.Subscribe("iot/device/dev1/status", func(string, string) {})

	events := 0
	e.SetOnDisconnect(func(error) { events++ })

	e.Disconnect()
	e.Disconnect()

	if events != 2 {
		t.Errorf("disconnect events = %d, want 2", events)
	}
	if e.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", e.SubscriptionCount())
	}
	if e.State() != StateDisconnected {
		t.Errorf("State() = %v, want disconnected", e.State())
	}
}

func TestEmulator_SubscribeBeforeConnect(t *testing.T) {
	e := New(newFakeTransport())
	e.Subscribe("iot/device/dev1/status", func(string, string) {})

	if e.SubscriptionCount() != 1 {
		t.Errorf("SubscriptionCount() = %d, want 1", e.SubscriptionCount())
	}
}

// ============================================================================
// Publish
// ============================================================================

func TestEmulator_Publish(t *testing.T) {
	tests := []struct {
		name        string
		topic       string
		message     string
		controlResp device.ControlResponse
		controlErr  error
		wantErr     error
		wantCalls   []controlCall
	}{
		{
			name:        "command accepted",
			topic:       "iot/device/dev7/command",
			message:     "on",
			controlResp: device.ControlResponse{Status: device.StatusOK},
			wantCalls:   []controlCall{{deviceID: "dev7", command: "on"}},
		},
		{
			name:    "malformed topic",
			topic:   "malformed-topic",
			message: "x",
			wantErr: ErrMalformedTopic,
		},
		{
			name:    "status topic",
			topic:   "iot/device/dev7/status",
			message: "on",
			wantErr: ErrInvalidPublishTopic,
		},
		{
			name:    "value topic",
			topic:   "iot/device/dev7/value/brightness",
			message: "10",
			wantErr: ErrInvalidPublishTopic,
		},
		{
			name:    "foreign namespace",
			topic:   "home/device/dev7/command",
			message: "on",
			wantErr: ErrInvalidPublishTopic,
		},
		{
			name:        "backend rejects",
			topic:       "iot/device/dev7/command",
			message:     "on",
			controlResp: device.ControlResponse{Status: device.StatusError, Message: "publish failed"},
			wantErr:     ErrCommandRejected,
			wantCalls:   []controlCall{{deviceID: "dev7", command: "on"}},
		},
		{
			name:       "transport failure",
			topic:      "iot/device/dev7/command",
			message:    "on",
			controlErr: errors.New("timeout"),
			wantErr:    ErrTransport,
			wantCalls:  []controlCall{{deviceID: "dev7", command: "on"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := newFakeTransport()
			ft.controlResp = tt.controlResp
			ft.controlErr = tt.controlErr
			e := New(ft)

			err := e.Publish(context.Background(), tt.topic, tt.message)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Publish() unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Publish() error = %v, want %v", err, tt.wantErr)
			}

			if len(ft.controls) != len(tt.wantCalls) {
				t.Fatalf("control calls = %v, want %v", ft.controls, tt.wantCalls)
			}
			for i := range tt.wantCalls {
				if ft.controls[i] != tt.wantCalls[i] {
					t.Errorf("control call %d = %+v, want %+v", i, ft.controls[i], tt.wantCalls[i])
				}
			}
		})
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateDisconnected, "disconnected"},
		{StateProbing, "probing"},
		{StateConnected, "connected"},
		{State(9), "state(9)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", int(tt.state), got, tt.want)
		}
	}
}
