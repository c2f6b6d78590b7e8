package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/kichnu/iotdash/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "iotdash-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// recordingLogger captures log calls.
type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) Error(msg string, args ...any) { l.add("ERROR " + msg) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.add("WARN " + msg) }

func (l *recordingLogger) add(s string) {
	l.mu.Lock()
	l.lines = append(l.lines, s)
	l.mu.Unlock()
}

func (l *recordingLogger) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

// =============================================================================
// Options
// =============================================================================

func TestBrokerURL(t *testing.T) {
	tests := []struct {
		name   string
		broker config.MQTTBrokerConfig
		want   string
	}{
		{"plain", config.MQTTBrokerConfig{Host: "localhost", Port: 1883}, "tcp://localhost:1883"},
		{"tls", config.MQTTBrokerConfig{Host: "broker.lan", Port: 8883, TLS: true}, "ssl://broker.lan:8883"},
		{"ipv6", config.MQTTBrokerConfig{Host: "::1", Port: 1883}, "tcp://[::1]:1883"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := brokerURL(tt.broker); got != tt.want {
				t.Errorf("brokerURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRetryIntervals(t *testing.T) {
	tests := []struct {
		name              string
		reconnect         config.MQTTReconnectConfig
		wantInit, wantMax time.Duration
	}{
		{"configured", config.MQTTReconnectConfig{InitialDelay: 2, MaxDelay: 30}, 2 * time.Second, 30 * time.Second},
		{"defaults", config.MQTTReconnectConfig{}, defaultRetryInterval, defaultMaxRetryInterval},
		{"max below initial", config.MQTTReconnectConfig{InitialDelay: 10, MaxDelay: 5}, 10 * time.Second, 10 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotInit, gotMax := retryIntervals(tt.reconnect)
			if gotInit != tt.wantInit || gotMax != tt.wantMax {
				t.Errorf("retryIntervals() = (%v, %v), want (%v, %v)", gotInit, gotMax, tt.wantInit, tt.wantMax)
			}
		})
	}
}

func TestNewClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "dash", Password: "secret"}
	cfg.Broker.TLS = true

	opts := newClientOptions(cfg, Topics{Namespace: "home"})

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want [ssl://127.0.0.1:1883]", opts.Servers)
	}
	if opts.ClientID != "iotdash-test" {
		t.Errorf("ClientID = %q, want iotdash-test", opts.ClientID)
	}
	if opts.Username != "dash" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q, want dash/secret", opts.Username, opts.Password)
	}
	if opts.TLSConfig == nil {
		t.Error("TLSConfig = nil, want TLS enabled")
	}
	if !opts.AutoReconnect || !opts.CleanSession {
		t.Errorf("AutoReconnect = %v, CleanSession = %v, want both true", opts.AutoReconnect, opts.CleanSession)
	}
	if opts.MaxReconnectInterval != 5*time.Second {
		t.Errorf("MaxReconnectInterval = %v, want 5s", opts.MaxReconnectInterval)
	}

	if !opts.WillEnabled || !opts.WillRetained {
		t.Fatalf("will enabled = %v, retained = %v, want both true", opts.WillEnabled, opts.WillRetained)
	}
	if opts.WillTopic != "home/system/status" {
		t.Errorf("WillTopic = %q, want home/system/status", opts.WillTopic)
	}
	var will systemStatus
	if err := json.Unmarshal(opts.WillPayload, &will); err != nil {
		t.Fatalf("will payload %q: %v", opts.WillPayload, err)
	}
	if will.Status != "offline" || will.Reason != reasonConnection || will.ClientID != "iotdash-test" {
		t.Errorf("will = %+v", will)
	}
}

func TestNewClientOptions_NoAuth(t *testing.T) {
	opts := newClientOptions(testConfig(), Topics{})

	if opts.Username != "" {
		t.Errorf("Username = %q, want empty", opts.Username)
	}
	if opts.Servers[0].Scheme != "tcp" {
		t.Errorf("scheme = %q, want tcp", opts.Servers[0].Scheme)
	}
	if opts.WillTopic != "iot/system/status" {
		t.Errorf("WillTopic = %q, want iot/system/status", opts.WillTopic)
	}
}

func TestStatusPayload(t *testing.T) {
	at := time.Date(2026, 10, 19, 13, 0, 0, 0, time.FixedZone("CEST", 2*3600))

	got := string(statusPayload("online", "iotdash", "", at))
	want := `{"status":"online","client_id":"iotdash","timestamp":"2026-10-19T11:00:00Z"}`
	if got != want {
		t.Errorf("statusPayload(online) = %s, want %s", got, want)
	}

	got = string(statusPayload("offline", "iotdash", reasonShutdown, at))
	if !strings.Contains(got, `"reason":"graceful_shutdown"`) {
		t.Errorf("statusPayload(offline) = %s, want graceful_shutdown reason", got)
	}
}

// =============================================================================
// Unconnected client
// =============================================================================

func TestDisconnectedClient(t *testing.T) {
	c := &Client{subs: make(map[string]subscription)}
	noop := func(string, []byte) error { return nil }

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"publish empty topic", func() error { return c.Publish("", []byte("on"), 1, false) }, ErrInvalidTopic},
		{"publish bad qos", func() error { return c.Publish("iot/device/a/command", nil, 3, false) }, ErrInvalidQoS},
		{"publish too large", func() error {
			return c.Publish("iot/device/a/command", make([]byte, MaxPayloadSize+1), 1, false)
		}, ErrPayloadTooLarge},
		{"publish", func() error { return c.PublishString("iot/device/a/command", "on", 1, false) }, ErrNotConnected},
		{"subscribe empty topic", func() error { return c.Subscribe("", 1, noop) }, ErrInvalidTopic},
		{"subscribe bad qos", func() error { return c.Subscribe("iot/#", 3, noop) }, ErrInvalidQoS},
		{"subscribe nil handler", func() error { return c.Subscribe("iot/#", 1, nil) }, ErrSubscribeFailed},
		{"subscribe", func() error { return c.Subscribe("iot/#", 1, noop) }, ErrNotConnected},
		{"unsubscribe empty topic", func() error { return c.Unsubscribe("") }, ErrInvalidTopic},
		{"unsubscribe", func() error { return c.Unsubscribe("iot/#") }, ErrNotConnected},
		{"health", func() error { return c.HealthCheck(context.Background()) }, ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}

	if c.IsConnected() {
		t.Error("IsConnected() = true, want false")
	}
	if got := c.Subscriptions(); len(got) != 0 {
		t.Errorf("Subscriptions() = %v, want none", got)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
}

func TestHealthCheck_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := (&Client{}).HealthCheck(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

// =============================================================================
// Dispatch
// =============================================================================

func TestDispatch(t *testing.T) {
	log := &recordingLogger{}
	c := &Client{}
	c.SetLogger(log)

	var got []string
	ok := c.dispatch(func(topic string, payload []byte) error {
		got = append(got, topic+"="+string(payload))
		return nil
	})
	ok(nil, fakeMessage{topic: "iot/device/lamp/status", payload: []byte("on")})
	if len(got) != 1 || got[0] != "iot/device/lamp/status=on" {
		t.Errorf("handler saw %v, want [iot/device/lamp/status=on]", got)
	}

	failing := c.dispatch(func(string, []byte) error { return errors.New("unknown device") })
	failing(nil, fakeMessage{topic: "iot/device/ghost/status"})

	panicking := c.dispatch(func(string, []byte) error { panic("boom") })
	panicking(nil, fakeMessage{topic: "iot/device/lamp/status"})

	want := []string{"WARN mqtt handler failed", "ERROR mqtt handler panicked"}
	lines := log.all()
	if fmt.Sprint(lines) != fmt.Sprint(want) {
		t.Errorf("log = %v, want %v", lines, want)
	}
}

func TestDispatch_NoLogger(t *testing.T) {
	c := &Client{}
	h := c.dispatch(func(string, []byte) error { panic("boom") })

	// Must not propagate the panic.
	h(nil, fakeMessage{topic: "iot/device/lamp/status"})

	c.SetLogger(nil)
	if c.log() != nil {
		t.Error("log() != nil after SetLogger(nil)")
	}
}

func TestCallbacks(t *testing.T) {
	c := &Client{subs: make(map[string]subscription), paho: pahomqtt.NewClient(pahomqtt.NewClientOptions())}

	var mu sync.Mutex
	var events []string
	c.SetOnDisconnect(func(err error) {
		mu.Lock()
		events = append(events, "down: "+err.Error())
		mu.Unlock()
	})

	c.setConnected(true)
	c.connectionDown(errors.New("link lost"))

	if c.IsConnected() {
		t.Error("IsConnected() = true after connection loss")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(events) != 1 || events[0] != "down: link lost" {
		t.Errorf("events = %v, want [down: link lost]", events)
	}
}

// =============================================================================
// Topics
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	ns := Topics{Namespace: "home"}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"DeviceStatus", ns.DeviceStatus("kitchen_light"), "home/device/kitchen_light/status"},
		{"DeviceCommand", ns.DeviceCommand("kitchen_light"), "home/device/kitchen_light/command"},
		{"DeviceValue", ns.DeviceValue("living_room_temp", "temperature"), "home/device/living_room_temp/value/temperature"},
		{"SystemStatus", ns.SystemStatus(), "home/system/status"},
		{"AllDeviceStatus", ns.AllDeviceStatus(), "home/device/+/status"},
		{"AllDeviceValues", ns.AllDeviceValues(), "home/device/+/value/+"},
		{"AllDeviceCommands", ns.AllDeviceCommands(), "home/device/+/command"},
		{"AllTopics", ns.AllTopics(), "home/#"},
		{"DefaultNamespace", Topics{}.DeviceStatus("fan"), "iot/device/fan/status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s() = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}
