package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/kichnu/iotdash/internal/infrastructure/config"
)

const testNamespace = "iotdash-test"

var (
	brokerOnce      sync.Once
	brokerReachable bool
)

// brokerConfig skips the test when no broker listens on 127.0.0.1:1883.
func brokerConfig(t *testing.T, clientID string) config.MQTTConfig {
	t.Helper()
	brokerOnce.Do(func() {
		conn, err := net.DialTimeout("tcp", "127.0.0.1:1883", 500*time.Millisecond)
		if err == nil {
			conn.Close()
			brokerReachable = true
		}
	})
	if !brokerReachable {
		t.Skip("MQTT broker not available at 127.0.0.1:1883")
	}
	cfg := testConfig()
	cfg.Broker.ClientID = clientID
	return cfg
}

func connect(t *testing.T, clientID string) *Client {
	t.Helper()
	c, err := Connect(brokerConfig(t, clientID), testNamespace)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestConnect_Refused(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 19998

	_, err := Connect(cfg, testNamespace)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_Close(t *testing.T) {
	c := connect(t, "iotdash-test-close")

	if !c.IsConnected() {
		t.Fatal("IsConnected() = false after Connect")
	}
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}
	if err := c.Publish(c.Topics().DeviceCommand("lamp"), []byte("on"), 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() after Close error = %v, want ErrNotConnected", err)
	}
}

func TestSubscriptions(t *testing.T) {
	c := connect(t, "iotdash-test-subs")
	noop := func(string, []byte) error { return nil }

	patterns := []string{
		c.Topics().AllDeviceValues(),
		c.Topics().AllDeviceStatus(),
	}
	for _, p := range patterns {
		if err := c.Subscribe(p, 1, noop); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", p, err)
		}
	}
	// Re-subscribing replaces rather than duplicates.
	if err := c.Subscribe(patterns[0], 0, noop); err != nil {
		t.Fatalf("Subscribe() again error = %v", err)
	}

	got := c.Subscriptions()
	want := []string{"iotdash-test/device/+/status", "iotdash-test/device/+/value/+"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Subscriptions() = %v, want %v", got, want)
	}

	if err := c.Unsubscribe(patterns[1]); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if got := c.Subscriptions(); len(got) != 1 {
		t.Errorf("Subscriptions() after Unsubscribe = %v, want one", got)
	}
}

func TestPublishSubscribe_Wildcard(t *testing.T) {
	pub := connect(t, "iotdash-test-pub")
	sub := connect(t, "iotdash-test-sub")

	received := make(chan string, 4)
	err := sub.Subscribe(sub.Topics().AllDeviceStatus(), 1, func(topic string, payload []byte) error {
		received <- topic + "=" + string(payload)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	want := map[string]bool{
		"iotdash-test/device/lamp/status=on":   true,
		"iotdash-test/device/fan/status=fan_2": true,
	}
	if err := pub.PublishString(pub.Topics().DeviceStatus("lamp"), "on", 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := pub.PublishString(pub.Topics().DeviceStatus("fan"), "fan_2", 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	// Not matched by the status pattern.
	if err := pub.PublishString(pub.Topics().DeviceCommand("lamp"), "off", 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	for range want {
		select {
		case msg := <-received:
			if !want[msg] {
				t.Errorf("unexpected message %q", msg)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for status messages")
		}
	}
}

func TestSystemStatus_Online(t *testing.T) {
	backend := connect(t, "iotdash-test-backend")

	// A separate namespace keeps the watcher's own status off the topic.
	watcher, err := Connect(brokerConfig(t, "iotdash-test-watcher"), "iotdash-watch")
	if err != nil {
		t.Fatalf("Connect() watcher error = %v", err)
	}
	defer watcher.Close()

	got := make(chan systemStatus, 4)
	err = watcher.Subscribe(backend.Topics().SystemStatus(), 1, func(_ string, payload []byte) error {
		var s systemStatus
		if err := json.Unmarshal(payload, &s); err != nil {
			return err
		}
		got <- s
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case s := <-got:
			if s.ClientID == "iotdash-test-backend" {
				if s.Status != "online" {
					t.Errorf("status = %q, want online", s.Status)
				}
				return
			}
		case <-deadline:
			t.Fatal("timeout waiting for backend system status")
		}
	}
}
