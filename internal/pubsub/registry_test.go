package pubsub

import (
	"testing"
)

func TestRegistry_SubscribeNotify(t *testing.T) {
	r := NewRegistry()

	var gotTopic, gotPayload string
	r.Subscribe("iot/device/dev1/status", func(topic, payload string) {
		gotTopic, gotPayload = topic, payload
	})

	if !r.Notify("iot/device/dev1/status", "on") {
		t.Fatal("Notify() = false, want true")
	}
	if gotTopic != "iot/device/dev1/status" || gotPayload != "on" {
		t.Errorf("handler got (%q, %q), want (iot/device/dev1/status, on)", gotTopic, gotPayload)
	}
}

func TestRegistry_LastWriterWins(t *testing.T) {
	r := NewRegistry()
	var first, second int

	r.Subscribe("t", func(string, string) { first++ })
	r.Subscribe("t", func(string, string) { second++ })
	r.Notify("t", "x")

	if first != 0 || second != 1 {
		t.Errorf("calls = (%d, %d), want (0, 1)", first, second)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistry_UnsubscribeIdempotent(t *testing.T) {
	r := NewRegistry()
	calls := 0
	r.Subscribe("t", func(string, string) { calls++ })

	r.Unsubscribe("t")
	r.Unsubscribe("t")
	r.Unsubscribe("never-subscribed")

	if r.Notify("t", "x") {
		t.Error("Notify() after Unsubscribe = true, want false")
	}
	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
}

func TestRegistry_NotifyUnsubscribedTopic(t *testing.T) {
	r := NewRegistry()
	if r.Notify("iot/device/ghost/status", "on") {
		t.Error("Notify() on unsubscribed topic = true, want false")
	}
}

func TestRegistry_NilHandlerIgnored(t *testing.T) {
	r := NewRegistry()
	r.Subscribe("t", nil)
	if r.Has("t") {
		t.Error("Has() after nil Subscribe = true, want false")
	}
}

func TestRegistry_Clear(t *testing.T) {
	r := NewRegistry()
	r.Subscribe("a", func(string, string) {})
	r.Subscribe("b", func(string, string) {})

	r.Clear()

	if r.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", r.Len())
	}
	if r.Has("a") {
		t.Error("Has(a) after Clear = true, want false")
	}
}

func TestRegistry_HandlerMaySubscribe(t *testing.T) {
	r := NewRegistry()
	r.Subscribe("a", func(string, string) {
		r.Subscribe("b", func(string, string) {})
	})

	r.Notify("a", "x")

	if !r.Has("b") {
		t.Error("subscription made from inside a handler was lost")
	}
}

func TestRegistry_Topics(t *testing.T) {
	r := NewRegistry()
	for _, topic := range []string{"c", "a", "b"} {
		r.Subscribe(topic, func(string, string) {})
	}

	got := r.Topics()
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("Topics() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Topics()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
