// Package pubsub emulates topic-based publish/subscribe on top of a
// polling REST backend.
//
// The dashboard never talks to the MQTT broker directly. Instead the
// Emulator periodically fetches one aggregate device-status snapshot and
// fans it out to the handlers registered for each topic, so that callers
// can program against broker-like semantics:
//
//   - Subscribe / Unsubscribe: single handler per topic, last writer wins
//   - Publish: command topics become one control request to the backend
//   - Connect / Disconnect: connectivity events derived from a status probe
//
// # Architecture
//
//	Controller ── Subscribe/Publish ──► Emulator ── Status/DevicesStatus/ControlDevice ──► Transport (REST)
//	                                       │
//	                                       └── Notify ──► Registry ──► Handler (panel)
//
// # Delivery Semantics
//
//   - Every poll tick re-delivers the current status and named values to all
//     live subscribers (at-least-once per tick, not edge-triggered)
//   - Within one tick, device IDs and value names are delivered in sorted order
//   - Ticks whose fetch fails deliver nothing; the failure is reported via
//     the error callback and the log
//   - Results that complete after Disconnect (or after a newer Connect) are
//     dropped
//
// # Connectivity
//
// Connect returns immediately. The probe runs in the background and reports
// the outcome through the OnConnect / OnDisconnect callbacks. While the
// emulator is not connected, each tick re-probes so connectivity heals on
// its own. Only Disconnect stops the loop.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Handlers run on the polling
// goroutine without the registry lock held, so a handler may call
// Subscribe or Unsubscribe. Connect and Disconnect wait for a running
// handler to return and no handler of the old session runs afterwards, so
// handlers must not call them synchronously.
//
// # Usage
//
//	em := pubsub.New(apiclient.New(cfg.Dashboard),
//	    pubsub.WithPollInterval(5*time.Second),
//	)
//	em.SetOnConnect(func() {
//	    em.Subscribe(topic.Status("iot", "kitchen_light"), func(t, payload string) {
//	        log.Printf("%s = %s", t, payload)
//	    })
//	})
//	em.Connect(ctx)
//	defer em.Disconnect()
//
//	err := em.Publish(ctx, topic.Command("iot", "kitchen_light"), "on")
package pubsub
