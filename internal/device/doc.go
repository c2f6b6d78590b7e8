// Package device provides the device catalogue and live status tracking
// for the IoT dashboard backend.
//
// The catalogue holds one descriptor per device: which panel variant shows
// it, which topics it uses, and the variant configuration (bounds, step,
// unit, options, indicators). The status tracker keeps the last message seen
// on each device's status and value topics and serves it as the aggregate
// snapshot that dashboards poll.
//
// # Architecture
//
//	┌────────────────────────────────────────────────────────────────────┐
//	│                           device package                           │
//	│                                                                    │
//	│  ┌─────────────────┐   ┌─────────────────┐   ┌─────────────────┐   │
//	│  │    Registry     │──▶│   Repository    │   │   Validation    │   │
//	│  │  (registry.go)  │   │ (repository.go) │   │ (validation.go) │   │
//	│  │ • CRUD + cache  │   │ • SQLite        │   │ • validator/v10 │   │
//	│  └─────────────────┘   └─────────────────┘   └─────────────────┘   │
//	│           ▲                                                        │
//	│           │ known devices                                          │
//	│  ┌─────────────────┐                                               │
//	│  │     Tracker     │◀── MQTT  <ns>/device/+/status, +/value/+      │
//	│  │  (tracker.go)   │──▶ Snapshot (GET /api/devices/status)         │
//	│  └─────────────────┘                                               │
//	└────────────────────────────────────────────────────────────────────┘
//
// # Key Types
//
//   - Device: validated descriptor, immutable once loaded by a dashboard
//   - StatusEntry / Snapshot: last known status and named values per device
//   - ControlRequest / ControlResponse: the command endpoint's wire format
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db)
//	registry := device.NewRegistry(repo, "iot")
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	tracker := device.NewTracker(registry)
//	tracker.Sync(registry.IDs())
//	mqttClient.Subscribe(mqttClient.Topics().AllDeviceStatus(), 1, tracker.HandleMessage)
//
//	snap := tracker.Snapshot()
package device
