package device

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/kichnu/iotdash/internal/topic"
)

// Publisher sends raw MQTT messages. Satisfied by the mqtt infrastructure
// client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// MetricWriter receives numeric device readings. Satisfied by the influxdb
// infrastructure client.
type MetricWriter interface {
	WriteDeviceMetric(deviceID string, measurement string, value float64)
}

// Catalogue answers whether a device ID is known.
type Catalogue interface {
	Exists(ctx context.Context, id string) bool
}

// Tracker records the last status and named values published by each
// catalogued device and serves them as a Snapshot.
//
// Messages for devices that are not in the catalogue are ignored.
//
// All public methods are thread-safe.
type Tracker struct {
	catalogue Catalogue

	entries map[string]*StatusEntry
	mu      sync.RWMutex

	metrics MetricWriter
	now     func() time.Time
	logger  Logger
}

// NewTracker creates a tracker that accepts messages for devices known to
// the catalogue.
func NewTracker(catalogue Catalogue) *Tracker {
	return &Tracker{
		catalogue: catalogue,
		entries:   make(map[string]*StatusEntry),
		now:       time.Now,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the tracker.
func (t *Tracker) SetLogger(logger Logger) {
	t.logger = logger
}

// SetMetricWriter enables telemetry of numeric readings.
func (t *Tracker) SetMetricWriter(w MetricWriter) {
	t.metrics = w
}

// Sync makes the tracked set equal to ids. New devices start offline with
// no status; entries for devices not in ids are dropped.
func (t *Tracker) Sync(ids []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	keep := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
		if _, ok := t.entries[id]; !ok {
			t.entries[id] = newEntry()
		}
	}
	for id := range t.entries {
		if _, ok := keep[id]; !ok {
			delete(t.entries, id)
		}
	}
}

// Track starts tracking a device with an offline entry. Existing entries
// are kept.
func (t *Tracker) Track(id string) {
	t.mu.Lock()
	if _, ok := t.entries[id]; !ok {
		t.entries[id] = newEntry()
	}
	t.mu.Unlock()
}

// Forget stops tracking a device.
func (t *Tracker) Forget(id string) {
	t.mu.Lock()
	delete(t.entries, id)
	t.mu.Unlock()
}

// HandleMessage is an MQTT message handler for device status and value
// topics. Messages for unknown devices are ignored.
//
// Returns:
//   - error: if the topic is not a device topic
func (t *Tracker) HandleMessage(msgTopic string, payload []byte) error {
	if _, err := topic.ParseDeviceID(msgTopic); err != nil {
		return err
	}
	t.Update(msgTopic, string(payload))
	return nil
}

// Update records one message. It marks the device online, refreshes
// last_seen, and stores the payload as the status or as a named value.
//
// Returns:
//   - bool: true if the message was recorded
func (t *Tracker) Update(msgTopic, payload string) bool {
	p, err := topic.Parse(msgTopic)
	if err != nil {
		return false
	}
	if !t.catalogue.Exists(context.Background(), p.DeviceID) {
		t.logger.Debug("ignoring message for unknown device", "device_id", p.DeviceID, "topic", msgTopic)
		return false
	}

	now := t.now().UTC()

	t.mu.Lock()
	entry, ok := t.entries[p.DeviceID]
	if !ok {
		entry = newEntry()
		t.entries[p.DeviceID] = entry
	}
	entry.Online = true
	entry.LastSeen = &now

	measurement := ""
	switch {
	case p.IsStatus():
		status := payload
		entry.Status = &status
		measurement = topic.SuffixStatus
	default:
		if name, ok := p.ValueName(); ok {
			entry.Values[name] = payload
			measurement = name
		}
	}
	t.mu.Unlock()

	if measurement != "" && t.metrics != nil {
		if v, err := strconv.ParseFloat(payload, 64); err == nil {
			t.metrics.WriteDeviceMetric(p.DeviceID, measurement, v)
		}
	}

	return true
}

// Entry returns a copy of one device's status entry.
func (t *Tracker) Entry(id string) (StatusEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.entries[id]
	if !ok {
		return StatusEntry{}, false
	}
	return entry.clone(), true
}

// Snapshot returns a copy of every tracked entry.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := make(Snapshot, len(t.entries))
	for id, entry := range t.entries {
		snap[id] = entry.clone()
	}
	return snap
}

// ApplyGatedCommand mirrors a numeric command for a gated (toggle-slider)
// device: zero publishes status "off", anything else "on", followed by the
// value on the device's first declared value topic.
//
// Parameters:
//   - d: The target device
//   - command: Numeric command payload
//   - pub: MQTT publisher
//   - qos: QoS for the published messages
//
// Returns:
//   - error: ErrInvalidCommand if command is not numeric, or a publish error
func (t *Tracker) ApplyGatedCommand(d *Device, command string, pub Publisher, qos byte) error {
	value, err := strconv.ParseFloat(command, 64)
	if err != nil {
		return fmt.Errorf("%w: %q is not numeric", ErrInvalidCommand, command)
	}

	status := DefaultOnValue
	if value == 0 {
		status = DefaultOffValue
	}

	if err := pub.Publish(d.StatusTopic(), []byte(status), qos, false); err != nil {
		return fmt.Errorf("publishing gated status: %w", err)
	}

	names := d.ValueNames()
	if len(names) == 0 {
		return nil
	}
	valueTopic := d.ValueTopic(d.ValueTopics[names[0]])
	if err := pub.Publish(valueTopic, []byte(strconv.FormatFloat(value, 'f', -1, 64)), qos, false); err != nil {
		return fmt.Errorf("publishing gated value: %w", err)
	}

	t.logger.Debug("gated command mirrored", "device_id", d.ID, "status", status, "value", value)
	return nil
}

func newEntry() *StatusEntry {
	return &StatusEntry{Values: make(map[string]string)}
}

func (e *StatusEntry) clone() StatusEntry {
	cpy := *e
	cpy.Values = make(map[string]string, len(e.Values))
	for k, v := range e.Values {
		cpy.Values[k] = v
	}
	if e.Status != nil {
		s := *e.Status
		cpy.Status = &s
	}
	if e.LastSeen != nil {
		ts := *e.LastSeen
		cpy.LastSeen = &ts
	}
	return cpy
}
