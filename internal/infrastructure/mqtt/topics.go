package mqtt

import (
	"fmt"

	"github.com/kichnu/iotdash/internal/topic"
)

// Topics provides builders for the MQTT topics of one namespace.
// Using these helpers ensures consistent topic naming across the codebase.
//
// Device topics follow <namespace>/device/<id>/<suffix>:
//
//	topics := mqtt.Topics{Namespace: "iot"}
//	statusTopic := topics.DeviceStatus("kitchen_light")
//	// Returns: "iot/device/kitchen_light/status"
//
// A zero Topics uses topic.DefaultNamespace.
type Topics struct {
	Namespace string
}

func (t Topics) ns() string {
	if t.Namespace == "" {
		return topic.DefaultNamespace
	}
	return t.Namespace
}

// =============================================================================
// Device Topics
// =============================================================================

// DeviceStatus returns the topic a device publishes its primary state on.
//
// Example: iot/device/kitchen_light/status
func (t Topics) DeviceStatus(deviceID string) string {
	return topic.Status(t.ns(), deviceID)
}

// DeviceCommand returns the topic a device listens for commands on.
//
// Example: iot/device/kitchen_light/command
func (t Topics) DeviceCommand(deviceID string) string {
	return topic.Command(t.ns(), deviceID)
}

// DeviceValue returns the topic for a named sub-value of a device.
//
// Example: iot/device/living_room_temp/value/temperature
func (t Topics) DeviceValue(deviceID, name string) string {
	return topic.Value(t.ns(), deviceID, name)
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the backend's own online/offline topic.
//
// Example: iot/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.ns())
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllDeviceStatus returns a pattern matching every device status topic.
//
// Pattern: iot/device/+/status
func (t Topics) AllDeviceStatus() string {
	return topic.Status(t.ns(), "+")
}

// AllDeviceValues returns a pattern matching every named device value.
//
// Pattern: iot/device/+/value/+
func (t Topics) AllDeviceValues() string {
	return topic.Value(t.ns(), "+", "+")
}

// AllDeviceCommands returns a pattern matching every device command topic.
//
// Pattern: iot/device/+/command
func (t Topics) AllDeviceCommands() string {
	return topic.Command(t.ns(), "+")
}

// AllTopics returns a pattern matching every topic in the namespace.
// Use with caution - this receives ALL traffic.
//
// Pattern: iot/#
func (t Topics) AllTopics() string {
	return t.ns() + "/#"
}
