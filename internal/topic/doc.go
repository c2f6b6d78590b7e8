// Package topic implements the device topic naming scheme shared by the
// backend MQTT bridge and the dashboard's polling pub/sub emulator.
//
// Every device topic has the shape:
//
//	<namespace>/device/<deviceId>/<suffix...>
//
// where suffix is one of:
//   - status:         primary device state ("on", "off", "42", ...)
//   - command:        outbound command channel
//   - value/<name>:   a named sub-value (temperature, brightness, ...)
//
// Topics are always derived with the helpers in this package; callers never
// assemble them by hand beyond the base topic stored on a device descriptor.
//
// # Usage
//
//	t := topic.Status("iot", "kitchen_light")
//	// Returns: "iot/device/kitchen_light/status"
//
//	id, err := topic.ParseDeviceID(t)
//	// id == "kitchen_light"
package topic
