package topic

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gosimple/slug"
)

// Topic scheme constants.
const (
	// DefaultNamespace is the root segment used when none is configured.
	DefaultNamespace = "iot"

	// SuffixStatus addresses a device's primary state.
	SuffixStatus = "status"

	// SuffixCommand addresses a device's command channel.
	SuffixCommand = "command"

	// deviceSegment is the fixed second segment of every device topic.
	deviceSegment = "device"

	// valueSegment prefixes named sub-value suffixes.
	valueSegment = "value"

	separator = "/"

	// minSegments is namespace + "device" + id + at least one suffix segment.
	minSegments = 4
)

// Parts is a device topic split into its components.
type Parts struct {
	Namespace string
	DeviceID  string
	Suffix    string
}

// IsStatus reports whether the topic addresses the device status.
func (p Parts) IsStatus() bool { return p.Suffix == SuffixStatus }

// IsCommand reports whether the topic addresses the command channel.
func (p Parts) IsCommand() bool { return p.Suffix == SuffixCommand }

// ValueName returns the named sub-value addressed by the topic, if any.
func (p Parts) ValueName() (string, bool) {
	return ValueKey(p.Suffix)
}

// ValidSegment reports whether s can be used as a single topic segment.
// Empty strings, separators and MQTT wildcards are rejected.
func ValidSegment(s string) bool {
	return s != "" && !strings.ContainsAny(s, "/+#")
}

// Base returns the base topic for a device.
//
// Example: iot/device/kitchen_light
func Base(namespace, deviceID string) string {
	return fmt.Sprintf("%s/%s/%s", namespace, deviceSegment, deviceID)
}

// Status returns the status topic for a device.
//
// Example: iot/device/kitchen_light/status
func Status(namespace, deviceID string) string {
	return Base(namespace, deviceID) + separator + SuffixStatus
}

// Command returns the command topic for a device.
//
// Example: iot/device/kitchen_light/command
func Command(namespace, deviceID string) string {
	return Base(namespace, deviceID) + separator + SuffixCommand
}

// Value returns the topic for a named sub-value of a device.
//
// Example: iot/device/living_room_temp/value/temperature
func Value(namespace, deviceID, name string) string {
	return Base(namespace, deviceID) + separator + ValueSuffix(name)
}

// ValueSuffix returns the suffix for a named sub-value ("value/<name>").
func ValueSuffix(name string) string {
	return valueSegment + separator + name
}

// ValueKey extracts the value name from a "value/<name>" suffix.
func ValueKey(suffix string) (string, bool) {
	name, ok := strings.CutPrefix(suffix, valueSegment+separator)
	if !ok || !ValidSegment(name) {
		return "", false
	}
	return name, true
}

// For builds the canonical topic for a device and suffix.
//
// The suffix must be "status", "command" or "value/<name>".
func For(namespace, deviceID, suffix string) (string, error) {
	if !ValidSegment(namespace) {
		return "", fmt.Errorf("%w: namespace %q", ErrInvalidSegment, namespace)
	}
	if !ValidSegment(deviceID) {
		return "", fmt.Errorf("%w: device id %q", ErrInvalidSegment, deviceID)
	}
	switch suffix {
	case SuffixStatus, SuffixCommand:
	default:
		if _, ok := ValueKey(suffix); !ok {
			return "", fmt.Errorf("%w: suffix %q", ErrInvalidSegment, suffix)
		}
	}
	return Base(namespace, deviceID) + separator + suffix, nil
}

// Parse splits a device topic into namespace, device ID and suffix.
//
// Returns ErrMalformedTopic unless the topic has the shape
// <namespace>/device/<deviceId>/<suffix...> with no empty segments.
func Parse(t string) (Parts, error) {
	segments := strings.Split(t, separator)
	if len(segments) < minSegments {
		return Parts{}, fmt.Errorf("%w: %q", ErrMalformedTopic, t)
	}
	if segments[1] != deviceSegment {
		return Parts{}, fmt.Errorf("%w: %q has no %q segment", ErrMalformedTopic, t, deviceSegment)
	}
	for _, s := range segments {
		if s == "" {
			return Parts{}, fmt.Errorf("%w: %q has an empty segment", ErrMalformedTopic, t)
		}
	}
	return Parts{
		Namespace: segments[0],
		DeviceID:  segments[2],
		Suffix:    strings.Join(segments[3:], separator),
	}, nil
}

// ParseDeviceID extracts the device identifier segment from a topic.
func ParseDeviceID(t string) (string, error) {
	p, err := Parse(t)
	if err != nil {
		return "", err
	}
	return p.DeviceID, nil
}

// MatchesNamedValue resolves a topic to one of the device's declared named
// sub-values. valueTopics maps value names to topic suffixes as declared on
// the device descriptor. Returns false when the topic belongs to another
// device or addresses no declared value.
func MatchesNamedValue(t, deviceID string, valueTopics map[string]string) (string, bool) {
	p, err := Parse(t)
	if err != nil || p.DeviceID != deviceID {
		return "", false
	}

	names := make([]string, 0, len(valueTopics))
	for name := range valueTopics {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if valueTopics[name] == p.Suffix {
			return name, true
		}
	}
	return "", false
}

// Slug derives a topic-safe key from a human label ("Door Open" → "door_open").
func Slug(label string) string {
	return strings.ReplaceAll(slug.Make(label), "-", "_")
}

// Suffix returns the part of a device topic after the device segment.
func Suffix(t string) (string, error) {
	p, err := Parse(t)
	if err != nil {
		return "", err
	}
	return p.Suffix, nil
}
