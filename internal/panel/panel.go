package panel

import (
	"context"
	"fmt"
	"sync"

	"github.com/kichnu/iotdash/internal/device"
	"github.com/kichnu/iotdash/internal/topic"
)

// Panel is the state machine behind one device's dashboard surface.
type Panel interface {
	// Render returns the current state as a View. It has no side effects.
	Render() View

	// ReceiveUpdate applies one payload received on topic t.
	ReceiveUpdate(payload, t string) error

	// IssueCommand translates a user intent into a published command.
	IssueCommand(ctx context.Context, intent Intent) error

	// SetConnectivity sets the online flag shown by Render.
	SetConnectivity(online bool)

	// Device returns a copy of the descriptor the panel was built from.
	Device() *device.Device

	// Topics returns every topic the panel needs to be subscribed to.
	Topics() []string
}

// Publisher sends a message on a topic. Satisfied by *pubsub.Emulator.
type Publisher interface {
	Publish(ctx context.Context, t, message string) error
}

// Action is the kind of user interaction behind an Intent.
type Action int

// User actions.
const (
	// ActionToggle flips a toggle or the gate of a toggle-slider.
	ActionToggle Action = iota
	// ActionPress presses a momentary button or an input's set button.
	ActionPress
	// ActionSlide moves a slider without committing the value.
	ActionSlide
	// ActionSet commits a numeric value.
	ActionSet
	// ActionSelect picks a selector option.
	ActionSelect
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionToggle:
		return "toggle"
	case ActionPress:
		return "press"
	case ActionSlide:
		return "slide"
	case ActionSet:
		return "set"
	case ActionSelect:
		return "select"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Intent is one user interaction with a panel.
type Intent struct {
	Action Action
	On     bool    // ActionToggle
	Value  float64 // ActionSlide, ActionSet
	Option string  // ActionSelect
}

// Toggle returns an intent that switches a toggle on or off.
func Toggle(on bool) Intent { return Intent{Action: ActionToggle, On: on} }

// Press returns a button press intent.
func Press() Intent { return Intent{Action: ActionPress} }

// Slide returns an uncommitted slider move.
func Slide(v float64) Intent { return Intent{Action: ActionSlide, Value: v} }

// Set returns a committed value change.
func Set(v float64) Intent { return Intent{Action: ActionSet, Value: v} }

// Select returns a selector change.
func Select(option string) Intent { return Intent{Action: ActionSelect, Option: option} }

// New builds the panel variant for a device descriptor.
//
// The descriptor is copied and defaults are applied to the copy, so later
// changes to d do not affect the panel.
//
// Parameters:
//   - d: Device descriptor
//   - pub: Destination of issued commands (may be nil for display-only use)
//
// Returns:
//   - Panel: The panel, nil on error
//   - error: ErrUnknownPanelType if the tag or mode is not recognised
func New(d *device.Device, pub Publisher) (Panel, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: nil descriptor", ErrUnknownPanelType)
	}

	cfg := d.DeepCopy()
	cfg.ApplyDefaults(topic.DefaultNamespace)
	b := base{dev: cfg, pub: pub}

	switch cfg.Panel {
	case device.PanelBinaryControl:
		switch cfg.Mode() {
		case device.ModeToggle, device.ModeButton, device.ModeIndicator:
			return newBinary(b), nil
		}
	case device.PanelValueControl:
		switch cfg.Mode() {
		case device.ModeSlider, device.ModeToggleSlider, device.ModeInput, device.ModeSelector:
			return newValue(b), nil
		}
	case device.PanelValueDisplay:
		if cfg.Mode() == device.ModeDisplay {
			return newDisplay(b), nil
		}
	case device.PanelIndicatorDisplay:
		if cfg.Mode() == device.ModeGroup {
			return newIndicator(b), nil
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPanelType, cfg.Panel)
	}

	return nil, fmt.Errorf("%w: mode %q for %s", ErrUnknownPanelType, cfg.Mode(), cfg.Panel)
}

// base holds what every variant shares. mu guards the variant's state as
// well as online.
type base struct {
	mu     sync.Mutex
	dev    *device.Device
	pub    Publisher
	online bool
}

// Device returns a copy of the panel's descriptor.
func (b *base) Device() *device.Device {
	return b.dev.DeepCopy()
}

// SetConnectivity sets the online flag.
func (b *base) SetConnectivity(online bool) {
	b.mu.Lock()
	b.online = online
	b.mu.Unlock()
}

// send publishes a command payload on the device command topic.
func (b *base) send(ctx context.Context, command string) error {
	if b.pub == nil {
		return ErrNoPublisher
	}
	return b.pub.Publish(ctx, b.dev.CommandTopic(), command)
}

// view returns the View fields common to all variants. Callers hold mu.
func (b *base) view() View {
	return View{
		ID:     b.dev.ID,
		Name:   b.dev.Name,
		Room:   b.dev.Room,
		Type:   b.dev.Type,
		Kind:   b.dev.Panel,
		Mode:   b.dev.Mode(),
		Online: b.online,
	}
}

// valueTopics returns the full topics of the declared named values in
// name order.
func (b *base) valueTopics() []string {
	names := b.dev.ValueNames()
	topics := make([]string, 0, len(names))
	for _, name := range names {
		topics = append(topics, b.dev.ValueTopic(b.dev.ValueTopics[name]))
	}
	return topics
}

// suffix returns the part of t after the device's base topic. Topics of
// other devices, or of this device under another base, do not match.
func (b *base) suffix(t string) (string, bool) {
	s, err := topic.Suffix(t)
	if err != nil || t != b.dev.ValueTopic(s) {
		return "", false
	}
	return s, true
}

// owns reports whether t is the status topic or a declared value topic.
func (b *base) owns(t string) bool {
	if t == b.dev.StatusTopic() {
		return true
	}
	for _, vt := range b.valueTopics() {
		if vt == t {
			return true
		}
	}
	return false
}
