package device

import (
	"fmt"
	"sort"
	"time"

	"github.com/kichnu/iotdash/internal/topic"
)

// PanelKind selects the dashboard panel variant for a device.
type PanelKind string

// Panel variants.
const (
	PanelBinaryControl    PanelKind = "BinaryControl"
	PanelValueControl     PanelKind = "ValueControl"
	PanelValueDisplay     PanelKind = "ValueDisplay"
	PanelIndicatorDisplay PanelKind = "IndicatorDisplay"
)

// Panel modes (the panelType field of a descriptor).
const (
	ModeToggle       = "toggle"
	ModeButton       = "button"
	ModeIndicator    = "indicator"
	ModeSlider       = "slider"
	ModeToggleSlider = "toggle-slider"
	ModeInput        = "input"
	ModeSelector     = "selector"
	ModeDisplay      = "display"
	ModeGroup        = "group"
)

// Descriptor defaults.
const (
	DefaultMax        = 100.0
	DefaultStep       = 1.0
	DefaultButtonText = "Run"
	DefaultOnValue    = "on"
	DefaultOffValue   = "off"

	// MainIndicatorID is the indicator driven by the status topic.
	MainIndicatorID = "main"
)

// modesByKind lists the modes each panel variant accepts. The first entry
// is the default.
var modesByKind = map[PanelKind][]string{
	PanelBinaryControl:    {ModeToggle, ModeButton, ModeIndicator},
	PanelValueControl:     {ModeSlider, ModeToggleSlider, ModeInput, ModeSelector},
	PanelValueDisplay:     {ModeDisplay},
	PanelIndicatorDisplay: {ModeGroup},
}

// Option is one choice of a selector panel.
type Option struct {
	Value string `json:"value" validate:"required"`
	Label string `json:"label"`
}

// Indicator is one named boolean of an indicator group.
//
// Topic is an optional suffix relative to the device base topic
// (e.g. "value/door"). Without it, the indicator is addressed by its ID or
// by the slug of its label.
type Indicator struct {
	ID    string `json:"id" validate:"required,max=64"`
	Label string `json:"label" validate:"required,max=100"`
	Topic string `json:"topic,omitempty"`
}

// Device is a dashboard device descriptor.
//
// Descriptors are validated on create and update and are treated as
// immutable once loaded by the dashboard.
type Device struct {
	// Identity
	ID   string `json:"id" validate:"required,max=64,segment"`
	Name string `json:"name" validate:"required,max=100"`

	// Classification and placement
	Type string `json:"type" validate:"required,max=32"`
	Room string `json:"room,omitempty" validate:"omitempty,max=64"`

	// Panel selection
	Panel     PanelKind `json:"panel" validate:"required,oneof=BinaryControl ValueControl ValueDisplay IndicatorDisplay"`
	PanelType string    `json:"panelType,omitempty"`

	// Topics: Topic is the base topic, ValueTopics maps value names to
	// suffixes of the form value/<key>.
	Topic       string            `json:"topic"`
	ValueTopics map[string]string `json:"valueTopics,omitempty"`

	// Value control configuration
	Min          float64  `json:"min,omitempty"`
	Max          float64  `json:"max,omitempty"`
	Step         float64  `json:"step,omitempty" validate:"gte=0"`
	DefaultValue float64  `json:"defaultValue,omitempty"`
	Unit         string   `json:"unit,omitempty" validate:"max=16"`
	Options      []Option `json:"options,omitempty" validate:"dive"`

	// Binary control configuration
	ButtonText string `json:"buttonText,omitempty" validate:"max=32"`
	OnValue    string `json:"onValue,omitempty"`
	OffValue   string `json:"offValue,omitempty"`

	// Indicator configuration
	Indicators  []Indicator     `json:"indicators,omitempty" validate:"dive"`
	StateValues map[string]bool `json:"stateValues,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// Mode returns the panel mode, falling back to the variant default.
func (d *Device) Mode() string {
	if d.PanelType != "" {
		return d.PanelType
	}
	if modes := modesByKind[d.Panel]; len(modes) > 0 {
		return modes[0]
	}
	return ""
}

// InNamespace returns ErrForeignNamespace unless the device topic is
// exactly <namespace>/device/<id>. An empty namespace means the default.
func (d *Device) InNamespace(namespace string) error {
	if namespace == "" {
		namespace = topic.DefaultNamespace
	}
	if want := topic.Base(namespace, d.ID); d.Topic != want {
		return fmt.Errorf("%w: %q, want %q", ErrForeignNamespace, d.Topic, want)
	}
	return nil
}

// StatusTopic returns the device status topic.
func (d *Device) StatusTopic() string {
	return d.Topic + "/" + topic.SuffixStatus
}

// CommandTopic returns the device command topic.
func (d *Device) CommandTopic() string {
	return d.Topic + "/" + topic.SuffixCommand
}

// ValueTopic returns the full topic for a declared value suffix.
func (d *Device) ValueTopic(suffix string) string {
	return d.Topic + "/" + suffix
}

// ValueNames returns the declared value names in sorted order.
func (d *Device) ValueNames() []string {
	names := make([]string, 0, len(d.ValueTopics))
	for name := range d.ValueTopics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Option returns the selector option with the given value.
func (d *Device) Option(value string) (Option, bool) {
	for _, o := range d.Options {
		if o.Value == value {
			return o, true
		}
	}
	return Option{}, false
}

// ApplyDefaults fills unset fields with their defaults.
//
// Parameters:
//   - namespace: Topic namespace used to derive Topic when it is empty
func (d *Device) ApplyDefaults(namespace string) {
	if namespace == "" {
		namespace = topic.DefaultNamespace
	}
	if d.Topic == "" && d.ID != "" {
		d.Topic = topic.Base(namespace, d.ID)
	}
	if d.PanelType == "" {
		d.PanelType = d.Mode()
	}
	if d.Max == 0 {
		d.Max = DefaultMax
	}
	if d.Step == 0 {
		d.Step = DefaultStep
	}
	if d.DefaultValue == 0 {
		d.DefaultValue = d.Min
	}
	if d.ButtonText == "" {
		d.ButtonText = DefaultButtonText
	}
	if d.OnValue == "" {
		d.OnValue = DefaultOnValue
	}
	if d.OffValue == "" {
		d.OffValue = DefaultOffValue
	}
	if d.Panel == PanelIndicatorDisplay && len(d.Indicators) == 0 {
		d.Indicators = []Indicator{{ID: MainIndicatorID, Label: "Status"}}
	}
	if len(d.StateValues) == 0 {
		d.StateValues = DefaultStateValues()
	}
}

// DefaultStateValues returns the default payload-to-boolean table.
func DefaultStateValues() map[string]bool {
	return map[string]bool{"on": true, "off": false, "1": true, "0": false}
}

// DeepCopy creates a complete independent copy of the Device.
// Map and slice fields are cloned so modifications to the copy do not
// affect the original.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	cpy := *d

	if d.ValueTopics != nil {
		cpy.ValueTopics = make(map[string]string, len(d.ValueTopics))
		for k, v := range d.ValueTopics {
			cpy.ValueTopics[k] = v
		}
	}
	if d.StateValues != nil {
		cpy.StateValues = make(map[string]bool, len(d.StateValues))
		for k, v := range d.StateValues {
			cpy.StateValues[k] = v
		}
	}
	if d.Options != nil {
		cpy.Options = append([]Option(nil), d.Options...)
	}
	if d.Indicators != nil {
		cpy.Indicators = append([]Indicator(nil), d.Indicators...)
	}

	return &cpy
}
