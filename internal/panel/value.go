package panel

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kichnu/iotdash/internal/device"
	"github.com/kichnu/iotdash/internal/topic"
)

// valuePanel is a numeric value (slider, toggle-slider, input) or an
// enumerated one (selector), driven by the status topic and every declared
// value topic.
type valuePanel struct {
	base
	value    float64
	selected string
	gateOn   bool
}

func newValue(b base) *valuePanel {
	p := &valuePanel{base: b, value: b.dev.DefaultValue}
	p.gateOn = p.value > 0
	if len(b.dev.Options) > 0 {
		p.selected = b.dev.Options[0].Value
	}
	return p
}

func (p *valuePanel) gated() bool    { return p.dev.Mode() == device.ModeToggleSlider }
func (p *valuePanel) selector() bool { return p.dev.Mode() == device.ModeSelector }

// Topics returns the status topic followed by the value topics.
func (p *valuePanel) Topics() []string {
	return append([]string{p.dev.StatusTopic()}, p.valueTopics()...)
}

// ReceiveUpdate decodes a number. "on" maps to max and "off" to 0 when the
// payload is not numeric. Selector payloads must name an option. In gated
// mode the gate follows the value: on above zero, off otherwise.
func (p *valuePanel) ReceiveUpdate(payload, t string) error {
	if !p.owns(t) {
		return fmt.Errorf("%w: %s", ErrUnhandledTopic, t)
	}

	if p.selector() {
		if _, ok := p.dev.Option(payload); !ok {
			return fmt.Errorf("%w: %q is not an option", ErrUnparseablePayload, payload)
		}
		p.mu.Lock()
		p.selected = payload
		p.mu.Unlock()
		return nil
	}

	v, err := p.decode(payload)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.value = v
	if p.gated() {
		p.gateOn = v > 0
	}
	p.mu.Unlock()
	return nil
}

func (p *valuePanel) decode(payload string) (float64, error) {
	s := strings.TrimSpace(payload)
	if v, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
		return v, nil
	}
	switch s {
	case device.DefaultOnValue, p.dev.OnValue:
		return p.dev.Max, nil
	case device.DefaultOffValue, p.dev.OffValue:
		return 0, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnparseablePayload, payload)
}

// IssueCommand publishes committed values. Slides only move local state.
func (p *valuePanel) IssueCommand(ctx context.Context, intent Intent) error {
	mode := p.dev.Mode()

	switch intent.Action {
	case ActionSlide:
		if p.selector() {
			break
		}
		p.mu.Lock()
		p.value = p.snap(intent.Value)
		p.mu.Unlock()
		return nil

	case ActionSet:
		if p.selector() {
			break
		}
		v := p.snap(intent.Value)
		if err := p.send(ctx, formatNumber(v)); err != nil {
			return err
		}
		p.mu.Lock()
		p.value = v
		if p.gated() {
			p.gateOn = v > 0
		}
		p.mu.Unlock()
		return nil

	case ActionPress:
		if mode != device.ModeInput {
			break
		}
		p.mu.Lock()
		v := p.value
		p.mu.Unlock()
		return p.send(ctx, formatNumber(v))

	case ActionToggle:
		if !p.gated() {
			break
		}
		return p.toggleGate(ctx, intent.On)

	case ActionSelect:
		if !p.selector() {
			break
		}
		if _, ok := p.dev.Option(intent.Option); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownOption, intent.Option)
		}
		if err := p.send(ctx, intent.Option); err != nil {
			return err
		}
		p.mu.Lock()
		p.selected = intent.Option
		p.mu.Unlock()
		return nil
	}

	return fmt.Errorf("%w: %s on %s", ErrUnsupportedIntent, intent.Action, mode)
}

// toggleGate sends the current value when switching on (max when the value
// is not positive) and "0" when switching off. The local value is kept
// while off so switching back on restores it.
func (p *valuePanel) toggleGate(ctx context.Context, on bool) error {
	p.mu.Lock()
	v := p.value
	p.mu.Unlock()

	command := "0"
	if on {
		if v <= 0 {
			v = p.dev.Max
		}
		command = formatNumber(v)
	}

	if err := p.send(ctx, command); err != nil {
		return err
	}

	p.mu.Lock()
	p.gateOn = on
	if on {
		p.value = v
	}
	p.mu.Unlock()
	return nil
}

// snap rounds v to the nearest step from min and clamps it to the range.
func (p *valuePanel) snap(v float64) float64 {
	lo, hi, step := p.dev.Min, p.dev.Max, p.dev.Step
	if step > 0 {
		v = lo + math.Round((v-lo)/step)*step
		if s, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', max(decimals(step), decimals(lo)), 64), 64); err == nil {
			v = s
		}
	}
	return math.Max(lo, math.Min(hi, v))
}

// Render shows the value with its unit, OFF while a gate is off, or the
// selected option's label.
func (p *valuePanel) Render() View {
	p.mu.Lock()
	defer p.mu.Unlock()

	v := p.view()
	v.Value = p.value

	switch {
	case p.selector():
		v.Selected = p.selected
		v.Control = p.selected
		if o, ok := p.dev.Option(p.selected); ok && o.Label != "" {
			v.Control = o.Label
		}
	case p.gated():
		v.On = p.gateOn
		v.Disabled = !p.gateOn
		if p.gateOn {
			v.Control = formatNumber(p.value) + p.dev.Unit
		} else {
			v.Control = OffText
		}
	default:
		v.Control = formatNumber(p.value) + p.dev.Unit
	}
	return v
}

// displayPanel shows the latest reading of each named value and of the
// status topic. It never issues commands.
type displayPanel struct {
	base
	readings map[string]string
}

// statusReading is the row key used for the status topic.
const statusReading = "status"

func newDisplay(b base) *displayPanel {
	return &displayPanel{base: b, readings: make(map[string]string)}
}

// Topics returns the value topics followed by the status topic.
func (p *displayPanel) Topics() []string {
	return append(p.valueTopics(), p.dev.StatusTopic())
}

// ReceiveUpdate stores the payload under the value name the topic maps to.
func (p *displayPanel) ReceiveUpdate(payload, t string) error {
	name, ok := p.readingName(t)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnhandledTopic, t)
	}
	p.mu.Lock()
	p.readings[name] = payload
	p.mu.Unlock()
	return nil
}

func (p *displayPanel) readingName(t string) (string, bool) {
	s, ok := p.suffix(t)
	if !ok {
		return "", false
	}
	if s == topic.SuffixStatus {
		return statusReading, true
	}
	return topic.MatchesNamedValue(t, p.dev.ID, p.dev.ValueTopics)
}

// IssueCommand always fails: displays are read-only.
func (p *displayPanel) IssueCommand(context.Context, Intent) error {
	return ErrReadOnly
}

// Render lists one row per named value, then the status if one arrived.
func (p *displayPanel) Render() View {
	p.mu.Lock()
	defer p.mu.Unlock()

	v := p.view()
	v.ReadOnly = true

	for _, name := range p.dev.ValueNames() {
		v.Rows = append(v.Rows, Row{ID: name, Label: name, Value: p.reading(name)})
	}
	if status, ok := p.readings[statusReading]; ok {
		v.Rows = append(v.Rows, Row{ID: statusReading, Label: statusReading, Value: status})
	}
	return v
}

// reading formats a stored payload, appending the unit to numbers. Callers
// hold mu.
func (p *displayPanel) reading(name string) string {
	raw, ok := p.readings[name]
	if !ok {
		return "--"
	}
	if _, err := strconv.ParseFloat(raw, 64); err == nil && p.dev.Unit != "" {
		return raw + p.dev.Unit
	}
	return raw
}

// formatNumber prints v in its shortest form ("42", "21.5").
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// decimals returns the number of fractional digits in f.
func decimals(f float64) int {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return len(s) - i - 1
	}
	return 0
}
