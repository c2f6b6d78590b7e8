package panel

import (
	"context"
	"fmt"

	"github.com/kichnu/iotdash/internal/device"
)

// Binary command payloads.
const (
	// TriggerCommand is sent by a momentary button.
	TriggerCommand = "trigger"
)

// binaryPanel is a boolean driven by the status topic.
type binaryPanel struct {
	base
	state bool
}

func newBinary(b base) *binaryPanel {
	return &binaryPanel{base: b}
}

// Topics returns the status topic.
func (p *binaryPanel) Topics() []string {
	return []string{p.dev.StatusTopic()}
}

// ReceiveUpdate decodes the device's on/off payloads, then the
// state-value table.
func (p *binaryPanel) ReceiveUpdate(payload, t string) error {
	if t != p.dev.StatusTopic() {
		return fmt.Errorf("%w: %s", ErrUnhandledTopic, t)
	}

	state, err := p.decode(payload)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
	return nil
}

func (p *binaryPanel) decode(payload string) (bool, error) {
	switch payload {
	case p.dev.OnValue:
		return true, nil
	case p.dev.OffValue:
		return false, nil
	}
	if v, ok := p.dev.StateValues[payload]; ok {
		return v, nil
	}
	return false, fmt.Errorf("%w: %q", ErrUnparseablePayload, payload)
}

// IssueCommand handles toggles (on/off payloads) and button presses
// (trigger). Indicators are read-only.
func (p *binaryPanel) IssueCommand(ctx context.Context, intent Intent) error {
	switch p.dev.Mode() {
	case device.ModeIndicator:
		return ErrReadOnly

	case device.ModeButton:
		if intent.Action != ActionPress {
			return fmt.Errorf("%w: %s on %s", ErrUnsupportedIntent, intent.Action, device.ModeButton)
		}
		return p.send(ctx, TriggerCommand)

	default:
		if intent.Action != ActionToggle {
			return fmt.Errorf("%w: %s on %s", ErrUnsupportedIntent, intent.Action, device.ModeToggle)
		}
		command := p.dev.OffValue
		if intent.On {
			command = p.dev.OnValue
		}
		if err := p.send(ctx, command); err != nil {
			return err
		}
		p.mu.Lock()
		p.state = intent.On
		p.mu.Unlock()
		return nil
	}
}

// Render projects the boolean onto the variant's control.
func (p *binaryPanel) Render() View {
	p.mu.Lock()
	defer p.mu.Unlock()

	v := p.view()
	v.On = p.state

	switch p.dev.Mode() {
	case device.ModeButton:
		v.Control = p.dev.ButtonText
	case device.ModeIndicator:
		v.ReadOnly = true
		v.Control = onOff(p.state)
	default:
		v.Control = onOff(p.state)
	}
	return v
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return OffText
}
