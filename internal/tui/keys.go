package tui

import (
	"github.com/kichnu/iotdash/internal/device"
	"github.com/kichnu/iotdash/internal/panel"
)

// intentFor maps a key press on a panel to the intent it issues.
// Sliders commit on every step; numeric inputs only move the local value
// until enter presses their set button.
func intentFor(v panel.View, d *device.Device, key string) (panel.Intent, bool) {
	if v.ReadOnly {
		return panel.Intent{}, false
	}

	switch key {
	case "enter", " ":
		switch v.Mode {
		case device.ModeToggle, device.ModeToggleSlider:
			return panel.Toggle(!v.On), true
		case device.ModeButton, device.ModeInput:
			return panel.Press(), true
		}

	case "+", "l", "right":
		return stepIntent(v, d, 1)

	case "-", "h", "left":
		return stepIntent(v, d, -1)
	}

	return panel.Intent{}, false
}

// stepIntent moves a value control one step in dir.
func stepIntent(v panel.View, d *device.Device, dir int) (panel.Intent, bool) {
	switch v.Mode {
	case device.ModeSlider, device.ModeToggleSlider:
		if v.Disabled {
			return panel.Intent{}, false
		}
		return panel.Set(v.Value + float64(dir)*d.Step), true
	case device.ModeInput:
		return panel.Slide(v.Value + float64(dir)*d.Step), true
	case device.ModeSelector:
		if next, ok := cycleOption(d.Options, v.Selected, dir); ok {
			return panel.Select(next), true
		}
	}
	return panel.Intent{}, false
}

// cycleOption returns the option after (dir > 0) or before current,
// wrapping around. With no current selection it starts at either end.
func cycleOption(options []device.Option, current string, dir int) (string, bool) {
	n := len(options)
	if n == 0 {
		return "", false
	}

	idx := -1
	for i, o := range options {
		if o.Value == current {
			idx = i
			break
		}
	}

	switch {
	case idx < 0 && dir > 0:
		idx = 0
	case idx < 0:
		idx = n - 1
	default:
		idx = ((idx+dir)%n + n) % n
	}
	return options[idx].Value, true
}

// cycle returns the value after current in values, wrapping around.
func cycle(values []string, current string) string {
	for i, v := range values {
		if v == current {
			return values[(i+1)%len(values)]
		}
	}
	if len(values) > 0 {
		return values[0]
	}
	return current
}
