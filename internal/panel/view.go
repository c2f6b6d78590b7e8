package panel

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kichnu/iotdash/internal/device"
)

// OffText is shown instead of the value while a gated control is off.
const OffText = "OFF"

// View is the renderable projection of a panel's state.
type View struct {
	ID     string
	Name   string
	Room   string
	Type   string
	Kind   device.PanelKind
	Mode   string
	Online bool

	// Control is the primary control's text (e.g. "ON", "42%", "OFF").
	Control string

	// Disabled is set when the primary control cannot be used, such as the
	// slider of a gated control that is off.
	Disabled bool

	// ReadOnly is set for panels that never issue commands.
	ReadOnly bool

	// Typed state behind Control.
	On       bool
	Value    float64
	Selected string

	// Rows holds per-name readings or indicators.
	Rows []Row
}

// Row is one labelled line of a display or indicator panel.
type Row struct {
	ID     string
	Label  string
	Value  string
	Active bool
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	activeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	inactiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	controlStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// String renders the view as a bordered terminal block.
func (v View) String() string {
	return v.Box(0)
}

// Box renders the view with the given outer width (0 = fit content).
func (v View) Box(width int) string {
	var lines []string

	lines = append(lines, titleStyle.Render(v.Name)+"  "+mutedStyle.Render(v.Mode))

	if v.Control != "" {
		control := controlStyle.Render(v.Control)
		switch {
		case v.Disabled:
			control = mutedStyle.Render(control)
		case v.On:
			control = activeStyle.Render(control)
		}
		lines = append(lines, control)
	}

	for _, r := range v.Rows {
		lines = append(lines, renderRow(r))
	}

	status := inactiveStyle.Render("● Offline")
	if v.Online {
		status = activeStyle.Render("● Online")
	}
	lines = append(lines, status)

	style := boxStyle
	if width > 0 {
		style = style.Width(width - 2)
	}
	return style.Render(strings.Join(lines, "\n"))
}

func renderRow(r Row) string {
	if r.Value != "" {
		return mutedStyle.Render(r.Label+":") + " " + r.Value
	}
	light := inactiveStyle.Render("○")
	state := "OFF"
	if r.Active {
		light = activeStyle.Render("●")
		state = "ON"
	}
	return light + " " + r.Label + " " + mutedStyle.Render(state)
}
