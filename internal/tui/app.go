package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kichnu/iotdash/internal/dashboard"
	"github.com/kichnu/iotdash/internal/panel"
)

// panelWidth is the outer width of one panel box.
const panelWidth = 34

// noteTTL is how long a notification stays on the status line.
const noteTTL = 5 * time.Second

// RefreshMsg asks the model to redraw after a controller change.
type RefreshMsg struct{}

// NoteMsg carries a controller notification.
type NoteMsg struct{ dashboard.Notification }

type commandDoneMsg struct{ err error }

type clearNoteMsg struct{ at time.Time }

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	filterStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	onlineStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	offlineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	cursorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

// Model is the root bubbletea model of the dashboard.
type Model struct {
	ctx    context.Context
	ctrl   *dashboard.Controller
	cursor int
	width  int
	height int
	note   *dashboard.Notification
}

// New creates the model. The controller is loaded and started by Init;
// the caller stops it after the program exits.
func New(ctx context.Context, ctrl *dashboard.Controller) Model {
	return Model{ctx: ctx, ctrl: ctrl, width: 80}
}

// Bind routes the controller's change and notification hooks into the
// program. Call it before p.Run. Hooks may fire from Update itself (filter
// changes), so messages are sent from their own goroutine.
func Bind(ctrl *dashboard.Controller, p *tea.Program) {
	ctrl.SetOnChange(func() { go p.Send(RefreshMsg{}) })
	ctrl.SetNotifier(func(n dashboard.Notification) { go p.Send(NoteMsg{n}) })
}

// Init loads the catalogue and starts the controller.
func (m Model) Init() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		_ = ctrl.Load(ctx) //nolint:errcheck // load failures arrive as notifications
		if err := ctrl.Start(ctx); err != nil {
			return NoteMsg{dashboard.Notification{Level: dashboard.LevelError, Message: err.Error(), Time: time.Now()}}
		}
		return RefreshMsg{}
	}
}

// Update handles key presses, window resizes and controller events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg.String())

	case RefreshMsg:
		m.clampCursor()
		return m, nil

	case NoteMsg:
		n := msg.Notification
		m.note = &n
		return m, tea.Tick(noteTTL, func(time.Time) tea.Msg { return clearNoteMsg{at: n.Time} })

	case clearNoteMsg:
		if m.note != nil && m.note.Time.Equal(msg.at) {
			m.note = nil
		}
		return m, nil

	case commandDoneMsg:
		// Failures arrive as notifications.
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "j", "down":
		m.cursor++
		m.clampCursor()
		return m, nil

	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case "r":
		rooms := append([]string{dashboard.AllRooms}, roomIDs(m.ctrl)...)
		m.ctrl.SetRoom(cycle(rooms, m.ctrl.Room()))
		m.cursor = 0
		return m, nil

	case "t":
		types := append([]string{dashboard.AllTypes}, m.ctrl.Types()...)
		m.ctrl.SetTypeFilter(cycle(types, m.ctrl.TypeFilter()))
		m.cursor = 0
		return m, nil
	}

	p, ok := m.selected()
	if !ok {
		return m, nil
	}
	d := p.Device()
	intent, ok := intentFor(p.Render(), d, key)
	if !ok {
		return m, nil
	}
	return m, m.issue(d.ID, intent)
}

// issue runs a panel intent off the event loop.
func (m Model) issue(deviceID string, intent panel.Intent) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return commandDoneMsg{err: ctrl.Issue(ctx, deviceID, intent)}
	}
}

func (m Model) selected() (panel.Panel, bool) {
	visible := m.ctrl.Visible()
	if m.cursor < 0 || m.cursor >= len(visible) {
		return nil, false
	}
	return visible[m.cursor], true
}

func (m *Model) clampCursor() {
	n := len(m.ctrl.Visible())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// View renders the header, the panel grid and the status line.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.header())
	b.WriteString("\n")
	b.WriteString(m.filters())
	b.WriteString("\n\n")
	b.WriteString(m.grid())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("j/k move  enter toggle/press  +/- adjust  r room  t type  q quit"))

	return b.String()
}

func (m Model) header() string {
	conn := offlineStyle.Render("● Disconnected")
	if m.ctrl.Online() {
		conn = onlineStyle.Render("● Connected to the system")
	}
	return headerStyle.Render("IoT Dashboard") + " " + conn
}

func (m Model) filters() string {
	room := "All rooms"
	if id := m.ctrl.Room(); id != dashboard.AllRooms {
		room = m.ctrl.RoomName(id)
	}
	deviceType := "all types"
	if t := m.ctrl.TypeFilter(); t != dashboard.AllTypes {
		deviceType = t
	}
	return filterStyle.Render(fmt.Sprintf(" %s · %s", room, deviceType))
}

func (m Model) grid() string {
	visible := m.ctrl.Visible()
	if len(visible) == 0 {
		return helpStyle.Render(" No devices to show.")
	}

	cols := m.width / (panelWidth + 2)
	if cols < 1 {
		cols = 1
	}

	var rows []string
	for start := 0; start < len(visible); start += cols {
		end := min(start+cols, len(visible))
		cells := make([]string, 0, end-start)
		for i := start; i < end; i++ {
			cells = append(cells, m.cell(visible[i], i == m.cursor))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m Model) cell(p panel.Panel, selected bool) string {
	marker := " "
	if selected {
		marker = cursorStyle.Render("▌")
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, marker, p.Render().Box(panelWidth), " ")
}

func (m Model) statusLine() string {
	if m.note == nil {
		return ""
	}
	if m.note.Level == dashboard.LevelError {
		return errorStyle.Render(" " + m.note.Message)
	}
	return infoStyle.Render(" " + m.note.Message)
}

func roomIDs(ctrl *dashboard.Controller) []string {
	rooms := ctrl.Rooms()
	ids := make([]string, 0, len(rooms))
	for _, r := range rooms {
		ids = append(ids, r.ID)
	}
	return ids
}
