package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/voxkeep/voxkeep/internal/status"
)

// pollInterval is how often the watch view re-reads the status directory.
// Status files are published on a throttled schedule, so polling faster
// than this buys nothing.
const pollInterval = 500 * time.Millisecond

var (
	colorAccent = lipgloss.Color("#DDA036")
	colorGray   = lipgloss.Color("#9A9EA0")
	colorWhite  = lipgloss.Color("#FFFFFF")
	colorRed    = lipgloss.Color("#E95420")
	colorGreen  = lipgloss.Color("#4CAF50")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	labelStyle = lipgloss.NewStyle().Foreground(colorGray)
	valueStyle = lipgloss.NewStyle().Foreground(colorWhite)
	recStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorRed)
	idleStyle  = lipgloss.NewStyle().Foreground(colorGray).Italic(true)
	pauseStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	helpStyle  = lipgloss.NewStyle().Foreground(colorGray).Italic(true)
	doneStyle  = lipgloss.NewStyle().Foreground(colorGreen)
)

type tickMsg time.Time

type statusMsg struct {
	update *status.Update
}

// WatchModel is a live view over the published status files. It is a
// pure observer: it never talks to the daemon, only reads what the
// status publisher writes.
type WatchModel struct {
	statusDir string
	level     progress.Model
	update    *status.Update
	lastSeen  *status.Update
	blinkOn   bool
	width     int
}

// NewWatch creates the watch model reading from statusDir
func NewWatch(statusDir string) WatchModel {
	return WatchModel{
		statusDir: statusDir,
		level:     progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		width:     60,
	}
}

func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.poll(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m WatchModel) poll() tea.Cmd {
	dir := m.statusDir
	return func() tea.Msg {
		u, err := status.ReadLatest(dir)
		if err != nil {
			return statusMsg{update: nil}
		}
		return statusMsg{update: u}
	}
}

func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.level.Width = min(msg.Width-20, 40)

	case tickMsg:
		m.blinkOn = !m.blinkOn
		return m, tea.Batch(m.poll(), tick())

	case statusMsg:
		if msg.update != nil {
			m.update = msg.update
			if msg.update.Active {
				m.lastSeen = msg.update
			}
		} else {
			m.update = nil
		}
	}

	return m, nil
}

func (m WatchModel) View() string {
	header := titleStyle.Render("voxkeep") + "  " + labelStyle.Render("live capture status")
	help := helpStyle.Render("q: quit")

	body := m.renderBody()

	return lipgloss.JoinVertical(
		lipgloss.Left,
		"",
		"  "+header,
		"",
		body,
		"",
		"  "+help,
	)
}

func (m WatchModel) renderBody() string {
	u := m.update
	if u == nil || !u.Active {
		lines := []string{"  " + idleStyle.Render("no active recording")}
		if last := m.lastSeen; last != nil {
			lines = append(lines, "  "+doneStyle.Render(
				fmt.Sprintf("last session %s ended after %s",
					shortID(last.SessionID), elapsedString(last.ElapsedSeconds))))
		}
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	var state string
	switch {
	case u.Paused:
		state = pauseStyle.Render("‖ PAUSED")
	case m.blinkOn:
		state = recStyle.Render("● REC")
	default:
		state = recStyle.Render("○ REC")
	}

	lines := []string{
		fmt.Sprintf("  %s  %s", state, valueStyle.Render(shortID(u.SessionID))),
		fmt.Sprintf("  %s %s", labelStyle.Render("elapsed:"),
			valueStyle.Render(elapsedString(u.ElapsedSeconds))),
	}

	if len(u.Levels) > 0 {
		latest := u.Levels[len(u.Levels)-1]
		lines = append(lines,
			fmt.Sprintf("  %s  %s", labelStyle.Render("level:"), m.level.ViewAs(latest)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func elapsedString(seconds float64) string {
	return (time.Duration(seconds) * time.Second).String()
}

// Run starts the watch view and blocks until the user quits
func Run(statusDir string) error {
	p := tea.NewProgram(NewWatch(statusDir))
	_, err := p.Run()
	return err
}
