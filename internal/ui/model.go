// ABOUTME: Bubbletea model for the playback status view
// ABOUTME: Renders the player status and turns keys into transport commands
package ui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Resonate-Protocol/playd/internal/player"
)

// Command is a transport request from the keyboard
type Command int

const (
	CommandPlay Command = iota
	CommandPause
	CommandStop
	CommandNext
	CommandSeekForward
	CommandSeekBackward
	CommandVolumeUp
	CommandVolumeDown
)

func (c Command) String() string {
	switch c {
	case CommandPlay:
		return "play"
	case CommandPause:
		return "pause"
	case CommandStop:
		return "stop"
	case CommandNext:
		return "next"
	case CommandSeekForward:
		return "seek+"
	case CommandSeekBackward:
		return "seek-"
	case CommandVolumeUp:
		return "volume+"
	case CommandVolumeDown:
		return "volume-"
	}
	return "unknown"
}

// StatusMsg carries a new player snapshot
type StatusMsg player.Status

// OutputInfo describes one output line
type OutputInfo struct {
	Name   string
	Plugin string
	State  string
}

// OutputsMsg replaces the output list
type OutputsMsg []OutputInfo

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("220"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	helpStyle = lipgloss.NewStyle().Faint(true)
)

// Model represents the TUI state
type Model struct {
	status  player.Status
	outputs []OutputInfo

	controls *Controls
	quitting bool

	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.status = player.Status(msg)
	case OutputsMsg:
		m.outputs = []OutputInfo(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("playd"))
	b.WriteString("\n\n")

	b.WriteString(m.renderSong())
	b.WriteString("\n")
	b.WriteString(m.renderOutputs())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("space:Pause  enter:Play  n:Next  s:Stop  ←/→:Seek  ↑/↓:Volume  q:Quit"))

	return b.String()
}

func field(b *strings.Builder, name, value string) {
	b.WriteString(headerStyle.Render(name + ": "))
	b.WriteString(valueStyle.Render(value))
	b.WriteString("\n")
}

func (m Model) renderSong() string {
	var b strings.Builder
	s := m.status

	field(&b, "State", s.State.String())
	if s.Song == "" {
		field(&b, "Song", "(none)")
	} else {
		field(&b, "Song", fmt.Sprintf("%d/%d %s", s.Position+1, s.Queue, filepath.Base(s.Song)))
	}

	if s.Tag != nil && !s.Tag.IsEmpty() {
		field(&b, "Title", truncate(s.Tag.Title, 60))
		field(&b, "Artist", truncate(s.Tag.Artist, 60))
		field(&b, "Album", truncate(s.Tag.Album, 60))
	}

	if s.Format.Defined() {
		format := s.Format.String()
		if s.BitRate > 0 {
			format += fmt.Sprintf(" %dkbps", s.BitRate)
		}
		field(&b, "Format", format)
	}

	field(&b, "Time", fmt.Sprintf("%s / %s", formatDuration(s.Elapsed), formatDuration(s.Total)))
	field(&b, "Volume", volumeText(s.Volume))

	if s.Err != nil {
		b.WriteString(errorStyle.Render("Error: " + s.Err.Error()))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderOutputs() string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render(fmt.Sprintf("Outputs (%d)", len(m.outputs))))
	b.WriteString("\n")

	if len(m.outputs) == 0 {
		b.WriteString(valueStyle.Render("  No outputs configured"))
		b.WriteString("\n")
	}
	for _, o := range m.outputs {
		b.WriteString(fmt.Sprintf("  • %s", o.Name))
		b.WriteString(valueStyle.Render(fmt.Sprintf(" (%s, %s)", o.Plugin, o.State)))
		b.WriteString("\n")
	}
	return b.String()
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		m.controls.quit()
		return m, tea.Quit
	case " ", "space", "p":
		m.controls.send(CommandPause)
	case "enter":
		m.controls.send(CommandPlay)
	case "s":
		m.controls.send(CommandStop)
	case "n":
		m.controls.send(CommandNext)
	case "right":
		m.controls.send(CommandSeekForward)
	case "left":
		m.controls.send(CommandSeekBackward)
	case "up":
		m.controls.send(CommandVolumeUp)
	case "down":
		m.controls.send(CommandVolumeDown)
	}

	return m, nil
}

func volumeText(volume int) string {
	if volume < 0 {
		return "n/a"
	}
	return fmt.Sprintf("[%s] %d%%", renderBar(volume, 100, 10), volume)
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0:00"
	}
	total := int(d.Round(time.Second).Seconds())
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func renderBar(value, max, width int) string {
	filled := (value * width) / max
	if filled > width {
		filled = width
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
