// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and the command channel it feeds
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Controls carries keyboard commands out of the TUI
type Controls struct {
	Commands chan Command
	Quit     chan struct{}
}

// NewControls creates the command channels
func NewControls() *Controls {
	return &Controls{
		Commands: make(chan Command, 10),
		Quit:     make(chan struct{}, 1),
	}
}

// send drops the command when nobody keeps up; a nil Controls is a no-op
func (c *Controls) send(cmd Command) {
	if c == nil {
		return
	}
	select {
	case c.Commands <- cmd:
	default:
	}
}

func (c *Controls) quit() {
	if c == nil {
		return
	}
	select {
	case c.Quit <- struct{}{}:
	default:
	}
}

// NewModel creates a new TUI model
func NewModel(controls *Controls) Model {
	return Model{controls: controls}
}

// Run creates the TUI program; the caller runs it
func Run(controls *Controls) *tea.Program {
	return tea.NewProgram(NewModel(controls), tea.WithAltScreen())
}
