package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Views with a TUI.
const (
	ViewInfo      = "info"
	ViewManifest  = "manifest"
	ViewSubscribe = "subscribe"
)

// IsTUISupported reports whether view has a TUI.
func IsTUISupported(view string) bool {
	switch view {
	case ViewInfo, ViewManifest, ViewSubscribe:
		return true
	}
	return false
}

// SupportedTUIViews lists the views with a TUI.
func SupportedTUIViews() []string {
	return []string{ViewInfo, ViewManifest, ViewSubscribe}
}

// Run shows a static view until the user quits. The live subscribe view
// is started with NewEventStream instead.
func Run(view string, data any, opts ...tea.ProgramOption) error {
	m, err := newModel(view, data)
	if err != nil {
		return err
	}
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	_, err = tea.NewProgram(m, opts...).Run()
	return err
}

// RenderStatic renders a static view once, without a terminal program.
func RenderStatic(view string, data any) (string, error) {
	m, err := newModel(view, data)
	if err != nil {
		return "", err
	}
	return lipgloss.NewStyle().Padding(1, 2).Render(m.View()), nil
}

func newModel(view string, data any) (tea.Model, error) {
	switch view {
	case ViewInfo:
		return NewDocumentModel(data)
	case ViewManifest:
		return NewManifestModel(data)
	case ViewSubscribe:
		return nil, fmt.Errorf("%s is a live view", view)
	}
	return nil, fmt.Errorf("TUI mode is not supported for %s", view)
}

type keyMap struct {
	Quit key.Binding
	Up   key.Binding
	Down key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
}
