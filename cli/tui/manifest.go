package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/pixport/cli/views"
	"github.com/justapithecus/pixport/lode"
)

// ManifestModel shows the outcome of one export run.
type ManifestModel struct {
	entries  []lode.ManifestEntry
	offset   int
	height   int
	quitting bool
}

// NewManifestModel accepts the []lode.ManifestEntry a manifest read returns.
func NewManifestModel(data any) (ManifestModel, error) {
	entries, ok := data.([]lode.ManifestEntry)
	if !ok {
		return ManifestModel{}, fmt.Errorf("manifest view: unexpected data %T", data)
	}
	return ManifestModel{entries: entries}, nil
}

func (m ManifestModel) Init() tea.Cmd { return nil }

func (m ManifestModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			m.offset = max(m.offset-1, 0)
		case key.Matches(msg, keys.Down):
			m.offset = min(m.offset+1, max(len(m.entries)-1, 0))
		}
	}
	return m, nil
}

func (m ManifestModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	title := "Export run"
	if len(m.entries) > 0 {
		title += " " + m.entries[0].RunID
	}
	b.WriteString(TitleStyle.Render(title))
	b.WriteString("\n")

	t := views.Totals(m.entries)
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		statBox("Outputs", fmt.Sprint(t.Outputs), primaryColor),
		statBox("Stored", fmt.Sprint(t.Stored), successColor),
		statBox("Failed", fmt.Sprint(t.Failed), errorColor),
		statBox("Size", formatBytes(t.Bytes), warningColor),
	))
	b.WriteString("\n\n")

	lines := make([]string, len(m.entries))
	for i, e := range m.entries {
		if e.Error != "" {
			lines[i] = fmt.Sprintf("%s %s  %s", ErrorStyle.Render("✗"), ValueStyle.Render(e.Path), ErrorStyle.Render(e.Error))
			continue
		}
		lines[i] = fmt.Sprintf("%s %s  %s", SuccessStyle.Render("✓"), ValueStyle.Render(e.Path),
			MutedStyle.Render(fmt.Sprintf("%s, %s", e.Key, formatBytes(e.Bytes))))
	}
	b.WriteString(strings.Join(window(lines, m.offset, m.height-chromeLines-4), "\n"))

	return b.String() + "\n" + HelpStyle.Render("↑/↓ scroll, q quit")
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
