package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/justapithecus/pixport/cli/views"
	"github.com/justapithecus/pixport/types"
)

// chromeLines is the height taken by titles, borders and help.
const chromeLines = 12

// DocumentModel shows a document and its layer tree.
type DocumentModel struct {
	info     views.InfoResponse
	offset   int
	height   int
	quitting bool
}

// NewDocumentModel accepts a views.InfoResponse or a pointer to one.
func NewDocumentModel(data any) (DocumentModel, error) {
	switch v := data.(type) {
	case views.InfoResponse:
		return DocumentModel{info: v}, nil
	case *views.InfoResponse:
		if v != nil {
			return DocumentModel{info: *v}, nil
		}
	}
	return DocumentModel{}, fmt.Errorf("info view: unexpected data %T", data)
}

func (m DocumentModel) Init() tea.Cmd { return nil }

func (m DocumentModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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
			m.offset = min(m.offset+1, max(len(m.info.Layers)-1, 0))
		}
	}
	return m, nil
}

func (m DocumentModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Document"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render("ID:"), ValueStyle.Render(fmt.Sprint(m.info.ID)))
	if m.info.File != "" {
		fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render("File:"), ValueStyle.Render(m.info.File))
	}
	fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render("Size:"),
		ValueStyle.Render(fmt.Sprintf("%d x %d", m.info.Width, m.info.Height)))
	fmt.Fprintf(&b, "%s %s\n\n", LabelStyle.Render("Layers:"), ValueStyle.Render(fmt.Sprint(len(m.info.Layers))))

	lines := make([]string, len(m.info.Layers))
	for i, l := range m.info.Layers {
		lines[i] = layerLine(l)
	}
	b.WriteString(strings.Join(window(lines, m.offset, m.height-chromeLines), "\n"))

	return BoxStyle.Render(b.String()) + "\n" + HelpStyle.Render("↑/↓ scroll, q quit")
}

func layerLine(l views.LayerRow) string {
	indent := strings.Repeat("  ", l.Depth)
	label := fmt.Sprintf("%s [%d]", l.Name, l.ID)
	style := ValueStyle
	if l.Type == types.LayerTypeGroup {
		label = "▸ " + label
		style = GroupStyle
	}
	if !l.Visible {
		style = MutedStyle
		label += " (hidden)"
	}
	return indent + style.Render(label)
}

// window returns up to height lines starting at offset. A non-positive
// height shows everything from offset.
func window(lines []string, offset, height int) []string {
	if offset >= len(lines) {
		return nil
	}
	lines = lines[offset:]
	if height > 0 && len(lines) > height {
		lines = lines[:height]
	}
	return lines
}
