package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/justapithecus/pixport/cli/views"
)

// eventBacklog bounds the rows kept for display.
const eventBacklog = 500

type eventMsg views.EventRow

type stopMsg struct{ err error }

// EventsModel shows host events as they arrive, newest last.
type EventsModel struct {
	names    []string
	rows     []views.EventRow
	seen     int
	limit    int
	height   int
	err      error
	stopped  bool
	quitting bool
}

// NewEventsModel watches names and quits after limit events. A zero
// limit runs until the user quits or the stream stops.
func NewEventsModel(names []string, limit int) EventsModel {
	return EventsModel{names: names, limit: limit}
}

// Err is the error the stream stopped with, if any.
func (m EventsModel) Err() error { return m.err }

func (m EventsModel) Init() tea.Cmd { return nil }

func (m EventsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	case eventMsg:
		m.rows = append(m.rows, views.EventRow(msg))
		if len(m.rows) > eventBacklog {
			m.rows = m.rows[len(m.rows)-eventBacklog:]
		}
		m.seen++
		if m.limit > 0 && m.seen >= m.limit {
			return m, tea.Quit
		}
	case stopMsg:
		m.err = msg.err
		m.stopped = true
		return m, tea.Quit
	}
	return m, nil
}

func (m EventsModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Host events: " + strings.Join(m.names, ", ")))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s\n\n", LabelStyle.Render("Received:"), ValueStyle.Render(fmt.Sprint(m.seen)))

	rows := m.rows
	if visible := m.height - chromeLines; visible > 0 && len(rows) > visible {
		rows = rows[len(rows)-visible:]
	}
	for _, r := range rows {
		fmt.Fprintf(&b, "%s %s %s\n", MutedStyle.Render(r.Time), GroupStyle.Render(r.Name), ValueStyle.Render(fmt.Sprint(r.Value)))
	}
	if m.err != nil {
		b.WriteString(ErrorStyle.Render("stopped: " + m.err.Error()))
		b.WriteString("\n")
	}
	return b.String() + HelpStyle.Render("q quit")
}

// EventStream runs the live events view. Push and Stop are safe to call
// from any goroutine and return once the program has finished.
type EventStream struct {
	ctx     context.Context
	program *tea.Program
}

// NewEventStream prepares the events view. Cancelling ctx ends it.
func NewEventStream(ctx context.Context, names []string, limit int, opts ...tea.ProgramOption) *EventStream {
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	return &EventStream{ctx: ctx, program: tea.NewProgram(NewEventsModel(names, limit), opts...)}
}

// Push shows one event.
func (s *EventStream) Push(row views.EventRow) { s.program.Send(eventMsg(row)) }

// Stop ends the view, reporting err from Run.
func (s *EventStream) Stop(err error) { s.program.Send(stopMsg{err: err}) }

// Run blocks until the user quits, the limit is reached, Stop is called
// or the context ends. Only an error passed to Stop or a terminal
// failure is returned; an interrupt is a normal exit.
func (s *EventStream) Run() error {
	final, err := s.program.Run()
	if err != nil {
		if errors.Is(err, tea.ErrInterrupted) || (errors.Is(err, tea.ErrProgramKilled) && s.ctx.Err() != nil) {
			return nil
		}
		return err
	}
	if m, ok := final.(EventsModel); ok {
		return m.Err()
	}
	return nil
}
