package tui

import (
	"fmt"
	"strings"

	"backtomatic/internal/backup"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const maxLines = 8

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("248"))
	logStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
)

type eventMsg struct {
	ev backup.Event
	ok bool
}

type model struct {
	title    string
	events   <-chan backup.Event
	bar      progress.Model
	label    string
	fraction float64
	lines    []string

	finished bool
	closed   bool
	detached bool
	result   backup.Result
	err      error
}

func newModel(title string, events <-chan backup.Event) model {
	return model{
		title:  title,
		events: events,
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(48)),
	}
}

func (m model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		return eventMsg{ev: ev, ok: ok}
	}
}

func (m model) Init() tea.Cmd {
	return m.waitForEvent()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		if !msg.ok {
			m.closed = true
			return m, tea.Quit
		}
		m.apply(msg.ev)
		return m, m.waitForEvent()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.detached = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.bar.Width = min(max(msg.Width-4, 10), 80)
	}

	return m, nil
}

func (m *model) apply(ev backup.Event) {
	switch ev.Kind {
	case backup.EventProgress:
		m.label = ev.Label()
		m.fraction = ev.Fraction
	case backup.EventLog:
		m.lines = append(m.lines, ev.Line)
		if len(m.lines) > maxLines {
			m.lines = m.lines[len(m.lines)-maxLines:]
		}
	case backup.EventDone:
		m.finished = true
		m.result = ev.Result
		m.err = ev.Err
	}
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")
	b.WriteString(labelStyle.Render(m.label))
	b.WriteString("\n")
	b.WriteString(m.bar.ViewAs(m.fraction))
	b.WriteString("\n\n")

	for _, line := range m.lines {
		b.WriteString(logStyle.Render(line))
		b.WriteString("\n")
	}

	switch {
	case m.finished && m.err != nil:
		b.WriteString("\n" + errStyle.Render("Failed: "+backup.Describe(m.err)) + "\n")
	case m.finished:
		b.WriteString("\n" + okStyle.Render(summary(m.result)) + "\n")
	default:
		b.WriteString("\n" + helpStyle.Render("Press 'Esc' or 'Ctrl+C' to detach; the job keeps running.") + "\n")
	}

	return b.String()
}

func summary(res backup.Result) string {
	switch {
	case res.RemoteID != "":
		return fmt.Sprintf("Done: uploaded to %s (%s)", res.Target, res.RemoteID)
	case res.Archive.Path != "":
		return fmt.Sprintf("Done: %d files in %s", res.Archive.Files, res.Archive.Path)
	default:
		return "Done"
	}
}

// Run shows the job until its event stream closes. When the user detaches
// early it still waits for the worker to finish so the outcome is known.
func Run(title string, events <-chan backup.Event, opts ...tea.ProgramOption) (backup.Result, error) {
	final, err := tea.NewProgram(newModel(title, events), opts...).Run()
	if err != nil {
		return drain(events)
	}

	m := final.(model)
	if m.closed {
		return m.result, m.err
	}

	res, jobErr := drain(events)
	if m.finished {
		return m.result, m.err
	}

	return res, jobErr
}

func drain(events <-chan backup.Event) (backup.Result, error) {
	return backup.Deliver(events, discard{})
}

type discard struct{}

func (discard) ReportProgress(string, float64)  {}
func (discard) AppendLog(string)                {}
func (discard) PromptPassword() (string, bool)  { return "", false }
func (discard) SelectDirectory() (string, bool) { return "", false }
func (discard) SelectFile() (string, bool)      { return "", false }
