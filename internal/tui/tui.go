package tui

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sokinpui/jsxkit/internal/ui"
	"github.com/sokinpui/jsxkit/model"
)

// ErrAborted is returned when the user quits before the task finishes.
var ErrAborted = errors.New("aborted by user")

// --- Styles ---
var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("197"))
	pathStyle    = lipgloss.NewStyle()
	faintStyle   = lipgloss.NewStyle().Faint(true)
)

// Task is the work shown behind the spinner. It reports progress lines
// through the given callback.
type Task func(progress func(string)) (model.Summary, error)

// --- Messages ---
type summaryMsg struct {
	model.Summary
}

type errorMsg struct{ err error }

func (e errorMsg) Error() string { return e.err.Error() }

type progressMsg string

// sender lets the task reach the program that is running it.
type sender struct {
	p *tea.Program
}

func (s *sender) send(msg tea.Msg) {
	if s != nil && s.p != nil {
		s.p.Send(msg)
	}
}

// --- Model ---
type Model struct {
	label   string
	task    Task
	sender  *sender
	spinner spinner.Model
	state   state
	status  string
	summary summaryMsg
	err     error
}

type state int

const (
	stateProcessing state = iota
	stateSummary
	stateError
	stateAborted
)

func New(label string, task Task) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return Model{
		label:   label,
		task:    task,
		sender:  &sender{},
		spinner: s,
		state:   stateProcessing,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.runTask)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.state = stateAborted
			return m, tea.Quit
		}

	case progressMsg:
		m.status = string(msg)
		return m, nil

	case summaryMsg:
		m.state = stateSummary
		m.summary = msg
		return m, tea.Quit

	case errorMsg:
		m.state = stateError
		m.err = msg.err
		return m, tea.Quit

	default:
		var cmd tea.Cmd
		if m.state == stateProcessing {
			m.spinner, cmd = m.spinner.Update(msg)
		}
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	switch m.state {
	case stateProcessing:
		line := fmt.Sprintf("%s %s...", m.spinner.View(), m.label)
		if m.status != "" {
			line += " " + faintStyle.Render(m.status)
		}
		return line
	case stateError:
		// The error itself is reported once by the caller.
		return errorStyle.Render(m.label+" failed.") + "\n"
	case stateAborted:
		return warningStyle.Render("Aborted.") + "\n"
	case stateSummary:
		return m.renderSummary()
	default:
		return ""
	}
}

func (m *Model) renderSummary() string {
	var b strings.Builder

	if m.summary.Message != "" {
		b.WriteString(headerStyle.Render(m.summary.Message))
		b.WriteString("\n\n")
	}

	hasContent := false
	section := func(title string, style lipgloss.Style, items []string) {
		if len(items) == 0 {
			return
		}
		hasContent = true
		b.WriteString(style.Render(title))
		b.WriteString("\n")
		for _, f := range items {
			b.WriteString(fmt.Sprintf("  %s\n", pathStyle.Render(f)))
		}
	}
	section("Created:", successStyle, m.summary.Created)
	section("Processed:", successStyle, m.summary.Modified)
	section("Skipped:", warningStyle, m.summary.Skipped)
	section("Failed:", errorStyle, m.summary.Failed)

	if !hasContent && m.summary.Message == "" {
		b.WriteString(faintStyle.Render("Nothing to do."))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) runTask() tea.Msg {
	summary, err := m.task(func(s string) { m.sender.send(progressMsg(s)) })
	if err != nil {
		return errorMsg{err}
	}
	return summaryMsg{Summary: summary}
}

// Run executes task behind a spinner, or plainly with ui output when
// noAnimation is set.
func Run(label string, task Task, noAnimation bool) (model.Summary, error) {
	if noAnimation {
		ui.Header("--- %s ---", label)
		summary, err := task(func(s string) { ui.Info("%s", s) })
		if err != nil {
			return summary, err
		}
		ui.PrintSummary(label+" Summary", summary.Created, summary.Modified, summary.Skipped, summary.Failed, summary.Message)
		return summary, nil
	}

	m := New(label, task)
	p := tea.NewProgram(m, tea.WithOutput(os.Stderr))
	m.sender.p = p
	final, err := p.Run()
	if err != nil {
		return model.Summary{}, fmt.Errorf("error running program: %w", err)
	}

	fm, ok := final.(Model)
	if !ok {
		return model.Summary{}, nil
	}
	switch fm.state {
	case stateError:
		return model.Summary{}, fm.err
	case stateAborted:
		return model.Summary{}, ErrAborted
	default:
		return fm.summary.Summary, nil
	}
}
