// Package chat is the conversation pane: a scrolling transcript, an input
// line and a spinner while a turn is in flight.
package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	engine "github.com/thomasluizon/orbit-api-sub001/internal/chat"
)

// SendMsg is emitted when the user submits a message.
type SendMsg struct {
	Text string
}

var (
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	suggestStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Italic(true)
)

type Model struct {
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	send     key.Binding
	lines    []string
	waiting  bool
}

func New(width, height int) Model {
	in := textinput.New()
	in.Placeholder = "Tell Orbit what you did or want to start..."
	in.CharLimit = 2000
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		viewport: viewport.New(width, height),
		input:    in,
		spinner:  sp,
		send:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
	}
	m.SetSize(width, height)
	return m
}

// SendKey is the binding shown in the parent's help.
func (m Model) SendKey() key.Binding {
	return m.send
}

// Waiting reports whether a turn is in flight.
func (m Model) Waiting() bool {
	return m.waiting
}

func (m *Model) SetSize(width, height int) {
	m.viewport.Width = width
	// One line for the input and one for the spinner/status row.
	m.viewport.Height = max(height-2, 1)
	m.input.Width = max(width-4, 10)
	m.refresh()
}

// AddResponse appends a finished turn to the transcript.
func (m *Model) AddResponse(resp engine.Response) {
	m.waiting = false
	m.lines = append(m.lines, RenderResponse(resp)...)
	m.refresh()
}

// AddError appends a failed turn to the transcript.
func (m *Model) AddError(err error) {
	m.waiting = false
	m.lines = append(m.lines, errorStyle.Render("Orbit could not handle that: "+err.Error()), "")
	m.refresh()
}

// RenderResponse formats the reply and one line per action result.
func RenderResponse(resp engine.Response) []string {
	lines := []string{assistantStyle.Render("Orbit: ") + resp.Reply}
	for _, a := range resp.Actions {
		name := a.EntityName
		if name == "" {
			name = a.EntityID
		}
		switch a.Status {
		case engine.StatusSuccess:
			lines = append(lines, successStyle.Render(fmt.Sprintf("  ✓ %s %s", a.Type, name)))
		case engine.StatusSuggestion:
			lines = append(lines, suggestStyle.Render(fmt.Sprintf("  ? %s: %s", name, strings.Join(a.SuggestedSubHabits, ", "))))
		default:
			msg := a.Error
			if a.Field != "" {
				msg = fmt.Sprintf("%s (%s)", msg, a.Field)
			}
			lines = append(lines, failedStyle.Render(fmt.Sprintf("  ✗ %s: %s", a.Type, msg)))
		}
	}
	return append(lines, "")
}

func (m *Model) refresh() {
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.send) {
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.waiting {
				return m, nil
			}
			m.input.Reset()
			m.waiting = true
			m.lines = append(m.lines, userStyle.Render("You: ")+text)
			m.refresh()
			return m, tea.Batch(m.spinner.Tick, func() tea.Msg { return SendMsg{Text: text} })
		}
	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	status := ""
	if m.waiting {
		status = m.spinner.View() + " thinking..."
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.viewport.View(), status, m.input.View())
}
