package tui

import (
	"errors"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	apperrors "github.com/thomasluizon/orbit-api-sub001/internal/errors"
	"github.com/thomasluizon/orbit-api-sub001/internal/tui/components/chat"
	"github.com/thomasluizon/orbit-api-sub001/internal/tui/components/habits"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		// Tabs, help and status take four lines.
		h := max(msg.Height-4, 1)
		m.chatModel.SetSize(msg.Width, h)
		m.habitsModel.SetSize(msg.Width, h)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Tab):
			if m.state == StateChat {
				m.state = StateHabits
			} else {
				m.state = StateChat
			}
			return m, nil
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		}

	case chat.SendMsg:
		m.status = ""
		return m, m.runTurn(msg.Text)

	case turnDoneMsg:
		if msg.err != nil {
			m.chatModel.AddError(errors.New(apperrors.Public(msg.err)))
			return m, nil
		}
		m.chatModel.AddResponse(msg.resp)
		// The turn may have created or logged habits.
		return m, m.loadHabits()

	case habits.LogHabitMsg:
		return m, m.logHabit(msg.ID)

	case habits.RefreshMsg:
		return m, m.loadHabits()

	case habitLoggedMsg:
		if msg.err != nil {
			m.status = apperrors.Public(msg.err)
			return m, nil
		}
		m.status = "Logged."
		return m, m.loadHabits()

	case habitsLoadedMsg:
		if msg.err != nil {
			m.status = "Failed to load habits: " + apperrors.Public(msg.err)
			return m, nil
		}
		m.habitsModel.SetHabits(msg.habits, m.today())
		return m, nil
	}

	switch m.state {
	case StateChat:
		m.chatModel, cmd = m.chatModel.Update(msg)
	case StateHabits:
		m.habitsModel, cmd = m.habitsModel.Update(msg)
	}
	return m, cmd
}
