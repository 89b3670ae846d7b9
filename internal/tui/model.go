// Package tui is the terminal client: a chat tab that drives the action
// engine in-process and a habits tab showing today's state.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	engine "github.com/thomasluizon/orbit-api-sub001/internal/chat"
	"github.com/thomasluizon/orbit-api-sub001/internal/interpreter"
	"github.com/thomasluizon/orbit-api-sub001/internal/models"
	"github.com/thomasluizon/orbit-api-sub001/internal/tui/components/chat"
	"github.com/thomasluizon/orbit-api-sub001/internal/tui/components/habits"
	"github.com/thomasluizon/orbit-api-sub001/internal/utils"
)

// Turner runs one chat turn.
type Turner interface {
	Turn(ctx context.Context, userID, message string, image *interpreter.Image) (engine.Response, error)
}

// HabitService is the part of the habit service the habits tab uses.
type HabitService interface {
	List(ctx context.Context, userID string, includeInactive bool) ([]models.Habit, error)
	Log(ctx context.Context, userID, id string, in models.LogInput) (models.HabitLog, error)
}

type SessionState int

const (
	StateChat SessionState = iota
	StateHabits
)

// turnTimeout bounds one chat turn including interpreter retries.
const turnTimeout = 2 * time.Minute

type Model struct {
	turner      Turner
	habits      HabitService
	user        models.User
	state       SessionState
	keys        KeyMap
	help        help.Model
	chatModel   chat.Model
	habitsModel habits.Model
	status      string
	quitting    bool
	width       int
	height      int
}

func NewModel(turner Turner, habitSvc HabitService, user models.User) Model {
	return Model{
		turner:      turner,
		habits:      habitSvc,
		user:        user,
		keys:        DefaultKeyMap(),
		help:        help.New(),
		chatModel:   chat.New(0, 0),
		habitsModel: habits.New(0, 0),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.chatModel.Init(), m.loadHabits())
}

type KeyMap struct {
	Tab  key.Binding
	Quit key.Binding
	Help key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "switch view"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "esc"),
			key.WithHelp("esc", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("f1"),
			key.WithHelp("f1", "toggle help"),
		),
	}
}

func (m Model) ShortHelp() []key.Binding {
	keys := []key.Binding{m.keys.Tab, m.keys.Quit, m.keys.Help}
	if m.state == StateChat {
		keys = append(keys, m.chatModel.SendKey())
	}
	return keys
}

func (m Model) FullHelp() [][]key.Binding {
	global := []key.Binding{m.keys.Tab, m.keys.Quit, m.keys.Help}
	var actions []key.Binding
	switch m.state {
	case StateChat:
		actions = []key.Binding{m.chatModel.SendKey()}
	case StateHabits:
		hk := habits.DefaultKeyMap()
		actions = []key.Binding{hk.Log, hk.Refresh}
	}
	return [][]key.Binding{global, actions}
}

// Messages produced by the async commands below.
type (
	turnDoneMsg struct {
		resp engine.Response
		err  error
	}
	habitsLoadedMsg struct {
		habits []models.Habit
		err    error
	}
	habitLoggedMsg struct {
		err error
	}
)

func (m Model) today() string {
	today, err := utils.TodayIn(m.user.Timezone, time.Now())
	if err != nil {
		return utils.FormatDate(time.Now())
	}
	return utils.FormatDate(today)
}

func (m Model) runTurn(text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
		defer cancel()
		resp, err := m.turner.Turn(ctx, m.user.ID, text, nil)
		return turnDoneMsg{resp: resp, err: err}
	}
}

func (m Model) loadHabits() tea.Cmd {
	return func() tea.Msg {
		list, err := m.habits.List(context.Background(), m.user.ID, false)
		return habitsLoadedMsg{habits: list, err: err}
	}
}

func (m Model) logHabit(id string) tea.Cmd {
	return func() tea.Msg {
		_, err := m.habits.Log(context.Background(), m.user.ID, id, models.LogInput{})
		return habitLoggedMsg{err: err}
	}
}
