package habits

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/thomasluizon/orbit-api-sub001/internal/models"
	"github.com/thomasluizon/orbit-api-sub001/internal/validation"
)

// LogHabitMsg asks the parent model to log the habit for today.
type LogHabitMsg struct {
	ID string
}

// RefreshMsg asks the parent model to reload the habits.
type RefreshMsg struct{}

type Item struct {
	Habit    models.Habit
	IsLogged bool
	IsChild  bool
}

func (i Item) Title() string {
	title := i.Habit.Title
	switch {
	case i.Habit.IsCompleted:
		title = "✓ " + title + " (done)"
	case i.IsLogged:
		title = "✓ " + title
	default:
		title = "○ " + title
	}
	if i.IsChild {
		title = "  " + title
	}
	return title
}

func (i Item) Description() string {
	desc := validation.FormatFrequency(i.Habit.FrequencyUnit, i.Habit.FrequencyQuantity, i.Habit.Days)
	if i.Habit.IsBadHabit {
		desc += " · avoid"
	}
	desc += fmt.Sprintf(" · due %s", i.Habit.DueDate)
	if i.IsChild {
		desc = "  " + desc
	}
	return desc
}

func (i Item) FilterValue() string { return i.Habit.Title }

type KeyMap struct {
	Log     key.Binding
	Refresh key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Log: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "log today"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
	}
}

type Model struct {
	list  list.Model
	keys  KeyMap
	today string
}

func New(width, height int) Model {
	l := list.New(nil, list.NewDefaultDelegate(), width, height)
	l.Title = "Habits"
	l.SetShowTitle(false)
	l.SetShowHelp(false)

	keys := DefaultKeyMap()
	l.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{keys.Log, keys.Refresh}
	}
	l.AdditionalFullHelpKeys = func() []key.Binding {
		return []key.Binding{keys.Log, keys.Refresh}
	}
	return Model{list: l, keys: keys}
}

// Items orders habits so each child follows its parent.
func Items(habits []models.Habit, today string) []list.Item {
	byID := make(map[string]models.Habit, len(habits))
	for _, h := range habits {
		byID[h.ID] = h
	}
	var items []list.Item
	for _, h := range habits {
		if h.ParentHabitID != nil {
			if _, ok := byID[*h.ParentHabitID]; ok {
				continue
			}
		}
		items = append(items, Item{Habit: h, IsLogged: h.HasLogOn(today)})
		for _, id := range h.ChildIDs {
			if c, ok := byID[id]; ok {
				items = append(items, Item{Habit: c, IsLogged: c.HasLogOn(today), IsChild: true})
			}
		}
	}
	return items
}

func (m *Model) SetHabits(habits []models.Habit, today string) {
	m.today = today
	m.list.SetItems(Items(habits, today))
}

func (m *Model) SetSize(width, height int) {
	m.list.SetSize(width, height)
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && m.list.FilterState() != list.Filtering {
		switch {
		case key.Matches(msg, m.keys.Log):
			if i, ok := m.list.SelectedItem().(Item); ok && !i.IsLogged && !i.Habit.IsCompleted {
				return m, func() tea.Msg { return LogHabitMsg{ID: i.Habit.ID} }
			}
			return m, nil
		case key.Matches(msg, m.keys.Refresh):
			return m, func() tea.Msg { return RefreshMsg{} }
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return "No habits yet. Ask Orbit in the chat tab to create one."
	}
	return m.list.View()
}
