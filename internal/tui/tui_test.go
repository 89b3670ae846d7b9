package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	engine "github.com/thomasluizon/orbit-api-sub001/internal/chat"
	apperrors "github.com/thomasluizon/orbit-api-sub001/internal/errors"
	"github.com/thomasluizon/orbit-api-sub001/internal/interpreter"
	"github.com/thomasluizon/orbit-api-sub001/internal/models"
	"github.com/thomasluizon/orbit-api-sub001/internal/tui/components/chat"
	"github.com/thomasluizon/orbit-api-sub001/internal/tui/components/habits"
)

type fakeTurner struct {
	userID  string
	message string
	resp    engine.Response
	err     error
}

func (f *fakeTurner) Turn(_ context.Context, userID, message string, _ *interpreter.Image) (engine.Response, error) {
	f.userID, f.message = userID, message
	return f.resp, f.err
}

type fakeHabits struct {
	list   []models.Habit
	logged []string
	logErr error
}

func (f *fakeHabits) List(context.Context, string, bool) ([]models.Habit, error) {
	return f.list, nil
}

func (f *fakeHabits) Log(_ context.Context, _ string, id string, _ models.LogInput) (models.HabitLog, error) {
	if f.logErr != nil {
		return models.HabitLog{}, f.logErr
	}
	f.logged = append(f.logged, id)
	return models.HabitLog{HabitID: id}, nil
}

func newTestModel() (Model, *fakeTurner, *fakeHabits) {
	turner := &fakeTurner{resp: engine.Response{Reply: "Nice work"}}
	hs := &fakeHabits{list: []models.Habit{{ID: "h1", Title: "Read"}}}
	m := NewModel(turner, hs, models.User{ID: "u1", Email: "ada@example.com", Timezone: "UTC"})
	return m, turner, hs
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestTabSwitchesView(t *testing.T) {
	m, _, _ := newTestModel()
	if m.state != StateChat {
		t.Fatalf("expected chat tab first, got %v", m.state)
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.state != StateHabits {
		t.Errorf("expected habits tab, got %v", m.state)
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.state != StateChat {
		t.Errorf("expected chat tab, got %v", m.state)
	}
}

func TestSendRunsTurnThenReloadsHabits(t *testing.T) {
	m, turner, _ := newTestModel()

	m, cmd := update(t, m, chat.SendMsg{Text: "I read today"})
	if cmd == nil {
		t.Fatal("expected a turn command")
	}
	done, ok := cmd().(turnDoneMsg)
	if !ok {
		t.Fatalf("expected turnDoneMsg")
	}
	if turner.userID != "u1" || turner.message != "I read today" {
		t.Errorf("Turn called with (%q, %q)", turner.userID, turner.message)
	}

	m, cmd = update(t, m, done)
	if cmd == nil {
		t.Fatal("expected a reload after a turn")
	}
	loaded, ok := cmd().(habitsLoadedMsg)
	if !ok || len(loaded.habits) != 1 {
		t.Fatalf("expected one loaded habit, got %+v", loaded)
	}
	if _, cmd = update(t, m, loaded); cmd != nil {
		t.Error("loading habits should not schedule more work")
	}
}

func TestTurnErrorIsShownWithoutReload(t *testing.T) {
	m, turner, _ := newTestModel()
	turner.err = apperrors.ErrNotFound

	_, cmd := update(t, m, chat.SendMsg{Text: "hi"})
	m, cmd = update(t, m, cmd())
	if cmd != nil {
		t.Error("a failed turn should not reload habits")
	}
	if m.chatModel.Waiting() {
		t.Error("chat should stop waiting after an error")
	}
}

func TestLogHabit(t *testing.T) {
	tests := []struct {
		name       string
		logErr     error
		wantStatus string
		wantReload bool
	}{
		{"success", nil, "Logged.", true},
		{"failure", apperrors.Invalid("date", "habit \"Read\" is already logged for 2026-10-16"),
			"habit \"Read\" is already logged for 2026-10-16", false},
		{"internal", errors.New("disk full"), "internal error", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _, hs := newTestModel()
			hs.logErr = tt.logErr

			m, cmd := update(t, m, habits.LogHabitMsg{ID: "h1"})
			m, cmd = update(t, m, cmd())
			if m.status != tt.wantStatus {
				t.Errorf("status = %q, want %q", m.status, tt.wantStatus)
			}
			if (cmd != nil) != tt.wantReload {
				t.Errorf("reload scheduled = %v, want %v", cmd != nil, tt.wantReload)
			}
			if tt.logErr == nil && (len(hs.logged) != 1 || hs.logged[0] != "h1") {
				t.Errorf("expected h1 to be logged, got %v", hs.logged)
			}
		})
	}
}

func TestQuit(t *testing.T) {
	m, _, _ := newTestModel()
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	if m.View() != "" {
		t.Error("view should be empty after quitting")
	}
}
