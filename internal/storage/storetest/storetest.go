// Package storetest is a behavioural suite every storage.Provider must pass.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/thomasluizon/orbit-api-sub001/internal/constants"
	apperrors "github.com/thomasluizon/orbit-api-sub001/internal/errors"
	"github.com/thomasluizon/orbit-api-sub001/internal/models"
	"github.com/thomasluizon/orbit-api-sub001/internal/storage"
)

var now = time.Date(2026, 3, 12, 9, 30, 0, 0, time.UTC)

// NewUser stores a fresh user and returns it.
func NewUser(t *testing.T, repo storage.Repository) models.User {
	t.Helper()
	u, err := models.NewUser(uuid.NewString()+"@example.com", "hash", "UTC", now)
	if err != nil {
		t.Fatalf("NewUser() failed: %v", err)
	}
	if err := repo.AddUser(context.Background(), u); err != nil {
		t.Fatalf("AddUser() failed: %v", err)
	}
	return u
}

// NewHabit stores a habit for userID and returns it.
func NewHabit(t *testing.T, repo storage.Repository, userID string, p models.HabitParams) models.Habit {
	t.Helper()
	h, err := models.NewHabit(userID, p, now, now)
	if err != nil {
		t.Fatalf("models.NewHabit() failed: %v", err)
	}
	if err := repo.AddHabit(context.Background(), h); err != nil {
		t.Fatalf("AddHabit() failed: %v", err)
	}
	return h
}

// Run exercises p, which must be initialized and empty of conflicting data.
func Run(t *testing.T, p storage.Provider) {
	t.Run("Users", func(t *testing.T) { testUsers(t, p) })
	t.Run("Habits", func(t *testing.T) { testHabits(t, p) })
	t.Run("Logs", func(t *testing.T) { testLogs(t, p) })
	t.Run("Tags", func(t *testing.T) { testTags(t, p) })
	t.Run("Facts", func(t *testing.T) { testFacts(t, p) })
	t.Run("Savepoints", func(t *testing.T) { testSavepoints(t, p) })
}

func testUsers(t *testing.T, p storage.Provider) {
	ctx := context.Background()
	u := NewUser(t, p)

	got, err := p.GetUserByEmail(ctx, u.Email)
	if err != nil {
		t.Fatalf("GetUserByEmail() failed: %v", err)
	}
	if got.ID != u.ID || got.Timezone != "UTC" {
		t.Errorf("unexpected user: %+v", got)
	}

	if err := p.AddUser(ctx, models.User{ID: uuid.NewString(), Email: u.Email, PasswordHash: "x", Timezone: "UTC", CreatedAt: now}); !errors.Is(err, apperrors.ErrConflict) {
		t.Errorf("duplicate email error = %v, want ErrConflict", err)
	}
	if _, err := p.GetUser(ctx, "missing"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("GetUser(missing) error = %v, want ErrNotFound", err)
	}
}

func testHabits(t *testing.T, p storage.Provider) {
	ctx := context.Background()
	owner := NewUser(t, p)
	other := NewUser(t, p)

	pos := 2
	parent := NewHabit(t, p, owner.ID, models.HabitParams{
		Title:             "Gym",
		FrequencyUnit:     constants.FrequencyWeek,
		FrequencyQuantity: 1,
		Days:              []time.Weekday{time.Monday, time.Friday},
		Position:          &pos,
	})
	child := NewHabit(t, p, owner.ID, models.HabitParams{Title: "Stretch", ParentHabitID: &parent.ID})

	got, err := p.GetHabit(ctx, owner.ID, parent.ID)
	if err != nil {
		t.Fatalf("GetHabit() failed: %v", err)
	}
	if len(got.Days) != 2 || got.Days[1] != time.Friday {
		t.Errorf("Days = %v, want [Monday Friday]", got.Days)
	}
	if got.Position == nil || *got.Position != 2 {
		t.Errorf("Position = %v, want 2", got.Position)
	}
	if len(got.ChildIDs) != 1 || got.ChildIDs[0] != child.ID {
		t.Errorf("ChildIDs = %v, want [%s]", got.ChildIDs, child.ID)
	}

	if _, err := p.GetHabit(ctx, other.ID, parent.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("foreign GetHabit() error = %v, want ErrNotFound", err)
	}

	child.IsActive = false
	if err := p.UpdateHabit(ctx, child); err != nil {
		t.Fatalf("UpdateHabit() failed: %v", err)
	}
	active, err := p.ListHabits(ctx, owner.ID, false)
	if err != nil {
		t.Fatalf("ListHabits() failed: %v", err)
	}
	if len(active) != 1 {
		t.Errorf("active habits = %d, want 1", len(active))
	}
	all, err := p.ListHabits(ctx, owner.ID, true)
	if err != nil {
		t.Fatalf("ListHabits(all) failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all habits = %d, want 2", len(all))
	}

	foreign := parent
	foreign.UserID = other.ID
	if err := p.UpdateHabit(ctx, foreign); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("foreign UpdateHabit() error = %v, want ErrNotFound", err)
	}
}

func testLogs(t *testing.T, p storage.Provider) {
	ctx := context.Background()
	u := NewUser(t, p)
	daily := models.HabitParams{Title: "Run", FrequencyUnit: constants.FrequencyDay, FrequencyQuantity: 1, IsQuantifiable: true, Unit: "km"}
	run := NewHabit(t, p, u.ID, daily)
	smoking := NewHabit(t, p, u.ID, models.HabitParams{Title: "Smoking", FrequencyUnit: constants.FrequencyDay, FrequencyQuantity: 1, IsBadHabit: true})

	v := 5.5
	first := models.HabitLog{ID: uuid.NewString(), HabitID: run.ID, Date: "2026-03-12", Value: &v, CreatedAt: now}
	if err := p.AddHabitLog(ctx, first); err != nil {
		t.Fatalf("AddHabitLog() failed: %v", err)
	}
	dup := models.HabitLog{ID: uuid.NewString(), HabitID: run.ID, Date: "2026-03-12", CreatedAt: now}
	if err := p.AddHabitLog(ctx, dup); apperrors.FieldOf(err) != "date" {
		t.Errorf("duplicate log error = %v, want date validation error", err)
	}

	for i := 0; i < 2; i++ {
		lapse := models.HabitLog{ID: uuid.NewString(), HabitID: smoking.ID, Date: "2026-03-12", CreatedAt: now}
		if err := p.AddHabitLog(ctx, lapse); err != nil {
			t.Fatalf("bad habit lapse %d failed: %v", i+1, err)
		}
	}

	got, err := p.GetHabit(ctx, u.ID, run.ID)
	if err != nil {
		t.Fatalf("GetHabit() failed: %v", err)
	}
	if len(got.Logs) != 1 || got.Logs[0].Value == nil || *got.Logs[0].Value != 5.5 {
		t.Errorf("unexpected logs: %+v", got.Logs)
	}
	bad, err := p.GetHabit(ctx, u.ID, smoking.ID)
	if err != nil {
		t.Fatalf("GetHabit() failed: %v", err)
	}
	if len(bad.Logs) != 2 {
		t.Errorf("bad habit logs = %d, want 2", len(bad.Logs))
	}

	if err := p.DeleteHabitLog(ctx, run.ID, first.ID); err != nil {
		t.Fatalf("DeleteHabitLog() failed: %v", err)
	}
	if err := p.DeleteHabitLog(ctx, run.ID, first.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("second DeleteHabitLog() error = %v, want ErrNotFound", err)
	}
}

func testTags(t *testing.T, p storage.Provider) {
	ctx := context.Background()
	u := NewUser(t, p)
	h := NewHabit(t, p, u.ID, models.HabitParams{Title: "Read"})

	tag, err := models.NewTag(u.ID, "Health", "#22C55E", now)
	if err != nil {
		t.Fatalf("NewTag() failed: %v", err)
	}
	if err := p.AddTag(ctx, tag); err != nil {
		t.Fatalf("AddTag() failed: %v", err)
	}
	dup, _ := models.NewTag(u.ID, "health", "", now)
	if err := p.AddTag(ctx, dup); !errors.Is(err, apperrors.ErrConflict) {
		t.Errorf("case-insensitive duplicate tag error = %v, want ErrConflict", err)
	}

	for i := 0; i < 2; i++ {
		if err := p.AttachTag(ctx, h.ID, tag.ID); err != nil {
			t.Fatalf("AttachTag() #%d failed: %v", i+1, err)
		}
	}
	got, err := p.GetHabit(ctx, u.ID, h.ID)
	if err != nil {
		t.Fatalf("GetHabit() failed: %v", err)
	}
	if len(got.TagIDs) != 1 || got.TagIDs[0] != tag.ID {
		t.Errorf("TagIDs = %v, want [%s]", got.TagIDs, tag.ID)
	}

	if err := p.DeleteTag(ctx, u.ID, tag.ID); err != nil {
		t.Fatalf("DeleteTag() failed: %v", err)
	}
	got, err = p.GetHabit(ctx, u.ID, h.ID)
	if err != nil {
		t.Fatalf("habit must survive tag deletion: %v", err)
	}
	if len(got.TagIDs) != 0 {
		t.Errorf("TagIDs after delete = %v, want none", got.TagIDs)
	}
}

func testFacts(t *testing.T, p storage.Provider) {
	ctx := context.Background()
	u := NewUser(t, p)

	fact, err := models.NewUserFact(u.ID, "Prefers morning workouts", "preference", now)
	if err != nil {
		t.Fatalf("NewUserFact() failed: %v", err)
	}
	if err := p.AddFact(ctx, fact); err != nil {
		t.Fatalf("AddFact() failed: %v", err)
	}

	facts, err := p.ListFacts(ctx, u.ID)
	if err != nil {
		t.Fatalf("ListFacts() failed: %v", err)
	}
	if len(facts) != 1 || facts[0].Category != constants.FactPreference {
		t.Fatalf("unexpected facts: %+v", facts)
	}

	dup, _ := models.NewUserFact(u.ID, "prefers MORNING workouts", "preference", now)
	if err := p.AddFact(ctx, dup); !errors.Is(err, apperrors.ErrConflict) {
		t.Errorf("AddFact(duplicate) error = %v, want ErrConflict", err)
	}

	other, _ := models.NewUserFact(u.ID, "Walks the dog daily", "routine", now)
	if err := p.AddFact(ctx, other); err != nil {
		t.Fatalf("AddFact() failed: %v", err)
	}
	if err := other.UpdateText("Prefers morning workouts", "routine", now); err != nil {
		t.Fatalf("UpdateText() failed: %v", err)
	}
	if err := p.UpdateFact(ctx, other); apperrors.FieldOf(err) != "text" {
		t.Errorf("UpdateFact(duplicate text) error = %v, want invalid text", err)
	}

	fact.SoftDelete(now)
	if err := p.UpdateFact(ctx, fact); err != nil {
		t.Fatalf("UpdateFact() failed: %v", err)
	}
	if facts, _ := p.ListFacts(ctx, u.ID); len(facts) != 1 {
		t.Errorf("listed facts = %+v, want only the dog fact", facts)
	}
	if _, err := p.GetFact(ctx, u.ID, fact.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("GetFact(deleted) error = %v, want ErrNotFound", err)
	}

	// Soft-deleted text can be learned again.
	if err := p.AddFact(ctx, dup); err != nil {
		t.Errorf("AddFact(after delete) failed: %v", err)
	}
}

func testSavepoints(t *testing.T, p storage.Provider) {
	ctx := context.Background()
	u := NewUser(t, p)

	tx, err := p.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() failed: %v", err)
	}
	defer tx.Rollback()

	var kept models.Habit
	err = storage.WithSavepoint(ctx, tx, "item_0", func() error {
		kept = NewHabit(t, tx, u.ID, models.HabitParams{Title: "Kept"})
		return nil
	})
	if err != nil {
		t.Fatalf("first savepoint failed: %v", err)
	}

	boom := errors.New("boom")
	err = storage.WithSavepoint(ctx, tx, "item_1", func() error {
		NewHabit(t, tx, u.ID, models.HabitParams{Title: "Discarded"})
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithSavepoint() error = %v, want boom", err)
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}

	habits, err := p.ListHabits(ctx, u.ID, true)
	if err != nil {
		t.Fatalf("ListHabits() failed: %v", err)
	}
	if len(habits) != 1 || habits[0].ID != kept.ID {
		t.Errorf("habits after commit = %+v, want only %q", habits, kept.Title)
	}

	// A rolled back transaction leaves nothing behind
	tx, err = p.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() failed: %v", err)
	}
	NewHabit(t, tx, u.ID, models.HabitParams{Title: "Never committed"})
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback() failed: %v", err)
	}
	if habits, _ := p.ListHabits(ctx, u.ID, true); len(habits) != 1 {
		t.Errorf("rolled back habit persisted: %d habits", len(habits))
	}
}
