package habits

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	apperrors "github.com/thomasluizon/orbit-api-sub001/internal/errors"
	"github.com/thomasluizon/orbit-api-sub001/internal/models"
	"github.com/thomasluizon/orbit-api-sub001/internal/storage/sqlite"
	"github.com/thomasluizon/orbit-api-sub001/internal/storage/storetest"
)

func setupService(t *testing.T) (*Service, *sqlite.Store, *time.Time) {
	t.Helper()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "orbit.db"))
	if err := store.Init(); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	clock := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)
	svc := NewService(store)
	svc.now = func() time.Time { return clock }
	return svc, store, &clock
}

func intPtr(i int) *int { return &i }

func TestCreateWithSubHabits(t *testing.T) {
	svc, store, _ := setupService(t)
	ctx := context.Background()
	user := storetest.NewUser(t, store)

	h, err := svc.Create(ctx, user.ID, Spec{
		Title:         "Morning routine",
		FrequencyUnit: "daily",
		SubHabits: []Spec{
			{Title: "Stretch", FrequencyUnit: "day"},
			{Title: "Journal", FrequencyUnit: "day", SubHabits: []Spec{{Title: "Gratitude list"}}},
		},
	})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if h.FrequencyQuantity != 1 || h.DueDate != "2026-03-12" {
		t.Errorf("unexpected defaults: qty=%d due=%s", h.FrequencyQuantity, h.DueDate)
	}
	if len(h.ChildIDs) != 2 {
		t.Fatalf("ChildIDs = %v, want 2 children", h.ChildIDs)
	}
	journal, err := svc.Get(ctx, user.ID, h.ChildIDs[1])
	if err != nil {
		t.Fatalf("Get(child) failed: %v", err)
	}
	if journal.Title != "Journal" || journal.ParentHabitID == nil || *journal.ParentHabitID != h.ID {
		t.Errorf("unexpected child: %+v", journal)
	}
	if len(journal.ChildIDs) != 1 {
		t.Errorf("grandchild missing: %v", journal.ChildIDs)
	}
}

func TestCreateRejectsInvalidSubHabit(t *testing.T) {
	svc, store, _ := setupService(t)
	ctx := context.Background()
	user := storetest.NewUser(t, store)

	_, err := svc.Create(ctx, user.ID, Spec{
		Title:     "Fitness",
		SubHabits: []Spec{{Title: "Push-ups"}, {Title: "  "}},
	})
	if got := apperrors.FieldOf(err); got != "subHabits[1].title" {
		t.Fatalf("field = %q (err %v), want subHabits[1].title", got, err)
	}
	all, err := svc.List(ctx, user.ID, true)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("a failed create must not leave habits behind, got %d", len(all))
	}
}

func TestCreateRejectsWeekdaysWithQuantity(t *testing.T) {
	svc, store, _ := setupService(t)
	user := storetest.NewUser(t, store)

	_, err := svc.Create(context.Background(), user.ID, Spec{
		Title:             "Gym",
		FrequencyUnit:     "week",
		FrequencyQuantity: intPtr(2),
		Days:              []string{"mon", "wed"},
	})
	if apperrors.FieldOf(err) != "days" {
		t.Fatalf("error = %v, want days validation error", err)
	}
}

func TestLogAndMetrics(t *testing.T) {
	svc, store, clock := setupService(t)
	ctx := context.Background()
	user := storetest.NewUser(t, store)

	*clock = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	h, err := svc.Create(ctx, user.ID, Spec{Title: "Run", FrequencyUnit: "day"})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	*clock = time.Date(2026, 3, 12, 20, 0, 0, 0, time.UTC)
	for _, d := range []string{"2026-03-10", "2026-03-11", ""} {
		if _, err := svc.Log(ctx, user.ID, h.ID, models.LogInput{Date: d}); err != nil {
			t.Fatalf("Log(%q) failed: %v", d, err)
		}
	}

	if _, err := svc.Log(ctx, user.ID, h.ID, models.LogInput{Date: "2026-03-12"}); apperrors.FieldOf(err) != "date" {
		t.Errorf("duplicate log error = %v, want date validation error", err)
	}

	m, err := svc.Metrics(ctx, user.ID, h.ID)
	if err != nil {
		t.Fatalf("Metrics() failed: %v", err)
	}
	if m.CurrentStreak != 3 || m.LongestStreak != 3 || m.TotalCompletions != 3 {
		t.Errorf("unexpected metrics: %+v", m)
	}

	got, err := svc.Get(ctx, user.ID, h.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.DueDate != "2026-03-13" {
		t.Errorf("due date = %s, want 2026-03-13", got.DueDate)
	}
}

func TestUnlogReopensOneTimeHabit(t *testing.T) {
	svc, store, _ := setupService(t)
	ctx := context.Background()
	user := storetest.NewUser(t, store)

	h, err := svc.Create(ctx, user.ID, Spec{Title: "Renew passport"})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	entry, err := svc.Log(ctx, user.ID, h.ID, models.LogInput{})
	if err != nil {
		t.Fatalf("Log() failed: %v", err)
	}
	if _, err := svc.Log(ctx, user.ID, h.ID, models.LogInput{Date: "2026-03-13"}); apperrors.FieldOf(err) != "habitId" {
		t.Errorf("logging a completed one-time habit: %v", err)
	}

	if err := svc.Unlog(ctx, user.ID, h.ID, entry.ID); err != nil {
		t.Fatalf("Unlog() failed: %v", err)
	}
	got, err := svc.Get(ctx, user.ID, h.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.IsCompleted || len(got.Logs) != 0 {
		t.Errorf("habit should be reopened: %+v", got)
	}
}

func TestDeactivateCascades(t *testing.T) {
	svc, store, _ := setupService(t)
	ctx := context.Background()
	user := storetest.NewUser(t, store)

	h, err := svc.Create(ctx, user.ID, Spec{Title: "Parent", SubHabits: []Spec{{Title: "Child", SubHabits: []Spec{{Title: "Grandchild"}}}}})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	keep, err := svc.Create(ctx, user.ID, Spec{Title: "Unrelated"})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	if err := svc.Deactivate(ctx, user.ID, h.ID); err != nil {
		t.Fatalf("Deactivate() failed: %v", err)
	}
	active, err := svc.List(ctx, user.ID, false)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(active) != 1 || active[0].ID != keep.ID {
		t.Errorf("active habits = %+v, want only %s", active, keep.ID)
	}
	all, _ := svc.List(ctx, user.ID, true)
	if len(all) != 4 {
		t.Errorf("deactivated habits should still be stored, got %d", len(all))
	}
	if err := svc.Deactivate(ctx, user.ID, h.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("second Deactivate() = %v, want ErrNotFound", err)
	}
}

func TestSetParentRejectsCycles(t *testing.T) {
	svc, store, _ := setupService(t)
	ctx := context.Background()
	user := storetest.NewUser(t, store)

	a, _ := svc.Create(ctx, user.ID, Spec{Title: "A", SubHabits: []Spec{{Title: "B"}}})
	b := a.ChildIDs[0]

	tests := []struct {
		name   string
		id     string
		parent string
	}{
		{"self", a.ID, a.ID},
		{"descendant", a.ID, b},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parent := tt.parent
			if _, err := svc.SetParent(ctx, user.ID, tt.id, &parent); apperrors.FieldOf(err) != "parentHabitId" {
				t.Errorf("SetParent() = %v, want parentHabitId validation error", err)
			}
		})
	}

	c, _ := svc.Create(ctx, user.ID, Spec{Title: "C"})
	moved, err := svc.SetParent(ctx, user.ID, c.ID, &b)
	if err != nil {
		t.Fatalf("SetParent() failed: %v", err)
	}
	if moved.ParentHabitID == nil || *moved.ParentHabitID != b {
		t.Errorf("parent = %v, want %s", moved.ParentHabitID, b)
	}
	top, err := svc.SetParent(ctx, user.ID, c.ID, nil)
	if err != nil || top.ParentHabitID != nil {
		t.Errorf("moving to top level: %v %v", top.ParentHabitID, err)
	}
}

func TestSetParentConcurrentSwapKeepsTreeAcyclic(t *testing.T) {
	svc, store, _ := setupService(t)
	ctx := context.Background()
	user := storetest.NewUser(t, store)

	x, _ := svc.Create(ctx, user.ID, Spec{Title: "X"})
	y, _ := svc.Create(ctx, user.ID, Spec{Title: "Y"})

	moves := [][2]string{{x.ID, y.ID}, {y.ID, x.ID}}
	errs := make([]error, len(moves))
	var wg sync.WaitGroup
	for i, m := range moves {
		wg.Add(1)
		go func() {
			defer wg.Done()
			parent := m[1]
			_, errs[i] = svc.SetParent(ctx, user.ID, m[0], &parent)
		}()
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err == nil {
			continue
		}
		failed++
		if apperrors.FieldOf(err) != "parentHabitId" {
			t.Errorf("SetParent() = %v, want parentHabitId validation error", err)
		}
	}
	if failed != 1 {
		t.Fatalf("%d moves failed, want exactly 1: %v", failed, errs)
	}

	gotX, _ := store.GetHabit(ctx, user.ID, x.ID)
	gotY, _ := store.GetHabit(ctx, user.ID, y.ID)
	if gotX.ParentHabitID != nil && gotY.ParentHabitID != nil {
		t.Errorf("X and Y are each other's parent")
	}
}

func TestSetTagsSkipsUnknownReferences(t *testing.T) {
	svc, store, _ := setupService(t)
	ctx := context.Background()
	user := storetest.NewUser(t, store)

	health, err := svc.CreateTag(ctx, user.ID, "Health", "")
	if err != nil {
		t.Fatalf("CreateTag() failed: %v", err)
	}
	morning, _ := svc.CreateTag(ctx, user.ID, "Morning", "#112233")
	h, _ := svc.Create(ctx, user.ID, Spec{Title: "Run"})

	got, err := svc.SetTags(ctx, user.ID, h.ID, []string{health.ID, "does-not-exist", "MORNING"})
	if err != nil {
		t.Fatalf("SetTags() failed: %v", err)
	}
	if len(got.TagIDs) != 2 {
		t.Fatalf("TagIDs = %v, want 2", got.TagIDs)
	}

	if err := svc.DeleteTag(ctx, user.ID, morning.ID); err != nil {
		t.Fatalf("DeleteTag() failed: %v", err)
	}
	got, _ = svc.Get(ctx, user.ID, h.ID)
	if len(got.TagIDs) != 1 || got.TagIDs[0] != health.ID {
		t.Errorf("TagIDs after delete = %v", got.TagIDs)
	}
}

func TestTrendsRequireQuantifiableHabit(t *testing.T) {
	svc, store, _ := setupService(t)
	ctx := context.Background()
	user := storetest.NewUser(t, store)

	plain, _ := svc.Create(ctx, user.ID, Spec{Title: "Meditate", FrequencyUnit: "day"})
	if _, err := svc.Trends(ctx, user.ID, plain.ID); !errors.Is(err, apperrors.ErrTypeMismatch) {
		t.Errorf("Trends() = %v, want ErrTypeMismatch", err)
	}

	water, _ := svc.Create(ctx, user.ID, Spec{Title: "Water", FrequencyUnit: "day", IsQuantifiable: true, Unit: "glasses"})
	v := 6.0
	if _, err := svc.Log(ctx, user.ID, water.ID, models.LogInput{Value: &v}); err != nil {
		t.Fatalf("Log() failed: %v", err)
	}
	trends, err := svc.Trends(ctx, user.ID, water.ID)
	if err != nil {
		t.Fatalf("Trends() failed: %v", err)
	}
	if len(trends.Monthly) != 1 || trends.Monthly[0].Period != "2026-03" || trends.Monthly[0].Average != 6 {
		t.Errorf("unexpected monthly trends: %+v", trends.Monthly)
	}
}

func TestOtherUsersHabitsAreNotFound(t *testing.T) {
	svc, store, _ := setupService(t)
	ctx := context.Background()
	owner := storetest.NewUser(t, store)
	other := storetest.NewUser(t, store)

	h, _ := svc.Create(ctx, owner.ID, Spec{Title: "Private"})
	if _, err := svc.Get(ctx, other.ID, h.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Get() = %v, want ErrNotFound", err)
	}
	if _, err := svc.Log(ctx, other.ID, h.ID, models.LogInput{}); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Log() = %v, want ErrNotFound", err)
	}
	if _, err := svc.Metrics(ctx, other.ID, h.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Metrics() = %v, want ErrNotFound", err)
	}
}
