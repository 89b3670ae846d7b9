package habits

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/thomasluizon/orbit-api-sub001/internal/errors"
	"github.com/thomasluizon/orbit-api-sub001/internal/models"
	"github.com/thomasluizon/orbit-api-sub001/internal/scheduler"
	"github.com/thomasluizon/orbit-api-sub001/internal/storage"
	"github.com/thomasluizon/orbit-api-sub001/internal/utils"
)

// The functions in this file work on any storage.Repository so the chat
// engine and the bulk gateway can run them inside their own transactions.

// maxDepth bounds parent walks. Real trees are a few levels deep.
const maxDepth = 64

// SchedulerFor returns a scheduler in the user's timezone.
func SchedulerFor(ctx context.Context, repo storage.Repository, userID string, now time.Time) (*scheduler.Scheduler, error) {
	user, err := repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return scheduler.New(user.Timezone, now)
}

// CreateTree stores spec and, in order, every sub-habit below it. The first
// failing sub-habit aborts the rest and its error is re-rooted under
// "subHabits[i]". Callers wanting all-or-nothing run it in a savepoint.
func CreateTree(ctx context.Context, repo storage.Repository, userID string, spec Spec, parentID *string, position *int, today, now time.Time) (models.Habit, error) {
	p, err := spec.Params()
	if err != nil {
		return models.Habit{}, err
	}
	p.ParentHabitID = parentID
	p.Position = position

	h, err := models.NewHabit(userID, p, today, now)
	if err != nil {
		return models.Habit{}, err
	}
	if err := repo.AddHabit(ctx, h); err != nil {
		return models.Habit{}, err
	}

	for i, child := range spec.SubHabits {
		pos := i
		c, err := CreateTree(ctx, repo, userID, child, &h.ID, &pos, today, now)
		if err != nil {
			return models.Habit{}, apperrors.WithFieldPrefix(err,
				fmt.Sprintf("subHabits[%d]", i), fmt.Sprintf("sub-habit %d: ", i+1))
		}
		h.ChildIDs = append(h.ChildIDs, c.ID)
	}
	return h, nil
}

// LogHabit records a completion (or lapse) and persists the due date change.
// An empty date means today.
func LogHabit(ctx context.Context, repo storage.Repository, userID, habitID string, in models.LogInput, today, now time.Time) (models.Habit, models.HabitLog, error) {
	h, err := repo.GetHabit(ctx, userID, habitID)
	if err != nil {
		return models.Habit{}, models.HabitLog{}, err
	}
	if in.Date == "" {
		in.Date = utils.FormatDate(today)
	}
	entry, err := h.Log(in, now)
	if err != nil {
		return models.Habit{}, models.HabitLog{}, err
	}
	if err := repo.AddHabitLog(ctx, entry); err != nil {
		return models.Habit{}, models.HabitLog{}, err
	}
	if err := repo.UpdateHabit(ctx, h); err != nil {
		return models.Habit{}, models.HabitLog{}, err
	}
	return h, entry, nil
}

// AssignTags attaches the tags named by refs (ids or names, any case) to the
// habit. References that match none of the user's tags are skipped; only a
// missing habit is an error. It returns the ids that were attached.
func AssignTags(ctx context.Context, repo storage.Repository, userID, habitID string, refs []string) ([]string, error) {
	if _, err := repo.GetHabit(ctx, userID, habitID); err != nil {
		return nil, err
	}
	tags, err := repo.ListTags(ctx, userID)
	if err != nil {
		return nil, err
	}

	var attached []string
	seen := make(map[string]bool)
	for _, ref := range refs {
		tag, ok := matchTag(tags, ref)
		if !ok || seen[tag.ID] {
			continue
		}
		if err := repo.AttachTag(ctx, habitID, tag.ID); err != nil {
			return nil, err
		}
		seen[tag.ID] = true
		attached = append(attached, tag.ID)
	}
	return attached, nil
}

func matchTag(tags []models.Tag, ref string) (models.Tag, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return models.Tag{}, false
	}
	for _, t := range tags {
		if t.ID == ref {
			return t, true
		}
	}
	for _, t := range tags {
		if strings.EqualFold(t.Name, ref) {
			return t, true
		}
	}
	return models.Tag{}, false
}

// DeactivateTree soft-removes a habit and all of its descendants.
func DeactivateTree(ctx context.Context, repo storage.Repository, userID, habitID string, now time.Time) error {
	if _, err := repo.GetHabit(ctx, userID, habitID); err != nil {
		return err
	}
	all, err := repo.ListHabits(ctx, userID, false)
	if err != nil {
		return err
	}
	byID := make(map[string]models.Habit, len(all))
	children := make(map[string][]string)
	for _, h := range all {
		byID[h.ID] = h
		if h.ParentHabitID != nil {
			children[*h.ParentHabitID] = append(children[*h.ParentHabitID], h.ID)
		}
	}

	queue := []string{habitID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		h, ok := byID[id]
		if !ok {
			continue
		}
		h.IsActive = false
		h.UpdatedAt = now.UTC()
		if err := repo.UpdateHabit(ctx, h); err != nil {
			return err
		}
		queue = append(queue, children[id]...)
	}
	return nil
}

// checkParent verifies that making parentID the parent of habitID keeps the
// graph acyclic, by walking up from the new parent.
func checkParent(ctx context.Context, repo storage.Repository, userID, habitID, parentID string) error {
	current := &parentID
	for depth := 0; current != nil; depth++ {
		if *current == habitID {
			return apperrors.Invalid("parentHabitId", "a habit cannot be nested under itself or its descendants")
		}
		if depth >= maxDepth {
			return apperrors.Invalid("parentHabitId", "habits can be nested at most %d levels deep", maxDepth)
		}
		h, err := repo.GetHabit(ctx, userID, *current)
		if err != nil {
			return err
		}
		current = h.ParentHabitID
	}
	return nil
}
