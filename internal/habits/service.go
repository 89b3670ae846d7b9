// Package habits is the direct (non-chat) path for managing habits and tags.
package habits

import (
	"context"
	"time"

	apperrors "github.com/thomasluizon/orbit-api-sub001/internal/errors"
	"github.com/thomasluizon/orbit-api-sub001/internal/models"
	"github.com/thomasluizon/orbit-api-sub001/internal/scheduler"
	"github.com/thomasluizon/orbit-api-sub001/internal/storage"
)

// Service implements habit and tag use cases for one store. Every method is
// scoped to userID; habits of other users are reported as not found.
type Service struct {
	store storage.Provider
	now   func() time.Time
}

func NewService(store storage.Provider) *Service {
	return &Service{store: store, now: time.Now}
}

func (s *Service) Create(ctx context.Context, userID string, spec Spec) (models.Habit, error) {
	var created models.Habit
	err := storage.InTx(ctx, s.store, func(tx storage.Tx) error {
		now := s.now()
		sched, err := SchedulerFor(ctx, tx, userID, now)
		if err != nil {
			return err
		}
		created, err = CreateTree(ctx, tx, userID, spec, nil, nil, sched.Today(), now)
		return err
	})
	if err != nil {
		return models.Habit{}, err
	}
	return s.store.GetHabit(ctx, userID, created.ID)
}

func (s *Service) Get(ctx context.Context, userID, id string) (models.Habit, error) {
	return s.store.GetHabit(ctx, userID, id)
}

func (s *Service) List(ctx context.Context, userID string, includeInactive bool) ([]models.Habit, error) {
	return s.store.ListHabits(ctx, userID, includeInactive)
}

// Update replaces the editable attributes. Sub-habits in spec are ignored.
func (s *Service) Update(ctx context.Context, userID, id string, spec Spec) (models.Habit, error) {
	h, err := s.store.GetHabit(ctx, userID, id)
	if err != nil {
		return models.Habit{}, err
	}
	p, err := spec.Params()
	if err != nil {
		return models.Habit{}, err
	}
	if err := h.Update(p, s.now()); err != nil {
		return models.Habit{}, err
	}
	if err := s.store.UpdateHabit(ctx, h); err != nil {
		return models.Habit{}, err
	}
	return h, nil
}

func (s *Service) Log(ctx context.Context, userID, id string, in models.LogInput) (models.HabitLog, error) {
	var entry models.HabitLog
	err := storage.InTx(ctx, s.store, func(tx storage.Tx) error {
		now := s.now()
		sched, err := SchedulerFor(ctx, tx, userID, now)
		if err != nil {
			return err
		}
		_, entry, err = LogHabit(ctx, tx, userID, id, in, sched.Today(), now)
		return err
	})
	return entry, err
}

// Unlog removes a log. Removing the last log of a one-time habit reopens it.
func (s *Service) Unlog(ctx context.Context, userID, id, logID string) error {
	return storage.InTx(ctx, s.store, func(tx storage.Tx) error {
		h, err := tx.GetHabit(ctx, userID, id)
		if err != nil {
			return err
		}
		if _, err := h.RemoveLog(logID, s.now()); err != nil {
			return err
		}
		if err := tx.DeleteHabitLog(ctx, id, logID); err != nil {
			return err
		}
		return tx.UpdateHabit(ctx, h)
	})
}

// Deactivate soft-removes the habit and its descendants.
func (s *Service) Deactivate(ctx context.Context, userID, id string) error {
	return storage.InTx(ctx, s.store, func(tx storage.Tx) error {
		return DeactivateTree(ctx, tx, userID, id, s.now())
	})
}

// SetParent moves a habit under parentID, or to the top level when parentID
// is nil. Moves that would create a cycle are rejected.
func (s *Service) SetParent(ctx context.Context, userID, id string, parentID *string) (models.Habit, error) {
	var h models.Habit
	err := storage.InTx(ctx, s.store, func(tx storage.Tx) error {
		var err error
		if h, err = tx.GetHabit(ctx, userID, id); err != nil {
			return err
		}
		if parentID != nil {
			if err := checkParent(ctx, tx, userID, id, *parentID); err != nil {
				return err
			}
			p := *parentID
			parentID = &p
		}
		h.ParentHabitID = parentID
		h.UpdatedAt = s.now().UTC()
		return tx.UpdateHabit(ctx, h)
	})
	if err != nil {
		return models.Habit{}, err
	}
	return h, nil
}

// Reorder sets the position of a habit among its siblings.
func (s *Service) Reorder(ctx context.Context, userID, id string, position int) (models.Habit, error) {
	if position < 0 {
		return models.Habit{}, apperrors.Invalid("position", "position must not be negative")
	}
	h, err := s.store.GetHabit(ctx, userID, id)
	if err != nil {
		return models.Habit{}, err
	}
	h.Position = &position
	h.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateHabit(ctx, h); err != nil {
		return models.Habit{}, err
	}
	return h, nil
}

func (s *Service) Metrics(ctx context.Context, userID, id string) (scheduler.Metrics, error) {
	h, sched, err := s.habitWithScheduler(ctx, userID, id)
	if err != nil {
		return scheduler.Metrics{}, err
	}
	return sched.Metrics(h), nil
}

func (s *Service) Trends(ctx context.Context, userID, id string) (scheduler.Trends, error) {
	h, sched, err := s.habitWithScheduler(ctx, userID, id)
	if err != nil {
		return scheduler.Trends{}, err
	}
	return sched.Trends(h)
}

func (s *Service) habitWithScheduler(ctx context.Context, userID, id string) (models.Habit, *scheduler.Scheduler, error) {
	h, err := s.store.GetHabit(ctx, userID, id)
	if err != nil {
		return models.Habit{}, nil, err
	}
	sched, err := SchedulerFor(ctx, s.store, userID, s.now())
	if err != nil {
		return models.Habit{}, nil, err
	}
	return h, sched, nil
}

// SetTags replaces the tags of a habit. Unknown references are skipped the
// same way the assistant's tag assignments are.
func (s *Service) SetTags(ctx context.Context, userID, id string, refs []string) (models.Habit, error) {
	err := storage.InTx(ctx, s.store, func(tx storage.Tx) error {
		if _, err := tx.GetHabit(ctx, userID, id); err != nil {
			return err
		}
		if err := tx.DetachTags(ctx, id); err != nil {
			return err
		}
		_, err := AssignTags(ctx, tx, userID, id, refs)
		return err
	})
	if err != nil {
		return models.Habit{}, err
	}
	return s.store.GetHabit(ctx, userID, id)
}

func (s *Service) CreateTag(ctx context.Context, userID, name, color string) (models.Tag, error) {
	tag, err := models.NewTag(userID, name, color, s.now())
	if err != nil {
		return models.Tag{}, err
	}
	if err := s.store.AddTag(ctx, tag); err != nil {
		return models.Tag{}, err
	}
	return tag, nil
}

func (s *Service) ListTags(ctx context.Context, userID string) ([]models.Tag, error) {
	return s.store.ListTags(ctx, userID)
}

// DeleteTag removes the tag and its associations. Habits are kept.
func (s *Service) DeleteTag(ctx context.Context, userID, id string) error {
	return storage.InTx(ctx, s.store, func(tx storage.Tx) error {
		return tx.DeleteTag(ctx, userID, id)
	})
}
