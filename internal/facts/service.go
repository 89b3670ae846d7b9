package facts

import (
	"context"
	"time"

	"github.com/thomasluizon/orbit-api-sub001/internal/models"
	"github.com/thomasluizon/orbit-api-sub001/internal/storage"
)

// Service manages stored facts on behalf of their owner.
type Service struct {
	store storage.Provider
	now   func() time.Time
}

func NewService(store storage.Provider) *Service {
	return &Service{store: store, now: time.Now}
}

func (s *Service) List(ctx context.Context, userID string) ([]models.UserFact, error) {
	return s.store.ListFacts(ctx, userID)
}

// Update replaces the text and category, re-running the factory checks.
func (s *Service) Update(ctx context.Context, userID, id, text, category string) (models.UserFact, error) {
	f, err := s.store.GetFact(ctx, userID, id)
	if err != nil {
		return models.UserFact{}, err
	}
	if err := f.UpdateText(text, category, s.now()); err != nil {
		return models.UserFact{}, err
	}
	if err := s.store.UpdateFact(ctx, f); err != nil {
		return models.UserFact{}, err
	}
	return f, nil
}

// Delete soft-deletes a fact. It disappears from every later read.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	f, err := s.store.GetFact(ctx, userID, id)
	if err != nil {
		return err
	}
	f.SoftDelete(s.now())
	return s.store.UpdateFact(ctx, f)
}
