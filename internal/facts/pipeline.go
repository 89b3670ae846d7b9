// Package facts derives durable facts about a user from chat turns and
// manages the stored facts.
package facts

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/thomasluizon/orbit-api-sub001/internal/constants"
	apperrors "github.com/thomasluizon/orbit-api-sub001/internal/errors"
	"github.com/thomasluizon/orbit-api-sub001/internal/interpreter"
	"github.com/thomasluizon/orbit-api-sub001/internal/logger"
	"github.com/thomasluizon/orbit-api-sub001/internal/models"
	"github.com/thomasluizon/orbit-api-sub001/internal/storage"
)

// Pipeline runs fact extraction after a chat turn. Nothing it does can fail
// the turn: every error ends as a warning in the log.
type Pipeline struct {
	store     storage.Provider
	extractor interpreter.FactExtractor
	async     bool
	timeout   time.Duration
	now       func() time.Time

	wg sync.WaitGroup
}

// NewPipeline creates a pipeline. With async set, Record returns at once and
// extraction runs in the background until Wait.
func NewPipeline(store storage.Provider, extractor interpreter.FactExtractor, async bool, timeout time.Duration) *Pipeline {
	if timeout <= 0 {
		timeout = constants.DefaultFactsWait
	}
	return &Pipeline{
		store:     store,
		extractor: extractor,
		async:     async,
		timeout:   timeout,
		now:       time.Now,
	}
}

// Record extracts and stores facts for one finished turn. The request context
// only contributes values; its cancellation does not stop a background run.
func (p *Pipeline) Record(ctx context.Context, userID, message, reply string) {
	ctx = context.WithoutCancel(ctx)
	if !p.async {
		p.run(ctx, userID, message, reply)
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(ctx, userID, message, reply)
	}()
}

// Wait blocks until every background extraction has finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

func (p *Pipeline) run(ctx context.Context, userID, message, reply string) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	saved, err := p.Extract(ctx, userID, message, reply)
	if err != nil {
		logger.Warn("Fact extraction failed", "user", userID, "error", err)
		return
	}
	if len(saved) > 0 {
		logger.Debug("Facts saved", "user", userID, "count", len(saved))
	}
}

// Extract asks the extractor for candidates, screens and deduplicates them
// and stores the survivors in one commit.
func (p *Pipeline) Extract(ctx context.Context, userID, message, reply string) ([]models.UserFact, error) {
	candidates, err := p.extractor.ExtractFacts(ctx, message, reply)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	var saved []models.UserFact
	err = storage.InTx(ctx, p.store, func(tx storage.Tx) error {
		saved = nil
		existing, err := tx.ListFacts(ctx, userID)
		if err != nil {
			return err
		}
		now := p.now()
		for _, c := range candidates {
			fact, err := models.NewUserFact(userID, c.Text, c.Category, now)
			if err != nil {
				logger.Warn("Dropped candidate fact", "user", userID, "reason", err)
				continue
			}
			if containsText(existing, fact.Text) {
				continue
			}
			if len(existing) >= constants.MaxFactsPerUser {
				logger.Warn("Fact limit reached", "user", userID, "limit", constants.MaxFactsPerUser)
				break
			}
			if err := tx.AddFact(ctx, fact); err != nil {
				// A concurrent extraction stored the same text first.
				if errors.Is(err, apperrors.ErrConflict) {
					continue
				}
				return err
			}
			existing = append(existing, fact)
			saved = append(saved, fact)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func containsText(facts []models.UserFact, text string) bool {
	for _, f := range facts {
		if models.SameText(f.Text, text) {
			return true
		}
	}
	return false
}
