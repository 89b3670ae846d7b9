// Package bulk applies batches of habit creates and deletes with per-item
// partial success: a failing item is reported and skipped, the rest commit.
package bulk

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/thomasluizon/orbit-api-sub001/internal/constants"
	apperrors "github.com/thomasluizon/orbit-api-sub001/internal/errors"
	"github.com/thomasluizon/orbit-api-sub001/internal/habits"
	"github.com/thomasluizon/orbit-api-sub001/internal/logger"
	"github.com/thomasluizon/orbit-api-sub001/internal/storage"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// ItemResult reports one item of a batch.
type ItemResult struct {
	Index   int    `json:"index"`
	Status  Status `json:"status"`
	HabitID string `json:"habitId,omitempty"`
	Error   string `json:"error,omitempty"`
	Field   string `json:"field,omitempty"`
}

// Gateway runs bulk operations against one store.
type Gateway struct {
	store storage.Provider
	now   func() time.Time
}

func NewGateway(store storage.Provider) *Gateway {
	return &Gateway{store: store, now: time.Now}
}

// checkBatch rejects a request only for its shape, never for item contents.
func checkBatch(n int) error {
	if n == 0 {
		return apperrors.Invalid("items", "at least one item is required")
	}
	if n > constants.MaxBulkItems {
		return apperrors.Invalid("items", "at most %d items are allowed per request", constants.MaxBulkItems)
	}
	return nil
}

// Create creates every item with its sub-habits. An item whose sub-habit
// fails is rolled back entirely and reported as failed; other items are
// unaffected. Everything that succeeded is committed once.
func (g *Gateway) Create(ctx context.Context, userID string, items []habits.Spec) ([]ItemResult, error) {
	if err := checkBatch(len(items)); err != nil {
		return nil, err
	}

	results := make([]ItemResult, len(items))
	err := storage.InTx(ctx, g.store, func(tx storage.Tx) error {
		now := g.now()
		sched, err := habits.SchedulerFor(ctx, tx, userID, now)
		if err != nil {
			return err
		}
		for i, item := range items {
			if err := ctx.Err(); err != nil {
				return err
			}
			var habitID string
			err := storage.WithSavepoint(ctx, tx, fmt.Sprintf("item_%d", i), func() error {
				h, err := habits.CreateTree(ctx, tx, userID, item, nil, nil, sched.Today(), now)
				habitID = h.ID
				return err
			})
			results[i] = itemResult(userID, "create", i, habitID, err)
		}
		return ctx.Err()
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Delete soft-removes each habit (and its descendants) that exists and is
// owned by the user. Missing and foreign ids are reported per item.
func (g *Gateway) Delete(ctx context.Context, userID string, ids []string) ([]ItemResult, error) {
	if err := checkBatch(len(ids)); err != nil {
		return nil, err
	}

	results := make([]ItemResult, len(ids))
	err := storage.InTx(ctx, g.store, func(tx storage.Tx) error {
		now := g.now()
		for i, id := range ids {
			if err := ctx.Err(); err != nil {
				return err
			}
			id = strings.TrimSpace(id)
			err := storage.WithSavepoint(ctx, tx, fmt.Sprintf("item_%d", i), func() error {
				return habits.DeactivateTree(ctx, tx, userID, id, now)
			})
			results[i] = itemResult(userID, "delete", i, id, err)
		}
		return ctx.Err()
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func itemResult(userID, op string, index int, habitID string, err error) ItemResult {
	if err == nil {
		return ItemResult{Index: index, Status: StatusSuccess, HabitID: habitID}
	}
	logger.Debug("Bulk item failed", "user", userID, "op", op, "index", index, "error", err)
	res := ItemResult{
		Index:  index,
		Status: StatusFailed,
		Error:  apperrors.Public(err),
		Field:  apperrors.FieldOf(err),
	}
	if op == "delete" {
		res.HabitID = habitID
	}
	return res
}
