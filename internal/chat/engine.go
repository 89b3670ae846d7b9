// Package chat runs one assistant turn: it asks the interpreter for a plan,
// executes every action of the plan in isolation and reports what happened.
package chat

import (
	"context"
	"fmt"
	"time"

	charmlog "github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/thomasluizon/orbit-api-sub001/internal/errors"
	"github.com/thomasluizon/orbit-api-sub001/internal/habits"
	"github.com/thomasluizon/orbit-api-sub001/internal/interpreter"
	"github.com/thomasluizon/orbit-api-sub001/internal/logger"
	"github.com/thomasluizon/orbit-api-sub001/internal/models"
	"github.com/thomasluizon/orbit-api-sub001/internal/scheduler"
	"github.com/thomasluizon/orbit-api-sub001/internal/storage"
	"github.com/thomasluizon/orbit-api-sub001/internal/utils"
)

// Status is the outcome of one action.
type Status string

const (
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
	StatusSuggestion Status = "suggestion"
)

// ActionResult reports one executed action. Results are never stored.
type ActionResult struct {
	Type               interpreter.ActionType `json:"type"`
	Status             Status                 `json:"status"`
	EntityID           string                 `json:"entityId,omitempty"`
	EntityName         string                 `json:"entityName,omitempty"`
	Error              string                 `json:"error,omitempty"`
	Field              string                 `json:"field,omitempty"`
	SuggestedSubHabits []string               `json:"suggestedSubHabits,omitempty"`
}

// Response is the outcome of a turn: the assistant's reply and one result per
// action, in plan order.
type Response struct {
	Reply   string         `json:"aiMessage"`
	Actions []ActionResult `json:"actions"`
}

// FactRecorder receives every successful turn for fact extraction.
type FactRecorder interface {
	Record(ctx context.Context, userID, message, reply string)
}

// Engine executes chat turns against one store.
type Engine struct {
	store       storage.Provider
	interpreter interpreter.Interpreter
	facts       FactRecorder
	now         func() time.Time
}

// NewEngine creates an engine. facts may be nil to skip extraction.
func NewEngine(store storage.Provider, interp interpreter.Interpreter, facts FactRecorder) *Engine {
	return &Engine{
		store:       store,
		interpreter: interp,
		facts:       facts,
		now:         time.Now,
	}
}

// Turn handles one chat message. It fails as a whole only when the context
// cannot be loaded, the interpreter fails, or the final commit fails; a
// failing action is reported in its ActionResult and never undoes the others.
func (e *Engine) Turn(ctx context.Context, userID, message string, image *interpreter.Image) (Response, error) {
	now := e.now()
	log := logger.With("user", userID)
	snap, sched, err := e.loadSnapshot(ctx, userID, now)
	if err != nil {
		return Response{}, fmt.Errorf("failed to load chat context: %w", err)
	}

	plan, err := e.interpreter.Interpret(ctx, interpreter.Request{
		Message: message,
		Image:   image,
		Context: snap,
	})
	if err != nil {
		log.Error("Interpreter failed", "error", err)
		return Response{}, err
	}

	results, err := e.execute(ctx, log, userID, plan.Actions, snap.Habits, sched.Today(), now)
	if err != nil {
		return Response{}, err
	}

	if e.facts != nil {
		e.facts.Record(ctx, userID, message, plan.Reply)
	}
	return Response{Reply: plan.Reply, Actions: results}, nil
}

// loadSnapshot reads the user, active habits, tags and facts concurrently.
func (e *Engine) loadSnapshot(ctx context.Context, userID string, now time.Time) (interpreter.Snapshot, *scheduler.Scheduler, error) {
	var (
		user   models.User
		active []models.Habit
		tags   []models.Tag
		facts  []models.UserFact
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		user, err = e.store.GetUser(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		active, err = e.store.ListHabits(gctx, userID, false)
		return err
	})
	g.Go(func() (err error) {
		tags, err = e.store.ListTags(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		facts, err = e.store.ListFacts(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return interpreter.Snapshot{}, nil, err
	}

	sched, err := scheduler.New(user.Timezone, now)
	if err != nil {
		return interpreter.Snapshot{}, nil, err
	}
	return interpreter.Snapshot{
		Today:    utils.FormatDate(sched.Today()),
		Timezone: user.Timezone,
		Habits:   active,
		Tags:     tags,
		Facts:    facts,
	}, sched, nil
}

// execute runs the actions in order inside one transaction. Each action gets
// its own savepoint, so a failure only undoes that action's statements, and
// the transaction is committed once at the end.
func (e *Engine) execute(ctx context.Context, log *charmlog.Logger, userID string, actions []interpreter.Action, known []models.Habit, today, now time.Time) ([]ActionResult, error) {
	results := make([]ActionResult, 0, len(actions))
	if len(actions) == 0 {
		return results, nil
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	x := &executor{tx: tx, log: log, userID: userID, known: known, today: today, now: now}
	for i, action := range actions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var res ActionResult
		err := storage.WithSavepoint(ctx, tx, fmt.Sprintf("action_%d", i), func() error {
			var err error
			res, err = x.dispatch(ctx, action)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("Action failed", "index", i, "action", action.Type, "error", err)
			res = failed(action.Type, err)
		}
		results = append(results, res)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit chat actions: %w", err)
	}
	committed = true
	return results, nil
}

func failed(t interpreter.ActionType, err error) ActionResult {
	return ActionResult{
		Type:   t,
		Status: StatusFailed,
		Error:  apperrors.Public(err),
		Field:  apperrors.FieldOf(err),
	}
}

// executor carries the per-turn state shared by the actions of one plan.
type executor struct {
	tx     storage.Tx
	log    *charmlog.Logger
	userID string
	// known holds the snapshot habits plus the ones created earlier in the
	// same plan, so later actions can refer to them.
	known []models.Habit
	today time.Time
	now   time.Time
}

func (x *executor) dispatch(ctx context.Context, a interpreter.Action) (ActionResult, error) {
	switch a.Type {
	case interpreter.ActionLogHabit:
		return x.logHabit(ctx, a)
	case interpreter.ActionCreateHabit:
		return x.createHabit(ctx, a)
	case interpreter.ActionAssignTag:
		return x.assignTag(ctx, a)
	case interpreter.ActionSuggestBreakdown:
		return ActionResult{
			Type:               a.Type,
			Status:             StatusSuggestion,
			EntityName:         a.Title,
			SuggestedSubHabits: a.SuggestedSubHabits,
		}, nil
	default:
		return ActionResult{}, fmt.Errorf("%w: %q", apperrors.ErrUnrecognizedAction, a.Type)
	}
}

func (x *executor) logHabit(ctx context.Context, a interpreter.Action) (ActionResult, error) {
	id, err := resolveHabit(x.known, a.HabitID, a.HabitTitle)
	if err != nil {
		return ActionResult{}, err
	}
	h, _, err := habits.LogHabit(ctx, x.tx, x.userID, id, models.LogInput{
		Date:  a.Date,
		Note:  a.Note,
		Value: a.Value,
	}, x.today, x.now)
	if err != nil {
		return ActionResult{}, err
	}
	return ActionResult{Type: a.Type, Status: StatusSuccess, EntityID: h.ID, EntityName: h.Title}, nil
}

// createHabit creates the habit and its inline sub-habits. Sub-habits share
// the parent's schedule. Either all of them are created or none.
func (x *executor) createHabit(ctx context.Context, a interpreter.Action) (ActionResult, error) {
	spec := habits.Spec{
		Title:             a.Title,
		Description:       a.Description,
		FrequencyUnit:     a.FrequencyUnit,
		FrequencyQuantity: a.FrequencyQuantity,
		Days:              a.Days,
		IsBadHabit:        a.IsBadHabit,
		DueDate:           a.DueDate,
	}
	for _, title := range a.SubHabits {
		spec.SubHabits = append(spec.SubHabits, habits.Spec{
			Title:             title,
			FrequencyUnit:     a.FrequencyUnit,
			FrequencyQuantity: a.FrequencyQuantity,
			Days:              a.Days,
			DueDate:           a.DueDate,
		})
	}

	h, err := habits.CreateTree(ctx, x.tx, x.userID, spec, nil, nil, x.today, x.now)
	if err != nil {
		return ActionResult{}, err
	}
	x.known = append(x.known, h)
	return ActionResult{Type: a.Type, Status: StatusSuccess, EntityID: h.ID, EntityName: h.Title}, nil
}

// assignTag succeeds when the habit exists, whether or not any tag
// reference matched.
func (x *executor) assignTag(ctx context.Context, a interpreter.Action) (ActionResult, error) {
	id, err := resolveHabit(x.known, a.HabitID, a.HabitTitle)
	if err != nil {
		return ActionResult{}, err
	}
	attached, err := habits.AssignTags(ctx, x.tx, x.userID, id, a.Tags)
	if err != nil {
		return ActionResult{}, err
	}
	if skipped := len(a.Tags) - len(attached); skipped > 0 {
		x.log.Debug("Skipped unknown tag references", "habit", id, "skipped", skipped)
	}
	return ActionResult{Type: a.Type, Status: StatusSuccess, EntityID: id, EntityName: titleOf(x.known, id)}, nil
}

func titleOf(known []models.Habit, id string) string {
	for _, h := range known {
		if h.ID == id {
			return h.Title
		}
	}
	return ""
}
