// Package interpreter turns a chat message into a structured action plan and
// extracts durable facts from a finished conversation turn. The model
// providers behind both are pluggable Completers.
package interpreter

import (
	"context"

	"github.com/thomasluizon/orbit-api-sub001/internal/models"
)

// ActionType is the discriminator of an Action.
type ActionType string

const (
	ActionLogHabit         ActionType = "log_habit"
	ActionCreateHabit      ActionType = "create_habit"
	ActionAssignTag        ActionType = "assign_tag"
	ActionSuggestBreakdown ActionType = "suggest_breakdown"
)

// Action is one step of a plan. Only the fields of its Type are meaningful;
// anything else is ignored by the engine.
type Action struct {
	Type ActionType `json:"type"`

	// Target habit, by id or by title. Used by log_habit and assign_tag.
	HabitID    string `json:"habitId,omitempty"`
	HabitTitle string `json:"habitTitle,omitempty"`

	// create_habit and suggest_breakdown
	Title             string   `json:"title,omitempty"`
	Description       string   `json:"description,omitempty"`
	FrequencyUnit     string   `json:"frequencyUnit,omitempty"`
	FrequencyQuantity *int     `json:"frequencyQuantity,omitempty"`
	Days              []string `json:"days,omitempty"`
	IsBadHabit        bool     `json:"isBadHabit,omitempty"`
	DueDate           string   `json:"dueDate,omitempty"`
	SubHabits         []string `json:"subHabits,omitempty"`

	// log_habit
	Date  string   `json:"date,omitempty"`
	Note  string   `json:"note,omitempty"`
	Value *float64 `json:"value,omitempty"`

	// assign_tag: tag ids or names
	Tags []string `json:"tags,omitempty"`

	// suggest_breakdown
	SuggestedSubHabits []string `json:"suggestedSubHabits,omitempty"`
}

// ActionPlan is the interpreter output for one chat turn.
type ActionPlan struct {
	Reply   string   `json:"aiMessage"`
	Actions []Action `json:"actions"`
}

// Image is an optional attachment of a chat message.
type Image struct {
	Data     []byte
	MIMEType string
}

// Snapshot is the read-only context of one request. It is built fresh for
// every turn and never shared.
type Snapshot struct {
	Today    string // YYYY-MM-DD in the user's timezone
	Timezone string
	Habits   []models.Habit
	Tags     []models.Tag
	Facts    []models.UserFact
}

// Request is everything the interpreter sees for one turn.
type Request struct {
	Message string
	Image   *Image
	Context Snapshot
}

// Interpreter produces an action plan for a chat message.
type Interpreter interface {
	Interpret(ctx context.Context, req Request) (ActionPlan, error)
}

// CandidateFact is an unscreened fact proposed by the extractor.
type CandidateFact struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

// FactExtractor proposes durable facts from a message and the reply to it.
type FactExtractor interface {
	ExtractFacts(ctx context.Context, message, reply string) ([]CandidateFact, error)
}
