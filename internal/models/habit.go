package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/thomasluizon/orbit-api-sub001/internal/constants"
	apperrors "github.com/thomasluizon/orbit-api-sub001/internal/errors"
	"github.com/thomasluizon/orbit-api-sub001/internal/utils"
	"github.com/thomasluizon/orbit-api-sub001/internal/validation"
)

// Habit is a user-owned schedulable item. A habit without a frequency unit is
// a one-time item.
type Habit struct {
	ID                string                  `json:"id"`
	UserID            string                  `json:"user_id"`
	Title             string                  `json:"title"`
	Description       string                  `json:"description,omitempty"`
	FrequencyUnit     constants.FrequencyUnit `json:"frequency_unit,omitempty"`
	FrequencyQuantity int                     `json:"frequency_quantity,omitempty"`
	Days              []time.Weekday          `json:"days,omitempty"`
	IsBadHabit        bool                    `json:"is_bad_habit"`
	IsQuantifiable    bool                    `json:"is_quantifiable"`
	Unit              string                  `json:"unit,omitempty"`
	IsCompleted       bool                    `json:"is_completed"`
	IsActive          bool                    `json:"is_active"`
	DueDate           string                  `json:"due_date"` // YYYY-MM-DD format
	Position          *int                    `json:"position,omitempty"`
	ParentHabitID     *string                 `json:"parent_habit_id,omitempty"`
	CreatedAt         time.Time               `json:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at"`

	Logs     []HabitLog `json:"logs,omitempty"`
	TagIDs   []string   `json:"tag_ids,omitempty"`
	ChildIDs []string   `json:"child_ids,omitempty"`
}

// HabitLog is an immutable completion record. For bad habits it records a lapse.
type HabitLog struct {
	ID        string    `json:"id"`
	HabitID   string    `json:"habit_id"`
	Date      string    `json:"date"` // YYYY-MM-DD format
	Note      string    `json:"note,omitempty"`
	Value     *float64  `json:"value,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// HabitParams carries everything the factory and Update accept.
type HabitParams struct {
	Title             string
	Description       string
	FrequencyUnit     constants.FrequencyUnit
	FrequencyQuantity int
	Days              []time.Weekday
	IsBadHabit        bool
	IsQuantifiable    bool
	Unit              string
	DueDate           string // YYYY-MM-DD, defaults to today
	ParentHabitID     *string
	Position          *int
}

func (p HabitParams) validate() error {
	if err := validation.ValidateTitle("title", p.Title, constants.MaxHabitTitleLen); err != nil {
		return err
	}
	if err := validation.ValidateMaxLen("description", p.Description, constants.MaxHabitDescriptionLen); err != nil {
		return err
	}
	if err := validation.ValidateFrequency(p.FrequencyUnit, p.FrequencyQuantity, p.Days); err != nil {
		return err
	}
	if err := validation.ValidateDate("dueDate", p.DueDate); err != nil {
		return err
	}
	if p.Unit != "" && !p.IsQuantifiable {
		return apperrors.Invalid("unit", "unit can only be set on quantifiable habits")
	}
	return nil
}

// NewHabit is the validating factory. today is the owner's current date and
// becomes the due date when none is given.
func NewHabit(userID string, p HabitParams, today time.Time, now time.Time) (Habit, error) {
	if err := p.validate(); err != nil {
		return Habit{}, err
	}
	dueDate := p.DueDate
	if dueDate == "" {
		dueDate = utils.FormatDate(today)
	}
	return Habit{
		ID:                uuid.New().String(),
		UserID:            userID,
		Title:             strings.TrimSpace(p.Title),
		Description:       strings.TrimSpace(p.Description),
		FrequencyUnit:     p.FrequencyUnit,
		FrequencyQuantity: p.FrequencyQuantity,
		Days:              append([]time.Weekday(nil), p.Days...),
		IsBadHabit:        p.IsBadHabit,
		IsQuantifiable:    p.IsQuantifiable,
		Unit:              strings.TrimSpace(p.Unit),
		IsActive:          true,
		DueDate:           dueDate,
		Position:          p.Position,
		ParentHabitID:     p.ParentHabitID,
		CreatedAt:         now.UTC(),
		UpdatedAt:         now.UTC(),
	}, nil
}

// Update replaces the editable attributes after validating them. Parent and
// position are managed separately.
func (h *Habit) Update(p HabitParams, now time.Time) error {
	if err := p.validate(); err != nil {
		return err
	}
	h.Title = strings.TrimSpace(p.Title)
	h.Description = strings.TrimSpace(p.Description)
	h.FrequencyUnit = p.FrequencyUnit
	h.FrequencyQuantity = p.FrequencyQuantity
	h.Days = append([]time.Weekday(nil), p.Days...)
	h.IsBadHabit = p.IsBadHabit
	h.IsQuantifiable = p.IsQuantifiable
	h.Unit = strings.TrimSpace(p.Unit)
	if p.DueDate != "" {
		h.DueDate = p.DueDate
	}
	h.UpdatedAt = now.UTC()
	return nil
}

// IsRecurring reports whether the habit has a frequency rule.
func (h Habit) IsRecurring() bool {
	return h.FrequencyUnit != "" && h.FrequencyQuantity > 0
}

// UsesWeekdays reports whether expected dates come from the explicit weekday set.
func (h Habit) UsesWeekdays() bool {
	return len(h.Days) > 0 && h.FrequencyQuantity == 1
}

// HasLogOn reports whether any log exists for date (YYYY-MM-DD).
func (h Habit) HasLogOn(date string) bool {
	for _, l := range h.Logs {
		if l.Date == date {
			return true
		}
	}
	return false
}

// LogInput describes one completion (or lapse) to record.
type LogInput struct {
	Date  string // YYYY-MM-DD
	Note  string
	Value *float64
}

// Log appends a HabitLog. One-time habits become completed; recurring normal
// habits advance their due date to the next expected occurrence after the
// logged date. Bad habits may be logged several times on the same day, each
// log being a separate lapse.
func (h *Habit) Log(in LogInput, now time.Time) (HabitLog, error) {
	date, err := utils.ParseDate(in.Date)
	if err != nil {
		return HabitLog{}, apperrors.Invalid("date", "%s", err.Error())
	}
	if err := validation.ValidateMaxLen("note", in.Note, constants.MaxLogNoteLen); err != nil {
		return HabitLog{}, err
	}
	if in.Value != nil && !h.IsQuantifiable {
		return HabitLog{}, apperrors.Invalid("value", "habit %q does not track values", h.Title)
	}
	if !h.IsRecurring() && h.IsCompleted {
		return HabitLog{}, apperrors.Invalid("habitId", "habit %q is already completed", h.Title)
	}
	if !h.IsBadHabit && h.HasLogOn(in.Date) {
		return HabitLog{}, apperrors.Invalid("date", "habit %q is already logged for %s", h.Title, in.Date)
	}

	entry := HabitLog{
		ID:        uuid.New().String(),
		HabitID:   h.ID,
		Date:      utils.FormatDate(date),
		Note:      strings.TrimSpace(in.Note),
		Value:     in.Value,
		CreatedAt: now.UTC(),
	}
	h.Logs = append(h.Logs, entry)

	switch {
	case !h.IsRecurring():
		h.IsCompleted = true
	case !h.IsBadHabit:
		h.DueDate = utils.FormatDate(h.nextOccurrenceAfter(date))
	}
	h.UpdatedAt = now.UTC()
	return entry, nil
}

// RemoveLog drops a log. Undoing the only log of a one-time habit reopens it.
func (h *Habit) RemoveLog(logID string, now time.Time) (HabitLog, error) {
	for i, l := range h.Logs {
		if l.ID != logID {
			continue
		}
		h.Logs = append(h.Logs[:i], h.Logs[i+1:]...)
		if !h.IsRecurring() && len(h.Logs) == 0 {
			h.IsCompleted = false
		}
		h.UpdatedAt = now.UTC()
		return l, nil
	}
	return HabitLog{}, apperrors.NotFound("log")
}

// nextOccurrenceAfter walks the frequency rule forward from the current due
// date until it passes date.
func (h Habit) nextOccurrenceAfter(date time.Time) time.Time {
	next, err := utils.ParseDate(h.DueDate)
	if err != nil {
		next = date
	}
	if next.After(date) {
		return next
	}
	if h.UsesWeekdays() {
		return utils.NextWeekday(date, h.Days)
	}
	// Stepping from the due date keeps the habit on its own cadence; the
	// bound only matters for absurd gaps between due date and log date.
	for i := 0; !next.After(date) && i < 10000; i++ {
		next = utils.AddFrequency(next, h.FrequencyUnit, h.FrequencyQuantity)
	}
	return next
}
