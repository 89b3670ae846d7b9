package habits

import (
	"github.com/thomasluizon/orbit-api-sub001/internal/models"
	"github.com/thomasluizon/orbit-api-sub001/internal/validation"
)

// Spec is the loosely typed description of a habit accepted from the API,
// bulk requests and interpreter actions. Frequency units and weekdays are
// names; Params turns them into checked values.
type Spec struct {
	Title             string   `json:"title"`
	Description       string   `json:"description,omitempty"`
	FrequencyUnit     string   `json:"frequencyUnit,omitempty"`
	FrequencyQuantity *int     `json:"frequencyQuantity,omitempty"`
	Days              []string `json:"days,omitempty"`
	IsBadHabit        bool     `json:"isBadHabit,omitempty"`
	IsQuantifiable    bool     `json:"isQuantifiable,omitempty"`
	Unit              string   `json:"unit,omitempty"`
	DueDate           string   `json:"dueDate,omitempty"`
	SubHabits         []Spec   `json:"subHabits,omitempty"`
}

// Params parses the spec. A unit without a quantity means every 1 unit.
func (s Spec) Params() (models.HabitParams, error) {
	unit, err := validation.ParseFrequencyUnit(s.FrequencyUnit)
	if err != nil {
		return models.HabitParams{}, err
	}
	days, err := validation.ParseWeekdays(s.Days)
	if err != nil {
		return models.HabitParams{}, err
	}
	qty := 0
	switch {
	case s.FrequencyQuantity != nil:
		qty = *s.FrequencyQuantity
	case unit != "":
		qty = 1
	}
	return models.HabitParams{
		Title:             s.Title,
		Description:       s.Description,
		FrequencyUnit:     unit,
		FrequencyQuantity: qty,
		Days:              days,
		IsBadHabit:        s.IsBadHabit,
		IsQuantifiable:    s.IsQuantifiable,
		Unit:              s.Unit,
		DueDate:           s.DueDate,
	}, nil
}
