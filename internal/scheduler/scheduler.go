package scheduler

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/thomasluizon/orbit-api-sub001/internal/constants"
	apperrors "github.com/thomasluizon/orbit-api-sub001/internal/errors"
	"github.com/thomasluizon/orbit-api-sub001/internal/models"
	"github.com/thomasluizon/orbit-api-sub001/internal/utils"
)

// Scheduler derives expected dates and metrics for one user's habits. All
// dates are calendar dates in the user's timezone.
type Scheduler struct {
	loc   *time.Location
	today time.Time
}

// New returns a Scheduler for a user in timezone at instant now.
func New(timezone string, now time.Time) (*Scheduler, error) {
	loc, err := utils.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return &Scheduler{loc: loc, today: utils.DateOf(now.In(loc))}, nil
}

// Today returns the user's current calendar date.
func (s *Scheduler) Today() time.Time {
	return s.today
}

// Metrics is the derived streak and completion summary of a habit.
type Metrics struct {
	CurrentStreak         int     `json:"current_streak"`
	LongestStreak         int     `json:"longest_streak"`
	WeeklyCompletionRate  float64 `json:"weekly_completion_rate"`
	MonthlyCompletionRate float64 `json:"monthly_completion_rate"`
	TotalCompletions      int     `json:"total_completions"`
	LastCompletedDate     *string `json:"last_completed_date,omitempty"`
}

// TrendPoint aggregates the logged values of one week or month.
type TrendPoint struct {
	Period  string  `json:"period"`
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Count   int     `json:"count"`
}

// Trends holds weekly (ISO week) and monthly aggregates, oldest first.
type Trends struct {
	Weekly  []TrendPoint `json:"weekly"`
	Monthly []TrendPoint `json:"monthly"`
}

// createdOn returns the calendar date the habit was created, in the user's zone.
func (s *Scheduler) createdOn(h models.Habit) time.Time {
	if h.CreatedAt.IsZero() {
		return s.today
	}
	return utils.DateOf(h.CreatedAt.In(s.loc))
}

// ExpectedDates lists the dates the habit should have occurred on, newest
// first, never earlier than its creation date and never more than a year of
// steps back.
func (s *Scheduler) ExpectedDates(h models.Habit) []time.Time {
	created := s.createdOn(h)

	// One-time habits are expected once, on the day they were created
	if !h.IsRecurring() {
		return []time.Time{created}
	}

	var dates []time.Time

	// Explicit weekdays: walk back day by day and keep matching weekdays
	if h.UsesWeekdays() {
		for i := 0; i < constants.ExpectedDatesLookback; i++ {
			d := s.today.AddDate(0, 0, -i)
			if d.Before(created) {
				break
			}
			if utils.ContainsWeekday(h.Days, d.Weekday()) {
				dates = append(dates, d)
			}
		}
		return dates
	}

	// Fixed interval: step back from today. Each step is computed from today
	// so month clamping never accumulates drift.
	for i := 0; i < constants.ExpectedDatesLookback; i++ {
		d := utils.AddFrequency(s.today, h.FrequencyUnit, -i*h.FrequencyQuantity)
		if d.Before(created) {
			break
		}
		dates = append(dates, d)
	}
	return dates
}

func loggedDates(h models.Habit) map[string]bool {
	logged := make(map[string]bool, len(h.Logs))
	for _, l := range h.Logs {
		logged[l.Date] = true
	}
	return logged
}

// succeeded applies the habit's success condition to one expected date.
// Bad habits succeed on the days they were not logged.
func succeeded(h models.Habit, logged map[string]bool, d time.Time) bool {
	return logged[utils.FormatDate(d)] != h.IsBadHabit
}

// CurrentStreak counts consecutive successful expected dates from the most
// recent one backwards. An unlogged today does not break a normal habit's
// streak, since the day is not over yet.
func (s *Scheduler) CurrentStreak(h models.Habit) int {
	logged := loggedDates(h)
	streak := 0
	for i, d := range s.ExpectedDates(h) {
		if succeeded(h, logged, d) {
			streak++
			continue
		}
		if !h.IsBadHabit && i == 0 && streak == 0 && d.Equal(s.today) {
			continue
		}
		break
	}
	return streak
}

// LongestStreak is the longest run of successful expected dates.
func (s *Scheduler) LongestStreak(h models.Habit) int {
	logged := loggedDates(h)
	longest, run := 0, 0
	for _, d := range s.ExpectedDates(h) {
		if !succeeded(h, logged, d) {
			run = 0
			continue
		}
		run++
		if run > longest {
			longest = run
		}
	}
	return longest
}

// CompletionRate is the percentage of expected dates in [today-window, today]
// that succeeded, rounded to two decimals. No expected dates means 0.
func (s *Scheduler) CompletionRate(h models.Habit, windowDays int) float64 {
	logged := loggedDates(h)
	from := s.today.AddDate(0, 0, -windowDays)

	total, ok := 0, 0
	for _, d := range s.ExpectedDates(h) {
		if d.Before(from) || d.After(s.today) {
			continue
		}
		total++
		if succeeded(h, logged, d) {
			ok++
		}
	}
	if total == 0 {
		return 0
	}
	return round2(float64(ok) / float64(total) * 100)
}

// Metrics bundles the streaks, the 7 and 30 day rates and log totals.
func (s *Scheduler) Metrics(h models.Habit) Metrics {
	m := Metrics{
		CurrentStreak:         s.CurrentStreak(h),
		LongestStreak:         s.LongestStreak(h),
		WeeklyCompletionRate:  s.CompletionRate(h, constants.WeeklyWindowDays),
		MonthlyCompletionRate: s.CompletionRate(h, constants.MonthlyWindowDays),
		TotalCompletions:      len(h.Logs),
	}
	for _, l := range h.Logs {
		if m.LastCompletedDate == nil || l.Date > *m.LastCompletedDate {
			date := l.Date
			m.LastCompletedDate = &date
		}
	}
	return m
}

// Trends groups the values logged in the last twelve months by ISO week and
// by calendar month. Only quantifiable habits carry values.
func (s *Scheduler) Trends(h models.Habit) (Trends, error) {
	if !h.IsQuantifiable {
		return Trends{}, fmt.Errorf("%w: habit %q does not track values", apperrors.ErrTypeMismatch, h.Title)
	}

	from := s.today.AddDate(0, -constants.TrendLookbackMonths, 0)
	weekly := make(map[string][]float64)
	monthly := make(map[string][]float64)

	for _, l := range h.Logs {
		if l.Value == nil {
			continue
		}
		d, err := utils.ParseDate(l.Date)
		if err != nil || d.Before(from) || d.After(s.today) {
			continue
		}
		weekKey := utils.ISOWeekKey(d)
		monthKey := d.Format(constants.MonthFormat)
		weekly[weekKey] = append(weekly[weekKey], *l.Value)
		monthly[monthKey] = append(monthly[monthKey], *l.Value)
	}

	return Trends{Weekly: aggregate(weekly), Monthly: aggregate(monthly)}, nil
}

// aggregate turns grouped values into points sorted by period. Week keys
// ("2026-W07") and month keys ("2026-02") both sort correctly as strings.
func aggregate(groups map[string][]float64) []TrendPoint {
	points := make([]TrendPoint, 0, len(groups))
	for period, values := range groups {
		p := TrendPoint{Period: period, Min: values[0], Max: values[0], Count: len(values)}
		sum := 0.0
		for _, v := range values {
			sum += v
			p.Min = math.Min(p.Min, v)
			p.Max = math.Max(p.Max, v)
		}
		p.Average = round2(sum / float64(len(values)))
		points = append(points, p)
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Period < points[j].Period
	})
	return points
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
