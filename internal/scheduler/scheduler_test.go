package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/thomasluizon/orbit-api-sub001/internal/constants"
	apperrors "github.com/thomasluizon/orbit-api-sub001/internal/errors"
	"github.com/thomasluizon/orbit-api-sub001/internal/models"
)

// at returns noon UTC on date, far from any day boundary.
func at(t *testing.T, date string) time.Time {
	t.Helper()
	d, err := time.Parse(constants.DateFormat, date)
	if err != nil {
		t.Fatalf("bad test date %q: %v", date, err)
	}
	return d.Add(12 * time.Hour)
}

func newScheduler(t *testing.T, today string) *Scheduler {
	t.Helper()
	s, err := New("UTC", at(t, today))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return s
}

func habit(t *testing.T, created string, unit constants.FrequencyUnit, qty int, days []time.Weekday, logs ...string) models.Habit {
	t.Helper()
	h := models.Habit{
		ID:                "h-1",
		Title:             "Habit",
		FrequencyUnit:     unit,
		FrequencyQuantity: qty,
		Days:              days,
		IsActive:          true,
		CreatedAt:         at(t, created),
	}
	for _, d := range logs {
		h.Logs = append(h.Logs, models.HabitLog{HabitID: h.ID, Date: d})
	}
	return h
}

func dateStrings(dates []time.Time) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format(constants.DateFormat)
	}
	return out
}

var monWedFri = []time.Weekday{time.Monday, time.Wednesday, time.Friday}

func TestNewUsesUserTimezone(t *testing.T) {
	// 02:00 UTC on the 13th is still the evening of the 12th in Sao Paulo
	s, err := New("America/Sao_Paulo", time.Date(2026, 3, 13, 2, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if got := s.Today().Format(constants.DateFormat); got != "2026-03-12" {
		t.Errorf("Today() = %s, want 2026-03-12", got)
	}

	if _, err := New("Nowhere/City", time.Now()); err == nil {
		t.Error("New() accepted an unknown timezone")
	}
}

func TestExpectedDates(t *testing.T) {
	tests := []struct {
		name  string
		today string
		h     models.Habit
		want  []string
	}{
		{
			name:  "one-time habit is expected on its creation date",
			today: "2026-03-12",
			h:     habit(t, "2026-03-01", "", 0, nil),
			want:  []string{"2026-03-01"},
		},
		{
			name:  "daily habit stops at creation",
			today: "2026-03-12",
			h:     habit(t, "2026-03-10", constants.FrequencyDay, 1, nil),
			want:  []string{"2026-03-12", "2026-03-11", "2026-03-10"},
		},
		{
			name:  "every two weeks",
			today: "2026-03-12",
			h:     habit(t, "2026-02-01", constants.FrequencyWeek, 2, nil),
			want:  []string{"2026-03-12", "2026-02-26", "2026-02-12"},
		},
		{
			name:  "monthly steps clamp without drift",
			today: "2026-03-31",
			h:     habit(t, "2025-12-31", constants.FrequencyMonth, 1, nil),
			want:  []string{"2026-03-31", "2026-02-28", "2026-01-31", "2025-12-31"},
		},
		{
			name:  "weekday set",
			today: "2026-03-12",
			h:     habit(t, "2026-03-02", constants.FrequencyWeek, 1, monWedFri),
			want:  []string{"2026-03-11", "2026-03-09", "2026-03-06", "2026-03-04", "2026-03-02"},
		},
		{
			name:  "created in the future",
			today: "2026-03-12",
			h:     habit(t, "2026-03-13", constants.FrequencyDay, 1, nil),
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dateStrings(newScheduler(t, tt.today).ExpectedDates(tt.h))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ExpectedDates() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExpectedDatesLookbackBound(t *testing.T) {
	s := newScheduler(t, "2026-03-12")
	h := habit(t, "2020-01-01", constants.FrequencyDay, 1, nil)
	if got := len(s.ExpectedDates(h)); got != constants.ExpectedDatesLookback {
		t.Errorf("len(ExpectedDates()) = %d, want %d", got, constants.ExpectedDatesLookback)
	}
}

func TestCurrentStreak(t *testing.T) {
	tests := []struct {
		name  string
		today string
		h     models.Habit
		want  int
	}{
		{
			name:  "daily with today and two preceding days logged",
			today: "2026-03-12",
			h:     habit(t, "2026-03-01", constants.FrequencyDay, 1, nil, "2026-03-10", "2026-03-11", "2026-03-12"),
			want:  3,
		},
		{
			name:  "unlogged today does not break the streak",
			today: "2026-03-12",
			h:     habit(t, "2026-03-01", constants.FrequencyDay, 1, nil, "2026-03-10", "2026-03-11"),
			want:  2,
		},
		{
			name:  "gap yesterday breaks the streak",
			today: "2026-03-12",
			h:     habit(t, "2026-03-01", constants.FrequencyDay, 1, nil, "2026-03-09", "2026-03-10"),
			want:  0,
		},
		{
			// Saturday so Friday the 13th is an expected day already missed; with a
			// Thursday today the same logs give 2, as the next case shows.
			name:  "weekday habit with missed friday",
			today: "2026-03-14", // Saturday
			h:     habit(t, "2026-03-02", constants.FrequencyWeek, 1, monWedFri, "2026-03-09", "2026-03-11"),
			want:  0,
		},
		{
			name:  "weekday habit mid-week counts the run since the missed friday",
			today: "2026-03-12", // Thursday
			h:     habit(t, "2026-03-02", constants.FrequencyWeek, 1, monWedFri, "2026-03-09", "2026-03-11"),
			want:  2,
		},
		{
			name:  "completed one-time habit",
			today: "2026-03-12",
			h:     habit(t, "2026-03-01", "", 0, nil, "2026-03-01"),
			want:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := newScheduler(t, tt.today).CurrentStreak(tt.h); got != tt.want {
				t.Errorf("CurrentStreak() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLongestStreak(t *testing.T) {
	s := newScheduler(t, "2026-03-14")

	weekday := habit(t, "2026-03-02", constants.FrequencyWeek, 1, monWedFri, "2026-03-09", "2026-03-11")
	if got := s.LongestStreak(weekday); got != 2 {
		t.Errorf("LongestStreak(weekday) = %d, want 2", got)
	}

	daily := habit(t, "2026-03-01", constants.FrequencyDay, 1, nil,
		"2026-03-01", "2026-03-02", "2026-03-03", "2026-03-04", // run of 4
		"2026-03-10", "2026-03-11")
	if got := s.LongestStreak(daily); got != 4 {
		t.Errorf("LongestStreak(daily) = %d, want 4", got)
	}
}

func TestBadHabitStreakInversion(t *testing.T) {
	s := newScheduler(t, "2026-03-12")

	clean := habit(t, "2026-03-01", constants.FrequencyDay, 1, nil)
	clean.IsBadHabit = true
	if got, want := s.CurrentStreak(clean), len(s.ExpectedDates(clean)); got != want {
		t.Errorf("CurrentStreak() with no lapses = %d, want %d", got, want)
	}

	lapsed := clean
	lapsed.Logs = []models.HabitLog{{Date: "2026-03-12"}}
	if got := s.CurrentStreak(lapsed); got != 0 {
		t.Errorf("CurrentStreak() after a lapse today = %d, want 0", got)
	}
	if got := s.LongestStreak(lapsed); got != 11 {
		t.Errorf("LongestStreak() = %d, want 11", got)
	}
}

func TestCompletionRate(t *testing.T) {
	s := newScheduler(t, "2026-03-12")
	logs := []string{"2026-03-10", "2026-03-11", "2026-03-12"}

	daily := habit(t, "2026-02-01", constants.FrequencyDay, 1, nil, logs...)
	bad := habit(t, "2026-02-01", constants.FrequencyDay, 1, nil, logs...)
	bad.IsBadHabit = true
	future := habit(t, "2026-03-20", constants.FrequencyDay, 1, nil)

	tests := []struct {
		name   string
		h      models.Habit
		window int
		want   float64
	}{
		{"weekly window covers eight dates", daily, 7, 37.5},
		{"monthly window rounds", daily, 30, 9.68},
		{"bad habit inverts", bad, 7, 62.5},
		{"no expected dates", future, 7, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.CompletionRate(tt.h, tt.window); got != tt.want {
				t.Errorf("CompletionRate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMetrics(t *testing.T) {
	s := newScheduler(t, "2026-03-12")
	h := habit(t, "2026-03-01", constants.FrequencyDay, 1, nil, "2026-03-11", "2026-03-05", "2026-03-10")

	m := s.Metrics(h)
	if m.CurrentStreak != 2 || m.TotalCompletions != 3 {
		t.Errorf("unexpected metrics: %+v", m)
	}
	if m.LastCompletedDate == nil || *m.LastCompletedDate != "2026-03-11" {
		t.Errorf("LastCompletedDate = %v, want 2026-03-11", m.LastCompletedDate)
	}
}

func TestTrends(t *testing.T) {
	s := newScheduler(t, "2026-01-10")
	value := func(v float64) *float64 { return &v }

	h := habit(t, "2023-06-01", constants.FrequencyDay, 1, nil)
	h.IsQuantifiable = true
	h.Logs = []models.HabitLog{
		{Date: "2025-12-29", Value: value(5)}, // ISO week 1 of 2026
		{Date: "2026-01-01", Value: value(3)},
		{Date: "2026-01-05", Value: value(10)},
		{Date: "2026-01-06"},                  // no value
		{Date: "2024-01-01", Value: value(99)}, // older than a year
	}

	got, err := s.Trends(h)
	if err != nil {
		t.Fatalf("Trends() failed: %v", err)
	}
	want := Trends{
		Weekly: []TrendPoint{
			{Period: "2026-W01", Average: 4, Min: 3, Max: 5, Count: 2},
			{Period: "2026-W02", Average: 10, Min: 10, Max: 10, Count: 1},
		},
		Monthly: []TrendPoint{
			{Period: "2025-12", Average: 5, Min: 5, Max: 5, Count: 1},
			{Period: "2026-01", Average: 6.5, Min: 3, Max: 10, Count: 2},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Trends() mismatch (-want +got):\n%s", diff)
	}
}

func TestTrendsRequireQuantifiableHabit(t *testing.T) {
	s := newScheduler(t, "2026-01-10")
	_, err := s.Trends(habit(t, "2026-01-01", constants.FrequencyDay, 1, nil))
	if !errors.Is(err, apperrors.ErrTypeMismatch) {
		t.Errorf("Trends() error = %v, want ErrTypeMismatch", err)
	}
}
