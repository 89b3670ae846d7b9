package utils

import (
	"time"

	"github.com/thomasluizon/orbit-api-sub001/internal/constants"
)

// AddFrequency moves date by n units (n may be negative). Month and year steps
// clamp to the last day of the target month, so Mar 31 minus one month is
// Feb 28/29 rather than spilling into March.
func AddFrequency(date time.Time, unit constants.FrequencyUnit, n int) time.Time {
	switch unit {
	case constants.FrequencyDay:
		return date.AddDate(0, 0, n)
	case constants.FrequencyWeek:
		return date.AddDate(0, 0, 7*n)
	case constants.FrequencyMonth:
		return addMonthsClamped(date, n)
	case constants.FrequencyYear:
		return addMonthsClamped(date, 12*n)
	default:
		return date
	}
}

func addMonthsClamped(date time.Time, months int) time.Time {
	first := time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, date.Location()).AddDate(0, months, 0)
	day := date.Day()
	if last := daysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, date.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ContainsWeekday reports whether wd is in days.
func ContainsWeekday(days []time.Weekday, wd time.Weekday) bool {
	for _, d := range days {
		if d == wd {
			return true
		}
	}
	return false
}

// NextWeekday returns the first date strictly after date whose weekday is in
// days. days must not be empty.
func NextWeekday(date time.Time, days []time.Weekday) time.Time {
	next := date.AddDate(0, 0, 1)
	for i := 0; i < 7; i++ {
		if ContainsWeekday(days, next.Weekday()) {
			return next
		}
		next = next.AddDate(0, 0, 1)
	}
	return next
}
