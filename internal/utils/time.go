package utils

import (
	"fmt"
	"time"

	"github.com/thomasluizon/orbit-api-sub001/internal/constants"
)

// LoadLocation loads a timezone location from an IANA timezone name.
// An empty name means UTC: users who never configured a timezone get UTC
// days, never the server's local zone.
func LoadLocation(timezone string) (*time.Location, error) {
	if timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(timezone)
}

// TodayIn returns the calendar date of the instant now as seen in timezone.
// A user logging at 23:00 local time must get their own day, not the UTC one.
func TodayIn(timezone string, now time.Time) (time.Time, error) {
	loc, err := LoadLocation(timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return DateOf(now.In(loc)), nil
}

// DateOf strips the clock from t, keeping t's calendar fields. The result is
// midnight UTC so dates compare and subtract without DST surprises.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a date string (YYYY-MM-DD) into a calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(constants.DateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", s)
	}
	return t, nil
}

// FormatDate formats a calendar date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(constants.DateFormat)
}

// ValidateDateFormat checks if the string is a valid YYYY-MM-DD date.
func ValidateDateFormat(s string) bool {
	_, err := ParseDate(s)
	return err == nil
}

// ValidateTimezone checks if the timezone name is valid.
func ValidateTimezone(timezone string) bool {
	if timezone == "" {
		return true
	}
	_, err := time.LoadLocation(timezone)
	return err == nil
}

// ISOWeekKey returns the ISO-8601 week of date as "YYYY-Www". The year is the
// ISO year, which differs from the calendar year around New Year: 2025-12-29
// is 2026-W01 and 2027-01-01 is 2026-W53.
func ISOWeekKey(date time.Time) string {
	year, week := date.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}
