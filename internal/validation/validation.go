package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/thomasluizon/orbit-api-sub001/internal/constants"
	apperrors "github.com/thomasluizon/orbit-api-sub001/internal/errors"
	"github.com/thomasluizon/orbit-api-sub001/internal/utils"
)

const maxFrequencyQuantity = 1000

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

var dayMap = map[string]time.Weekday{
	"sun":       time.Sunday,
	"sunday":    time.Sunday,
	"mon":       time.Monday,
	"monday":    time.Monday,
	"tue":       time.Tuesday,
	"tuesday":   time.Tuesday,
	"wed":       time.Wednesday,
	"wednesday": time.Wednesday,
	"thu":       time.Thursday,
	"thursday":  time.Thursday,
	"fri":       time.Friday,
	"friday":    time.Friday,
	"sat":       time.Saturday,
	"saturday":  time.Saturday,
}

// ParseWeekdays parses weekday names ("mon", "Wednesday") or numbers
// (0=Sunday .. 6=Saturday). Duplicates are collapsed, order is kept.
func ParseWeekdays(parts []string) ([]time.Weekday, error) {
	var weekdays []time.Weekday
	seen := make(map[time.Weekday]bool)

	for _, part := range parts {
		part = strings.TrimSpace(strings.ToLower(part))
		if part == "" {
			continue
		}
		wd, ok := dayMap[part]
		if !ok {
			num, err := strconv.Atoi(part)
			if err != nil || num < 0 || num > 6 {
				return nil, apperrors.Invalid("days", "invalid weekday: %s", part)
			}
			wd = time.Weekday(num)
		}
		if !seen[wd] {
			seen[wd] = true
			weekdays = append(weekdays, wd)
		}
	}

	return weekdays, nil
}

// ParseWeekdayList parses a comma-separated list of weekdays.
func ParseWeekdayList(s string) ([]time.Weekday, error) {
	return ParseWeekdays(strings.Split(s, ","))
}

// ParseFrequencyUnit normalizes a unit name. Plural and "daily"-style forms
// are accepted because interpreter output is not always exact.
func ParseFrequencyUnit(s string) (constants.FrequencyUnit, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "":
		return "", nil
	case "day", "days", "daily":
		return constants.FrequencyDay, nil
	case "week", "weeks", "weekly":
		return constants.FrequencyWeek, nil
	case "month", "months", "monthly":
		return constants.FrequencyMonth, nil
	case "year", "years", "yearly", "annually":
		return constants.FrequencyYear, nil
	default:
		return "", apperrors.Invalid("frequencyUnit", "invalid frequency unit: %s", s)
	}
}

// ValidateFrequency enforces the frequency rule invariants:
//   - unit and quantity are either both set or both absent (one-time habit)
//   - quantity is at least 1
//   - an explicit weekday set requires a quantity of exactly 1
func ValidateFrequency(unit constants.FrequencyUnit, quantity int, days []time.Weekday) error {
	if unit == "" && quantity == 0 {
		if len(days) > 0 {
			return apperrors.Invalid("days", "days require a recurring frequency with quantity 1")
		}
		return nil
	}
	if unit == "" {
		return apperrors.Invalid("frequencyUnit", "frequency unit is required when a quantity is set")
	}
	switch unit {
	case constants.FrequencyDay, constants.FrequencyWeek, constants.FrequencyMonth, constants.FrequencyYear:
	default:
		return apperrors.Invalid("frequencyUnit", "invalid frequency unit: %s", unit)
	}
	if quantity < 1 {
		return apperrors.Invalid("frequencyQuantity", "frequency quantity must be at least 1")
	}
	if quantity > maxFrequencyQuantity {
		return apperrors.Invalid("frequencyQuantity", "frequency quantity must be at most %d", maxFrequencyQuantity)
	}
	if len(days) > 0 && quantity != 1 {
		return apperrors.Invalid("days", "days can only be set when frequency quantity is 1")
	}
	for _, d := range days {
		if d < time.Sunday || d > time.Saturday {
			return apperrors.Invalid("days", "invalid weekday: %d", int(d))
		}
	}
	return nil
}

// ValidateTitle checks a required, bounded text field.
func ValidateTitle(field, value string, max int) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return apperrors.Invalid(field, "%s is required", field)
	}
	if len([]rune(value)) > max {
		return apperrors.Invalid(field, "%s must be at most %d characters", field, max)
	}
	return nil
}

// ValidateMaxLen checks an optional, bounded text field.
func ValidateMaxLen(field, value string, max int) error {
	if len([]rune(value)) > max {
		return apperrors.Invalid(field, "%s must be at most %d characters", field, max)
	}
	return nil
}

// ValidateColor checks a #RGB or #RRGGBB hex color.
func ValidateColor(color string) error {
	if !hexColor.MatchString(color) {
		return apperrors.Invalid("color", "color must be a hex value like #7C3AED")
	}
	return nil
}

// ValidateDate checks an optional YYYY-MM-DD field.
func ValidateDate(field, value string) error {
	if value == "" {
		return nil
	}
	if !utils.ValidateDateFormat(value) {
		return apperrors.Invalid(field, "%s must be a date in YYYY-MM-DD format", field)
	}
	return nil
}

// FormatWeekdays renders a weekday set for prompts and CLI output.
func FormatWeekdays(days []time.Weekday) string {
	names := make([]string, 0, len(days))
	for _, d := range days {
		names = append(names, d.String()[:3])
	}
	return strings.Join(names, ",")
}

// FormatFrequency renders a frequency rule in a human-readable form.
func FormatFrequency(unit constants.FrequencyUnit, quantity int, days []time.Weekday) string {
	if unit == "" {
		return "one-time"
	}
	var s string
	if quantity == 1 {
		s = fmt.Sprintf("every %s", unit)
	} else {
		s = fmt.Sprintf("every %d %ss", quantity, unit)
	}
	if len(days) > 0 {
		s += " on " + FormatWeekdays(days)
	}
	return s
}
