package constants

const (
	// DateFormat is the standard date format used throughout the application (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// MonthFormat keys monthly trend buckets (YYYY-MM)
	MonthFormat = "2006-01"
)
