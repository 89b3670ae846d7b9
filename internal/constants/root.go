package constants

import "time"

const (
	AppName           = "orbit"
	Version           = "v0.3.0"
	DefaultConfigPath = "~/.config/orbit/orbit.yaml"
	DefaultDataDir    = "~/.config/orbit"
	DefaultDBFile     = "orbit.db"
	DefaultListenAddr = ":8080"
	DefaultTimezone   = "UTC"
	DefaultTagColor   = "#7C3AED"

	// Keyring entry names
	SecretGeminiAPIKey = "gemini-api-key"
	SecretJWT          = "jwt-secret"
	SecretDBConnection = "database-connection"

	// Habit limits
	MaxHabitTitleLen       = 200
	MaxHabitDescriptionLen = 2000
	MaxLogNoteLen          = 500
	MaxTagNameLen          = 50

	// ExpectedDatesLookback bounds the backward walk when generating expected dates.
	ExpectedDatesLookback = 365

	// Completion rate windows, in days
	WeeklyWindowDays  = 7
	MonthlyWindowDays = 30

	// TrendLookbackMonths bounds the logs considered for trend aggregation.
	TrendLookbackMonths = 12

	// Bulk limits
	MaxBulkItems = 100

	// Facts
	MaxFactTextLen   = 500
	MaxFactsPerUser  = 100
	DefaultFactsWait = 30 * time.Second

	// LLM
	DefaultGeminiModel   = "gemini-2.5-flash"
	DefaultOllamaModel   = "llama3.1"
	DefaultOllamaURL     = "http://localhost:11434"
	DefaultLLMTimeout    = 30 * time.Second
	DefaultMaxRetries    = 3
	DefaultRetryBackoff  = time.Second
	MaxRetryBackoff      = 8 * time.Second
	DefaultMaxImageBytes = 5 << 20

	// Auth
	DefaultTokenTTL   = 24 * time.Hour
	MinPasswordLength = 8
)

// FrequencyUnit is the unit of a habit's recurrence rule
type FrequencyUnit string

// FactCategory classifies a user fact
type FactCategory string

const (
	FrequencyDay   FrequencyUnit = "day"
	FrequencyWeek  FrequencyUnit = "week"
	FrequencyMonth FrequencyUnit = "month"
	FrequencyYear  FrequencyUnit = "year"

	FactPreference FactCategory = "preference"
	FactRoutine    FactCategory = "routine"
	FactContext    FactCategory = "context"
)
