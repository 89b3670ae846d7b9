package models

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/thomasluizon/orbit-api-sub001/internal/constants"
	apperrors "github.com/thomasluizon/orbit-api-sub001/internal/errors"
)

// UserFact is a durable inference about a user. Facts are fed back into the
// interpreter's system prompt on later turns, so their text is screened for
// anything that reads like an instruction.
type UserFact struct {
	ID          string                 `json:"id"`
	UserID      string                 `json:"user_id"`
	Text        string                 `json:"text"`
	Category    constants.FactCategory `json:"category,omitempty"`
	ExtractedAt time.Time              `json:"extracted_at"`
	UpdatedAt   *time.Time             `json:"updated_at,omitempty"`
	IsDeleted   bool                   `json:"-"`
	DeletedAt   *time.Time             `json:"-"`
}

// injectionPatterns match instruction-like text. Matching is done on the
// lower-cased, whitespace-collapsed fact text.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bignore\b`),
	regexp.MustCompile(`\bdisregard\b`),
	regexp.MustCompile(`\bforget (all|everything|previous|prior|your)\b`),
	regexp.MustCompile(`\boverride\b`),
	regexp.MustCompile(`\byou must\b`),
	regexp.MustCompile(`\byou are now\b`),
	regexp.MustCompile(`\bact as\b`),
	regexp.MustCompile(`\bpretend (to be|you)\b`),
	regexp.MustCompile(`\bnew instructions?\b`),
	regexp.MustCompile(`\b(system|assistant|developer|user)\s*:`),
	regexp.MustCompile(`\binstructions?\s*:`),
	regexp.MustCompile(`\bprompt\s*:`),
	regexp.MustCompile("```"),
	regexp.MustCompile(`<\s*/?\s*(system|instructions?|prompt)\s*>`),
}

var whitespace = regexp.MustCompile(`\s+`)

// LooksLikeInstruction reports whether text matches the injection screen.
func LooksLikeInstruction(text string) bool {
	normalized := whitespace.ReplaceAllString(strings.ToLower(text), " ")
	for _, p := range injectionPatterns {
		if p.MatchString(normalized) {
			return true
		}
	}
	return false
}

// ParseFactCategory accepts the known categories in any case. Empty is allowed.
func ParseFactCategory(s string) (constants.FactCategory, error) {
	switch c := constants.FactCategory(strings.ToLower(strings.TrimSpace(s))); c {
	case "", constants.FactPreference, constants.FactRoutine, constants.FactContext:
		return c, nil
	default:
		return "", apperrors.Invalid("category", "unknown fact category %q", s)
	}
}

func validateFactText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperrors.Invalid("text", "fact text is required")
	}
	if len([]rune(text)) > constants.MaxFactTextLen {
		return "", apperrors.Invalid("text", "fact text must be at most %d characters", constants.MaxFactTextLen)
	}
	if LooksLikeInstruction(text) {
		return "", apperrors.Invalid("text", "fact text looks like an instruction")
	}
	return text, nil
}

// NewUserFact is the only way facts are built: it enforces the length bound,
// the injection screen and the category set.
func NewUserFact(userID, text, category string, now time.Time) (UserFact, error) {
	text, err := validateFactText(text)
	if err != nil {
		return UserFact{}, err
	}
	cat, err := ParseFactCategory(category)
	if err != nil {
		return UserFact{}, err
	}
	return UserFact{
		ID:          uuid.New().String(),
		UserID:      userID,
		Text:        text,
		Category:    cat,
		ExtractedAt: now.UTC(),
	}, nil
}

// UpdateText replaces the text (and category) after running the same checks.
func (f *UserFact) UpdateText(text, category string, now time.Time) error {
	text, err := validateFactText(text)
	if err != nil {
		return err
	}
	cat, err := ParseFactCategory(category)
	if err != nil {
		return err
	}
	f.Text = text
	f.Category = cat
	t := now.UTC()
	f.UpdatedAt = &t
	return nil
}

// SoftDelete hides the fact from every normal read.
func (f *UserFact) SoftDelete(now time.Time) {
	t := now.UTC()
	f.IsDeleted = true
	f.DeletedAt = &t
}

// SameText reports a case-insensitive exact match, the dedup rule for facts.
func SameText(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
