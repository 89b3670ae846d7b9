package models

import (
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/thomasluizon/orbit-api-sub001/internal/errors"
	"github.com/thomasluizon/orbit-api-sub001/internal/utils"
)

// User owns habits, tags and facts. Timezone decides what "today" means for
// every date computation on the user's habits.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Timezone     string    `json:"timezone"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewUser validates the email and timezone. The password must already be hashed.
func NewUser(email, passwordHash, timezone string, now time.Time) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return User{}, apperrors.Invalid("email", "email is not a valid address")
	}
	if passwordHash == "" {
		return User{}, apperrors.Invalid("password", "password is required")
	}
	timezone = strings.TrimSpace(timezone)
	if !utils.ValidateTimezone(timezone) {
		return User{}, apperrors.Invalid("timezone", "unknown timezone %q", timezone)
	}
	if timezone == "" {
		timezone = "UTC"
	}
	return User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: passwordHash,
		Timezone:     timezone,
		CreatedAt:    now.UTC(),
	}, nil
}
