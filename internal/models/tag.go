package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/thomasluizon/orbit-api-sub001/internal/constants"
	"github.com/thomasluizon/orbit-api-sub001/internal/validation"
)

// Tag is a user-scoped label. Names are unique per user, ignoring case.
type Tag struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTag validates and builds a Tag. An empty color gets the default.
func NewTag(userID, name, color string, now time.Time) (Tag, error) {
	name = strings.TrimSpace(name)
	if err := validation.ValidateTitle("name", name, constants.MaxTagNameLen); err != nil {
		return Tag{}, err
	}
	color = strings.TrimSpace(color)
	if color == "" {
		color = constants.DefaultTagColor
	}
	if err := validation.ValidateColor(color); err != nil {
		return Tag{}, err
	}
	return Tag{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      name,
		Color:     strings.ToUpper(color),
		CreatedAt: now.UTC(),
	}, nil
}
