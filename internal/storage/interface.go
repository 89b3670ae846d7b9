package storage

import (
	"context"

	"github.com/thomasluizon/orbit-api-sub001/internal/models"
)

// Repository is the data access surface shared by the provider and by open
// transactions. Every habit, tag and fact lookup is scoped to a user; rows of
// another user are reported as not found.
type Repository interface {
	// Users
	AddUser(ctx context.Context, user models.User) error
	GetUser(ctx context.Context, id string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)

	// Habits. Reads include logs, tag ids and child ids.
	AddHabit(ctx context.Context, habit models.Habit) error
	UpdateHabit(ctx context.Context, habit models.Habit) error
	GetHabit(ctx context.Context, userID, id string) (models.Habit, error)
	ListHabits(ctx context.Context, userID string, includeInactive bool) ([]models.Habit, error)

	// Habit logs. A normal habit accepts one log per date; bad habits accept
	// any number.
	AddHabitLog(ctx context.Context, entry models.HabitLog) error
	DeleteHabitLog(ctx context.Context, habitID, logID string) error

	// Tags
	AddTag(ctx context.Context, tag models.Tag) error
	GetTag(ctx context.Context, userID, id string) (models.Tag, error)
	ListTags(ctx context.Context, userID string) ([]models.Tag, error)
	DeleteTag(ctx context.Context, userID, id string) error
	AttachTag(ctx context.Context, habitID, tagID string) error
	DetachTags(ctx context.Context, habitID string) error

	// Facts. Soft-deleted facts are invisible to every read.
	AddFact(ctx context.Context, fact models.UserFact) error
	UpdateFact(ctx context.Context, fact models.UserFact) error
	GetFact(ctx context.Context, userID, id string) (models.UserFact, error)
	ListFacts(ctx context.Context, userID string) ([]models.UserFact, error)
}

// Tx is a unit of work with named savepoints. Callers end it with exactly one
// Commit or Rollback.
type Tx interface {
	Repository

	Savepoint(ctx context.Context, name string) error
	RollbackTo(ctx context.Context, name string) error
	Release(ctx context.Context, name string) error
	Commit() error
	Rollback() error
}

type Provider interface {
	Repository

	// Lifecycle
	Init() error
	Load() error
	Close() error

	// Begin starts a unit of work.
	Begin(ctx context.Context) (Tx, error)

	// SchemaStatus reports the current and latest schema versions.
	SchemaStatus() (current, latest int, err error)

	// Utils
	GetConfigPath() string
}
