package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/thomasluizon/orbit-api-sub001/internal/errors"
	"github.com/thomasluizon/orbit-api-sub001/internal/models"
)

const userColumns = "id, email, password_hash, timezone, created_at"

func (r *Repo) AddUser(ctx context.Context, user models.User) error {
	_, err := r.exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?)`,
		user.ID, strings.ToLower(user.Email), user.PasswordHash, user.Timezone, formatTime(user.CreatedAt))
	if r.isUniqueViolation(err) {
		return fmt.Errorf("%w: email is already registered", apperrors.ErrConflict)
	}
	return err
}

func (r *Repo) GetUser(ctx context.Context, id string) (models.User, error) {
	return r.scanUser(r.queryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
}

func (r *Repo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return r.scanUser(r.queryRow(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", strings.ToLower(email)))
}

func (r *Repo) scanUser(row *sql.Row) (models.User, error) {
	var u models.User
	var createdAt string
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Timezone, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, apperrors.NotFound("user")
		}
		return models.User{}, err
	}
	var err error
	if u.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return models.User{}, err
	}
	return u, nil
}
