package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	apperrors "github.com/thomasluizon/orbit-api-sub001/internal/errors"
	"github.com/thomasluizon/orbit-api-sub001/internal/models"
)

func (r *Repo) AddTag(ctx context.Context, tag models.Tag) error {
	_, err := r.exec(ctx, `
		INSERT INTO tags (id, user_id, name, color, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		tag.ID, tag.UserID, tag.Name, tag.Color, formatTime(tag.CreatedAt))
	if r.isUniqueViolation(err) {
		return fmt.Errorf("%w: tag %q already exists", apperrors.ErrConflict, tag.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to insert tag: %w", err)
	}
	return nil
}

func scanTag(row rowScanner) (models.Tag, error) {
	var t models.Tag
	var createdAt string
	if err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.Color, &createdAt); err != nil {
		return models.Tag{}, err
	}
	var err error
	if t.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return models.Tag{}, err
	}
	return t, nil
}

func (r *Repo) GetTag(ctx context.Context, userID, id string) (models.Tag, error) {
	t, err := scanTag(r.queryRow(ctx,
		"SELECT id, user_id, name, color, created_at FROM tags WHERE id = ? AND user_id = ?", id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Tag{}, apperrors.NotFound("tag")
	}
	return t, err
}

func (r *Repo) ListTags(ctx context.Context, userID string) ([]models.Tag, error) {
	rows, err := r.query(ctx,
		"SELECT id, user_id, name, color, created_at FROM tags WHERE user_id = ? ORDER BY lower(name)", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	var tags []models.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// DeleteTag removes the tag and its habit associations. Habits are untouched.
func (r *Repo) DeleteTag(ctx context.Context, userID, id string) error {
	if _, err := r.GetTag(ctx, userID, id); err != nil {
		return err
	}
	if _, err := r.exec(ctx, "DELETE FROM habit_tags WHERE tag_id = ?", id); err != nil {
		return fmt.Errorf("failed to detach tag: %w", err)
	}
	if _, err := r.exec(ctx, "DELETE FROM tags WHERE id = ? AND user_id = ?", id, userID); err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}
	return nil
}

// AttachTag links a tag to a habit. Attaching twice is a no-op.
func (r *Repo) AttachTag(ctx context.Context, habitID, tagID string) error {
	_, err := r.exec(ctx,
		"INSERT INTO habit_tags (habit_id, tag_id) VALUES (?, ?) ON CONFLICT DO NOTHING", habitID, tagID)
	if err != nil {
		return fmt.Errorf("failed to attach tag: %w", err)
	}
	return nil
}

func (r *Repo) DetachTags(ctx context.Context, habitID string) error {
	if _, err := r.exec(ctx, "DELETE FROM habit_tags WHERE habit_id = ?", habitID); err != nil {
		return fmt.Errorf("failed to detach tags: %w", err)
	}
	return nil
}
