package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/thomasluizon/orbit-api-sub001/internal/constants"
	apperrors "github.com/thomasluizon/orbit-api-sub001/internal/errors"
	"github.com/thomasluizon/orbit-api-sub001/internal/models"
)

const factColumns = "id, user_id, text, category, extracted_at, updated_at, is_deleted, deleted_at"

// AddFact inserts a fact. A live fact with the same text (ignoring case) is
// left in place and ErrConflict is returned; the statement itself does not
// fail, so an open transaction stays usable.
func (r *Repo) AddFact(ctx context.Context, f models.UserFact) error {
	res, err := r.exec(ctx, `
		INSERT INTO user_facts (`+factColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		f.ID, f.UserID, f.Text, string(f.Category), formatTime(f.ExtractedAt), nullTime(f.UpdatedAt),
		f.IsDeleted, nullTime(f.DeletedAt))
	if err != nil {
		return fmt.Errorf("failed to insert fact: %w", err)
	}
	return expectOne(res, errDuplicateFact)
}

var errDuplicateFact = fmt.Errorf("%w: fact is already known", apperrors.ErrConflict)

func (r *Repo) UpdateFact(ctx context.Context, f models.UserFact) error {
	res, err := r.exec(ctx, `
		UPDATE user_facts SET text = ?, category = ?, updated_at = ?, is_deleted = ?, deleted_at = ?
		WHERE id = ? AND user_id = ?`,
		f.Text, string(f.Category), nullTime(f.UpdatedAt), f.IsDeleted, nullTime(f.DeletedAt), f.ID, f.UserID)
	if r.isUniqueViolation(err) {
		return apperrors.Invalid("text", "a fact with this text already exists")
	}
	if err != nil {
		return fmt.Errorf("failed to update fact: %w", err)
	}
	return expectOne(res, apperrors.NotFound("fact"))
}

func scanFact(row rowScanner) (models.UserFact, error) {
	var f models.UserFact
	var category, extractedAt string
	var updatedAt, deletedAt sql.NullString
	if err := row.Scan(&f.ID, &f.UserID, &f.Text, &category, &extractedAt, &updatedAt, &f.IsDeleted, &deletedAt); err != nil {
		return models.UserFact{}, err
	}
	f.Category = constants.FactCategory(category)

	var err error
	if f.ExtractedAt, err = parseTime("extracted_at", extractedAt); err != nil {
		return models.UserFact{}, err
	}
	if f.UpdatedAt, err = parseNullTime("updated_at", updatedAt); err != nil {
		return models.UserFact{}, err
	}
	if f.DeletedAt, err = parseNullTime("deleted_at", deletedAt); err != nil {
		return models.UserFact{}, err
	}
	return f, nil
}

func (r *Repo) GetFact(ctx context.Context, userID, id string) (models.UserFact, error) {
	f, err := scanFact(r.queryRow(ctx,
		"SELECT "+factColumns+" FROM user_facts WHERE id = ? AND user_id = ? AND is_deleted = ?",
		id, userID, false))
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserFact{}, apperrors.NotFound("fact")
	}
	return f, err
}

// ListFacts returns the user's live facts, oldest first.
func (r *Repo) ListFacts(ctx context.Context, userID string) ([]models.UserFact, error) {
	rows, err := r.query(ctx,
		"SELECT "+factColumns+" FROM user_facts WHERE user_id = ? AND is_deleted = ? ORDER BY extracted_at, id",
		userID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list facts: %w", err)
	}
	defer rows.Close()

	var facts []models.UserFact
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}
