package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/thomasluizon/orbit-api-sub001/internal/constants"
	apperrors "github.com/thomasluizon/orbit-api-sub001/internal/errors"
	"github.com/thomasluizon/orbit-api-sub001/internal/models"
)

const habitColumns = `id, user_id, title, description, frequency_unit, frequency_quantity, days,
	is_bad_habit, is_quantifiable, unit, is_completed, is_active, due_date, position,
	parent_habit_id, created_at, updated_at`

func encodeDays(days []time.Weekday) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(int(d))
	}
	return strings.Join(parts, ",")
}

func decodeDays(s string) ([]time.Weekday, error) {
	if s == "" {
		return nil, nil
	}
	var days []time.Weekday
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 6 {
			return nil, fmt.Errorf("invalid weekday %q in days column", part)
		}
		days = append(days, time.Weekday(n))
	}
	return days, nil
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func (r *Repo) AddHabit(ctx context.Context, h models.Habit) error {
	_, err := r.exec(ctx, `
		INSERT INTO habits (`+habitColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.UserID, h.Title, h.Description, string(h.FrequencyUnit), h.FrequencyQuantity, encodeDays(h.Days),
		h.IsBadHabit, h.IsQuantifiable, h.Unit, h.IsCompleted, h.IsActive, h.DueDate, nullInt(h.Position),
		nullString(h.ParentHabitID), formatTime(h.CreatedAt), formatTime(h.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert habit: %w", err)
	}
	return nil
}

// UpdateHabit writes the habit's own columns. Logs and tags are managed by
// their own methods.
func (r *Repo) UpdateHabit(ctx context.Context, h models.Habit) error {
	res, err := r.exec(ctx, `
		UPDATE habits SET
			title = ?, description = ?, frequency_unit = ?, frequency_quantity = ?, days = ?,
			is_bad_habit = ?, is_quantifiable = ?, unit = ?, is_completed = ?, is_active = ?,
			due_date = ?, position = ?, parent_habit_id = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		h.Title, h.Description, string(h.FrequencyUnit), h.FrequencyQuantity, encodeDays(h.Days),
		h.IsBadHabit, h.IsQuantifiable, h.Unit, h.IsCompleted, h.IsActive,
		h.DueDate, nullInt(h.Position), nullString(h.ParentHabitID), formatTime(h.UpdatedAt),
		h.ID, h.UserID)
	if err != nil {
		return fmt.Errorf("failed to update habit: %w", err)
	}
	return expectOne(res, apperrors.NotFound("habit"))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHabit(row rowScanner) (models.Habit, error) {
	var h models.Habit
	var unit, days, createdAt, updatedAt string
	var position sql.NullInt64
	var parentID sql.NullString

	err := row.Scan(&h.ID, &h.UserID, &h.Title, &h.Description, &unit, &h.FrequencyQuantity, &days,
		&h.IsBadHabit, &h.IsQuantifiable, &h.Unit, &h.IsCompleted, &h.IsActive, &h.DueDate, &position,
		&parentID, &createdAt, &updatedAt)
	if err != nil {
		return models.Habit{}, err
	}

	h.FrequencyUnit = constants.FrequencyUnit(unit)
	if h.Days, err = decodeDays(days); err != nil {
		return models.Habit{}, err
	}
	if position.Valid {
		p := int(position.Int64)
		h.Position = &p
	}
	if parentID.Valid {
		id := parentID.String
		h.ParentHabitID = &id
	}
	if h.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return models.Habit{}, fmt.Errorf("habit %s: %w", h.ID, err)
	}
	if h.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return models.Habit{}, fmt.Errorf("habit %s: %w", h.ID, err)
	}
	return h, nil
}

// GetHabit returns an active habit owned by userID with its logs, tag ids
// and active child ids.
func (r *Repo) GetHabit(ctx context.Context, userID, id string) (models.Habit, error) {
	h, err := scanHabit(r.queryRow(ctx,
		"SELECT "+habitColumns+" FROM habits WHERE id = ? AND user_id = ? AND is_active = ?",
		id, userID, true))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Habit{}, apperrors.NotFound("habit")
		}
		return models.Habit{}, fmt.Errorf("failed to get habit: %w", err)
	}

	habits := []models.Habit{h}
	if err := r.attachRelations(ctx, habits, "habit_id = ?", id); err != nil {
		return models.Habit{}, err
	}

	rows, err := r.query(ctx,
		"SELECT id FROM habits WHERE parent_habit_id = ? AND is_active = ? ORDER BY position, created_at",
		id, true)
	if err != nil {
		return models.Habit{}, fmt.Errorf("failed to list child habits: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var childID string
		if err := rows.Scan(&childID); err != nil {
			return models.Habit{}, err
		}
		habits[0].ChildIDs = append(habits[0].ChildIDs, childID)
	}
	return habits[0], rows.Err()
}

// ListHabits returns the user's habits ordered by position then creation.
func (r *Repo) ListHabits(ctx context.Context, userID string, includeInactive bool) ([]models.Habit, error) {
	query := "SELECT " + habitColumns + " FROM habits WHERE user_id = ?"
	args := []any{userID}
	if !includeInactive {
		query += " AND is_active = ?"
		args = append(args, true)
	}
	query += " ORDER BY position, created_at"

	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list habits: %w", err)
	}
	var habits []models.Habit
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		habits = append(habits, h)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.attachRelations(ctx, habits, "habit_id IN (SELECT id FROM habits WHERE user_id = ?)", userID); err != nil {
		return nil, err
	}

	index := make(map[string]int, len(habits))
	for i, h := range habits {
		index[h.ID] = i
	}
	for _, h := range habits {
		if h.ParentHabitID == nil {
			continue
		}
		if i, ok := index[*h.ParentHabitID]; ok {
			habits[i].ChildIDs = append(habits[i].ChildIDs, h.ID)
		}
	}
	return habits, nil
}

// attachRelations loads logs and tag ids for habits. filter selects rows of
// habit_logs and habit_tags by their habit_id column.
func (r *Repo) attachRelations(ctx context.Context, habits []models.Habit, filter string, arg any) error {
	index := make(map[string]int, len(habits))
	for i, h := range habits {
		index[h.ID] = i
	}

	rows, err := r.query(ctx,
		"SELECT id, habit_id, date, note, value, created_at FROM habit_logs WHERE "+filter+" ORDER BY date, created_at",
		arg)
	if err != nil {
		return fmt.Errorf("failed to load habit logs: %w", err)
	}
	for rows.Next() {
		var l models.HabitLog
		var value sql.NullFloat64
		var createdAt string
		if err := rows.Scan(&l.ID, &l.HabitID, &l.Date, &l.Note, &value, &createdAt); err != nil {
			rows.Close()
			return err
		}
		if value.Valid {
			v := value.Float64
			l.Value = &v
		}
		if l.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			rows.Close()
			return err
		}
		if i, ok := index[l.HabitID]; ok {
			habits[i].Logs = append(habits[i].Logs, l)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.query(ctx, "SELECT habit_id, tag_id FROM habit_tags WHERE "+filter+" ORDER BY tag_id", arg)
	if err != nil {
		return fmt.Errorf("failed to load habit tags: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var habitID, tagID string
		if err := rows.Scan(&habitID, &tagID); err != nil {
			return err
		}
		if i, ok := index[habitID]; ok {
			habits[i].TagIDs = append(habits[i].TagIDs, tagID)
		}
	}
	return rows.Err()
}

// AddHabitLog inserts a log. unique_day is filled from the owning habit so
// the unique index only binds normal habits.
func (r *Repo) AddHabitLog(ctx context.Context, l models.HabitLog) error {
	var value sql.NullFloat64
	if l.Value != nil {
		value = sql.NullFloat64{Float64: *l.Value, Valid: true}
	}
	_, err := r.exec(ctx, `
		INSERT INTO habit_logs (id, habit_id, date, unique_day, note, value, created_at)
		VALUES (?, ?, ?, CASE WHEN (SELECT is_bad_habit FROM habits WHERE id = ?) THEN NULL ELSE ? END, ?, ?, ?)`,
		l.ID, l.HabitID, l.Date, l.HabitID, l.Date, l.Note, value, formatTime(l.CreatedAt))
	if r.isUniqueViolation(err) {
		return apperrors.Invalid("date", "habit is already logged for %s", l.Date)
	}
	if err != nil {
		return fmt.Errorf("failed to insert habit log: %w", err)
	}
	return nil
}

func (r *Repo) DeleteHabitLog(ctx context.Context, habitID, logID string) error {
	res, err := r.exec(ctx, "DELETE FROM habit_logs WHERE id = ? AND habit_id = ?", logID, habitID)
	if err != nil {
		return fmt.Errorf("failed to delete habit log: %w", err)
	}
	return expectOne(res, apperrors.NotFound("log"))
}
