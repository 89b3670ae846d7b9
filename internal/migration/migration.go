// Package migration applies the numbered SQL files embedded in the binary and
// records each one in a schema_migrations history table.
package migration

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/thomasluizon/orbit-api-sub001/internal/logger"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrSchemaTooNew means the database was migrated by a newer build.
var ErrSchemaTooNew = errors.New("database schema is newer than this build")

// Migration is one NNN_name.sql file.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

type Runner struct {
	db     *sql.DB
	files  fs.FS
	driver string
}

func NewRunner(db *sql.DB, files fs.FS, driver string) (*Runner, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported migration driver: %q", driver)
	}
	return &Runner{db: db, files: files, driver: driver}, nil
}

// bind rewrites ? placeholders for drivers that number them.
func (r *Runner) bind(query string) string {
	if r.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func (r *Runner) ensureHistory(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TEXT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}
	return nil
}

// CurrentVersion is the highest applied version, or 0 for a fresh database.
func (r *Runner) CurrentVersion(ctx context.Context) (int, error) {
	if err := r.ensureHistory(ctx); err != nil {
		return 0, err
	}
	var version sql.NullInt64
	if err := r.db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return int(version.Int64), nil
}

// stamp records version as applied without running anything.
func (r *Runner) stamp(ctx context.Context, version int, name string) error {
	if err := r.ensureHistory(ctx); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		r.bind("INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)"),
		version, name, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to stamp version %d: %w", version, err)
	}
	return nil
}

func parseFilename(file string) (int, string, error) {
	prefix, name, ok := strings.Cut(strings.TrimSuffix(file, ".sql"), "_")
	if !ok || name == "" {
		return 0, "", fmt.Errorf("invalid migration filename %s (expected NNN_name.sql)", file)
	}
	version, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, "", fmt.Errorf("invalid migration filename %s: %w", file, err)
	}
	if version < 1 {
		return 0, "", fmt.Errorf("invalid migration filename %s: version must be at least 1", file)
	}
	return version, name, nil
}

// Load reads every migration file, ordered by version. Versions must run
// 1, 2, 3... with no duplicates or gaps.
func (r *Runner) Load() ([]Migration, error) {
	entries, err := fs.ReadDir(r.files, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	var list []Migration
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".sql" {
			continue
		}
		version, name, err := parseFilename(e.Name())
		if err != nil {
			return nil, err
		}
		body, err := fs.ReadFile(r.files, e.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", e.Name(), err)
		}
		list = append(list, Migration{Version: version, Name: name, SQL: string(body)})
	}

	slices.SortFunc(list, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })
	for i, m := range list {
		switch want := i + 1; {
		case i > 0 && m.Version == list[i-1].Version:
			return nil, fmt.Errorf("duplicate migration version %d", m.Version)
		case m.Version != want:
			return nil, fmt.Errorf("missing migration version %d", want)
		}
	}
	return list, nil
}

// LatestVersion is the highest version shipped with the binary.
func (r *Runner) LatestVersion() (int, error) {
	list, err := r.Load()
	if err != nil {
		return 0, err
	}
	return len(list), nil
}

func tooNew(current, latest int) error {
	return fmt.Errorf("%w: database is at version %d, this build knows %d; upgrade orbit", ErrSchemaTooNew, current, latest)
}

// Apply runs every pending migration, each in its own transaction together
// with its history row, and returns how many ran.
func (r *Runner) Apply(ctx context.Context) (int, error) {
	log := logger.With("driver", r.driver)

	current, err := r.CurrentVersion(ctx)
	if err != nil {
		return 0, err
	}
	list, err := r.Load()
	if err != nil {
		return 0, err
	}
	if current > len(list) {
		return 0, tooNew(current, len(list))
	}

	pending := list[current:]
	if len(pending) == 0 {
		log.Debug("Schema is up to date", "version", current)
		return 0, nil
	}

	log.Info("Migrating schema", "from", current, "to", len(list))
	start := time.Now()
	for i, m := range pending {
		if err := r.applyOne(ctx, m); err != nil {
			return i, err
		}
		log.Info("Applied migration", "version", m.Version, "name", m.Name)
	}
	log.Info("Schema migrated", "applied", len(pending), "took", time.Since(start).Round(time.Millisecond))
	return len(pending), nil
}

func (r *Runner) applyOne(ctx context.Context, m Migration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migration %d: %w", m.Version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Name, err)
	}
	_, err = tx.ExecContext(ctx,
		r.bind("INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)"),
		m.Version, m.Name, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("migration %d: failed to record history: %w", m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migration %d: %w", m.Version, err)
	}
	return nil
}

// Check fails with ErrSchemaTooNew when the database is ahead of the binary.
func (r *Runner) Check(ctx context.Context) error {
	current, latest, err := r.Status(ctx)
	if err != nil {
		return err
	}
	if current > latest {
		return tooNew(current, latest)
	}
	return nil
}

// Status reports the applied and shipped versions.
func (r *Runner) Status(ctx context.Context) (current, latest int, err error) {
	if current, err = r.CurrentVersion(ctx); err != nil {
		return 0, 0, err
	}
	if latest, err = r.LatestVersion(); err != nil {
		return 0, 0, err
	}
	return current, latest, nil
}
