package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/julianstephens/seatwise/internal/errors"
)

// Migration is one schema step read from a file named NNN_name.sql.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

func (m Migration) String() string {
	return fmt.Sprintf("%03d_%s", m.Version, m.Name)
}

// Dialect selects the bind-parameter style used for the version bookkeeping.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

func (d Dialect) placeholder(n int) string {
	if d == Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// Runner applies the migrations found in an fs.FS. The database records a
// single row in schema_version holding the last applied version.
type Runner struct {
	db      *sql.DB
	files   fs.FS
	dialect Dialect
}

func NewRunner(db *sql.DB, files fs.FS, dialect Dialect) *Runner {
	return &Runner{db: db, files: files, dialect: dialect}
}

func (r *Runner) ensureTable() error {
	_, err := r.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)`)
	if err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}
	return nil
}

// CurrentVersion returns the applied version, 0 for a fresh database.
func (r *Runner) CurrentVersion() (int, error) {
	if err := r.ensureTable(); err != nil {
		return 0, err
	}
	var v int
	switch err := r.db.QueryRow("SELECT version FROM schema_version").Scan(&v); {
	case errors.Is(err, sql.ErrNoRows):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

func (r *Runner) SetVersion(version int) error {
	if err := r.ensureTable(); err != nil {
		return err
	}
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	if err := r.recordVersion(tx, version); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (r *Runner) recordVersion(tx *sql.Tx, version int) error {
	if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
		return fmt.Errorf("clear schema version: %w", err)
	}
	insert := "INSERT INTO schema_version (version) VALUES (" + r.dialect.placeholder(1) + ")"
	if _, err := tx.Exec(insert, version); err != nil {
		return fmt.Errorf("record schema version %d: %w", version, err)
	}
	return nil
}

func parseName(name string) (int, string, error) {
	prefix, rest, ok := strings.Cut(strings.TrimSuffix(name, ".sql"), "_")
	if !ok || rest == "" {
		return 0, "", apperrors.Configuration(apperrors.CodeBadMigration,
			fmt.Sprintf("invalid migration filename %s (expected NNN_name.sql)", name), nil)
	}
	version, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, "", apperrors.Configuration(apperrors.CodeBadMigration,
			fmt.Sprintf("invalid migration filename %s", name), err)
	}
	if version < 1 {
		return 0, "", apperrors.Configuration(apperrors.CodeBadMigration,
			fmt.Sprintf("migration %s: version must be at least 1", name), nil)
	}
	return version, rest, nil
}

// Migrations reads every .sql file at the root of the runner's FS, ordered
// by version.
func (r *Runner) Migrations() ([]Migration, error) {
	entries, err := fs.ReadDir(r.files, ".")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	var out []Migration
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".sql" {
			continue
		}
		version, name, err := parseName(e.Name())
		if err != nil {
			return nil, err
		}
		body, err := fs.ReadFile(r.files, e.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		out = append(out, Migration{Version: version, Name: name, SQL: string(body)})
	}

	slices.SortFunc(out, func(a, b Migration) int { return a.Version - b.Version })
	for i := 1; i < len(out); i++ {
		if out[i].Version == out[i-1].Version {
			return nil, apperrors.Configuration(apperrors.CodeBadMigration,
				fmt.Sprintf("duplicate migration version %d", out[i].Version), nil)
		}
	}
	return out, nil
}

// LatestVersion is the highest version shipped, 0 when there are none.
func (r *Runner) LatestVersion() (int, error) {
	all, err := r.Migrations()
	if err != nil || len(all) == 0 {
		return 0, err
	}
	return all[len(all)-1].Version, nil
}

// Pending lists migrations newer than the database's version.
func (r *Runner) Pending() ([]Migration, error) {
	current, err := r.CurrentVersion()
	if err != nil {
		return nil, err
	}
	all, err := r.Migrations()
	if err != nil {
		return nil, err
	}
	if n := len(all); n > 0 && current > all[n-1].Version {
		return nil, tooNew(current, all[n-1].Version)
	}
	i := slices.IndexFunc(all, func(m Migration) bool { return m.Version > current })
	if i < 0 {
		return nil, nil
	}
	return all[i:], nil
}

// Apply runs each pending migration in its own transaction together with the
// version bump, stopping at the first failure. It returns how many were
// applied.
func (r *Runner) Apply(logFn func(string)) (int, error) {
	if logFn == nil {
		logFn = func(string) {}
	}

	pending, err := r.Pending()
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		current, err := r.CurrentVersion()
		if err != nil {
			return 0, err
		}
		logFn(fmt.Sprintf("%s schema is up to date (version %d)", r.dialect, current))
		return 0, nil
	}

	logFn(fmt.Sprintf("Migrating %s schema to version %d (%d pending)", r.dialect, pending[len(pending)-1].Version, len(pending)))
	start := time.Now()
	for i, m := range pending {
		if err := r.apply(m); err != nil {
			return i, err
		}
		logFn("  applied " + m.String())
	}
	logFn(fmt.Sprintf("Applied %d migration(s) in %v", len(pending), time.Since(start).Round(time.Millisecond)))
	return len(pending), nil
}

func (r *Runner) apply(m Migration) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("migration %s: %w", m, err)
	}
	if _, err := tx.Exec(m.SQL); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("migration %s: %w", m, err)
	}
	if err := r.recordVersion(tx, m.Version); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("migration %s: %w", m, err)
	}
	return tx.Commit()
}

// Check fails unless the database is exactly at the latest version.
func (r *Runner) Check() error {
	current, err := r.CurrentVersion()
	if err != nil {
		return err
	}
	latest, err := r.LatestVersion()
	if err != nil {
		return err
	}
	switch {
	case current > latest:
		return tooNew(current, latest)
	case current < latest:
		return apperrors.Configuration(apperrors.CodeSchemaVersion,
			fmt.Sprintf("database schema version %d is behind %d; run 'seatwise migrate'", current, latest), nil)
	}
	return nil
}

func tooNew(current, latest int) error {
	return apperrors.Configuration(apperrors.CodeSchemaVersion,
		fmt.Sprintf("database schema version %d is newer than supported version %d; upgrade seatwise", current, latest), nil)
}
