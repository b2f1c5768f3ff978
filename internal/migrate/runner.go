// Package migrate applies the embedded schema migrations and seeds.
package migrate

import (
	"database/sql"
	"fmt"
	"io"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ANSI color codes for terminal output
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// Pattern: 001_name.sql
var filePattern = regexp.MustCompile(`^(\d{3})_(.+)\.sql$`)

// rollbacks drops the tables created by each schema version
var rollbacks = map[int]string{
	1: "DROP TABLE IF EXISTS tags CASCADE;",
	2: "DROP TABLE IF EXISTS campaigns CASCADE;",
	3: "DROP TABLE IF EXISTS customer_campaigns CASCADE; DROP TABLE IF EXISTS customers CASCADE;",
	4: "DROP TABLE IF EXISTS message_responses CASCADE; DROP TABLE IF EXISTS messages CASCADE;",
}

// Migration represents a database migration
type Migration struct {
	Version   int
	Name      string
	FilePath  string
	Applied   bool
	AppliedAt *time.Time
}

// Runner applies migrations read from fsys
type Runner struct {
	db   *sql.DB
	fsys fs.FS
	out  io.Writer
	err  io.Writer
}

// NewRunner creates a runner printing progress to out and failures to errOut
func NewRunner(db *sql.DB, fsys fs.FS, out, errOut io.Writer) *Runner {
	return &Runner{db: db, fsys: fsys, out: out, err: errOut}
}

// Init creates the schema_migrations tracking table
func (r *Runner) Init() error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`

	if _, err := r.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}
	return nil
}

// applied retrieves all applied migrations from database
func (r *Runner) applied() (map[int]Migration, error) {
	rows, err := r.db.Query(`SELECT version, name, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]Migration)
	for rows.Next() {
		var m Migration
		if err := rows.Scan(&m.Version, &m.Name, &m.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		m.Applied = true
		applied[m.Version] = m
	}
	return applied, rows.Err()
}

// Files lists the migration files of dir sorted by version
func (r *Runner) Files(dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(r.fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		matches := filePattern.FindStringSubmatch(entry.Name())
		if len(matches) != 3 {
			continue
		}
		version, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}
		migrations = append(migrations, Migration{
			Version:  version,
			Name:     matches[2],
			FilePath: path.Join(dir, entry.Name()),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// Up applies all pending migrations
func (r *Runner) Up() error {
	r.info("Running pending migrations...\n")

	applied, err := r.applied()
	if err != nil {
		return err
	}
	migrations, err := r.Files(".")
	if err != nil {
		return err
	}

	var pending []Migration
	for _, m := range migrations {
		if _, exists := applied[m.Version]; !exists {
			pending = append(pending, m)
		}
	}
	if len(pending) == 0 {
		r.success("✓ All migrations are up to date")
		return nil
	}

	for _, m := range pending {
		if err := r.apply(m); err != nil {
			return fmt.Errorf("failed to apply migration %03d_%s: %w", m.Version, m.Name, err)
		}
	}

	r.success(fmt.Sprintf("\n✓ Successfully applied %d migration(s)", len(pending)))
	return nil
}

// apply executes a single migration file in a transaction
func (r *Runner) apply(m Migration) error {
	r.info(fmt.Sprintf("Applying migration %03d_%s...", m.Version, m.Name))

	content, err := fs.ReadFile(r.fsys, m.FilePath)
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(string(content)); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version, name) VALUES ($1, $2)", m.Version, m.Name); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.success(fmt.Sprintf("  ✓ Migration %03d applied successfully", m.Version))
	return nil
}

// Down rolls back the last applied migration
func (r *Runner) Down() error {
	r.info("Rolling back last migration...\n")

	applied, err := r.applied()
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		r.warning("No migrations to rollback")
		return nil
	}

	var last int
	for version := range applied {
		if version > last {
			last = version
		}
	}

	m := applied[last]
	if err := r.rollback(m.Version); err != nil {
		return fmt.Errorf("failed to rollback migration %03d_%s: %w", m.Version, m.Name, err)
	}

	r.success(fmt.Sprintf("✓ Successfully rolled back migration %03d_%s", m.Version, m.Name))
	return nil
}

// rollback drops the tables of one schema version
func (r *Runner) rollback(version int) error {
	dropSQL, ok := rollbacks[version]
	if !ok {
		return fmt.Errorf("no rollback defined for migration version %d", version)
	}

	r.info(fmt.Sprintf("Rolling back migration %03d...", version))

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(dropSQL); err != nil {
		return fmt.Errorf("failed to execute rollback SQL: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM schema_migrations WHERE version = $1", version); err != nil {
		return fmt.Errorf("failed to remove migration record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.success(fmt.Sprintf("  ✓ Migration %03d rolled back", version))
	return nil
}

// Reset rolls back all migrations and reapplies them
func (r *Runner) Reset() error {
	r.warning("Resetting database (rollback all + reapply all)...\n")

	applied, err := r.applied()
	if err != nil {
		return err
	}

	versions := make([]int, 0, len(applied))
	for version := range applied {
		versions = append(versions, version)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(versions)))

	for _, version := range versions {
		if err := r.rollback(version); err != nil {
			return err
		}
	}
	if len(versions) > 0 {
		r.success("\n✓ All migrations rolled back\n")
	}

	r.info("Reapplying all migrations...")
	return r.Up()
}

// Status prints the current migration status
func (r *Runner) Status() error {
	r.info("Migration Status:\n")

	applied, err := r.applied()
	if err != nil {
		return err
	}
	migrations, err := r.Files(".")
	if err != nil {
		return err
	}

	fmt.Fprintf(r.out, "%s%-10s %-40s %-12s %-20s%s\n",
		colorBold, "VERSION", "NAME", "STATUS", "APPLIED AT", colorReset)
	fmt.Fprintln(r.out, strings.Repeat("-", 85))

	appliedCount := 0
	for _, m := range migrations {
		status, statusColor, appliedAt := "pending", colorYellow, "-"
		if a, exists := applied[m.Version]; exists {
			appliedCount++
			status, statusColor = "applied", colorGreen
			if a.AppliedAt != nil {
				appliedAt = a.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(r.out, "%-10s %-40s %s%-12s%s %-20s\n",
			fmt.Sprintf("%03d", m.Version), m.Name, statusColor, status, colorReset, appliedAt)
	}

	fmt.Fprintln(r.out, strings.Repeat("-", 85))
	r.info(fmt.Sprintf("\nSummary: %d/%d migrations applied", appliedCount, len(migrations)))
	return nil
}

// Seed executes the seed files. Seeds are idempotent and not tracked.
func (r *Runner) Seed() error {
	r.info("Running seed migrations...\n")

	seeds, err := r.Files("seed")
	if err != nil {
		return err
	}
	if len(seeds) == 0 {
		r.warning("No seed files found")
		return nil
	}

	for _, m := range seeds {
		r.info(fmt.Sprintf("Running seed %03d_%s...", m.Version, m.Name))

		content, err := fs.ReadFile(r.fsys, m.FilePath)
		if err != nil {
			return fmt.Errorf("failed to read seed file: %w", err)
		}
		if _, err := r.db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute seed SQL: %w", err)
		}

		r.success(fmt.Sprintf("  ✓ Seed %03d applied successfully", m.Version))
	}

	r.success(fmt.Sprintf("\n✓ Successfully ran %d seed migration(s)", len(seeds)))
	return nil
}

// Helper functions for colored output

func (r *Runner) success(msg string) {
	fmt.Fprintf(r.out, "%s%s%s\n", colorGreen, msg, colorReset)
}

// Error prints msg in red to the error writer
func (r *Runner) Error(msg string) {
	fmt.Fprintf(r.err, "%s%s%s\n", colorRed, msg, colorReset)
}

func (r *Runner) info(msg string) {
	fmt.Fprintf(r.out, "%s%s%s\n", colorCyan, msg, colorReset)
}

func (r *Runner) warning(msg string) {
	fmt.Fprintf(r.out, "%s%s%s\n", colorYellow, msg, colorReset)
}
