package db

import (
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the SQL migrations that create the sink tables.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Migration is one numbered SQL file, e.g. "001_fhir_resource.sql".
type Migration struct {
	Version  int
	Name     string
	SQL      string
	Checksum string
}

// MigrationStatus reports whether a known migration is recorded in the
// target schema. Drifted is set when the recorded checksum no longer
// matches the file.
type MigrationStatus struct {
	Migration
	Applied   bool
	AppliedAt *time.Time
	Drifted   bool
}

// ParseMigrations reads the top level .sql files of fsys ordered by their
// numeric prefix. Files without one are ignored; two files sharing a
// version are an error.
func ParseMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	var out []Migration
	seen := map[int]string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || path.Ext(name) != ".sql" {
			continue
		}
		prefix, _, ok := strings.Cut(name, "_")
		if !ok {
			continue
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			continue
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("migrations %s and %s share version %d", prev, name, version)
		}
		seen[version] = name

		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		sum := sha256.Sum256(data)
		out = append(out, Migration{
			Version:  version,
			Name:     name,
			SQL:      string(data),
			Checksum: hex.EncodeToString(sum[:]),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Migrator applies a fixed migration set to one schema. Applied versions
// are tracked in <schema>.fhirizer_migrations.
type Migrator struct {
	pool       *pgxpool.Pool
	schema     string
	migrations []Migration
}

// NewMigrator parses fsys and binds the result to schema.
func NewMigrator(pool *pgxpool.Pool, schema string, fsys fs.FS) (*Migrator, error) {
	if err := ValidateSchema(schema); err != nil {
		return nil, err
	}
	migrations, err := ParseMigrations(fsys)
	if err != nil {
		return nil, err
	}
	return &Migrator{pool: pool, schema: schema, migrations: migrations}, nil
}

// Migrations returns the parsed migration set.
func (m *Migrator) Migrations() []Migration { return m.migrations }

func (m *Migrator) table() string { return m.schema + ".fhirizer_migrations" }

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.pool.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    version    INTEGER PRIMARY KEY,
    name       TEXT NOT NULL,
    checksum   TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, m.table()))
	if err != nil {
		return fmt.Errorf("create %s: %w", m.table(), err)
	}
	return nil
}

// Status lists every known migration with what the schema has recorded for
// it.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}

	rows, err := m.pool.Query(ctx, fmt.Sprintf(`SELECT version, checksum, applied_at FROM %s`, m.table()))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", m.table(), err)
	}
	defer rows.Close()

	type record struct {
		checksum  string
		appliedAt time.Time
	}
	recorded := map[int]record{}
	for rows.Next() {
		var (
			v   int
			rec record
		)
		if err := rows.Scan(&v, &rec.checksum, &rec.appliedAt); err != nil {
			return nil, fmt.Errorf("scan %s: %w", m.table(), err)
		}
		recorded[v] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", m.table(), err)
	}

	out := make([]MigrationStatus, 0, len(m.migrations))
	for _, mig := range m.migrations {
		st := MigrationStatus{Migration: mig}
		if rec, ok := recorded[mig.Version]; ok {
			at := rec.appliedAt
			st.Applied = true
			st.AppliedAt = &at
			st.Drifted = rec.checksum != mig.Checksum
		}
		out = append(out, st)
	}
	return out, nil
}

// Pending returns the migrations Up would apply. A drifted migration is an
// error: the schema was built from SQL this binary no longer carries.
func Pending(statuses []MigrationStatus) ([]Migration, error) {
	var out []Migration
	for _, st := range statuses {
		if st.Drifted {
			return nil, fmt.Errorf("migration %s changed after it was applied", st.Name)
		}
		if !st.Applied {
			out = append(out, st.Migration)
		}
	}
	return out, nil
}

// Up applies every pending migration in version order, each in its own
// transaction, and returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	statuses, err := m.Status(ctx)
	if err != nil {
		return 0, err
	}
	pending, err := Pending(statuses)
	if err != nil {
		return 0, err
	}
	for i, mig := range pending {
		if err := m.apply(ctx, mig); err != nil {
			return i, fmt.Errorf("apply migration %s: %w", mig.Name, err)
		}
	}
	return len(pending), nil
}

func (m *Migrator) apply(ctx context.Context, mig Migration) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SET LOCAL search_path TO "+SearchPath(m.schema)); err != nil {
		return fmt.Errorf("set search_path: %w", err)
	}
	if _, err := tx.Exec(ctx, mig.SQL); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		fmt.Sprintf("INSERT INTO %s (version, name, checksum) VALUES ($1, $2, $3)", m.table()),
		mig.Version, mig.Name, mig.Checksum,
	); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit(ctx)
}
