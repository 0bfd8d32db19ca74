package db

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schemaPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidateSchema rejects schema names that cannot be interpolated into SQL
// unquoted.
func ValidateSchema(schema string) error {
	if !schemaPattern.MatchString(schema) {
		return fmt.Errorf("invalid schema name %q", schema)
	}
	return nil
}

// SearchPath is the search_path used for schema.
func SearchPath(schema string) string {
	return fmt.Sprintf("%s, public", schema)
}

// CreateSchema creates schema if needed and applies every pending
// migration to it.
func CreateSchema(ctx context.Context, pool *pgxpool.Pool, schema string) (int, error) {
	if err := ValidateSchema(schema); err != nil {
		return 0, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	_, err = conn.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema))
	conn.Release()
	if err != nil {
		return 0, fmt.Errorf("create schema %s: %w", schema, err)
	}

	m, err := NewMigrator(pool, schema, Migrations())
	if err != nil {
		return 0, err
	}
	n, err := m.Up(ctx)
	if err != nil {
		return n, fmt.Errorf("run migrations for %s: %w", schema, err)
	}
	return n, nil
}
