package sink

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/bmeg/fhirizer/internal/platform/assembly"
)

// queryable is satisfied by *pgxpool.Pool, *pgxpool.Conn and pgx.Tx.
type queryable interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

const upsertResource = `
	INSERT INTO fhir_resource (resource_type, id, content)
	VALUES ($1, $2, $3)
	ON CONFLICT (resource_type, id)
	DO UPDATE SET content = EXCLUDED.content, loaded_at = NOW()`

// PGSink upserts resources into the fhir_resource table. Loading the same
// output twice leaves one row per resource.
type PGSink struct {
	db     queryable
	logger zerolog.Logger
}

// NewPGSink wraps a pool, connection or transaction.
func NewPGSink(db queryable, logger zerolog.Logger) *PGSink {
	return &PGSink{db: db, logger: logger}
}

func (s *PGSink) Write(ctx context.Context, c *assembly.Collection) (map[string]int, error) {
	rows, err := Rows(c)
	if err != nil {
		return nil, err
	}
	return s.WriteRows(ctx, rows)
}

// WriteRows upserts rows in order and stops at the first failure.
func (s *PGSink) WriteRows(ctx context.Context, rows []Row) (map[string]int, error) {
	counts := map[string]int{}
	for _, r := range rows {
		if _, err := s.db.Exec(ctx, upsertResource, r.ResourceType, r.ID, string(r.Content)); err != nil {
			return counts, fmt.Errorf("upsert %s/%s: %w", r.ResourceType, r.ID, err)
		}
		counts[r.ResourceType]++
	}
	s.logger.Info().Int("rows", len(rows)).Msg("resources loaded")
	return counts, nil
}

// Counts returns the number of stored rows per resource type.
func (s *PGSink) Counts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.Query(ctx, `SELECT resource_type, COUNT(*) FROM fhir_resource GROUP BY resource_type`)
	if err != nil {
		return nil, fmt.Errorf("count resources: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out[t] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return out, nil
}
