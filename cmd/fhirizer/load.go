package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bmeg/fhirizer/internal/config"
	"github.com/bmeg/fhirizer/internal/platform/db"
	"github.com/bmeg/fhirizer/internal/platform/sink"
)

func loadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Upsert a transform output directory into PostgreSQL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.ValidateLoad(); err != nil {
				return err
			}
			logger := newLogger(os.Stderr, cfg.Verbose)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return load(ctx, cfg, logger)
		},
	}
	cmd.Flags().StringP("output", "o", "", "Transform output directory to load")
	cmd.Flags().String("database-url", "", "PostgreSQL connection string")
	cmd.Flags().String("db-schema", "", "Target schema, created and migrated when missing")
	return cmd
}

// load reads every resource first so a malformed file aborts before the
// database is touched, then upserts them in one transaction.
func load(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	var rows []sink.Row
	if err := sink.ReadDir(cfg.OutputDir, func(r sink.Row) error {
		rows = append(rows, r)
		return nil
	}); err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("no resources found in %s", cfg.OutputDir)
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBSchema, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	stats, err := db.Check(ctx, pool)
	if err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	logger.Info().Object("pool", stats).Msg("connected to database")

	applied, err := db.CreateSchema(ctx, pool, cfg.DBSchema)
	if err != nil {
		return err
	}
	if applied > 0 {
		logger.Info().Int("migrations", applied).Str("schema", cfg.DBSchema).Msg("schema migrated")
	}
	if cfg.Verbose {
		m, err := db.NewMigrator(pool, cfg.DBSchema, db.Migrations())
		if err != nil {
			return err
		}
		statuses, err := m.Status(ctx)
		if err != nil {
			return err
		}
		for _, st := range statuses {
			logger.Debug().Int("version", st.Version).Str("name", st.Name).Bool("applied", st.Applied).Msg("migration")
		}
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	pg := sink.NewPGSink(tx, logger)
	counts, err := pg.WriteRows(ctx, rows)
	if err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	stored, err := sink.NewPGSink(pool, logger).Counts(ctx)
	if err != nil {
		return err
	}
	logger.Info().Interface("loaded", counts).Interface("stored", stored).Msg("load complete")
	return nil
}
