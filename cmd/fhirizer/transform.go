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
	"github.com/bmeg/fhirizer/internal/domain/build"
	"github.com/bmeg/fhirizer/internal/domain/sources"
	"github.com/bmeg/fhirizer/internal/platform/assembly"
	"github.com/bmeg/fhirizer/internal/platform/diagnostics"
	"github.com/bmeg/fhirizer/internal/platform/identity"
	"github.com/bmeg/fhirizer/internal/platform/mapping"
	"github.com/bmeg/fhirizer/internal/platform/sink"
	"github.com/bmeg/fhirizer/internal/platform/terminology"
)

func transformCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Transform NDJSON source records into one NDJSON file per resource type",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.ValidateTransform(); err != nil {
				return err
			}
			logger := newLogger(os.Stderr, cfg.Verbose)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			_, err = transform(ctx, cfg, logger)
			return err
		},
	}
	addSourceFlag(cmd)
	cmd.Flags().StringP("input", "i", "", "NDJSON file of source records")
	cmd.Flags().StringP("output", "o", "", "Directory the <ResourceType>.ndjson files are written to")
	cmd.Flags().String("tables", "", "Directory of ontology lookup tables (<name>.json)")
	cmd.Flags().String("schema", "", "Field mapping schema (YAML or JSON)")
	cmd.Flags().Bool("convert-keys", false, "Rewrite raw source keys to destination names through the schema")
	cmd.Flags().String("diagnostics-log", "", "Append-only diagnostics log")
	cmd.Flags().String("id-namespace", "", "Domain seeding the identifier namespace, or the namespace UUID itself")
	cmd.Flags().String("project", "", "Project id for records that name none")
	cmd.Flags().String("placeholder-policy", "", "allow or strict handling of unresolved codings")
	cmd.Flags().Bool("strict", false, "Fail when two resources share an id but not content")
	cmd.Flags().Int("workers", 0, "Records built concurrently")
	return cmd
}

// transform runs one source file through its builder and writes the
// result. Diagnostics are appended to the diagnostics log even when the
// run fails on an id collision.
func transform(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*assembly.Result, error) {
	src, err := sources.Lookup(cfg.Source)
	if err != nil {
		return nil, err
	}

	bc, err := newBuildContext(cfg, src, logger)
	if err != nil {
		if bc != nil {
			if werr := writeDiagnostics(cfg.DiagnosticsLog, bc.Diag); werr != nil {
				logger.Error().Err(werr).Msg("write diagnostics")
			}
		}
		return nil, err
	}

	records, err := readRecords(cfg.InputPath, bc.Schema, cfg.ConvertKeys)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("source", src.Name).Int("records", len(records)).Msg("records read")

	asm := assembly.New(assembly.Options{Workers: cfg.Workers, Strict: cfg.StrictCollisions, Logger: logger})
	res, runErr := asm.Run(ctx, bc, records, src.Build)
	if res != nil {
		if err := writeDiagnostics(cfg.DiagnosticsLog, res.Diagnostics); err != nil {
			return res, err
		}
		if n := res.Diagnostics.Len(); n > 0 {
			logger.Warn().Int("diagnostics", n).Str("log", cfg.DiagnosticsLog).
				Interface("kinds", res.Diagnostics.Summary()).Msg("transform produced diagnostics")
		}
	}
	if runErr != nil {
		return res, runErr
	}

	out, err := sink.NewDirSink(cfg.OutputDir)
	if err != nil {
		return res, err
	}
	counts, err := out.Write(ctx, res.Collection)
	if err != nil {
		return res, err
	}
	logger.Info().Interface("resources", counts).Str("output", cfg.OutputDir).Msg("transform complete")
	return res, nil
}

// newBuildContext loads the tables and schema and checks that the schema
// declares every field src reads.
func newBuildContext(cfg *config.Config, src sources.Source, logger zerolog.Logger) (*build.Context, error) {
	tables := terminology.NewTables()
	if cfg.TablesDir != "" {
		loaded, missing, err := terminology.LoadTables(cfg.TablesDir)
		if err != nil {
			return nil, err
		}
		for _, name := range missing {
			logger.Warn().Str("table", name).Msg("lookup table not found, every lookup will miss")
		}
		tables = loaded
	}

	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}

	bc := build.NewContext(tables, identity.MinterFor(cfg.IDNamespace))
	bc.Policy = policy
	bc.ProjectID = cfg.ProjectID
	bc.Systems = src.Systems

	if cfg.SchemaPath != "" {
		schema, err := mapping.LoadFile(cfg.SchemaPath)
		if err != nil {
			return nil, err
		}
		bc.Schema = schema
		if err := bc.CheckFields(src.Fields()); err != nil {
			return bc, fmt.Errorf("schema %s: %w", cfg.SchemaPath, err)
		}
	}
	return bc, nil
}

func readRecords(path string, schema *mapping.Schema, convert bool) ([]build.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	records, err := build.DecodeRecords(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if convert && schema != nil {
		for i, rec := range records {
			records[i] = schema.ConvertKeys(rec)
		}
	}
	return records, nil
}

func writeDiagnostics(path string, d *diagnostics.Collector) error {
	if path == "" || d.Len() == 0 {
		return nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open diagnostics log: %w", err)
	}
	d.Emit(diagnostics.NewLogger(f))
	return f.Close()
}
