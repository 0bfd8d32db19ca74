// Package assembly runs a builder over every source record, accumulates the
// emitted resources per type and deduplicates them by id.
package assembly

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/bmeg/fhirizer/internal/domain/build"
	"github.com/bmeg/fhirizer/internal/platform/diagnostics"
	"github.com/bmeg/fhirizer/internal/platform/fhir"
	"github.com/bmeg/fhirizer/internal/platform/identity"
)

// Options configures an Assembler.
type Options struct {
	// Workers is the number of records built concurrently; values below 1
	// mean 1.
	Workers int
	// Strict makes Run fail with a *CollisionError when two resources share
	// an id but not content.
	Strict bool
	Logger zerolog.Logger
}

// Stats summarizes a run.
type Stats struct {
	Records    int
	Skipped    int
	Resources  int
	Collisions int
}

// Result is the outcome of Run. Diagnostics holds every per-record event
// in input order.
type Result struct {
	Collection  *Collection
	Diagnostics *diagnostics.Collector
	Stats       Stats
}

// Assembler maps builders over records.
type Assembler struct {
	opts Options
}

// New creates an Assembler.
func New(opts Options) *Assembler {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Assembler{opts: opts}
}

type slot struct {
	entities []fhir.Entity
	diag     *diagnostics.Collector
	err      error
}

// Run builds every record with fn. A record whose builder fails is skipped
// and logged; the run continues. Outputs are merged in input order whatever
// the worker count, so results are stable across runs. Cancelling ctx stops
// dispatching records and returns ctx.Err().
func (a *Assembler) Run(ctx context.Context, bc *build.Context, records []build.Record, fn build.Func) (*Result, error) {
	log := a.opts.Logger
	slots := make([]slot, len(records))

	var wg sync.WaitGroup
	sem := make(chan struct{}, a.opts.Workers)

dispatch:
	for i, rec := range records {
		select {
		case <-ctx.Done():
			break dispatch
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(idx int, r build.Record) {
			defer wg.Done()
			defer func() { <-sem }()

			d := diagnostics.NewCollector()
			es, err := fn(bc.WithDiagnostics(d), r)
			slots[idx] = slot{entities: es, diag: d, err: err}
		}(i, rec)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	all := NewCollection()
	diag := diagnostics.NewCollector()
	stats := Stats{Records: len(records)}
	for i, s := range slots {
		if s.err != nil {
			stats.Skipped++
			subject := fmt.Sprintf("record %d", i+1)
			kind := diagnostics.KindRecordSkipped
			if errors.Is(s.err, identity.ErrMissingIdentifier) {
				kind = diagnostics.KindMissingIdentifier
			}
			diag.Merge(s.diag)
			diag.Error(kind, "", subject, "", s.err.Error())
			log.Warn().Err(s.err).Int("record", i+1).Msg("record skipped")
			continue
		}
		diag.Merge(s.diag)
		all.Add(s.entities...)
	}

	deduped, collisions, err := all.Dedup()
	if err != nil {
		return nil, err
	}
	for _, c := range collisions {
		diag.Error(diagnostics.KindIDCollision, c.ResourceType, c.ID, "", "id collision with divergent content")
		log.Error().Str("resource_type", c.ResourceType).Str("id", c.ID).Msg("id collision with divergent content")
	}
	stats.Resources = deduped.Len()
	stats.Collisions = len(collisions)

	log.Info().
		Int("records", stats.Records).
		Int("skipped", stats.Skipped).
		Int("resources", stats.Resources).
		Int("diagnostics", diag.Len()).
		Msg("assembly complete")

	res := &Result{Collection: deduped, Diagnostics: diag, Stats: stats}
	if a.opts.Strict && len(collisions) > 0 {
		return res, &CollisionError{Collisions: collisions}
	}
	return res, nil
}
