package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/bmeg/fhirizer/internal/config"
	"github.com/bmeg/fhirizer/internal/domain/sources"
	"github.com/bmeg/fhirizer/internal/platform/assembly"
	"github.com/bmeg/fhirizer/internal/platform/mapping"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return len(strings.Split(strings.TrimSpace(string(data)), "\n"))
}

func baseConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		InputPath:         filepath.Join(dir, "cases.ndjson"),
		OutputDir:         filepath.Join(dir, "out"),
		Source:            sources.KindCase,
		DiagnosticsLog:    filepath.Join(dir, "transformer.log"),
		IDNamespace:       "gdc.cancer.gov",
		PlaceholderPolicy: "allow",
		Workers:           2,
	}
}

// schemaFor declares every field src reads, mapping the given raw keys to
// their destinations and inventing source names for the rest.
func schemaFor(t *testing.T, path string, src sources.Source, known map[string]string) {
	t.Helper()
	byDest := map[string]string{}
	for raw, dest := range known {
		byDest[dest] = raw
	}
	var maps []mapping.Map
	seen := map[string]bool{}
	for i, f := range src.Fields() {
		if seen[f] {
			continue
		}
		seen[f] = true
		name, ok := byDest[f]
		if !ok {
			name = fmt.Sprintf("case.unused_%d", i)
		}
		maps = append(maps, mapping.Map{Source: mapping.Field{Name: name}, Destination: mapping.Field{Name: f}})
	}
	s, err := mapping.New("case", maps)
	if err != nil {
		t.Fatal(err)
	}
	data, err := mapping.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, path, string(data))
}

func TestTransform_EndToEnd(t *testing.T) {
	cfg := baseConfig(t)
	writeFile(t, cfg.InputPath, strings.Join([]string{
		`{"Patient.id": "C1", "demographic": {"Patient.gender": "male"}, "samples": [{"Specimen.id": "S1", "Specimen.sample_type": "Primary Tumor"}, {"Specimen.id": "S2"}]}`,
		`{"Patient.gender": "female"}`,
		`{"Patient.id": "C1", "demographic": {"Patient.gender": "male"}}`,
	}, "\n"))
	tables := filepath.Join(filepath.Dir(cfg.InputPath), "tables")
	if err := os.Mkdir(tables, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(tables, "sample_types.json"), `[{"value": "Primary Tumor", "sctid": "86049000"}]`)
	cfg.TablesDir = tables

	res, err := transform(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if res.Stats.Records != 3 || res.Stats.Skipped != 1 {
		t.Errorf("stats = %+v", res.Stats)
	}
	if n := countLines(t, filepath.Join(cfg.OutputDir, "Patient.ndjson")); n != 1 {
		t.Errorf("Patient.ndjson has %d lines, want 1", n)
	}
	if n := countLines(t, filepath.Join(cfg.OutputDir, "Specimen.ndjson")); n != 2 {
		t.Errorf("Specimen.ndjson has %d lines, want 2", n)
	}

	log, err := os.ReadFile(cfg.DiagnosticsLog)
	if err != nil {
		t.Fatalf("diagnostics log: %v", err)
	}
	if !strings.Contains(string(log), `"kind":"missing_identifier"`) {
		t.Errorf("diagnostics log lacks the skipped record:\n%s", log)
	}
}

func TestTransform_DiagnosticsLogAppends(t *testing.T) {
	cfg := baseConfig(t)
	writeFile(t, cfg.InputPath, `{"Patient.gender": "female"}`)
	for i := 0; i < 2; i++ {
		if _, err := transform(context.Background(), cfg, zerolog.Nop()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if n := countLines(t, cfg.DiagnosticsLog); n != 2 {
		t.Errorf("diagnostics log has %d lines, want 2", n)
	}
}

func TestTransform_StrictCollision(t *testing.T) {
	cfg := baseConfig(t)
	cfg.StrictCollisions = true
	writeFile(t, cfg.InputPath, `{"Patient.id": "C1", "Patient.gender": "male"}`+"\n"+`{"Patient.id": "C1", "Patient.gender": "female"}`)

	_, err := transform(context.Background(), cfg, zerolog.Nop())
	var ce *assembly.CollisionError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *assembly.CollisionError", err)
	}
	if _, statErr := os.Stat(cfg.OutputDir); !os.IsNotExist(statErr) {
		t.Error("nothing should be written when the run fails")
	}
}

func TestTransform_SchemaMissingFields(t *testing.T) {
	cfg := baseConfig(t)
	writeFile(t, cfg.InputPath, `{"Patient.id": "C1"}`)
	cfg.SchemaPath = filepath.Join(filepath.Dir(cfg.InputPath), "schema.yaml")
	writeFile(t, cfg.SchemaPath, "obj_key: case\nmappings:\n  - source: {name: case.case_id}\n    destination: {name: Patient.id}\n")

	_, err := transform(context.Background(), cfg, zerolog.Nop())
	var missing *mapping.MissingFieldsError
	if !errors.As(err, &missing) {
		t.Fatalf("err = %v, want *mapping.MissingFieldsError", err)
	}
	logged, readErr := os.ReadFile(cfg.DiagnosticsLog)
	if readErr != nil {
		t.Fatalf("read diagnostics log: %v", readErr)
	}
	if !strings.Contains(string(logged), `"kind":"schema_lookup_miss"`) {
		t.Errorf("diagnostics log lacks schema_lookup_miss:\n%s", logged)
	}
}

func TestTransform_ConvertKeys(t *testing.T) {
	cfg := baseConfig(t)
	cfg.ConvertKeys = true
	cfg.SchemaPath = filepath.Join(filepath.Dir(cfg.InputPath), "schema.yaml")
	src, _ := sources.Lookup(sources.KindCase)
	schemaFor(t, cfg.SchemaPath, src, map[string]string{
		"case.case_id":            "Patient.id",
		"case.demographic.gender": "Patient.gender",
	})
	writeFile(t, cfg.InputPath, `{"case_id": "C1", "demographic": {"gender": "female"}}`)

	if _, err := transform(context.Background(), cfg, zerolog.Nop()); err != nil {
		t.Fatalf("transform: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(cfg.OutputDir, "Patient.ndjson"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"gender":"female"`) {
		t.Errorf("converted record lost the gender: %s", data)
	}
}

func TestTransform_UnknownSource(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Source = "htan"
	if _, err := transform(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Error("expected error for unknown source")
	}
}

func TestFindMap(t *testing.T) {
	s, err := mapping.New("case", []mapping.Map{{
		Source:      mapping.Field{Name: "case.demographic.gender", Description: "Gender of the case"},
		Destination: mapping.Field{Name: "Patient.gender"},
	}})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := findMap(&buf, s, "", "Patient.gender"); err != nil {
		t.Fatalf("findMap: %v", err)
	}
	if !strings.Contains(buf.String(), "case.demographic.gender") {
		t.Errorf("output = %s", buf.String())
	}
	if err := findMap(&buf, s, "case.nope", ""); err == nil {
		t.Error("expected error for unknown source field")
	}
	if err := findMap(&buf, s, "", ""); err == nil {
		t.Error("expected error without a field")
	}
}

func TestCheckSchema(t *testing.T) {
	s, err := mapping.New("case", []mapping.Map{{
		Source:      mapping.Field{Name: "case.case_id"},
		Destination: mapping.Field{Name: "Patient.id"},
	}})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	err = checkSchema(&buf, s, sources.KindCase)
	var missing *mapping.MissingFieldsError
	if !errors.As(err, &missing) {
		t.Fatalf("err = %v, want *mapping.MissingFieldsError", err)
	}
	if !strings.Contains(buf.String(), "Patient.gender") {
		t.Errorf("missing fields not listed: %s", buf.String())
	}
	if strings.Contains(buf.String(), "Patient.id\n") {
		t.Errorf("declared field listed as missing: %s", buf.String())
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l1 := newLogger(&buf, false)
	l1.Info().Msg("hello")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("expected JSON output, got %q", buf.String())
	}
	buf.Reset()
	l2 := newLogger(&buf, false)
	l2.Debug().Msg("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug output without verbose: %q", buf.String())
	}
	l3 := newLogger(&buf, true)
	l3.Debug().Msg("hello")
	if buf.Len() == 0 || strings.HasPrefix(buf.String(), "{") {
		t.Errorf("expected console output, got %q", buf.String())
	}
}
