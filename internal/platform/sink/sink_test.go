package sink

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/bmeg/fhirizer/internal/platform/assembly"
	"github.com/bmeg/fhirizer/internal/platform/fhir"
)

func sampleCollection() *assembly.Collection {
	c := assembly.NewCollection()
	p := fhir.NewPatient("p1")
	p.Gender = "female"
	c.Add(fhir.NewSpecimen("s1"), p, fhir.NewSpecimen("s2"))
	return c
}

func TestDirSink_WritesOneFilePerType(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	s, err := NewDirSink(dir)
	if err != nil {
		t.Fatalf("NewDirSink: %v", err)
	}
	counts, err := s.Write(context.Background(), sampleCollection())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if counts[fhir.TypePatient] != 1 || counts[fhir.TypeSpecimen] != 2 {
		t.Errorf("counts = %v", counts)
	}

	data, err := os.ReadFile(s.Path(fhir.TypeSpecimen))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], `"id":"s1"`) {
		t.Errorf("Specimen.ndjson = %q", data)
	}
}

func TestDirSink_RoundTripThroughReadDir(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewDirSink(dir)
	if _, err := s.Write(context.Background(), sampleCollection()); err != nil {
		t.Fatal(err)
	}

	var got []string
	err := ReadDir(dir, func(r Row) error {
		got = append(got, r.ResourceType+"/"+r.ID)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	want := "Patient/p1,Specimen/s1,Specimen/s2"
	if strings.Join(got, ",") != want {
		t.Errorf("rows = %v, want %s", got, want)
	}
}

func TestReadDir_RejectsMisfiledResource(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Patient.ndjson"),
		[]byte(`{"resourceType":"Specimen","id":"s1"}`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := ReadDir(dir, func(Row) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "Specimen resource in Patient file") {
		t.Errorf("err = %v", err)
	}
}

func TestParseRow(t *testing.T) {
	if _, err := ParseRow([]byte(`{"resourceType":"Patient"}`)); err == nil {
		t.Error("expected error for missing id")
	}
	if _, err := ParseRow([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid json")
	}
	r, err := ParseRow([]byte(`{"resourceType":"Patient","id":"p1"}`))
	if err != nil || r.ResourceType != "Patient" || r.ID != "p1" {
		t.Errorf("ParseRow = %+v, %v", r, err)
	}
}

type execCall struct {
	sql  string
	args []interface{}
}

type fakeDB struct {
	calls  []execCall
	failAt int
	counts map[string]int
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	if f.failAt > 0 && len(f.calls) == f.failAt {
		return pgconn.CommandTag{}, errors.New("connection reset")
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeDB) Query(_ context.Context, _ string, _ ...interface{}) (pgx.Rows, error) {
	var rows [][]interface{}
	for t, n := range f.counts {
		rows = append(rows, []interface{}{t, n})
	}
	return &fakeRows{rows: rows, idx: -1}, nil
}

type fakeRows struct {
	pgx.Rows
	rows [][]interface{}
	idx  int
}

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx < len(r.rows)
}

func (r *fakeRows) Scan(dest ...interface{}) error {
	row := r.rows[r.idx]
	*dest[0].(*string) = row[0].(string)
	*dest[1].(*int) = row[1].(int)
	return nil
}

func (r *fakeRows) Close()     {}
func (r *fakeRows) Err() error { return nil }

func TestPGSink_UpsertsEveryResource(t *testing.T) {
	db := &fakeDB{}
	s := NewPGSink(db, zerolog.Nop())

	counts, err := s.Write(context.Background(), sampleCollection())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(db.calls) != 3 {
		t.Fatalf("expected 3 upserts, got %d", len(db.calls))
	}
	if counts[fhir.TypeSpecimen] != 2 {
		t.Errorf("counts = %v", counts)
	}
	first := db.calls[0]
	if !strings.Contains(first.sql, "ON CONFLICT (resource_type, id)") {
		t.Errorf("not an upsert: %s", first.sql)
	}
	if first.args[0] != fhir.TypePatient || first.args[1] != "p1" {
		t.Errorf("args = %v", first.args[:2])
	}
	if content, _ := first.args[2].(string); !strings.Contains(content, `"gender":"female"`) {
		t.Errorf("content = %v", first.args[2])
	}
}

func TestPGSink_StopsAtFirstFailure(t *testing.T) {
	db := &fakeDB{failAt: 2}
	counts, err := NewPGSink(db, zerolog.Nop()).Write(context.Background(), sampleCollection())
	if err == nil || !strings.Contains(err.Error(), "upsert Specimen/s1") {
		t.Fatalf("err = %v", err)
	}
	if len(db.calls) != 2 || counts[fhir.TypePatient] != 1 {
		t.Errorf("calls = %d, counts = %v", len(db.calls), counts)
	}
}

func TestPGSink_Counts(t *testing.T) {
	db := &fakeDB{counts: map[string]int{"Patient": 3, "Specimen": 7}}
	got, err := NewPGSink(db, zerolog.Nop()).Counts(context.Background())
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if got["Patient"] != 3 || got["Specimen"] != 7 {
		t.Errorf("counts = %v", got)
	}
}
