// Package build holds what every entity builder shares: the injected lookup
// tables, schema and minter, the record accessors and the numeric coercion
// rules.
package build

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bmeg/fhirizer/internal/platform/diagnostics"
	"github.com/bmeg/fhirizer/internal/platform/fhir"
	"github.com/bmeg/fhirizer/internal/platform/identity"
	"github.com/bmeg/fhirizer/internal/platform/mapping"
	"github.com/bmeg/fhirizer/internal/platform/terminology"
)

// UCUM unit codes used for coerced quantities.
const (
	UCUMSystem = "http://unitsofmeasure.org"
	UnitDays   = "d"
	UnitYears  = "a"
)

// Func builds the resources for one source record. It returns an error
// only when an identifier the minter needs is missing.
type Func func(bc *Context, rec Record) ([]fhir.Entity, error)

// Systems turns identifier names ("case_id", "sample_id") into identifier
// system URIs under a source base.
type Systems struct {
	Base  string
	Names map[string]string
}

// GDC, ICGC and Cellosaurus identifier bases.
var (
	GDC         = Systems{Base: "https://gdc.cancer.gov"}
	ICGC        = Systems{Base: "https://dcc.icgc.org"}
	Cellosaurus = Systems{Base: "https://www.cellosaurus.org"}
)

// For returns the system for an identifier name. Names overrides the
// default "<Base>/<name>" form.
func (s Systems) For(name string) string {
	if uri, ok := s.Names[name]; ok {
		return uri
	}
	return strings.TrimSuffix(s.Base, "/") + "/" + name
}

// IDNames names the identifier systems of one entity kind, e.g.
// {"case_id", "case_submitter_id"}.
type IDNames struct {
	Official  string
	Secondary string
}

// Context is constructed once per run and handed to every builder call.
// Everything but Diag is read-only; the assembler gives each record a copy
// with its own collector.
type Context struct {
	Tables    *terminology.Tables
	Schema    *mapping.Schema
	Minter    *identity.Minter
	Policy    terminology.Policy
	Systems   Systems
	ProjectID string
	Diag      *diagnostics.Collector
}

// NewContext returns a Context with GDC systems and the default minter.
func NewContext(tables *terminology.Tables, minter *identity.Minter) *Context {
	if tables == nil {
		tables = terminology.NewTables()
	}
	if minter == nil {
		minter = identity.NewMinter(identity.DefaultDomain)
	}
	return &Context{
		Tables:  tables,
		Minter:  minter,
		Policy:  terminology.PolicyAllow,
		Systems: GDC,
		Diag:    diagnostics.NewCollector(),
	}
}

// WithDiagnostics returns a shallow copy reporting to d.
func (bc *Context) WithDiagnostics(d *diagnostics.Collector) *Context {
	c := *bc
	c.Diag = d
	return &c
}

// WithProject returns a copy minting ids under project. An empty project
// keeps the configured one.
func (bc *Context) WithProject(project string) *Context {
	if project == "" || project == bc.ProjectID {
		return bc
	}
	c := *bc
	c.ProjectID = project
	return &c
}

// WithSystems returns a copy using s for identifier systems.
func (bc *Context) WithSystems(s Systems) *Context {
	c := *bc
	c.Systems = s
	return &c
}

// Resolver returns a terminology resolver reporting to this context.
func (bc *Context) Resolver() terminology.Resolver {
	return terminology.Resolver{Tables: bc.Tables, Policy: bc.Policy, Diag: bc.Diag}
}

// Official builds an official identifier for the named system.
func (bc *Context) Official(name, value string) fhir.Identifier {
	return identity.Official(bc.Systems.For(name), value)
}

// Secondary builds a secondary identifier for the named system.
func (bc *Context) Secondary(name, value string) fhir.Identifier {
	return identity.Secondary(bc.Systems.For(name), value)
}

// Identify mints the id of e from key and records key followed by extra
// as the resource identifiers. Extra identifiers with empty values are
// dropped; they never take part in the id.
func (bc *Context) Identify(e fhir.Entity, key fhir.Identifier, extra ...fhir.Identifier) error {
	h := e.Header()
	id, err := bc.Minter.Mint(key, h.ResourceType, bc.ProjectID)
	if err != nil {
		return err
	}
	h.ID = id
	h.Identifier = append(h.Identifier[:0], key)
	for _, x := range extra {
		if x.Value != "" {
			h.Identifier = append(h.Identifier, x)
		}
	}
	return nil
}

// IdentifyAll mints the id of e from every identifier in order.
func (bc *Context) IdentifyAll(e fhir.Entity, ids ...fhir.Identifier) error {
	h := e.Header()
	id, err := bc.Minter.MintID(ids, h.ResourceType, bc.ProjectID)
	if err != nil {
		return err
	}
	h.ID = id
	h.Identifier = append([]fhir.Identifier(nil), ids...)
	return nil
}

// Derived mints the id of e from the owner's key plus a role, for resources
// such as surveys that have no identifier of their own.
func (bc *Context) Derived(e fhir.Entity, owner fhir.Identifier, role string) error {
	return bc.IdentifyAll(e, owner, bc.Secondary("derived", role))
}

// RefFor mints the id a resource of resourceType with official identifier
// key would get, for references to resources built elsewhere.
func (bc *Context) RefFor(resourceType string, key fhir.Identifier) (fhir.Reference, error) {
	id, err := bc.Minter.Mint(key, resourceType, bc.ProjectID)
	if err != nil {
		return fhir.Reference{}, err
	}
	return fhir.RefTo(resourceType, id), nil
}

// CheckFields returns a *mapping.MissingFieldsError when a schema is
// configured and does not declare every field. Each undeclared field is
// also recorded as a schema_lookup_miss.
func (bc *Context) CheckFields(fields []string) error {
	if bc.Schema == nil {
		return nil
	}
	err := bc.Schema.Require(fields...)
	var missing *mapping.MissingFieldsError
	if errors.As(err, &missing) {
		for _, f := range missing.Fields {
			bc.Diag.Error(diagnostics.KindSchemaLookupMiss, f, "", "", "destination field not declared in schema")
		}
	}
	return err
}

// Integer coerces the value at key to an integer. Non-numeric values are
// logged against subject and reported as absent. Fractions are truncated.
func (bc *Context) Integer(rec Record, key, subject string) (int64, bool) {
	v, ok := rec.Value(key)
	if !ok {
		return 0, false
	}
	n, err := toInt(v)
	if err != nil {
		bc.Diag.Warn(diagnostics.KindTypeCoercion, key, subject, fmt.Sprint(v), err.Error())
		return 0, false
	}
	return n, true
}

// Decimal coerces the value at key to a float.
func (bc *Context) Decimal(rec Record, key, subject string) (float64, bool) {
	v, ok := rec.Value(key)
	if !ok {
		return 0, false
	}
	f, err := toFloat(v)
	if err != nil {
		bc.Diag.Warn(diagnostics.KindTypeCoercion, key, subject, fmt.Sprint(v), err.Error())
		return 0, false
	}
	return f, true
}

// Days returns the value at key as an integer quantity of days.
func (bc *Context) Days(rec Record, key, subject string) *fhir.Quantity {
	return bc.quantity(rec, key, subject, UnitDays, "days")
}

// Years returns the value at key as an integer quantity of years.
func (bc *Context) Years(rec Record, key, subject string) *fhir.Quantity {
	return bc.quantity(rec, key, subject, UnitYears, "years")
}

func (bc *Context) quantity(rec Record, key, subject, code, unit string) *fhir.Quantity {
	n, ok := bc.Integer(rec, key, subject)
	if !ok {
		return nil
	}
	return &fhir.Quantity{Value: float64(n), Unit: unit, System: UCUMSystem, Code: code}
}

func toInt(v any) (int64, error) {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, nil
		}
		f, err := t.Float64()
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", t.String())
		}
		return truncate(f)
	case float64:
		return truncate(t)
	case int:
		return int64(t), nil
	case int64:
		return t, nil
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", t)
		}
		return truncate(f)
	}
	return 0, fmt.Errorf("expected a number, got %T", v)
}

func truncate(f float64) (int64, error) {
	if err := finite(f); err != nil {
		return 0, err
	}
	if f >= 1<<63 || f < -(1<<63) {
		return 0, fmt.Errorf("out of integer range: %v", f)
	}
	return int64(math.Trunc(f)), nil
}

func finite(f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("not a finite number: %v", f)
	}
	return nil
}

// toFloat rejects NaN and infinities, which JSON cannot encode.
func toFloat(v any) (float64, error) {
	f, err := parseFloat(v)
	if err != nil {
		return 0, err
	}
	if err := finite(f); err != nil {
		return 0, err
	}
	return f, nil
}

func parseFloat(v any) (float64, error) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", t.String())
		}
		return f, nil
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", t)
		}
		return f, nil
	}
	return 0, fmt.Errorf("expected a number, got %T", v)
}
