package terminology

import (
	"fmt"

	"github.com/bmeg/fhirizer/internal/platform/diagnostics"
	"github.com/bmeg/fhirizer/internal/platform/fhir"
)

// Policy controls what happens to values no table can resolve.
type Policy string

const (
	// PolicyAllow substitutes the placeholder coding.
	PolicyAllow Policy = "allow"
	// PolicyStrict omits the concept entirely.
	PolicyStrict Policy = "strict"
)

// ParsePolicy validates a policy name; empty means PolicyAllow.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyAllow:
		return PolicyAllow, nil
	case PolicyStrict:
		return PolicyStrict, nil
	}
	return "", fmt.Errorf("unknown placeholder policy %q (want allow or strict)", s)
}

// Resolver turns raw values into CodeableConcepts and reports misses to a
// diagnostics collector instead of failing.
type Resolver struct {
	Tables *Tables
	Policy Policy
	Diag   *diagnostics.Collector
}

// Concept resolves raw against the named table. field and subject identify
// the source of the value in diagnostics. It returns nil for empty input and,
// under PolicyStrict, for unresolved input.
func (r Resolver) Concept(raw, table, field, subject string) *fhir.CodeableConcept {
	if raw == "" {
		return nil
	}
	c, ok := r.coding(raw, table, field, subject)
	if !ok {
		return nil
	}
	return &fhir.CodeableConcept{Coding: []fhir.Coding{c}, Text: raw}
}

// Chain resolves raw against the named table and then appends the coding
// that xref maps the primary code to, when there is one.
func (r Resolver) Chain(raw, table string, xref *CrossRef, field, subject string) *fhir.CodeableConcept {
	cc := r.Concept(raw, table, field, subject)
	if cc == nil {
		return nil
	}
	if second, ok := xref.Lookup(cc.Coding[0].Code); ok {
		cc.Coding = append(cc.Coding, second)
	}
	return cc
}

// Code builds a concept from a code already present in the source, adding
// the cross-referenced coding when xref knows it.
func (r Resolver) Code(system, code, display string, xref *CrossRef) *fhir.CodeableConcept {
	if code == "" {
		return nil
	}
	cc := fhir.Concept(system, code, display)
	if second, ok := xref.Lookup(code); ok {
		cc.Coding = append(cc.Coding, second)
	}
	return cc
}

// Match exposes the raw table entry, for callers that need more than the
// coding (staging uses the stage-type columns).
func (r Resolver) Match(raw, table string) (Entry, *Table, bool) {
	t := r.Tables.Table(table)
	e, ok := t.Match(raw)
	return e, t, ok
}

func (r Resolver) coding(raw, table, field, subject string) (fhir.Coding, bool) {
	c, ok := r.Tables.Table(table).Lookup(raw)
	if ok {
		if c.Code == MissingCode {
			r.Diag.Warn(diagnostics.KindMissingCode, field, subject, raw,
				fmt.Sprintf("%s entry has no code", table))
		}
		return c, true
	}
	r.Diag.Warn(diagnostics.KindUnresolvedCoding, field, subject, raw,
		fmt.Sprintf("no %s entry matches value", table))
	if r.Policy == PolicyStrict {
		return fhir.Coding{}, false
	}
	return Placeholder(), true
}
