// Package terminology resolves raw source display values to codings using
// static ontology tables loaded once per process.
package terminology

import (
	"strings"

	"github.com/bmeg/fhirizer/internal/platform/fhir"
)

// Code systems used by the shipped table conventions.
const (
	SystemSNOMED = "http://snomed.info/sct"
	SystemNCIt   = "http://ncit.nci.nih.gov"
	SystemMONDO  = "http://purl.obolibrary.org/obo/mondo.owl"
	SystemICD10  = "http://hl7.org/fhir/sid/icd-10"
	SystemCDCREC = "urn:oid:2.16.840.1.113883.6.238"
)

// MissingCode is returned when a table entry matches but carries neither a
// code nor an sctid.
const MissingCode = "0000"

// Placeholder coding substituted for values no table can resolve.
const (
	PlaceholderSystem  = "loinc.org"
	PlaceholderCode    = "000000"
	PlaceholderDisplay = "replace-me"
)

// Placeholder returns the placeholder coding.
func Placeholder() fhir.Coding {
	return fhir.Coding{System: PlaceholderSystem, Code: PlaceholderCode, Display: PlaceholderDisplay}
}

// IsPlaceholder reports whether c is the placeholder coding.
func IsPlaceholder(c fhir.Coding) bool {
	return c.Code == PlaceholderCode && c.Display == PlaceholderDisplay
}

// Entry is one row of an ontology table. Value is the raw display string
// that source records carry.
type Entry struct {
	Value            string `json:"value"`
	Code             string `json:"code,omitempty"`
	SCTID            string `json:"sctid,omitempty"`
	System           string `json:"system,omitempty"`
	Display          string `json:"display,omitempty"`
	StageTypeSCTID   string `json:"stage_type_sctid,omitempty"`
	StageTypeDisplay string `json:"stage_type_sctid_display,omitempty"`
}

// Table is an ordered, read-only list of entries.
type Table struct {
	Name    string
	System  string
	Entries []Entry
	exact   map[string]int
}

// NewTable indexes entries for exact matches. The first entry for a given
// value wins.
func NewTable(name, system string, entries []Entry) *Table {
	t := &Table{Name: name, System: system, Entries: entries, exact: make(map[string]int, len(entries))}
	for i, e := range entries {
		if _, ok := t.exact[e.Value]; !ok {
			t.exact[e.Value] = i
		}
	}
	return t
}

// Len returns the number of entries; nil tables are empty.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Entries)
}

// Match finds the entry for raw. Matching is case-sensitive: an exact
// value match wins, otherwise the first entry whose value contains raw.
func (t *Table) Match(raw string) (Entry, bool) {
	if t == nil || raw == "" {
		return Entry{}, false
	}
	if i, ok := t.exact[raw]; ok {
		return t.Entries[i], true
	}
	for _, e := range t.Entries {
		if strings.Contains(e.Value, raw) {
			return e, true
		}
	}
	return Entry{}, false
}

// Lookup resolves raw to a coding. A matched entry without a code yields
// MissingCode rather than a miss.
func (t *Table) Lookup(raw string) (fhir.Coding, bool) {
	e, ok := t.Match(raw)
	if !ok {
		return fhir.Coding{}, false
	}
	return t.coding(e), true
}

func (t *Table) coding(e Entry) fhir.Coding {
	code := e.Code
	if code == "" {
		code = e.SCTID
	}
	if code == "" {
		code = MissingCode
	}
	system := e.System
	if system == "" {
		system = t.System
	}
	if system == "" && e.SCTID != "" {
		system = SystemSNOMED
	}
	display := e.Display
	if display == "" {
		display = e.Value
	}
	return fhir.Coding{System: system, Code: code, Display: display}
}

// StageType returns the stage-type coding of a staging entry, if any.
func (t *Table) StageType(e Entry) (fhir.Coding, bool) {
	if e.StageTypeSCTID == "" {
		return fhir.Coding{}, false
	}
	return fhir.Coding{System: SystemSNOMED, Code: e.StageTypeSCTID, Display: e.StageTypeDisplay}, true
}

// ResolveCoding looks raw up in t and falls back to the placeholder coding.
func ResolveCoding(raw string, t *Table) fhir.Coding {
	if c, ok := t.Lookup(raw); ok {
		return c
	}
	return Placeholder()
}

// CrossRef maps a code in one system to a coding in another, e.g. NCIt to
// MONDO. Entry.Value holds the source code, Entry.Code the target code.
type CrossRef struct {
	Name   string
	System string
	byCode map[string]Entry
}

// NewCrossRef indexes entries by source code.
func NewCrossRef(name, system string, entries []Entry) *CrossRef {
	x := &CrossRef{Name: name, System: system, byCode: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		if _, ok := x.byCode[e.Value]; !ok {
			x.byCode[e.Value] = e
		}
	}
	return x
}

// Lookup returns the target coding for code.
func (x *CrossRef) Lookup(code string) (fhir.Coding, bool) {
	if x == nil || code == "" {
		return fhir.Coding{}, false
	}
	e, ok := x.byCode[code]
	if !ok || e.Code == "" {
		return fhir.Coding{}, false
	}
	system := e.System
	if system == "" {
		system = x.System
	}
	return fhir.Coding{System: system, Code: e.Code, Display: e.Display}, true
}

// Len returns the number of indexed codes.
func (x *CrossRef) Len() int {
	if x == nil {
		return 0
	}
	return len(x.byCode)
}
