// Package diagnostics collects per-record data-quality events (unresolved
// codings, type coercion failures, skipped records, id collisions) so that
// builders report what went wrong without deciding how it is persisted.
package diagnostics

import (
	"io"
	"sync"

	"github.com/rs/zerolog"
)

// Kind classifies a diagnostic.
type Kind string

const (
	KindMissingIdentifier Kind = "missing_identifier"
	KindUnresolvedCoding  Kind = "unresolved_coding"
	KindMissingCode       Kind = "missing_code"
	KindTypeCoercion      Kind = "type_coercion"
	KindIDCollision       Kind = "id_collision"
	KindSchemaLookupMiss  Kind = "schema_lookup_miss"
	KindRecordSkipped     Kind = "record_skipped"
)

// Severity represents the severity level of a diagnostic.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

// String returns a human-readable severity name.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Diagnostic is a single event. Field is the destination field name and
// Subject the semantic identifier of the record it concerns.
type Diagnostic struct {
	Severity Severity
	Kind     Kind
	Field    string
	Subject  string
	Value    string
	Message  string
}

// Collector accumulates diagnostics. It is safe for concurrent use, but the
// assembler gives each record its own collector and merges them in input
// order so the log is stable across runs.
type Collector struct {
	mu    sync.Mutex
	items []Diagnostic
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Add appends d.
func (c *Collector) Add(d Diagnostic) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.items = append(c.items, d)
	c.mu.Unlock()
}

// Warn records a warning.
func (c *Collector) Warn(kind Kind, field, subject, value, message string) {
	c.Add(Diagnostic{Severity: SeverityWarning, Kind: kind, Field: field, Subject: subject, Value: value, Message: message})
}

// Error records an error.
func (c *Collector) Error(kind Kind, field, subject, value, message string) {
	c.Add(Diagnostic{Severity: SeverityError, Kind: kind, Field: field, Subject: subject, Value: value, Message: message})
}

// Info records an informational event.
func (c *Collector) Info(kind Kind, field, subject, value, message string) {
	c.Add(Diagnostic{Severity: SeverityInfo, Kind: kind, Field: field, Subject: subject, Value: value, Message: message})
}

// Merge appends every diagnostic of other, preserving its order.
func (c *Collector) Merge(other *Collector) {
	if c == nil || other == nil || c == other {
		return
	}
	items := other.Items()
	c.mu.Lock()
	c.items = append(c.items, items...)
	c.mu.Unlock()
}

// Items returns a copy of the collected diagnostics.
func (c *Collector) Items() []Diagnostic {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Diagnostic, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of diagnostics.
func (c *Collector) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Count returns the number of diagnostics of the given kind.
func (c *Collector) Count(kind Kind) int {
	n := 0
	for _, d := range c.Items() {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

// CountBySeverity returns how many diagnostics have severity s.
func (c *Collector) CountBySeverity(s Severity) int {
	n := 0
	for _, d := range c.Items() {
		if d.Severity == s {
			n++
		}
	}
	return n
}

// Summary returns counts keyed by kind.
func (c *Collector) Summary() map[Kind]int {
	out := map[Kind]int{}
	for _, d := range c.Items() {
		out[d.Kind]++
	}
	return out
}

// NewLogger returns a zerolog logger suitable for the diagnostic log file:
// one JSON object per line, timestamps included.
func NewLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}

// Emit writes every diagnostic to log, one event per line.
func (c *Collector) Emit(log zerolog.Logger) {
	for _, d := range c.Items() {
		var ev *zerolog.Event
		switch d.Severity {
		case SeverityError:
			ev = log.Error()
		case SeverityWarning:
			ev = log.Warn()
		default:
			ev = log.Info()
		}
		ev.Str("kind", string(d.Kind)).
			Str("field", d.Field).
			Str("subject", d.Subject)
		if d.Value != "" {
			ev = ev.Str("value", d.Value)
		}
		ev.Msg(d.Message)
	}
}
