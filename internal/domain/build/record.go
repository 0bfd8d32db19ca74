package build

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/bmeg/fhirizer/internal/platform/fhir"
)

// Record is one source record after key conversion: a nested object keyed
// by destination-style names such as "Patient.gender". Nested objects and
// lists of objects hold one-to-many relationships.
type Record map[string]any

// Value returns the value at key when it is present and not empty. Empty
// strings and JSON nulls count as absent.
func (r Record) Value(key string) (any, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return nil, false
	}
	if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
		return nil, false
	}
	return v, true
}

// Has reports whether key holds a non-empty value.
func (r Record) Has(key string) bool {
	_, ok := r.Value(key)
	return ok
}

// String returns the value at key as a string. Numbers are rendered in
// their source form; booleans and containers yield "".
func (r Record) String(key string) string {
	v, ok := r.Value(key)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	}
	return ""
}

// Bool returns the value at key when it is a real boolean. A string such as
// "false" is not a boolean, and an explicit false is reported as present.
func (r Record) Bool(key string) (value, ok bool) {
	v, present := r[key]
	if !present {
		return false, false
	}
	b, isBool := v.(bool)
	return b, isBool
}

// Map returns the nested object at key, or nil.
func (r Record) Map(key string) Record {
	switch t := r[key].(type) {
	case map[string]any:
		return Record(t)
	case Record:
		return t
	}
	return nil
}

// List returns the objects in the list at key. A single object is treated
// as a one-element list; non-object items are ignored.
func (r Record) List(key string) []Record {
	switch t := r[key].(type) {
	case []any:
		out := make([]Record, 0, len(t))
		for _, item := range t {
			switch m := item.(type) {
			case map[string]any:
				out = append(out, Record(m))
			case Record:
				out = append(out, m)
			}
		}
		return out
	case []Record:
		return t
	case []map[string]any:
		out := make([]Record, len(t))
		for i, m := range t {
			out[i] = Record(m)
		}
		return out
	case map[string]any:
		return []Record{Record(t)}
	}
	return nil
}

// Strings returns the non-empty strings at key. A scalar string is a
// one-element list.
func (r Record) Strings(key string) []string {
	switch t := r[key].(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
	case []string:
		out := make([]string, 0, len(t))
		for _, s := range t {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	}
	return nil
}

// KeysWithPrefix returns the keys starting with prefix in sorted order,
// whether or not their values are empty.
func (r Record) KeysWithPrefix(prefix string) []string {
	var keys []string
	for k := range r {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// DecodeRecord parses one JSON object. Numbers are kept as json.Number so
// integer fields survive without float rounding.
func DecodeRecord(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("record is not a JSON object")
	}
	return rec, nil
}

// DecodeRecords reads NDJSON from r, one record per non-blank line.
func DecodeRecords(r io.Reader) ([]Record, error) {
	var out []Record
	err := fhir.ScanNDJSON(r, func(lineNo int, line []byte) error {
		rec, err := DecodeRecord(line)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
