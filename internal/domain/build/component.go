package build

import (
	"encoding/json"
	"strings"

	"github.com/bmeg/fhirizer/internal/platform/diagnostics"
	"github.com/bmeg/fhirizer/internal/platform/fhir"
)

// Component turns the value at key into an Observation component coded by
// name. Strings become valueString, booleans valueBoolean (false included),
// integers valueInteger and other numbers valueQuantity.
func (bc *Context) Component(rec Record, key, name, subject string) (fhir.ObservationComponent, bool) {
	c := fhir.ObservationComponent{Code: *fhir.TextConcept(name)}
	if b, ok := rec.Bool(key); ok {
		c.ValueBoolean = &b
		return c, true
	}
	v, ok := rec.Value(key)
	if !ok {
		return c, false
	}
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		c.ValueString = &s
	case json.Number:
		if n, err := t.Int64(); err == nil {
			c.ValueInteger = &n
			break
		}
		f, ok := bc.Decimal(rec, key, subject)
		if !ok {
			return c, false
		}
		c.ValueQuantity = &fhir.Quantity{Value: f}
	case float64:
		c.ValueQuantity = &fhir.Quantity{Value: t}
	default:
		bc.Diag.Warn(diagnostics.KindTypeCoercion, key, subject, "", "unsupported component value")
		return c, false
	}
	return c, true
}

// Components builds a component for every key under prefix, in key order,
// named by the key without the prefix. Keys in skip are left out.
func (bc *Context) Components(rec Record, prefix, subject string, skip ...string) []fhir.ObservationComponent {
	var out []fhir.ObservationComponent
	for _, key := range rec.KeysWithPrefix(prefix) {
		if contains(skip, key) {
			continue
		}
		if c, ok := bc.Component(rec, key, strings.TrimPrefix(key, prefix), subject); ok {
			out = append(out, c)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
