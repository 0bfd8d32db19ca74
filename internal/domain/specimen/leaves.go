package specimen

import (
	"github.com/bmeg/fhirizer/internal/domain/build"
	"github.com/bmeg/fhirizer/internal/platform/fhir"
)

// Leaves returns the official identifiers of the deepest specimens under
// rec: for each branch the lowest tier present, so a sample with aliquots
// yields its aliquots and a bare sample yields itself. Duplicates are
// dropped and records without an id are ignored.
func Leaves(bc *build.Context, rec build.Record, roots ...*Level) []fhir.Identifier {
	var out []fhir.Identifier
	seen := map[fhir.Identifier]bool{}
	var walk func(l *Level, r build.Record)
	walk = func(l *Level, r build.Record) {
		deeper := false
		for _, child := range l.Children {
			for _, sub := range r.List(child.Container) {
				deeper = true
				walk(child, sub)
			}
		}
		if deeper {
			return
		}
		id := r.String(l.IDField)
		if id == "" {
			return
		}
		key := bc.Official(l.Names.Official, id)
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	for _, root := range roots {
		for _, sub := range rec.List(root.Container) {
			walk(root, sub)
		}
	}
	return out
}
