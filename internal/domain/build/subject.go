package build

import (
	"github.com/bmeg/fhirizer/internal/platform/fhir"
	"github.com/bmeg/fhirizer/internal/platform/terminology"
)

// Subject is the Patient that nested builders attach resources to.
type Subject struct {
	Key fhir.Identifier
	Ref fhir.Reference
}

// NewSubject returns the Subject of the Patient whose official identifier
// is key.
func (bc *Context) NewSubject(key fhir.Identifier) (Subject, error) {
	ref, err := bc.RefFor(fhir.TypePatient, key)
	if err != nil {
		return Subject{}, err
	}
	return Subject{Key: key, Ref: ref}, nil
}

// BodySite builds the BodyStructure for a raw anatomic site of subject.
// The id depends only on the patient and the site text, so every builder
// naming the same site yields the same resource. It returns nil for an
// empty site.
func (bc *Context) BodySite(s Subject, site, field string) (*fhir.BodyStructure, *fhir.CodeableConcept, error) {
	if site == "" {
		return nil, nil, nil
	}
	loc := bc.Resolver().Concept(site, terminology.TablePrimarySites, field, s.Key.Value)
	if loc == nil {
		loc = fhir.TextConcept(site)
	}
	bs := fhir.NewBodyStructure("")
	if err := bc.IdentifyAll(bs, s.Key, bc.Secondary("body_site", site)); err != nil {
		return nil, nil, err
	}
	bs.Location = loc
	bs.Patient = s.Ref
	return bs, loc, nil
}
