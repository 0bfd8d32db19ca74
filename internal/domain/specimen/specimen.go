// Package specimen builds the specimen hierarchy. Each tier becomes a
// Specimen whose parent is the Specimen of the tier above; tier fields that
// are not part of the Specimen itself go into one component Observation
// per Specimen.
package specimen

import (
	"github.com/bmeg/fhirizer/internal/domain/build"
	"github.com/bmeg/fhirizer/internal/platform/fhir"
	"github.com/bmeg/fhirizer/pkg/fhirmodels"
)

// Result is what Build emits, grouped by kind in traversal order.
type Result struct {
	Specimens      []*fhir.Specimen
	Observations   []*fhir.Observation
	BodyStructures []*fhir.BodyStructure
	ImagingStudies []*fhir.ImagingStudy

	tiers map[string][]fhir.Reference
}

// Entities flattens the result.
func (r *Result) Entities() []fhir.Entity {
	var out []fhir.Entity
	for _, s := range r.Specimens {
		out = append(out, s)
	}
	for _, o := range r.Observations {
		out = append(out, o)
	}
	for _, b := range r.BodyStructures {
		out = append(out, b)
	}
	for _, i := range r.ImagingStudies {
		out = append(out, i)
	}
	return out
}

// Refs returns references to the specimens of the named tier, in
// emission order.
func (r *Result) Refs(tier string) []fhir.Reference {
	return r.tiers[tier]
}

// builder carries the per-call state: the subject and one id set per tier.
type builder struct {
	bc      *build.Context
	subject build.Subject
	seen    map[string]map[string]bool
	sites   map[string]bool
	out     *Result
}

// Build walks every root tier under rec and emits the specimens of subject.
// A specimen already emitted at the same tier, for instance one listed
// twice, is not emitted again.
func Build(bc *build.Context, rec build.Record, subject build.Subject, roots ...*Level) (*Result, error) {
	b := &builder{
		bc:      bc,
		subject: subject,
		seen:    map[string]map[string]bool{},
		sites:   map[string]bool{},
		out:     &Result{tiers: map[string][]fhir.Reference{}},
	}
	for _, root := range roots {
		for _, sub := range rec.List(root.Container) {
			if err := b.walk(root, sub, nil); err != nil {
				return nil, err
			}
		}
	}
	return b.out, nil
}

func (b *builder) walk(l *Level, rec build.Record, parent *fhir.Reference) error {
	key := b.bc.Official(l.Names.Official, rec.String(l.IDField))
	s := fhir.NewSpecimen("")
	if err := b.bc.Identify(s, key, b.bc.Secondary(l.Names.Secondary, rec.String(l.SubmitterField))); err != nil {
		return err
	}
	ref := fhir.Ref(s)

	if b.seen[l.Name] == nil {
		b.seen[l.Name] = map[string]bool{}
	}
	if !b.seen[l.Name][s.ID] {
		b.seen[l.Name][s.ID] = true
		if err := b.emit(l, rec, s, key, parent); err != nil {
			return err
		}
	}

	for _, child := range l.Children {
		for _, sub := range rec.List(child.Container) {
			if err := b.walk(child, sub, &ref); err != nil {
				return err
			}
		}
	}
	if l.Slides != "" {
		for _, sub := range rec.List(l.Slides) {
			if err := b.slide(sub, ref); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *builder) emit(l *Level, rec build.Record, s *fhir.Specimen, key fhir.Identifier, parent *fhir.Reference) error {
	subjectRef := b.subject.Ref
	s.Subject = &subjectRef
	if parent != nil {
		s.Parent = []fhir.Reference{*parent}
	}

	if raw := rec.String(l.TypeField); raw != "" {
		if l.TypeTable != "" {
			s.Type = b.bc.Resolver().Concept(raw, l.TypeTable, l.TypeField, key.Value)
		} else {
			s.Type = fhir.TextConcept(raw)
		}
	}

	if site := rec.String(l.SiteField); site != "" {
		bs, loc, err := b.bc.BodySite(b.subject, site, l.SiteField)
		if err != nil {
			return err
		}
		s.Collection = &fhir.SpecimenCollection{BodySite: loc}
		if !b.sites[bs.ID] {
			b.sites[bs.ID] = true
			b.out.BodyStructures = append(b.out.BodyStructures, bs)
		}
	}
	b.out.Specimens = append(b.out.Specimens, s)
	b.out.tiers[l.Name] = append(b.out.tiers[l.Name], fhir.Ref(s))

	comps := b.components(l, rec, key.Value)
	if len(comps) == 0 {
		return nil
	}
	o := fhir.NewObservation("")
	if err := b.bc.Derived(o, key, "specimen_components"); err != nil {
		return err
	}
	specimenRef := fhir.Ref(s)
	o.Category = []fhir.CodeableConcept{*fhir.Concept(fhirmodels.SystemObservationCategory, fhirmodels.ObsCategoryLaboratory, "Laboratory")}
	o.Code = *fhir.TextConcept(l.Name + " components")
	o.Subject = &subjectRef
	o.Specimen = &specimenRef
	o.Focus = []fhir.Reference{specimenRef}
	o.Component = comps
	b.out.Observations = append(b.out.Observations, o)
	return nil
}

func (b *builder) components(l *Level, rec build.Record, subject string) []fhir.ObservationComponent {
	var out []fhir.ObservationComponent
	for _, f := range l.Components {
		if f.Table != "" {
			raw := rec.String(f.Key)
			if raw == "" {
				continue
			}
			cc := b.bc.Resolver().Concept(raw, f.Table, f.Key, subject)
			if cc == nil {
				cc = fhir.TextConcept(raw)
			}
			out = append(out, fhir.ObservationComponent{Code: *fhir.TextConcept(f.Name), ValueCodeableConcept: cc})
			continue
		}
		if c, ok := b.bc.Component(rec, f.Key, f.Name, subject); ok {
			out = append(out, c)
		}
	}
	return out
}
