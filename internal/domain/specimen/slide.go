package specimen

import (
	"github.com/bmeg/fhirizer/internal/domain/build"
	"github.com/bmeg/fhirizer/internal/platform/fhir"
	"github.com/bmeg/fhirizer/pkg/fhirmodels"
)

// Slide fields, read from the "slides" list of a portion.
const (
	FieldSlideID             = "ImagingStudy.id"
	FieldSlideSubmitterID    = "ImagingStudy.identifier"
	FieldSectionLocation     = "ImagingStudy.section_location"
	FieldPercentTumorCells   = "ImagingStudy.percent_tumor_cells"
	FieldPercentNormalCells  = "ImagingStudy.percent_normal_cells"
	FieldPercentStromalCells = "ImagingStudy.percent_stromal_cells"
	FieldPercentNecrosis     = "ImagingStudy.percent_necrosis"
)

var slideComponents = []ComponentField{
	{Key: FieldPercentTumorCells, Name: "percent_tumor_cells"},
	{Key: FieldPercentNormalCells, Name: "percent_normal_cells"},
	{Key: FieldPercentStromalCells, Name: "percent_stromal_cells"},
	{Key: FieldPercentNecrosis, Name: "percent_necrosis"},
}

var slideMicroscopy = fhir.Coding{System: fhirmodels.SystemDICOMModality, Code: "SM", Display: "Slide Microscopy"}

// SlideFields lists the destination fields read for slides.
func SlideFields() []string {
	out := []string{FieldSlideID, FieldSlideSubmitterID, FieldSectionLocation}
	for _, c := range slideComponents {
		out = append(out, c.Key)
	}
	return out
}

// slide emits an ImagingStudy for a slide cut from portion, plus an
// Observation of its cell percentages.
func (b *builder) slide(rec build.Record, portion fhir.Reference) error {
	key := b.bc.Official("slide_id", rec.String(FieldSlideID))
	is := fhir.NewImagingStudy("")
	if err := b.bc.Identify(is, key, b.bc.Secondary("slide_submitter_id", rec.String(FieldSlideSubmitterID))); err != nil {
		return err
	}
	if b.seen["slide"] == nil {
		b.seen["slide"] = map[string]bool{}
	}
	if b.seen["slide"][is.ID] {
		return nil
	}
	b.seen["slide"][is.ID] = true

	is.Subject = b.subject.Ref
	is.Series = []fhir.ImagingStudySeries{{
		UID:         key.Value,
		Modality:    slideMicroscopy,
		Description: rec.String(FieldSectionLocation),
		Specimen:    []fhir.Reference{portion},
	}}
	b.out.ImagingStudies = append(b.out.ImagingStudies, is)

	var comps []fhir.ObservationComponent
	for _, f := range slideComponents {
		if c, ok := b.bc.Component(rec, f.Key, f.Name, key.Value); ok {
			comps = append(comps, c)
		}
	}
	if len(comps) == 0 {
		return nil
	}
	o := fhir.NewObservation("")
	if err := b.bc.Derived(o, key, "slide_components"); err != nil {
		return err
	}
	subjectRef := b.subject.Ref
	o.Category = []fhir.CodeableConcept{*fhir.Concept(fhirmodels.SystemObservationCategory, fhirmodels.ObsCategoryImaging, "Imaging")}
	o.Code = *fhir.TextConcept("slide components")
	o.Subject = &subjectRef
	o.Specimen = &portion
	o.Focus = []fhir.Reference{fhir.Ref(is)}
	o.Component = comps
	b.out.Observations = append(b.out.Observations, o)
	return nil
}
