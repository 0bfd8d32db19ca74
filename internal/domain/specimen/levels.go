package specimen

import (
	"github.com/bmeg/fhirizer/internal/domain/build"
	"github.com/bmeg/fhirizer/internal/platform/terminology"
)

// ComponentField maps a record key onto a named component. When Table is
// set the value is coded against it.
type ComponentField struct {
	Key   string
	Name  string
	Table string
}

// Level describes one tier of the specimen hierarchy: where its records sit
// in the parent record, how it is identified and which fields it carries.
type Level struct {
	Name           string
	Container      string
	IDField        string
	SubmitterField string
	Names          build.IDNames
	TypeField      string
	TypeTable      string
	SiteField      string
	Components     []ComponentField
	Children       []*Level
	Slides         string
}

// Fields lists every destination field the level tree reads.
func (l *Level) Fields() []string {
	var out []string
	for _, f := range []string{l.IDField, l.SubmitterField, l.TypeField, l.SiteField} {
		if f != "" {
			out = append(out, f)
		}
	}
	for _, c := range l.Components {
		out = append(out, c.Key)
	}
	if l.Slides != "" {
		out = append(out, SlideFields()...)
	}
	for _, child := range l.Children {
		out = append(out, child.Fields()...)
	}
	return out
}

// GDC specimen fields.
const (
	FieldSampleID           = "Specimen.id"
	FieldSampleSubmitterID  = "Specimen.identifier"
	FieldSampleType         = "Specimen.sample_type"
	FieldTissueType         = "Specimen.tissue_type"
	FieldTumorDescriptor    = "Specimen.tumor_descriptor"
	FieldPreservationMethod = "Specimen.preservation_method"
	FieldIsFFPE             = "Specimen.is_ffpe"
	FieldAnatomicSite       = "Specimen.biospecimen_anatomic_site"
	FieldInitialWeight      = "Specimen.initial_weight"
	FieldDaysToCollection   = "Specimen.days_to_collection"
	FieldComposition        = "Specimen.composition"
	FieldPortionID          = "Specimen.portion.id"
	FieldPortionSubmitterID = "Specimen.portion.identifier"
	FieldPortionWeight      = "Specimen.portion.weight"
	FieldPortionIsFFPE      = "Specimen.portion.is_ffpe"
	FieldPortionNumber      = "Specimen.portion.portion_number"
	FieldAnalyteID          = "Specimen.analyte.id"
	FieldAnalyteSubmitterID = "Specimen.analyte.identifier"
	FieldAnalyteType        = "Specimen.analyte.analyte_type"
	FieldAnalyteConcentrate = "Specimen.analyte.concentration"
	FieldAnalyteRatio       = "Specimen.analyte.a260_a280_ratio"
	FieldAnalyteAmount      = "Specimen.analyte.amount"
	FieldAliquotID          = "Specimen.aliquot.id"
	FieldAliquotSubmitterID = "Specimen.aliquot.identifier"
	FieldAliquotAnalyteType = "Specimen.aliquot.analyte_type"
	FieldAliquotConcentrate = "Specimen.aliquot.concentration"
	FieldAliquotQuantity    = "Specimen.aliquot.aliquot_quantity"
	FieldAliquotVolume      = "Specimen.aliquot.aliquot_volume"
)

// GDCAliquot, GDCAnalyte, GDCPortion and GDCSample form the GDC biospecimen
// tree rooted at a case's "samples" list.
var (
	GDCAliquot = &Level{
		Name:           "aliquot",
		Container:      "aliquots",
		IDField:        FieldAliquotID,
		SubmitterField: FieldAliquotSubmitterID,
		Names:          build.IDNames{Official: "aliquot_id", Secondary: "aliquot_submitter_id"},
		TypeField:      FieldAliquotAnalyteType,
		Components: []ComponentField{
			{Key: FieldAliquotConcentrate, Name: "concentration"},
			{Key: FieldAliquotQuantity, Name: "aliquot_quantity"},
			{Key: FieldAliquotVolume, Name: "aliquot_volume"},
		},
	}
	GDCAnalyte = &Level{
		Name:           "analyte",
		Container:      "analytes",
		IDField:        FieldAnalyteID,
		SubmitterField: FieldAnalyteSubmitterID,
		Names:          build.IDNames{Official: "analyte_id", Secondary: "analyte_submitter_id"},
		TypeField:      FieldAnalyteType,
		Components: []ComponentField{
			{Key: FieldAnalyteConcentrate, Name: "concentration"},
			{Key: FieldAnalyteRatio, Name: "a260_a280_ratio"},
			{Key: FieldAnalyteAmount, Name: "amount"},
		},
		Children: []*Level{GDCAliquot},
	}
	GDCPortion = &Level{
		Name:           "portion",
		Container:      "portions",
		IDField:        FieldPortionID,
		SubmitterField: FieldPortionSubmitterID,
		Names:          build.IDNames{Official: "portion_id", Secondary: "portion_submitter_id"},
		Components: []ComponentField{
			{Key: FieldPortionIsFFPE, Name: "is_ffpe"},
			{Key: FieldPortionWeight, Name: "weight"},
			{Key: FieldPortionNumber, Name: "portion_number"},
		},
		Children: []*Level{GDCAnalyte},
		Slides:   "slides",
	}
	GDCSample = &Level{
		Name:           "sample",
		Container:      "samples",
		IDField:        FieldSampleID,
		SubmitterField: FieldSampleSubmitterID,
		Names:          build.IDNames{Official: "sample_id", Secondary: "sample_submitter_id"},
		TypeField:      FieldSampleType,
		TypeTable:      terminology.TableSampleTypes,
		SiteField:      FieldAnatomicSite,
		Components: []ComponentField{
			{Key: FieldIsFFPE, Name: "is_ffpe"},
			{Key: FieldTissueType, Name: "tissue_type", Table: terminology.TableTissueTypes},
			{Key: FieldTumorDescriptor, Name: "tumor_descriptor"},
			{Key: FieldPreservationMethod, Name: "preservation_method", Table: terminology.TablePreservationMethods},
			{Key: FieldInitialWeight, Name: "initial_weight"},
			{Key: FieldDaysToCollection, Name: "days_to_collection"},
			{Key: FieldComposition, Name: "composition"},
		},
		Children: []*Level{GDCPortion},
	}
)

// ICGC specimen fields.
const (
	FieldICGCSpecimenID          = "Specimen.id"
	FieldICGCSpecimenSubmitterID = "Specimen.identifier"
	FieldICGCSpecimenType        = "Specimen.specimen_type"
	FieldICGCTumourHistology     = "Specimen.tumour_histological_type"
	FieldICGCSampleID            = "Specimen.sample.id"
	FieldICGCSampleSubmitterID   = "Specimen.sample.identifier"
	FieldICGCSampleInterval      = "Specimen.sample.analyzed_sample_interval"
)

// ICGCSample and ICGCSpecimen form the ICGC tree rooted at a donor's
// "specimens" list.
var (
	ICGCSample = &Level{
		Name:           "sample",
		Container:      "samples",
		IDField:        FieldICGCSampleID,
		SubmitterField: FieldICGCSampleSubmitterID,
		Names:          build.IDNames{Official: "sample_id", Secondary: "submitted_sample_id"},
		Components: []ComponentField{
			{Key: FieldICGCSampleInterval, Name: "analyzed_sample_interval"},
		},
	}
	ICGCSpecimen = &Level{
		Name:           "specimen",
		Container:      "specimens",
		IDField:        FieldICGCSpecimenID,
		SubmitterField: FieldICGCSpecimenSubmitterID,
		Names:          build.IDNames{Official: "specimen_id", Secondary: "submitted_specimen_id"},
		TypeField:      FieldICGCSpecimenType,
		Components: []ComponentField{
			{Key: FieldICGCTumourHistology, Name: "tumour_histological_type"},
		},
		Children: []*Level{ICGCSample},
	}
)
