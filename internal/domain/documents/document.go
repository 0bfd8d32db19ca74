// Package documents builds a DocumentReference for a data file and links
// it to the patients and specimens it was derived from, through a Group
// when there is more than one of either.
package documents

import (
	"github.com/bmeg/fhirizer/internal/domain/build"
	"github.com/bmeg/fhirizer/internal/domain/research"
	"github.com/bmeg/fhirizer/internal/domain/specimen"
	"github.com/bmeg/fhirizer/internal/platform/fhir"
	"github.com/bmeg/fhirizer/pkg/fhirmodels"
)

// File fields.
const (
	FieldFileID               = "DocumentReference.id"
	FieldSubmitterID          = "DocumentReference.identifier"
	FieldFileName             = "DocumentReference.file_name"
	FieldFileSize             = "DocumentReference.file_size"
	FieldMD5                  = "DocumentReference.md5sum"
	FieldDataFormat           = "DocumentReference.data_format"
	FieldDataCategory         = "DocumentReference.data_category"
	FieldDataType             = "DocumentReference.data_type"
	FieldExperimentalStrategy = "DocumentReference.experimental_strategy"
	FieldCreated              = "DocumentReference.created_datetime"
	FieldCaseID               = "Patient.id"
)

// Cases is the container of the cases a file was derived from.
const Cases = "cases"

// DataURL is the download endpoint file ids are appended to.
const DataURL = "https://api.gdc.cancer.gov/data/"

var fileNames = build.IDNames{Official: "file_id", Secondary: "file_submitter_id"}

// Fields lists the destination fields this package reads.
func Fields() []string {
	return []string{
		FieldFileID, FieldSubmitterID, FieldFileName, FieldFileSize, FieldMD5, FieldDataFormat,
		FieldDataCategory, FieldDataType, FieldExperimentalStrategy, FieldCreated, FieldCaseID,
	}
}

// Result is what Build emits. The patients and specimens themselves are
// built from case records; only the Groups are emitted here.
type Result struct {
	Document *fhir.DocumentReference
	Groups   []*fhir.Group
}

// Entities flattens the result.
func (r *Result) Entities() []fhir.Entity {
	out := []fhir.Entity{r.Document}
	for _, g := range r.Groups {
		out = append(out, g)
	}
	return out
}

// Build maps a file record.
func Build(bc *build.Context, rec build.Record) (*Result, error) {
	key := bc.Official(fileNames.Official, rec.String(FieldFileID))
	doc := fhir.NewDocumentReference("")
	if err := bc.Identify(doc, key, bc.Secondary(fileNames.Secondary, rec.String(FieldSubmitterID))); err != nil {
		return nil, err
	}

	att := fhir.Attachment{
		URL:      DataURL + key.Value,
		Title:    rec.String(FieldFileName),
		Creation: rec.String(FieldCreated),
	}
	if n, ok := bc.Integer(rec, FieldFileSize, key.Value); ok {
		att.Size = &n
	}
	content := fhir.DocumentReferenceContent{Attachment: att}
	if f := rec.String(FieldDataFormat); f != "" {
		content.Format = &fhir.Coding{System: bc.Systems.For("data_format"), Code: f, Display: f}
	}
	doc.Content = []fhir.DocumentReferenceContent{content}
	doc.Date = rec.String(FieldCreated)
	if t := rec.String(FieldDataType); t != "" {
		doc.Type = fhir.TextConcept(t)
	}
	for _, f := range []string{FieldDataCategory, FieldExperimentalStrategy} {
		if v := rec.String(f); v != "" {
			doc.Category = append(doc.Category, *fhir.TextConcept(v))
		}
	}
	if md5 := rec.String(FieldMD5); md5 != "" {
		doc.Extension = append(doc.Extension, fhir.Extension{URL: bc.Systems.For("md5sum"), ValueString: md5})
	}

	out := &Result{Document: doc}

	patients, specimens, err := links(bc, rec)
	if err != nil {
		return nil, err
	}

	switch len(patients) {
	case 0:
	case 1:
		doc.Subject = &patients[0]
	default:
		g, err := group(bc, key, fhirmodels.GroupTypePerson, patients)
		if err != nil {
			return nil, err
		}
		ref := fhir.Ref(g)
		doc.Subject = &ref
		out.Groups = append(out.Groups, g)
	}

	switch len(specimens) {
	case 0:
	case 1:
		doc.Context = &fhir.DocumentReferenceContext{Related: specimens}
	default:
		g, err := group(bc, key, fhirmodels.GroupTypeSpecimen, specimens)
		if err != nil {
			return nil, err
		}
		doc.Context = &fhir.DocumentReferenceContext{Related: []fhir.Reference{fhir.Ref(g)}}
		out.Groups = append(out.Groups, g)
	}
	return out, nil
}

// links mints references to every distinct case and leaf specimen the file
// names. Each case is minted under its own project.
func links(bc *build.Context, rec build.Record) (patients, specimens []fhir.Reference, err error) {
	seenPatient := map[string]bool{}
	seenSpecimen := map[string]bool{}
	for _, c := range rec.List(Cases) {
		cc := bc.WithProject(research.ProjectOf(c))
		if id := c.String(FieldCaseID); id != "" {
			ref, err := cc.RefFor(fhir.TypePatient, cc.Official("case_id", id))
			if err != nil {
				return nil, nil, err
			}
			if !seenPatient[ref.Reference] {
				seenPatient[ref.Reference] = true
				patients = append(patients, ref)
			}
		}
		for _, leaf := range specimen.Leaves(cc, c, specimen.GDCSample) {
			ref, err := cc.RefFor(fhir.TypeSpecimen, leaf)
			if err != nil {
				return nil, nil, err
			}
			if !seenSpecimen[ref.Reference] {
				seenSpecimen[ref.Reference] = true
				specimens = append(specimens, ref)
			}
		}
	}
	return patients, specimens, nil
}

// group builds a definitional Group of members, identified by the file and
// the group type.
func group(bc *build.Context, file fhir.Identifier, kind string, members []fhir.Reference) (*fhir.Group, error) {
	g := fhir.NewGroup("")
	if err := bc.Derived(g, file, kind+"_group"); err != nil {
		return nil, err
	}
	g.Type = kind
	g.Membership = fhirmodels.GroupMembershipDefined
	g.Actual = true
	g.Quantity = len(members)
	for _, m := range members {
		g.Member = append(g.Member, fhir.GroupMember{Entity: m})
	}
	return g, nil
}
