package specimen

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/bmeg/fhirizer/internal/domain/build"
	"github.com/bmeg/fhirizer/internal/platform/fhir"
	"github.com/bmeg/fhirizer/internal/platform/identity"
	"github.com/bmeg/fhirizer/internal/platform/terminology"
)

func newSubject(t *testing.T, bc *build.Context) build.Subject {
	t.Helper()
	s, err := bc.NewSubject(bc.Official("case_id", "C1"))
	if err != nil {
		t.Fatalf("NewSubject: %v", err)
	}
	return s
}

func newContext() *build.Context {
	tables := terminology.NewTables().
		WithEntries(terminology.TableSampleTypes, []terminology.Entry{{Value: "Primary Tumor", SCTID: "86049000"}}).
		WithEntries(terminology.TablePrimarySites, []terminology.Entry{{Value: "Breast", SCTID: "76752008"}})
	return build.NewContext(tables, nil)
}

func decode(t *testing.T, s string) build.Record {
	t.Helper()
	rec, err := build.DecodeRecord([]byte(s))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return rec
}

func TestBuild_TwoTopLevelSamples(t *testing.T) {
	bc := newContext()
	subject := newSubject(t, bc)
	rec := decode(t, `{"Patient.id": "C1", "samples": [{"Specimen.id": "S1"}, {"Specimen.id": "S2"}]}`)

	res, err := Build(bc, rec, subject, GDCSample)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(res.Specimens) != 2 {
		t.Fatalf("expected 2 specimens, got %d", len(res.Specimens))
	}
	for _, s := range res.Specimens {
		if len(s.Parent) != 0 {
			t.Errorf("%s: top-level sample has a parent", s.ID)
		}
		if s.Subject == nil || s.Subject.Reference != subject.Ref.Reference {
			t.Errorf("%s: subject = %v, want %s", s.ID, s.Subject, subject.Ref.Reference)
		}
	}
	if res.Specimens[0].ID == res.Specimens[1].ID {
		t.Error("distinct samples must get distinct ids")
	}
	if len(res.Observations) != 0 {
		t.Errorf("no component fields, got %d observations", len(res.Observations))
	}
}

func TestBuild_Hierarchy(t *testing.T) {
	bc := newContext()
	subject := newSubject(t, bc)
	rec := decode(t, `{
		"samples": [{
			"Specimen.id": "S1",
			"Specimen.sample_type": "Primary Tumor",
			"portions": [{
				"Specimen.portion.id": "P1",
				"analytes": [{
					"Specimen.analyte.id": "A1",
					"Specimen.analyte.analyte_type": "DNA",
					"aliquots": [{"Specimen.aliquot.id": "Q1"}, {"Specimen.aliquot.id": "Q2"}]
				}]
			}]
		}]
	}`)

	res, err := Build(bc, rec, subject, GDCSample)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(res.Specimens) != 5 {
		t.Fatalf("expected 5 specimens, got %d", len(res.Specimens))
	}
	byID := map[string]*fhir.Specimen{}
	for _, s := range res.Specimens {
		byID[s.ID] = s
	}
	parentOf := func(s *fhir.Specimen) *fhir.Specimen {
		if len(s.Parent) != 1 {
			t.Fatalf("%s: parents = %v", s.ID, s.Parent)
		}
		return byID[strings.TrimPrefix(s.Parent[0].Reference, "Specimen/")]
	}

	aliquots := res.Refs("aliquot")
	if len(aliquots) != 2 {
		t.Fatalf("aliquot refs = %v", aliquots)
	}
	q1 := byID[strings.TrimPrefix(aliquots[0].Reference, "Specimen/")]
	analyte := parentOf(q1)
	portion := parentOf(analyte)
	sample := parentOf(portion)
	if sample.Identifier[0].Value != "S1" || portion.Identifier[0].Value != "P1" || analyte.Identifier[0].Value != "A1" {
		t.Errorf("wrong chain: %s -> %s -> %s", analyte.Identifier[0].Value, portion.Identifier[0].Value, sample.Identifier[0].Value)
	}
	if sample.Type == nil || sample.Type.Coding[0].Code != "86049000" {
		t.Errorf("sample type = %+v", sample.Type)
	}
	if analyte.Type == nil || analyte.Type.Text != "DNA" {
		t.Errorf("analyte type = %+v", analyte.Type)
	}
	if got := analyte.Identifier[0].System; got != "https://gdc.cancer.gov/analyte_id" {
		t.Errorf("analyte system = %s", got)
	}
}

func TestBuild_DuplicateSpecimenEmittedOnce(t *testing.T) {
	bc := newContext()
	subject := newSubject(t, bc)
	rec := decode(t, `{"samples": [
		{"Specimen.id": "S1", "portions": [{"Specimen.portion.id": "P1"}]},
		{"Specimen.id": "S1", "portions": [{"Specimen.portion.id": "P2"}]}
	]}`)
	res, err := Build(bc, rec, subject, GDCSample)
	if err != nil {
		t.Fatal(err)
	}
	if got := len(res.Refs("sample")); got != 1 {
		t.Errorf("sample emitted %d times", got)
	}
	if got := len(res.Refs("portion")); got != 2 {
		t.Errorf("portions under a repeated sample = %d, want 2", got)
	}
}

func TestBuild_FFPEDistinguishability(t *testing.T) {
	tests := []struct {
		name   string
		record string
		want   string
	}{
		{"explicit false", `{"samples": [{"Specimen.id": "S1", "Specimen.is_ffpe": false, "Specimen.tissue_type": "Tumor"}]}`, "false"},
		{"explicit true", `{"samples": [{"Specimen.id": "S1", "Specimen.is_ffpe": true}]}`, "true"},
		{"absent", `{"samples": [{"Specimen.id": "S1", "Specimen.tissue_type": "Tumor"}]}`, ""},
		{"null", `{"samples": [{"Specimen.id": "S1", "Specimen.is_ffpe": null, "Specimen.tissue_type": "Tumor"}]}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bc := newContext()
			res, err := Build(bc, decode(t, tt.record), newSubject(t, bc), GDCSample)
			if err != nil {
				t.Fatal(err)
			}
			if len(res.Observations) != 1 {
				t.Fatalf("observations = %d", len(res.Observations))
			}
			var got string
			for _, c := range res.Observations[0].Component {
				if c.Code.Text == "is_ffpe" {
					if c.ValueBoolean == nil {
						t.Fatal("is_ffpe component without valueBoolean")
					}
					data, _ := json.Marshal(c)
					if !strings.Contains(string(data), `"valueBoolean":`+map[bool]string{true: "true", false: "false"}[*c.ValueBoolean]) {
						t.Errorf("serialized component = %s", data)
					}
					got = map[bool]string{true: "true", false: "false"}[*c.ValueBoolean]
				}
			}
			if got != tt.want {
				t.Errorf("is_ffpe = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuild_AnatomicSiteAndSlides(t *testing.T) {
	bc := newContext()
	subject := newSubject(t, bc)
	rec := decode(t, `{"samples": [
		{"Specimen.id": "S1", "Specimen.biospecimen_anatomic_site": "Breast",
		 "portions": [{"Specimen.portion.id": "P1", "slides": [
			{"ImagingStudy.id": "SL1", "ImagingStudy.section_location": "TOP", "ImagingStudy.percent_tumor_cells": 80},
			{"ImagingStudy.id": "SL1"}
		 ]}]},
		{"Specimen.id": "S2", "Specimen.biospecimen_anatomic_site": "Breast"}
	]}`)
	res, err := Build(bc, rec, subject, GDCSample)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.BodyStructures) != 1 {
		t.Fatalf("same site should give one BodyStructure, got %d", len(res.BodyStructures))
	}
	bs := res.BodyStructures[0]
	if bs.Patient.Reference != subject.Ref.Reference || bs.Location.Coding[0].Code != "76752008" {
		t.Errorf("body structure = %+v", bs)
	}
	if s := res.Specimens[0]; s.Collection == nil || s.Collection.BodySite.Coding[0].Code != "76752008" {
		t.Errorf("collection = %+v", s.Collection)
	}

	if len(res.ImagingStudies) != 1 {
		t.Fatalf("imaging studies = %d, want 1", len(res.ImagingStudies))
	}
	is := res.ImagingStudies[0]
	portion := res.Refs("portion")[0]
	if is.Series[0].Specimen[0] != portion || is.Series[0].Modality.Code != "SM" || is.Series[0].Description != "TOP" {
		t.Errorf("series = %+v", is.Series[0])
	}
	var slideObs *fhir.Observation
	for _, o := range res.Observations {
		if o.Code.Text == "slide components" {
			slideObs = o
		}
	}
	if slideObs == nil || slideObs.Focus[0].Reference != "ImagingStudy/"+is.ID {
		t.Errorf("slide observation = %+v", slideObs)
	}
}

func TestBuild_MissingSpecimenID(t *testing.T) {
	bc := newContext()
	_, err := Build(bc, decode(t, `{"samples": [{"Specimen.sample_type": "Primary Tumor"}]}`), newSubject(t, bc), GDCSample)
	if !errors.Is(err, identity.ErrMissingIdentifier) {
		t.Errorf("expected ErrMissingIdentifier, got %v", err)
	}
}

func TestBuild_ICGC(t *testing.T) {
	bc := newContext().WithSystems(build.ICGC)
	subject, _ := bc.NewSubject(bc.Official("donor_id", "DO1"))
	rec := decode(t, `{"specimens": [{"Specimen.id": "SP1", "Specimen.specimen_type": "Primary tumour - solid tissue",
		"samples": [{"Specimen.sample.id": "SA1"}]}]}`)
	res, err := Build(bc, rec, subject, ICGCSpecimen)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Specimens) != 2 {
		t.Fatalf("specimens = %d", len(res.Specimens))
	}
	if res.Specimens[1].Parent[0] != fhir.Ref(res.Specimens[0]) {
		t.Errorf("sample parent = %v", res.Specimens[1].Parent)
	}
	if got := res.Specimens[0].Identifier[0].System; got != "https://dcc.icgc.org/specimen_id" {
		t.Errorf("system = %s", got)
	}
}

func TestLevelFields(t *testing.T) {
	fields := GDCSample.Fields()
	for _, want := range []string{FieldSampleID, FieldAliquotID, FieldSlideID, FieldIsFFPE} {
		found := false
		for _, f := range fields {
			if f == want {
				found = true
			}
		}
		if !found {
			t.Errorf("Fields() missing %s", want)
		}
	}
}

func TestLeaves(t *testing.T) {
	bc := newContext()
	rec := decode(t, `{"samples": [
		{"Specimen.id": "S1", "portions": [{"Specimen.portion.id": "P1", "analytes": [{"Specimen.analyte.id": "A1",
			"aliquots": [{"Specimen.aliquot.id": "Q1"}, {"Specimen.aliquot.id": "Q1"}]}]}]},
		{"Specimen.id": "S2"},
		{"Specimen.sample_type": "no id"}
	]}`)
	got := Leaves(bc, rec, GDCSample)
	if len(got) != 2 {
		t.Fatalf("leaves = %+v", got)
	}
	if got[0].Value != "Q1" || got[0].System != "https://gdc.cancer.gov/aliquot_id" {
		t.Errorf("first leaf = %+v", got[0])
	}
	if got[1].Value != "S2" {
		t.Errorf("second leaf = %+v", got[1])
	}
}
