// Package oncology builds the diagnosis family of a case: the Condition,
// its Encounter, staging and grading Observations and the treatments given
// for it.
package oncology

import (
	"fmt"

	"github.com/bmeg/fhirizer/internal/domain/build"
	"github.com/bmeg/fhirizer/internal/platform/fhir"
	"github.com/bmeg/fhirizer/internal/platform/terminology"
	"github.com/bmeg/fhirizer/pkg/fhirmodels"
)

// Diagnosis fields, read from each entry of a case's "diagnoses" list.
const (
	FieldDiagnosisID     = "Condition.id"
	FieldSubmitterID     = "Condition.identifier"
	FieldPrimaryDiagnose = "Condition.primary_diagnosis"
	FieldOrganOfOrigin   = "Condition.tissue_or_organ_of_origin"
	FieldAgeAtDiagnosis  = "Condition.age_at_diagnosis"
	FieldYearOfDiagnosis = "Condition.year_of_diagnosis"
	FieldICD10           = "Condition.icd_10_code"
	FieldTumorGrade      = "Condition.tumor_grade"

	// StagePrefix marks staging fields, e.g. Condition.stage_ajcc_pathologic_t.
	StagePrefix = "Condition.stage_"
)

// Diagnoses is the container of diagnosis sub-records in a case.
const Diagnoses = "diagnoses"

var diagnosisNames = build.IDNames{Official: "diagnosis_id", Secondary: "diagnosis_submitter_id"}

// Fields lists the destination fields this package reads. Staging fields
// are matched by prefix and are not listed.
func Fields() []string {
	return append([]string{
		FieldDiagnosisID, FieldSubmitterID, FieldPrimaryDiagnose, FieldOrganOfOrigin,
		FieldAgeAtDiagnosis, FieldYearOfDiagnosis, FieldICD10, FieldTumorGrade,
	}, treatmentFields()...)
}

// Result is what Build emits, grouped by kind.
type Result struct {
	Conditions                []*fhir.Condition
	Encounters                []*fhir.Encounter
	Observations              []*fhir.Observation
	BodyStructures            []*fhir.BodyStructure
	Procedures                []*fhir.Procedure
	Medications               []*fhir.Medication
	MedicationAdministrations []*fhir.MedicationAdministration

	medications map[string]bool
	sites       map[string]bool
}

// Entities flattens the result.
func (r *Result) Entities() []fhir.Entity {
	var out []fhir.Entity
	for _, c := range r.Conditions {
		out = append(out, c)
	}
	for _, e := range r.Encounters {
		out = append(out, e)
	}
	for _, o := range r.Observations {
		out = append(out, o)
	}
	for _, b := range r.BodyStructures {
		out = append(out, b)
	}
	for _, p := range r.Procedures {
		out = append(out, p)
	}
	for _, m := range r.Medications {
		out = append(out, m)
	}
	for _, m := range r.MedicationAdministrations {
		out = append(out, m)
	}
	return out
}

// Build maps every diagnosis of rec for subject.
func Build(bc *build.Context, rec build.Record, subject build.Subject) (*Result, error) {
	out := &Result{medications: map[string]bool{}, sites: map[string]bool{}}
	for _, dx := range rec.List(Diagnoses) {
		if err := buildDiagnosis(bc, dx, subject, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func buildDiagnosis(bc *build.Context, dx build.Record, subject build.Subject, out *Result) error {
	key := bc.Official(diagnosisNames.Official, dx.String(FieldDiagnosisID))
	c := fhir.NewCondition("")
	if err := bc.Identify(c, key, bc.Secondary(diagnosisNames.Secondary, dx.String(FieldSubmitterID))); err != nil {
		return err
	}
	condRef := fhir.Ref(c)

	enc := fhir.NewEncounter("")
	if err := bc.Derived(enc, key, "diagnosis_encounter"); err != nil {
		return err
	}
	encRef := fhir.Ref(enc)
	subjectRef := subject.Ref
	enc.Status = fhirmodels.EncounterStatusUnknown
	enc.Class = fhir.Coding{System: fhirmodels.SystemActCode, Code: fhirmodels.EncounterClassAmbulatory, Display: "ambulatory"}
	enc.Subject = &subjectRef
	enc.Diagnosis = []fhir.EncounterDiagnosis{{Condition: condRef}}

	res := bc.Resolver()
	c.Subject = subject.Ref
	c.Encounter = &encRef
	c.ClinicalStatus = fhir.Concept(fhirmodels.SystemConditionClinical, fhirmodels.ConditionActive, "Active")
	c.Category = []fhir.CodeableConcept{*fhir.Concept(fhirmodels.SystemConditionCategory,
		fhirmodels.ConditionCategoryEncounterDiagnosis, "Encounter Diagnosis")}
	if raw := dx.String(FieldPrimaryDiagnose); raw != "" {
		c.Code = res.Chain(raw, terminology.TableDiseaseTypes, bc.Tables.NCItToMONDO, FieldPrimaryDiagnose, key.Value)
	}
	if icd := dx.String(FieldICD10); icd != "" {
		icdCoding := fhir.Coding{System: terminology.SystemICD10, Code: icd}
		if c.Code == nil {
			c.Code = &fhir.CodeableConcept{}
		}
		c.Code.Coding = append(c.Code.Coding, icdCoding)
	}
	c.OnsetAge = bc.Days(dx, FieldAgeAtDiagnosis, key.Value)
	if y, ok := bc.Integer(dx, FieldYearOfDiagnosis, key.Value); ok {
		c.RecordedDate = yearString(y)
	}

	if site := dx.String(FieldOrganOfOrigin); site != "" {
		bs, loc, err := bc.BodySite(subject, site, FieldOrganOfOrigin)
		if err != nil {
			return err
		}
		c.BodySite = []fhir.CodeableConcept{*loc}
		if !out.sites[bs.ID] {
			out.sites[bs.ID] = true
			out.BodyStructures = append(out.BodyStructures, bs)
		}
	}

	stage, err := buildStaging(bc, dx, key, subject, condRef)
	if err != nil {
		return err
	}
	if stage != nil {
		c.Stage = []fhir.ConditionStage{stage.summary}
		out.Observations = append(out.Observations, stage.parent)
		out.Observations = append(out.Observations, stage.members...)
	}

	if raw := dx.String(FieldTumorGrade); raw != "" {
		g := fhir.NewObservation("")
		if err := bc.Derived(g, key, "tumor_grade"); err != nil {
			return err
		}
		g.Category = []fhir.CodeableConcept{*fhir.Concept(fhirmodels.SystemObservationCategory, fhirmodels.ObsCategoryExam, "Exam")}
		g.Code = *fhir.TextConcept("tumor grade")
		g.Subject = &subjectRef
		g.Focus = []fhir.Reference{condRef}
		g.ValueCodeableConcept = res.Concept(raw, terminology.TableTumorGrades, FieldTumorGrade, key.Value)
		if g.ValueCodeableConcept == nil {
			g.ValueCodeableConcept = fhir.TextConcept(raw)
		}
		out.Observations = append(out.Observations, g)
	}

	out.Conditions = append(out.Conditions, c)
	out.Encounters = append(out.Encounters, enc)

	for _, tx := range dx.List(Treatments) {
		if err := buildTreatment(bc, tx, subject, condRef, encRef, out); err != nil {
			return err
		}
	}
	return nil
}

func yearString(y int64) string {
	if y <= 0 {
		return ""
	}
	return fmt.Sprintf("%04d", y)
}
