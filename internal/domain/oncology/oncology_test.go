package oncology

import (
	"errors"
	"testing"

	"github.com/bmeg/fhirizer/internal/domain/build"
	"github.com/bmeg/fhirizer/internal/platform/diagnostics"
	"github.com/bmeg/fhirizer/internal/platform/fhir"
	"github.com/bmeg/fhirizer/internal/platform/identity"
	"github.com/bmeg/fhirizer/internal/platform/terminology"
)

func newContext() *build.Context {
	tables := terminology.NewTables().
		WithEntries(terminology.TableStaging, []terminology.Entry{
			{Value: "Stage IIA", SCTID: "261614003", StageTypeSCTID: "384630009", StageTypeDisplay: "Pathological stage"},
			{Value: "T2", SCTID: "369900003"},
		}).
		WithEntries(terminology.TableDiseaseTypes, []terminology.Entry{
			{Value: "Infiltrating duct carcinoma, NOS", Code: "C4194"},
		}).
		WithEntries(terminology.TablePrimarySites, []terminology.Entry{{Value: "Breast, NOS", SCTID: "76752008"}}).
		WithEntries(terminology.TableTumorGrades, []terminology.Entry{{Value: "G2", SCTID: "1228848001"}}).
		WithEntries(terminology.TableTherapeuticAgents, []terminology.Entry{{Value: "Tamoxifen", Code: "C62078"}})
	tables.NCItToMONDO = terminology.NewCrossRef(terminology.CrossRefNCItToMONDO, terminology.SystemMONDO,
		[]terminology.Entry{{Value: "C4194", Code: "MONDO:0006318"}})
	return build.NewContext(tables, nil)
}

func subjectOf(t *testing.T, bc *build.Context) build.Subject {
	t.Helper()
	s, err := bc.NewSubject(bc.Official("case_id", "C1"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func diagnosis(fields map[string]any) build.Record {
	return build.Record{"diagnoses": []any{fields}}
}

func TestBuild_StagingScenario(t *testing.T) {
	bc := newContext()
	rec := diagnosis(map[string]any{
		"Condition.id":                          "D1",
		"Condition.stage_ajcc_pathologic_stage": "Stage IIA",
	})
	res, err := Build(bc, rec, subjectOf(t, bc))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(res.Observations) != 2 {
		t.Fatalf("expected parent and one member, got %d observations", len(res.Observations))
	}
	parent, child := res.Observations[0], res.Observations[1]
	if len(parent.HasMember) != 1 || parent.HasMember[0] != fhir.Ref(child) {
		t.Fatalf("hasMember = %v, want [%s]", parent.HasMember, fhir.Ref(child).Reference)
	}
	if child.ValueCodeableConcept == nil || child.ValueCodeableConcept.Text != "Stage IIA" {
		t.Errorf("child value = %+v", child.ValueCodeableConcept)
	}
	if child.ValueCodeableConcept.Coding[0].Code != "261614003" {
		t.Errorf("stage coding = %+v", child.ValueCodeableConcept.Coding)
	}
	if child.Code.Coding[0].Code != "384630009" {
		t.Errorf("stage type coding = %+v", child.Code.Coding)
	}

	c := res.Conditions[0]
	if len(c.Stage) != 1 || c.Stage[0].Assessment[0] != fhir.Ref(parent) {
		t.Errorf("condition stage = %+v", c.Stage)
	}
	if c.Stage[0].Summary.Text != "Stage IIA" || c.Stage[0].Type == nil {
		t.Errorf("stage summary = %+v", c.Stage[0])
	}
	if child.Focus[0] != fhir.Ref(c) {
		t.Errorf("staging focus = %v", child.Focus)
	}
}

func TestBuild_StagingDimensions(t *testing.T) {
	bc := newContext()
	rec := diagnosis(map[string]any{
		"Condition.id":                          "D1",
		"Condition.stage_ajcc_pathologic_t":     "T2",
		"Condition.stage_ajcc_pathologic_n":     "N9",
		"Condition.stage_ajcc_pathologic_stage": "Stage IIA",
		"Condition.stage_ajcc_pathologic_m":     "",
	})
	res, err := Build(bc, rec, subjectOf(t, bc))
	if err != nil {
		t.Fatal(err)
	}
	parent := res.Observations[0]
	if len(parent.HasMember) != 3 {
		t.Errorf("members = %d, want 3 (empty M skipped)", len(parent.HasMember))
	}
	if parent.ValueCodeableConcept.Text != "Stage IIA" {
		t.Errorf("aggregate value = %+v", parent.ValueCodeableConcept)
	}
	if bc.Diag.Count(diagnostics.KindUnresolvedCoding) != 1 {
		t.Errorf("N9 should be logged as unresolved: %+v", bc.Diag.Items())
	}
	ids := map[string]bool{}
	for _, o := range res.Observations {
		if ids[o.ID] {
			t.Errorf("duplicate observation id %s", o.ID)
		}
		ids[o.ID] = true
	}
}

func TestBuild_StagingNotAvailable(t *testing.T) {
	bc := newContext()
	rec := diagnosis(map[string]any{
		"Condition.id":                          "D1",
		"Condition.stage_ajcc_pathologic_stage": "",
		"Condition.stage_ajcc_pathologic_t":     nil,
	})
	res, err := Build(bc, rec, subjectOf(t, bc))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Observations) != 1 {
		t.Fatalf("expected only the aggregate, got %d", len(res.Observations))
	}
	parent := res.Observations[0]
	if parent.ValueCodeableConcept.Text != NotAvailable || len(parent.HasMember) != 0 {
		t.Errorf("aggregate = %+v", parent)
	}
	if res.Conditions[0].Stage[0].Assessment[0] != fhir.Ref(parent) {
		t.Error("condition must reference the placeholder aggregate")
	}
}

func TestBuild_NoStageFields(t *testing.T) {
	bc := newContext()
	res, err := Build(bc, diagnosis(map[string]any{"Condition.id": "D1"}), subjectOf(t, bc))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Observations) != 0 || len(res.Conditions[0].Stage) != 0 {
		t.Errorf("no stage fields should give no staging: %+v", res.Observations)
	}
}

func TestBuild_Condition(t *testing.T) {
	bc := newContext()
	subject := subjectOf(t, bc)
	rec := diagnosis(map[string]any{
		"Condition.id":                        "D1",
		"Condition.identifier":                "TCGA-01-DX",
		"Condition.primary_diagnosis":         "Infiltrating duct carcinoma, NOS",
		"Condition.icd_10_code":               "C50.9",
		"Condition.tissue_or_organ_of_origin": "Breast, NOS",
		"Condition.age_at_diagnosis":          "20000",
		"Condition.year_of_diagnosis":         "2008",
		"Condition.tumor_grade":               "G2",
	})
	res, err := Build(bc, rec, subject)
	if err != nil {
		t.Fatal(err)
	}
	c := res.Conditions[0]
	if c.Subject != subject.Ref {
		t.Errorf("subject = %v", c.Subject)
	}
	codes := []string{}
	for _, cd := range c.Code.Coding {
		codes = append(codes, cd.Code)
	}
	if len(codes) != 3 || codes[0] != "C4194" || codes[1] != "MONDO:0006318" || codes[2] != "C50.9" {
		t.Errorf("codings = %v", codes)
	}
	if c.OnsetAge == nil || c.OnsetAge.Code != "d" || c.OnsetAge.Value != 20000 {
		t.Errorf("onsetAge = %+v", c.OnsetAge)
	}
	if c.RecordedDate != "2008" {
		t.Errorf("recordedDate = %q", c.RecordedDate)
	}
	if len(c.BodySite) != 1 || len(res.BodyStructures) != 1 {
		t.Errorf("body site = %+v / %d structures", c.BodySite, len(res.BodyStructures))
	}

	enc := res.Encounters[0]
	if c.Encounter.Reference != "Encounter/"+enc.ID || enc.Diagnosis[0].Condition != fhir.Ref(c) {
		t.Errorf("encounter links broken: %+v / %+v", c.Encounter, enc.Diagnosis)
	}

	if len(res.Observations) != 1 || res.Observations[0].ValueCodeableConcept.Coding[0].Code != "1228848001" {
		t.Errorf("grade observation = %+v", res.Observations)
	}
}

func TestBuild_Treatments(t *testing.T) {
	bc := newContext()
	rec := diagnosis(map[string]any{
		"Condition.id": "D1",
		"treatments": []any{
			map[string]any{
				"MedicationAdministration.id":                   "T1",
				"MedicationAdministration.treatment_type":       "Hormone Therapy",
				"MedicationAdministration.therapeutic_agents":   []any{"Tamoxifen", "Letrozole"},
				"MedicationAdministration.treatment_dose":       "20",
				"MedicationAdministration.treatment_dose_units": "mg",
			},
			map[string]any{
				"MedicationAdministration.id":                   "T2",
				"MedicationAdministration.treatment_type":       "Hormone Therapy",
				"MedicationAdministration.therapeutic_agents":   "Tamoxifen",
				"MedicationAdministration.treatment_or_therapy": "no",
			},
		},
	})
	res, err := Build(bc, rec, subjectOf(t, bc))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Procedures) != 2 {
		t.Fatalf("procedures = %d", len(res.Procedures))
	}
	if len(res.Medications) != 2 {
		t.Errorf("medications = %d, want 2 (Tamoxifen shared)", len(res.Medications))
	}
	if len(res.MedicationAdministrations) != 3 {
		t.Fatalf("administrations = %d", len(res.MedicationAdministrations))
	}
	ma := res.MedicationAdministrations[0]
	if ma.PartOf[0] != fhir.Ref(res.Procedures[0]) || ma.ReasonReference[0] != fhir.Ref(res.Conditions[0]) {
		t.Errorf("administration links = %+v %+v", ma.PartOf, ma.ReasonReference)
	}
	if ma.MedicationReference.Reference != "Medication/"+res.Medications[0].ID {
		t.Errorf("medication reference = %v", ma.MedicationReference)
	}
	if ma.Dosage == nil || ma.Dosage.Dose.Value != 20 || ma.Dosage.Dose.Unit != "mg" {
		t.Errorf("dosage = %+v", ma.Dosage)
	}
	if res.Medications[1].Code.Coding[0].Code != terminology.PlaceholderCode {
		t.Errorf("unknown agent should get the placeholder: %+v", res.Medications[1].Code)
	}
	if res.Procedures[1].Status != "not-done" || res.MedicationAdministrations[2].Status != "not-done" {
		t.Errorf("treatment_or_therapy=no should mark not-done")
	}
}

func TestBuild_MissingDiagnosisID(t *testing.T) {
	bc := newContext()
	_, err := Build(bc, diagnosis(map[string]any{"Condition.primary_diagnosis": "x"}), subjectOf(t, bc))
	if !errors.Is(err, identity.ErrMissingIdentifier) {
		t.Errorf("expected ErrMissingIdentifier, got %v", err)
	}
}
