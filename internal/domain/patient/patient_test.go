package patient

import (
	"encoding/json"
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
		WithEntries(terminology.TableRace, []terminology.Entry{{Value: "white", Code: "2106-3", Display: "White"}}).
		WithEntries(terminology.TableEthnicity, []terminology.Entry{{Value: "not hispanic or latino", Code: "2186-5"}})
	return build.NewContext(tables, nil)
}

func TestBuild_Minimal(t *testing.T) {
	bc := newContext()
	rec := build.Record{"Patient.id": "C1", "demographic": map[string]any{"Patient.gender": "male"}}

	res, err := Build(bc, rec, GDCCase)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want, _ := identity.NewMinter(identity.DefaultDomain).Mint(
		fhir.Identifier{System: "https://gdc.cancer.gov/case_id", Value: "C1", Use: "official"}, "Patient", "")
	if res.Patient.ID != want {
		t.Errorf("id = %s, want %s", res.Patient.ID, want)
	}
	if res.Patient.Gender != "male" {
		t.Errorf("gender = %q", res.Patient.Gender)
	}
	if res.Survey != nil {
		t.Errorf("no survey fields, got %+v", res.Survey)
	}
	if len(res.Entities()) != 1 {
		t.Errorf("entities = %d, want 1", len(res.Entities()))
	}
	if bc.Diag.Len() != 0 {
		t.Errorf("unexpected diagnostics: %+v", bc.Diag.Items())
	}
}

func TestBuild_MissingID(t *testing.T) {
	_, err := Build(newContext(), build.Record{"Patient.gender": "male"}, GDCCase)
	if !errors.Is(err, identity.ErrMissingIdentifier) {
		t.Errorf("expected ErrMissingIdentifier, got %v", err)
	}
}

func TestBuild_Demographics(t *testing.T) {
	bc := newContext()
	rec := build.Record{
		"Patient.id":         "C2",
		"Patient.identifier": "TCGA-AA-0001",
		"demographic": map[string]any{
			"Patient.gender":                   "female",
			"Patient.race":                     "white",
			"Patient.ethnicity":                "martian",
			"Patient.vital_status":             "Alive",
			"Observation.survey.days_to_birth": json.Number("-21000"),
			"Observation.survey.age_at_index":  json.Number("57"),
			"Observation.survey.days_to_death": "not reported",
		},
	}
	res, err := Build(bc, rec, GDCCase)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	p := res.Patient
	if len(p.Identifier) != 2 || p.Identifier[1].Use != "secondary" {
		t.Errorf("identifiers = %+v", p.Identifier)
	}
	if p.DeceasedBoolean == nil || *p.DeceasedBoolean {
		t.Errorf("Alive must give deceasedBoolean=false, got %v", p.DeceasedBoolean)
	}
	if len(p.Extension) != 2 {
		t.Fatalf("extensions = %+v", p.Extension)
	}
	race := p.Extension[0]
	if race.Extension[0].ValueCoding.Code != "2106-3" {
		t.Errorf("race coding = %+v", race.Extension[0].ValueCoding)
	}
	eth := p.Extension[1]
	if eth.Extension[0].ValueCoding.Code != terminology.PlaceholderCode {
		t.Errorf("unresolved ethnicity should use the placeholder, got %+v", eth.Extension[0].ValueCoding)
	}
	if bc.Diag.Count(diagnostics.KindUnresolvedCoding) != 1 {
		t.Errorf("expected one unresolved coding, got %+v", bc.Diag.Items())
	}

	if res.Survey == nil {
		t.Fatal("expected survey observation")
	}
	if len(res.Survey.Component) != 2 {
		t.Fatalf("survey components = %+v", res.Survey.Component)
	}
	days := res.Survey.Component[0]
	if days.Code.Text != "days_to_birth" || days.ValueQuantity.Code != "d" || days.ValueQuantity.Value != -21000 {
		t.Errorf("days_to_birth = %+v", days)
	}
	if age := res.Survey.Component[1]; age.ValueQuantity.Code != "a" {
		t.Errorf("age_at_index unit = %q", age.ValueQuantity.Code)
	}
	if res.Survey.Subject.Reference != "Patient/"+p.ID {
		t.Errorf("survey subject = %v", res.Survey.Subject)
	}
	if res.Survey.ID == p.ID {
		t.Error("survey id must differ from patient id")
	}

	items := bc.Diag.Items()
	found := false
	for _, d := range items {
		if d.Kind == diagnostics.KindTypeCoercion && d.Field == "Observation.survey.days_to_death" && d.Subject == "C2" {
			found = true
		}
	}
	if !found {
		t.Errorf("coercion failure not logged: %+v", items)
	}
}

func TestBuild_StrictPolicyDropsCoding(t *testing.T) {
	bc := newContext()
	bc.Policy = terminology.PolicyStrict
	res, err := Build(bc, build.Record{"Patient.id": "C3", "Patient.race": "unknown value"}, GDCCase)
	if err != nil {
		t.Fatal(err)
	}
	ext := res.Patient.Extension[0]
	if len(ext.Extension) != 1 || ext.Extension[0].URL != "text" {
		t.Errorf("strict policy should keep only the text: %+v", ext)
	}
}

func TestBuild_ExposuresAndFamilyHistory(t *testing.T) {
	bc := newContext()
	rec := build.Record{
		"Patient.id": "C4",
		"exposures": []any{
			map[string]any{"Observation.exposure.id": "E1", "Observation.exposure.pack_years_smoked": json.Number("30")},
			map[string]any{"Observation.exposure.id": "E2"},
		},
		"family_histories": []any{
			map[string]any{"Observation.family_history.id": "F1", "Observation.family_history.relative_with_cancer_history": "yes"},
		},
	}
	res, err := Build(bc, rec, GDCCase)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Exposures) != 1 {
		t.Fatalf("exposures = %d, want 1 (empty sub-record skipped)", len(res.Exposures))
	}
	if len(res.FamilyHistories) != 1 {
		t.Fatalf("family histories = %d", len(res.FamilyHistories))
	}
	if res.Exposures[0].Identifier[0].System != "https://gdc.cancer.gov/exposure_id" {
		t.Errorf("exposure identifier = %+v", res.Exposures[0].Identifier)
	}
	if got := len(res.Entities()); got != 3 {
		t.Errorf("entities = %d, want 3", got)
	}

	_, err = Build(bc, build.Record{
		"Patient.id": "C5",
		"exposures":  []any{map[string]any{"Observation.exposure.alcohol_history": "Yes"}},
	}, GDCCase)
	if !errors.Is(err, identity.ErrMissingIdentifier) {
		t.Errorf("exposure without id should fail the record, got %v", err)
	}
}

func TestBuild_IsDeterministic(t *testing.T) {
	rec := build.Record{"Patient.id": "C6", "Patient.race": "white", "Patient.vital_status": "Dead"}
	a, _ := Build(newContext(), rec, GDCCase)
	b, _ := Build(newContext(), rec, GDCCase)
	ja, _ := json.Marshal(a.Patient)
	jb, _ := json.Marshal(b.Patient)
	if string(ja) != string(jb) {
		t.Errorf("not deterministic:\n%s\n%s", ja, jb)
	}
}
