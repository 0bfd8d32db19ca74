// Package patient builds the Patient family: the Patient itself, the
// demographic survey Observation and exposure and family history
// Observations.
package patient

import (
	"github.com/bmeg/fhirizer/internal/domain/build"
	"github.com/bmeg/fhirizer/internal/platform/fhir"
	"github.com/bmeg/fhirizer/internal/platform/terminology"
	"github.com/bmeg/fhirizer/pkg/fhirmodels"
)

// Destination fields read by Build.
const (
	FieldID          = "Patient.id"
	FieldSubmitterID = "Patient.identifier"
	FieldGender      = "Patient.gender"
	FieldRace        = "Patient.race"
	FieldEthnicity   = "Patient.ethnicity"
	FieldVitalStatus = "Patient.vital_status"

	FieldDaysToBirth  = "Observation.survey.days_to_birth"
	FieldDaysToDeath  = "Observation.survey.days_to_death"
	FieldAgeAtIndex   = "Observation.survey.age_at_index"
	FieldYearOfBirth  = "Observation.survey.year_of_birth"
	FieldYearOfDeath  = "Observation.survey.year_of_death"
	FieldCauseOfDeath = "Observation.survey.cause_of_death"

	FieldExposureID      = "Observation.exposure.id"
	FieldFamilyHistoryID = "Observation.family_history.id"

	prefixExposure      = "Observation.exposure."
	prefixFamilyHistory = "Observation.family_history."
)

// Containers holding nested sub-records.
const (
	Demographic     = "demographic"
	Exposures       = "exposures"
	FamilyHistories = "family_histories"
)

// SurveyField is one demographic survey field. Unit is build.UnitDays,
// build.UnitYears or empty for values kept as they are.
type SurveyField struct {
	Key  string
	Name string
	Unit string
}

// Profile selects the identifier systems and survey fields of a source.
type Profile struct {
	Names  build.IDNames
	Survey []SurveyField
}

// ICGC donor survey fields.
const (
	FieldDonorAgeAtDiagnosis = "Observation.survey.donor_age_at_diagnosis"
	FieldDonorSurvivalTime   = "Observation.survey.donor_survival_time"
	FieldDonorLastFollowup   = "Observation.survey.donor_interval_of_last_followup"
)

// GDCCase and ICGCDonor are the shipped profiles.
var (
	GDCCase = Profile{
		Names:  build.IDNames{Official: "case_id", Secondary: "case_submitter_id"},
		Survey: []SurveyField{
			{FieldDaysToBirth, "days_to_birth", build.UnitDays},
			{FieldDaysToDeath, "days_to_death", build.UnitDays},
			{FieldAgeAtIndex, "age_at_index", build.UnitYears},
			{FieldYearOfBirth, "year_of_birth", ""},
			{FieldYearOfDeath, "year_of_death", ""},
			{FieldCauseOfDeath, "cause_of_death", ""},
		},
	}
	ICGCDonor = Profile{
		Names:  build.IDNames{Official: "donor_id", Secondary: "submitted_donor_id"},
		Survey: []SurveyField{
			{FieldDonorAgeAtDiagnosis, "donor_age_at_diagnosis", build.UnitYears},
			{FieldDonorSurvivalTime, "donor_survival_time", build.UnitDays},
			{FieldDonorLastFollowup, "donor_interval_of_last_followup", build.UnitDays},
		},
	}
)

// Fields lists the destination fields the profile reads.
func (pr Profile) Fields() []string {
	out := []string{FieldID, FieldSubmitterID, FieldGender, FieldRace, FieldEthnicity, FieldVitalStatus,
		FieldExposureID, FieldFamilyHistoryID}
	for _, f := range pr.Survey {
		out = append(out, f.Key)
	}
	return out
}

// Result is what Build emits. Survey is nil when the record carries no
// survey fields.
type Result struct {
	Patient         *fhir.Patient
	Survey          *fhir.Observation
	Exposures       []*fhir.Observation
	FamilyHistories []*fhir.Observation
}

// Entities flattens the result in emission order.
func (r *Result) Entities() []fhir.Entity {
	out := []fhir.Entity{r.Patient}
	if r.Survey != nil {
		out = append(out, r.Survey)
	}
	for _, o := range r.Exposures {
		out = append(out, o)
	}
	for _, o := range r.FamilyHistories {
		out = append(out, o)
	}
	return out
}

// Key returns the official identifier the Patient id is minted from.
func Key(bc *build.Context, rec build.Record, pr Profile) fhir.Identifier {
	return bc.Official(pr.Names.Official, rec.String(FieldID))
}

// Build maps a case-like record to a Patient. Demographic fields are read
// from the "demographic" container when present and from the record itself
// otherwise.
func Build(bc *build.Context, rec build.Record, pr Profile) (*Result, error) {
	key := Key(bc, rec, pr)
	subject := key.Value

	p := fhir.NewPatient("")
	if err := bc.Identify(p, key, bc.Secondary(pr.Names.Secondary, rec.String(FieldSubmitterID))); err != nil {
		return nil, err
	}

	demo := demographics(rec)
	if g := fhirmodels.NormalizeGender(demo.String(FieldGender)); g != "" {
		p.Gender = g
	}

	res := bc.Resolver()
	if raw := demo.String(FieldRace); raw != "" {
		p.Extension = append(p.Extension, category(fhirmodels.SystemUSCoreRace, raw,
			res.Concept(raw, terminology.TableRace, FieldRace, subject)))
	}
	if raw := demo.String(FieldEthnicity); raw != "" {
		p.Extension = append(p.Extension, category(fhirmodels.SystemUSCoreEthnicity, raw,
			res.Concept(raw, terminology.TableEthnicity, FieldEthnicity, subject)))
	}

	switch demo.String(FieldVitalStatus) {
	case "Dead", "dead", "deceased":
		dead := true
		p.DeceasedBoolean = &dead
	case "Alive", "alive":
		dead := false
		p.DeceasedBoolean = &dead
	}

	out := &Result{Patient: p}
	ref := fhir.Ref(p)

	survey, err := buildSurvey(bc, demo, pr.Survey, key, ref)
	if err != nil {
		return nil, err
	}
	out.Survey = survey

	for _, sub := range rec.List(Exposures) {
		o, err := buildSocial(bc, sub, ref, subject, FieldExposureID, prefixExposure, "exposure_id", "exposure")
		if err != nil {
			return nil, err
		}
		if o != nil {
			out.Exposures = append(out.Exposures, o)
		}
	}
	for _, sub := range rec.List(FamilyHistories) {
		o, err := buildSocial(bc, sub, ref, subject, FieldFamilyHistoryID, prefixFamilyHistory, "family_history_id", "family history")
		if err != nil {
			return nil, err
		}
		if o != nil {
			out.FamilyHistories = append(out.FamilyHistories, o)
		}
	}
	return out, nil
}

func demographics(rec build.Record) build.Record {
	demo := rec.Map(Demographic)
	if demo == nil {
		return rec
	}
	merged := build.Record{}
	for k, v := range rec {
		merged[k] = v
	}
	for k, v := range demo {
		merged[k] = v
	}
	return merged
}

// category renders a US Core race or ethnicity extension.
func category(url, text string, cc *fhir.CodeableConcept) fhir.Extension {
	ext := fhir.Extension{URL: url}
	if cc != nil && len(cc.Coding) > 0 {
		c := cc.Coding[0]
		ext.Extension = append(ext.Extension, fhir.Extension{URL: "ombCategory", ValueCoding: &c})
	}
	ext.Extension = append(ext.Extension, fhir.Extension{URL: "text", ValueString: text})
	return ext
}

func buildSurvey(bc *build.Context, demo build.Record, fields []SurveyField, key fhir.Identifier, subject fhir.Reference) (*fhir.Observation, error) {
	var comps []fhir.ObservationComponent
	for _, f := range fields {
		var q *fhir.Quantity
		switch f.Unit {
		case build.UnitDays:
			q = bc.Days(demo, f.Key, key.Value)
		case build.UnitYears:
			q = bc.Years(demo, f.Key, key.Value)
		default:
			if c, ok := bc.Component(demo, f.Key, f.Name, key.Value); ok {
				comps = append(comps, c)
			}
			continue
		}
		if q != nil {
			comps = append(comps, fhir.ObservationComponent{Code: *fhir.TextConcept(f.Name), ValueQuantity: q})
		}
	}
	if len(comps) == 0 {
		return nil, nil
	}

	o := fhir.NewObservation("")
	if err := bc.Derived(o, key, "demographic_survey"); err != nil {
		return nil, err
	}
	o.Category = []fhir.CodeableConcept{*fhir.Concept(fhirmodels.SystemObservationCategory, fhirmodels.ObsCategorySurvey, "Survey")}
	o.Code = *fhir.TextConcept("demographic survey")
	o.Subject = &subject
	o.Focus = []fhir.Reference{subject}
	o.Component = comps
	return o, nil
}

// buildSocial maps an exposure or family history sub-record. Records with
// no fields besides the id produce nothing.
func buildSocial(bc *build.Context, sub build.Record, patient fhir.Reference, subject, idField, prefix, system, text string) (*fhir.Observation, error) {
	comps := bc.Components(sub, prefix, subject, idField)
	if len(comps) == 0 {
		return nil, nil
	}
	o := fhir.NewObservation("")
	if err := bc.Identify(o, bc.Official(system, sub.String(idField))); err != nil {
		return nil, err
	}
	o.Category = []fhir.CodeableConcept{*fhir.Concept(fhirmodels.SystemObservationCategory, fhirmodels.ObsCategorySocialHistory, "Social History")}
	o.Code = *fhir.TextConcept(text)
	o.Subject = &patient
	o.Component = comps
	return o, nil
}
