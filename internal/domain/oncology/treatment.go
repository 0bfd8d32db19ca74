package oncology

import (
	"strings"

	"github.com/bmeg/fhirizer/internal/domain/build"
	"github.com/bmeg/fhirizer/internal/platform/fhir"
	"github.com/bmeg/fhirizer/internal/platform/terminology"
)

// Treatment fields, read from each entry of a diagnosis's "treatments"
// list.
const (
	FieldTreatmentID          = "MedicationAdministration.id"
	FieldTreatmentSubmitterID = "MedicationAdministration.identifier"
	FieldTreatmentType        = "MedicationAdministration.treatment_type"
	FieldTherapeuticAgents    = "MedicationAdministration.therapeutic_agents"
	FieldTreatmentOrTherapy   = "MedicationAdministration.treatment_or_therapy"
	FieldTreatmentOutcome     = "MedicationAdministration.treatment_outcome"
	FieldTreatmentIntent      = "MedicationAdministration.treatment_intent_type"
	FieldTreatmentDose        = "MedicationAdministration.treatment_dose"
	FieldTreatmentDoseUnits   = "MedicationAdministration.treatment_dose_units"
)

// Treatments is the container of treatment sub-records in a diagnosis.
const Treatments = "treatments"

var treatmentNames = build.IDNames{Official: "treatment_id", Secondary: "treatment_submitter_id"}

func treatmentFields() []string {
	return []string{
		FieldTreatmentID, FieldTreatmentSubmitterID, FieldTreatmentType, FieldTherapeuticAgents,
		FieldTreatmentOrTherapy, FieldTreatmentOutcome, FieldTreatmentIntent, FieldTreatmentDose,
		FieldTreatmentDoseUnits,
	}
}

// buildTreatment emits a Procedure for the treatment and, for every
// therapeutic agent, a Medication and a MedicationAdministration that is
// part of that Procedure.
func buildTreatment(bc *build.Context, tx build.Record, subject build.Subject, condition, encounter fhir.Reference, out *Result) error {
	key := bc.Official(treatmentNames.Official, tx.String(FieldTreatmentID))
	proc := fhir.NewProcedure("")
	if err := bc.Identify(proc, key, bc.Secondary(treatmentNames.Secondary, tx.String(FieldTreatmentSubmitterID))); err != nil {
		return err
	}
	procRef := fhir.Ref(proc)
	encRef := encounter

	proc.Subject = subject.Ref
	proc.Encounter = &encRef
	proc.ReasonReference = []fhir.Reference{condition}
	if t := tx.String(FieldTreatmentType); t != "" {
		proc.Code = fhir.TextConcept(t)
	}
	if strings.EqualFold(tx.String(FieldTreatmentOrTherapy), "no") {
		proc.Status = "not-done"
	}
	if o := tx.String(FieldTreatmentOutcome); o != "" {
		proc.Outcome = fhir.TextConcept(o)
	}
	out.Procedures = append(out.Procedures, proc)

	var dosage *fhir.MedicationDosage
	if dose, ok := bc.Decimal(tx, FieldTreatmentDose, key.Value); ok {
		units := tx.String(FieldTreatmentDoseUnits)
		dosage = &fhir.MedicationDosage{Dose: &fhir.Quantity{Value: dose, Unit: units}}
	}

	res := bc.Resolver()
	for _, agent := range tx.Strings(FieldTherapeuticAgents) {
		med := fhir.NewMedication("")
		if err := bc.Identify(med, bc.Official("therapeutic_agent", agent)); err != nil {
			return err
		}
		med.Code = res.Concept(agent, terminology.TableTherapeuticAgents, FieldTherapeuticAgents, key.Value)
		if med.Code == nil {
			med.Code = fhir.TextConcept(agent)
		}
		if !out.medications[med.ID] {
			out.medications[med.ID] = true
			out.Medications = append(out.Medications, med)
		}

		ma := fhir.NewMedicationAdministration("")
		if err := bc.IdentifyAll(ma, key, bc.Secondary("therapeutic_agent", agent)); err != nil {
			return err
		}
		medRef := fhir.Ref(med)
		ma.MedicationReference = &medRef
		ma.Subject = subject.Ref
		ma.Context = &encRef
		ma.PartOf = []fhir.Reference{procRef}
		ma.ReasonReference = []fhir.Reference{condition}
		ma.Status = proc.Status
		if intent := tx.String(FieldTreatmentIntent); intent != "" {
			ma.Category = fhir.TextConcept(intent)
		}
		ma.Dosage = dosage
		out.MedicationAdministrations = append(out.MedicationAdministrations, ma)
	}
	return nil
}
