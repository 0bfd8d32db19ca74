package fhirmodels

import "strings"

// Common FHIR value set constants used across the builders.

// Code systems for the value sets below.
const (
	SystemObservationCategory = "http://terminology.hl7.org/CodeSystem/observation-category"
	SystemConditionClinical   = "http://terminology.hl7.org/CodeSystem/condition-clinical"
	SystemConditionCategory   = "http://terminology.hl7.org/CodeSystem/condition-category"
	SystemActCode             = "http://terminology.hl7.org/CodeSystem/v3-ActCode"
	SystemDICOMModality       = "http://dicom.nema.org/resources/ontology/DCM"
	SystemLOINC               = "http://loinc.org"
	SystemUSCoreRace          = "http://hl7.org/fhir/us/core/StructureDefinition/us-core-race"
	SystemUSCoreEthnicity     = "http://hl7.org/fhir/us/core/StructureDefinition/us-core-ethnicity"
)

// EncounterStatus values per FHIR R4.
const (
	EncounterStatusFinished = "finished"
	EncounterStatusUnknown  = "unknown"
)

// EncounterClass codes per FHIR R4 v3-ActCode.
const (
	EncounterClassAmbulatory = "AMB"
	EncounterClassInpatient  = "IMP"
)

// ObservationCategory codes.
const (
	ObsCategoryLaboratory    = "laboratory"
	ObsCategoryImaging       = "imaging"
	ObsCategorySocialHistory = "social-history"
	ObsCategorySurvey        = "survey"
	ObsCategoryExam          = "exam"
)

// ConditionClinicalStatus codes.
const (
	ConditionActive   = "active"
	ConditionResolved = "resolved"
)

// Condition category for cancer diagnoses.
const ConditionCategoryEncounterDiagnosis = "encounter-diagnosis"

// AdministrativeGender codes.
const (
	GenderMale    = "male"
	GenderFemale  = "female"
	GenderOther   = "other"
	GenderUnknown = "unknown"
)

// Specimen status codes.
const (
	SpecimenAvailable   = "available"
	SpecimenUnavailable = "unavailable"
)

// Group type and membership codes.
const (
	GroupTypePerson        = "person"
	GroupTypeSpecimen      = "specimen"
	GroupMembershipDefined = "definitional"
)

// NormalizeGender maps a source gender or sex value onto
// AdministrativeGender. Values it cannot place become "unknown"; empty input
// stays empty.
func NormalizeGender(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return ""
	case "male", "m":
		return GenderMale
	case "female", "f":
		return GenderFemale
	case "other", "sex undetermined", "mixed sex":
		return GenderOther
	}
	return GenderUnknown
}
