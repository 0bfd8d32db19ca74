package fhir

// Resource type tags for the closed set of kinds this module emits.
const (
	TypePatient                  = "Patient"
	TypeSpecimen                 = "Specimen"
	TypeObservation              = "Observation"
	TypeCondition                = "Condition"
	TypeResearchStudy            = "ResearchStudy"
	TypeResearchSubject          = "ResearchSubject"
	TypeEncounter                = "Encounter"
	TypeDocumentReference        = "DocumentReference"
	TypeGroup                    = "Group"
	TypeProcedure                = "Procedure"
	TypeMedication               = "Medication"
	TypeMedicationAdministration = "MedicationAdministration"
	TypeBodyStructure            = "BodyStructure"
	TypeImagingStudy             = "ImagingStudy"
)

// Kinds lists every resource type in output order.
var Kinds = []string{
	TypeResearchStudy,
	TypeResearchSubject,
	TypePatient,
	TypeSpecimen,
	TypeObservation,
	TypeCondition,
	TypeEncounter,
	TypeDocumentReference,
	TypeGroup,
	TypeProcedure,
	TypeMedication,
	TypeMedicationAdministration,
	TypeBodyStructure,
	TypeImagingStudy,
}

// IsKind reports whether resourceType is one of Kinds.
func IsKind(resourceType string) bool {
	for _, k := range Kinds {
		if k == resourceType {
			return true
		}
	}
	return false
}

type Patient struct {
	Resource
	Active          *bool       `json:"active,omitempty"`
	Gender          string      `json:"gender,omitempty"`
	DeceasedBoolean *bool       `json:"deceasedBoolean,omitempty"`
	Extension       []Extension `json:"extension,omitempty"`
}

// NewPatient returns a Patient header with the given minted id.
func NewPatient(id string) *Patient {
	return &Patient{Resource: Resource{ResourceType: TypePatient, ID: id}}
}

type SpecimenCollection struct {
	BodySite *CodeableConcept `json:"bodySite,omitempty"`
	Method   *CodeableConcept `json:"method,omitempty"`
	Quantity *Quantity        `json:"quantity,omitempty"`
}

type Specimen struct {
	Resource
	Status     string              `json:"status,omitempty"`
	Type       *CodeableConcept    `json:"type,omitempty"`
	Subject    *Reference          `json:"subject,omitempty"`
	Parent     []Reference         `json:"parent,omitempty"`
	Collection *SpecimenCollection `json:"collection,omitempty"`
	Condition  []CodeableConcept   `json:"condition,omitempty"`
	Note       []Annotation        `json:"note,omitempty"`
}

func NewSpecimen(id string) *Specimen {
	return &Specimen{Resource: Resource{ResourceType: TypeSpecimen, ID: id}}
}

type ObservationComponent struct {
	Code                 CodeableConcept  `json:"code"`
	ValueCodeableConcept *CodeableConcept `json:"valueCodeableConcept,omitempty"`
	ValueQuantity        *Quantity        `json:"valueQuantity,omitempty"`
	ValueString          *string          `json:"valueString,omitempty"`
	ValueBoolean         *bool            `json:"valueBoolean,omitempty"`
	ValueInteger         *int64           `json:"valueInteger,omitempty"`
}

type Observation struct {
	Resource
	Status               string                 `json:"status"`
	Category             []CodeableConcept      `json:"category,omitempty"`
	Code                 CodeableConcept        `json:"code"`
	Subject              *Reference             `json:"subject,omitempty"`
	Focus                []Reference            `json:"focus,omitempty"`
	Encounter            *Reference             `json:"encounter,omitempty"`
	Specimen             *Reference             `json:"specimen,omitempty"`
	ValueCodeableConcept *CodeableConcept       `json:"valueCodeableConcept,omitempty"`
	ValueQuantity        *Quantity              `json:"valueQuantity,omitempty"`
	ValueString          *string                `json:"valueString,omitempty"`
	ValueBoolean         *bool                  `json:"valueBoolean,omitempty"`
	ValueInteger         *int64                 `json:"valueInteger,omitempty"`
	Method               *CodeableConcept       `json:"method,omitempty"`
	BodySite             *CodeableConcept       `json:"bodySite,omitempty"`
	HasMember            []Reference            `json:"hasMember,omitempty"`
	DerivedFrom          []Reference            `json:"derivedFrom,omitempty"`
	Component            []ObservationComponent `json:"component,omitempty"`
	Note                 []Annotation           `json:"note,omitempty"`
}

func NewObservation(id string) *Observation {
	return &Observation{Resource: Resource{ResourceType: TypeObservation, ID: id}, Status: "final"}
}

type ConditionStage struct {
	Summary    *CodeableConcept `json:"summary,omitempty"`
	Assessment []Reference      `json:"assessment,omitempty"`
	Type       *CodeableConcept `json:"type,omitempty"`
}

type Condition struct {
	Resource
	ClinicalStatus     *CodeableConcept  `json:"clinicalStatus,omitempty"`
	VerificationStatus *CodeableConcept  `json:"verificationStatus,omitempty"`
	Category           []CodeableConcept `json:"category,omitempty"`
	Code               *CodeableConcept  `json:"code,omitempty"`
	BodySite           []CodeableConcept `json:"bodySite,omitempty"`
	Subject            Reference         `json:"subject"`
	Encounter          *Reference        `json:"encounter,omitempty"`
	OnsetAge           *Quantity         `json:"onsetAge,omitempty"`
	RecordedDate       string            `json:"recordedDate,omitempty"`
	Stage              []ConditionStage  `json:"stage,omitempty"`
	Extension          []Extension       `json:"extension,omitempty"`
	Note               []Annotation      `json:"note,omitempty"`
}

func NewCondition(id string) *Condition {
	return &Condition{Resource: Resource{ResourceType: TypeCondition, ID: id}}
}

type ResearchStudy struct {
	Resource
	Title       string            `json:"title,omitempty"`
	Status      string            `json:"status"`
	PartOf      []Reference       `json:"partOf,omitempty"`
	Description string            `json:"description,omitempty"`
	Category    []CodeableConcept `json:"category,omitempty"`
	Condition   []CodeableConcept `json:"condition,omitempty"`
	Keyword     []CodeableConcept `json:"keyword,omitempty"`
	Extension   []Extension       `json:"extension,omitempty"`
}

func NewResearchStudy(id string) *ResearchStudy {
	return &ResearchStudy{Resource: Resource{ResourceType: TypeResearchStudy, ID: id}, Status: "active"}
}

type ResearchSubject struct {
	Resource
	Status     string    `json:"status"`
	Study      Reference `json:"study"`
	Individual Reference `json:"individual"`
}

func NewResearchSubject(id string) *ResearchSubject {
	return &ResearchSubject{Resource: Resource{ResourceType: TypeResearchSubject, ID: id}, Status: "on-study"}
}

type EncounterDiagnosis struct {
	Condition Reference `json:"condition"`
}

type Encounter struct {
	Resource
	Status    string               `json:"status"`
	Class     Coding               `json:"class"`
	Type      []CodeableConcept    `json:"type,omitempty"`
	Subject   *Reference           `json:"subject,omitempty"`
	Diagnosis []EncounterDiagnosis `json:"diagnosis,omitempty"`
	Length    *Quantity            `json:"length,omitempty"`
}

func NewEncounter(id string) *Encounter {
	return &Encounter{Resource: Resource{ResourceType: TypeEncounter, ID: id}}
}

type DocumentReferenceContent struct {
	Attachment Attachment `json:"attachment"`
	Format     *Coding    `json:"format,omitempty"`
}

type DocumentReferenceContext struct {
	Related []Reference `json:"related,omitempty"`
}

type DocumentReference struct {
	Resource
	Status      string                     `json:"status"`
	DocStatus   string                     `json:"docStatus,omitempty"`
	Type        *CodeableConcept           `json:"type,omitempty"`
	Category    []CodeableConcept          `json:"category,omitempty"`
	Subject     *Reference                 `json:"subject,omitempty"`
	Date        string                     `json:"date,omitempty"`
	Description string                     `json:"description,omitempty"`
	Content     []DocumentReferenceContent `json:"content"`
	Context     *DocumentReferenceContext  `json:"context,omitempty"`
	Extension   []Extension                `json:"extension,omitempty"`
}

func NewDocumentReference(id string) *DocumentReference {
	return &DocumentReference{Resource: Resource{ResourceType: TypeDocumentReference, ID: id}, Status: "current"}
}

type GroupMember struct {
	Entity Reference `json:"entity"`
}

type Group struct {
	Resource
	Type       string        `json:"type"`
	Membership string        `json:"membership"`
	Actual     bool          `json:"actual"`
	Quantity   int           `json:"quantity,omitempty"`
	Member     []GroupMember `json:"member,omitempty"`
}

func NewGroup(id string) *Group {
	return &Group{Resource: Resource{ResourceType: TypeGroup, ID: id}}
}

type Procedure struct {
	Resource
	Status          string            `json:"status"`
	Code            *CodeableConcept  `json:"code,omitempty"`
	Subject         Reference         `json:"subject"`
	Encounter       *Reference        `json:"encounter,omitempty"`
	ReasonReference []Reference       `json:"reasonReference,omitempty"`
	BodySite        []CodeableConcept `json:"bodySite,omitempty"`
	Outcome         *CodeableConcept  `json:"outcome,omitempty"`
	Note            []Annotation      `json:"note,omitempty"`
}

func NewProcedure(id string) *Procedure {
	return &Procedure{Resource: Resource{ResourceType: TypeProcedure, ID: id}, Status: "completed"}
}

type Medication struct {
	Resource
	Status string           `json:"status,omitempty"`
	Code   *CodeableConcept `json:"code,omitempty"`
}

func NewMedication(id string) *Medication {
	return &Medication{Resource: Resource{ResourceType: TypeMedication, ID: id}, Status: "active"}
}

type MedicationDosage struct {
	Text string    `json:"text,omitempty"`
	Dose *Quantity `json:"dose,omitempty"`
}

type MedicationAdministration struct {
	Resource
	Status              string            `json:"status"`
	Category            *CodeableConcept  `json:"category,omitempty"`
	MedicationReference *Reference        `json:"medicationReference,omitempty"`
	Subject             Reference         `json:"subject"`
	Context             *Reference        `json:"context,omitempty"`
	PartOf              []Reference       `json:"partOf,omitempty"`
	ReasonReference     []Reference       `json:"reasonReference,omitempty"`
	Dosage              *MedicationDosage `json:"dosage,omitempty"`
	Extension           []Extension       `json:"extension,omitempty"`
	Note                []Annotation      `json:"note,omitempty"`
}

func NewMedicationAdministration(id string) *MedicationAdministration {
	return &MedicationAdministration{Resource: Resource{ResourceType: TypeMedicationAdministration, ID: id}, Status: "completed"}
}

type BodyStructure struct {
	Resource
	Active      *bool            `json:"active,omitempty"`
	Location    *CodeableConcept `json:"location,omitempty"`
	Morphology  *CodeableConcept `json:"morphology,omitempty"`
	Description string           `json:"description,omitempty"`
	Patient     Reference        `json:"patient"`
}

func NewBodyStructure(id string) *BodyStructure {
	return &BodyStructure{Resource: Resource{ResourceType: TypeBodyStructure, ID: id}}
}

type ImagingStudySeries struct {
	UID         string      `json:"uid"`
	Modality    Coding      `json:"modality"`
	Description string      `json:"description,omitempty"`
	Specimen    []Reference `json:"specimen,omitempty"`
}

type ImagingStudy struct {
	Resource
	Status      string               `json:"status"`
	Subject     Reference            `json:"subject"`
	Description string               `json:"description,omitempty"`
	Series      []ImagingStudySeries `json:"series,omitempty"`
	Note        []Annotation         `json:"note,omitempty"`
}

func NewImagingStudy(id string) *ImagingStudy {
	return &ImagingStudy{Resource: Resource{ResourceType: TypeImagingStudy, ID: id}, Status: "available"}
}
