package sources

import (
	"github.com/bmeg/fhirizer/internal/domain/build"
	"github.com/bmeg/fhirizer/internal/platform/fhir"
	"github.com/bmeg/fhirizer/internal/platform/terminology"
	"github.com/bmeg/fhirizer/pkg/fhirmodels"
)

// Cellosaurus cell line fields.
const (
	FieldCellLineID    = "Specimen.accession"
	FieldCellLineName  = "Specimen.name"
	FieldCellLineType  = "Specimen.category"
	FieldDerivedSite   = "Specimen.derived_from_site"
	FieldDonorSex      = "Patient.gender"
	FieldDiseaseCode   = "Condition.code"
	FieldDiseaseName   = "Condition.display"
	FieldDonorAgeYears = "Patient.age"
)

// Diseases is the container of NCIt disease annotations of a cell line.
const Diseases = "diseases"

func cellLineFields() []string {
	return []string{
		FieldCellLineID, FieldCellLineName, FieldCellLineType, FieldDerivedSite,
		FieldDonorSex, FieldDiseaseCode, FieldDiseaseName, FieldDonorAgeYears,
	}
}

// BuildCellLine maps a Cellosaurus cell line. The donor has no identifier
// of its own, so the Patient is keyed by the accession under the "donor"
// system; the line itself becomes a Specimen of that Patient and every
// disease annotation a Condition.
func BuildCellLine(bc *build.Context, rec build.Record) ([]fhir.Entity, error) {
	bc = bc.WithSystems(build.Cellosaurus)
	accession := rec.String(FieldCellLineID)

	donorKey := bc.Official("donor", accession)
	p := fhir.NewPatient("")
	if err := bc.Identify(p, donorKey); err != nil {
		return nil, err
	}
	p.Gender = fhirmodels.NormalizeGender(rec.String(FieldDonorSex))
	out := []fhir.Entity{p}

	subject, err := bc.NewSubject(donorKey)
	if err != nil {
		return nil, err
	}

	specKey := bc.Official("accession", accession)
	s := fhir.NewSpecimen("")
	if err := bc.Identify(s, specKey, bc.Secondary("name", rec.String(FieldCellLineName))); err != nil {
		return nil, err
	}
	subjectRef := subject.Ref
	s.Subject = &subjectRef
	s.Status = fhirmodels.SpecimenAvailable
	if t := rec.String(FieldCellLineType); t != "" {
		s.Type = fhir.TextConcept(t)
	}
	bs, site, err := bc.BodySite(subject, rec.String(FieldDerivedSite), FieldDerivedSite)
	if err != nil {
		return nil, err
	}
	if bs != nil {
		s.Collection = &fhir.SpecimenCollection{BodySite: site}
	}
	out = append(out, s)
	if bs != nil {
		out = append(out, bs)
	}

	res := bc.Resolver()
	onset := bc.Years(rec, FieldDonorAgeYears, accession)
	seen := map[string]bool{}
	for _, d := range rec.List(Diseases) {
		code := d.String(FieldDiseaseCode)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		c := fhir.NewCondition("")
		if err := bc.IdentifyAll(c, specKey, bc.Secondary("disease", code)); err != nil {
			return nil, err
		}
		c.Subject = subject.Ref
		c.Code = res.Code(terminology.SystemNCIt, code, d.String(FieldDiseaseName), bc.Tables.NCItToMONDO)
		c.OnsetAge = onset
		out = append(out, c)
	}
	return out, nil
}
