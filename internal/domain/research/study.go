// Package research builds the ResearchStudy hierarchy (program, then
// project as part of the program) and the ResearchSubject enrolling a
// Patient in a project.
package research

import (
	"github.com/bmeg/fhirizer/internal/domain/build"
	"github.com/bmeg/fhirizer/internal/platform/fhir"
	"github.com/bmeg/fhirizer/internal/platform/terminology"
)

// Project fields. A case carries them in its "project" container, a
// project record at the top level.
const (
	FieldProjectID    = "ResearchStudy.id"
	FieldProjectName  = "ResearchStudy.name"
	FieldDiseaseType  = "ResearchStudy.disease_type"
	FieldPrimarySite  = "ResearchStudy.primary_site"
	FieldDbGaP        = "ResearchStudy.dbgap_accession_number"
	FieldProgramName  = "ResearchStudy.program.name"
	FieldProgramID    = "ResearchStudy.program.id"
	FieldProgramDbGaP = "ResearchStudy.program.dbgap_accession_number"
)

// Containers of project and program sub-records.
const (
	Project = "project"
	Program = "program"
)

const (
	dbGaPIdentifier    = "dbgap_accession_number"
	programIdentifier  = "program_id"
	projectIdentifier  = "project_id"
	programNameSystem  = "program"
	researchSubjectTag = "research_subject"
)

// Fields lists the destination fields this package reads.
func Fields() []string {
	return []string{
		FieldProjectID, FieldProjectName, FieldDiseaseType, FieldPrimarySite, FieldDbGaP,
		FieldProgramName, FieldProgramID, FieldProgramDbGaP,
	}
}

// Studies is what BuildStudies emits. Program is nil when the record names
// no program.
type Studies struct {
	Program *fhir.ResearchStudy
	Project *fhir.ResearchStudy
}

// Entities flattens the result, program first.
func (s *Studies) Entities() []fhir.Entity {
	var out []fhir.Entity
	if s.Program != nil {
		out = append(out, s.Program)
	}
	if s.Project != nil {
		out = append(out, s.Project)
	}
	return out
}

// ProjectOf returns the project id named by a case-like record, looking in
// its "project" container first.
func ProjectOf(rec build.Record) string {
	if p := rec.Map(Project); p != nil {
		if id := p.String(FieldProjectID); id != "" {
			return id
		}
	}
	return rec.String(FieldProjectID)
}

// BuildStudies maps a project-shaped record. The program study is minted
// under the program name and the project study under the project id, so
// both are the same resources whichever case or file names them.
func BuildStudies(bc *build.Context, rec build.Record) (*Studies, error) {
	out := &Studies{}
	projectID := rec.String(FieldProjectID)

	if prog := programRecord(rec); prog != nil {
		name := prog.String(FieldProgramName)
		if name != "" {
			pc := bc.WithProject(name)
			p := fhir.NewResearchStudy("")
			if err := pc.Identify(p, pc.Official(programNameSystem, name),
				pc.Secondary(programIdentifier, prog.String(FieldProgramID)),
				pc.Secondary(dbGaPIdentifier, prog.String(FieldProgramDbGaP))); err != nil {
				return nil, err
			}
			p.Title = name
			out.Program = p
		}
	}

	pc := bc.WithProject(projectID)
	s := fhir.NewResearchStudy("")
	if err := pc.Identify(s, pc.Official(projectIdentifier, projectID),
		pc.Secondary(dbGaPIdentifier, rec.String(FieldDbGaP))); err != nil {
		return nil, err
	}
	s.Title = rec.String(FieldProjectName)
	if s.Title == "" {
		s.Title = projectID
	}
	if out.Program != nil {
		s.PartOf = []fhir.Reference{fhir.Ref(out.Program)}
	}

	res := pc.Resolver()
	for _, d := range rec.Strings(FieldDiseaseType) {
		if cc := res.Concept(d, terminology.TableDiseaseTypes, FieldDiseaseType, projectID); cc != nil {
			s.Condition = append(s.Condition, *cc)
		}
	}
	for _, site := range rec.Strings(FieldPrimarySite) {
		if cc := res.Concept(site, terminology.TablePrimarySites, FieldPrimarySite, projectID); cc != nil {
			s.Keyword = append(s.Keyword, *cc)
		}
	}
	out.Project = s
	return out, nil
}

// programRecord finds the program either nested under "program" or as
// flat fields on rec.
func programRecord(rec build.Record) build.Record {
	if p := rec.Map(Program); p != nil {
		return p
	}
	if rec.Has(FieldProgramName) {
		return rec
	}
	return nil
}

// BuildSubject enrols subject in study.
func BuildSubject(bc *build.Context, study *fhir.ResearchStudy, subject build.Subject) (*fhir.ResearchSubject, error) {
	rs := fhir.NewResearchSubject("")
	if err := bc.Derived(rs, subject.Key, researchSubjectTag); err != nil {
		return nil, err
	}
	rs.Study = fhir.Ref(study)
	rs.Individual = subject.Ref
	return rs, nil
}
