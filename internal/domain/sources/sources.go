// Package sources composes the entity builders into one build.Func per
// kind of input record.
package sources

import (
	"fmt"
	"sort"

	"github.com/bmeg/fhirizer/internal/domain/build"
	"github.com/bmeg/fhirizer/internal/domain/documents"
	"github.com/bmeg/fhirizer/internal/domain/oncology"
	"github.com/bmeg/fhirizer/internal/domain/patient"
	"github.com/bmeg/fhirizer/internal/domain/research"
	"github.com/bmeg/fhirizer/internal/domain/specimen"
	"github.com/bmeg/fhirizer/internal/platform/fhir"
)

// Source kinds accepted on the command line.
const (
	KindCase        = "case"
	KindFile        = "file"
	KindProject     = "project"
	KindICGCDonor   = "icgc_donor"
	KindCellosaurus = "cellosaurus"
)

// Source describes one kind of input record.
type Source struct {
	Name string
	// Systems is the identifier system base of the source's records.
	Systems build.Systems
	Build   build.Func
	// Fields lists every destination field Build reads, for the startup
	// schema check.
	Fields func() []string
}

var registry = map[string]Source{
	KindCase:        {Name: KindCase, Systems: build.GDC, Build: BuildCase, Fields: caseFields},
	KindFile:        {Name: KindFile, Systems: build.GDC, Build: BuildFile, Fields: fileFields},
	KindProject:     {Name: KindProject, Systems: build.GDC, Build: BuildProject, Fields: research.Fields},
	KindICGCDonor:   {Name: KindICGCDonor, Systems: build.ICGC, Build: BuildICGCDonor, Fields: donorFields},
	KindCellosaurus: {Name: KindCellosaurus, Systems: build.Cellosaurus, Build: BuildCellLine, Fields: cellLineFields},
}

// Lookup returns the named source.
func Lookup(name string) (Source, error) {
	s, ok := registry[name]
	if !ok {
		return Source{}, fmt.Errorf("unknown source %q (want one of %v)", name, Names())
	}
	return s, nil
}

// Names lists the registered sources, sorted.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func caseFields() []string {
	out := patient.GDCCase.Fields()
	out = append(out, research.Fields()...)
	out = append(out, specimen.GDCSample.Fields()...)
	return append(out, oncology.Fields()...)
}

func fileFields() []string {
	out := documents.Fields()
	out = append(out, research.FieldProjectID)
	return append(out, specimen.GDCSample.Fields()...)
}

func donorFields() []string {
	out := patient.ICGCDonor.Fields()
	out = append(out, research.Fields()...)
	out = append(out, specimen.ICGCSpecimen.Fields()...)
	return append(out, oncology.Fields()...)
}

// BuildCase maps a GDC case: the Patient family, the project study and the
// enrolment in it, the specimen hierarchy and the diagnoses. Ids are minted
// under the case's own project when it names one.
func BuildCase(bc *build.Context, rec build.Record) ([]fhir.Entity, error) {
	return buildDonor(bc.WithProject(research.ProjectOf(rec)), rec, patient.GDCCase, specimen.GDCSample)
}

// BuildICGCDonor maps an ICGC donor the same way as a GDC case, with ICGC
// identifier systems.
func BuildICGCDonor(bc *build.Context, rec build.Record) ([]fhir.Entity, error) {
	bc = bc.WithSystems(build.ICGC).WithProject(research.ProjectOf(rec))
	return buildDonor(bc, rec, patient.ICGCDonor, specimen.ICGCSpecimen)
}

func buildDonor(bc *build.Context, rec build.Record, pr patient.Profile, roots ...*specimen.Level) ([]fhir.Entity, error) {
	pat, err := patient.Build(bc, rec, pr)
	if err != nil {
		return nil, err
	}
	out := pat.Entities()

	subject, err := bc.NewSubject(patient.Key(bc, rec, pr))
	if err != nil {
		return nil, err
	}

	if proj := projectRecord(rec); proj != nil {
		studies, err := research.BuildStudies(bc, proj)
		if err != nil {
			return nil, err
		}
		out = append(out, studies.Entities()...)
		rs, err := research.BuildSubject(bc, studies.Project, subject)
		if err != nil {
			return nil, err
		}
		out = append(out, rs)
	}

	specs, err := specimen.Build(bc, rec, subject, roots...)
	if err != nil {
		return nil, err
	}
	out = append(out, specs.Entities()...)

	onc, err := oncology.Build(bc, rec, subject)
	if err != nil {
		return nil, err
	}
	return append(out, onc.Entities()...), nil
}

// projectRecord returns the project a case belongs to: its "project"
// container, or the case itself when it carries the project fields flat.
// It returns nil when no project id is present.
func projectRecord(rec build.Record) build.Record {
	if p := rec.Map(research.Project); p != nil && p.String(research.FieldProjectID) != "" {
		return p
	}
	if rec.String(research.FieldProjectID) != "" {
		return rec
	}
	return nil
}

// BuildFile maps a GDC file. The Patients and Specimens it references are
// emitted by case runs.
func BuildFile(bc *build.Context, rec build.Record) ([]fhir.Entity, error) {
	if cases := rec.List(documents.Cases); len(cases) > 0 {
		bc = bc.WithProject(research.ProjectOf(cases[0]))
	}
	res, err := documents.Build(bc, rec)
	if err != nil {
		return nil, err
	}
	return res.Entities(), nil
}

// BuildProject maps a GDC project record to its program and project
// studies.
func BuildProject(bc *build.Context, rec build.Record) ([]fhir.Entity, error) {
	studies, err := research.BuildStudies(bc.WithProject(research.ProjectOf(rec)), rec)
	if err != nil {
		return nil, err
	}
	return studies.Entities(), nil
}
