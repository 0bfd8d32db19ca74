package oncology

import (
	"strings"

	"github.com/bmeg/fhirizer/internal/domain/build"
	"github.com/bmeg/fhirizer/internal/platform/diagnostics"
	"github.com/bmeg/fhirizer/internal/platform/fhir"
	"github.com/bmeg/fhirizer/internal/platform/terminology"
	"github.com/bmeg/fhirizer/pkg/fhirmodels"
)

// NotAvailable is the value of an aggregate staging Observation whose stage
// fields are all empty.
const NotAvailable = "Not Available"

type staging struct {
	parent  *fhir.Observation
	members []*fhir.Observation
	summary fhir.ConditionStage
}

// buildStaging turns every Condition.stage_* field of dx into a member
// Observation under one aggregate Observation. It returns nil when dx has
// no stage fields at all, and an aggregate valued "Not Available" when the
// fields exist but are empty.
func buildStaging(bc *build.Context, dx build.Record, key fhir.Identifier, subject build.Subject, condition fhir.Reference) (*staging, error) {
	keys := dx.KeysWithPrefix(StagePrefix)
	if len(keys) == 0 {
		return nil, nil
	}

	subjectRef := subject.Ref
	category := []fhir.CodeableConcept{*fhir.Concept(fhirmodels.SystemObservationCategory, fhirmodels.ObsCategorySurvey, "Survey")}
	res := bc.Resolver()

	parent := fhir.NewObservation("")
	if err := bc.Derived(parent, key, "stage"); err != nil {
		return nil, err
	}
	parent.Category = category
	parent.Code = *fhir.TextConcept("cancer stage")
	parent.Subject = &subjectRef
	parent.Focus = []fhir.Reference{condition}

	st := &staging{parent: parent}
	for _, k := range keys {
		raw := dx.String(k)
		if raw == "" {
			continue
		}
		name := strings.TrimPrefix(k, "Condition.")

		o := fhir.NewObservation("")
		if err := bc.Derived(o, key, name); err != nil {
			return nil, err
		}
		o.Category = category
		o.Subject = &subjectRef
		o.Focus = []fhir.Reference{condition}
		o.Code = *fhir.TextConcept(name)

		value := res.Concept(raw, terminology.TableStaging, k, key.Value)
		if value == nil {
			value = fhir.TextConcept(raw)
		}
		o.ValueCodeableConcept = value
		if e, t, ok := res.Match(raw, terminology.TableStaging); ok {
			if stageType, ok := t.StageType(e); ok {
				o.Code.Coding = []fhir.Coding{stageType}
			} else {
				bc.Diag.Info(diagnostics.KindMissingCode, k, key.Value, raw, "staging entry has no stage type")
			}
		}

		st.members = append(st.members, o)
		parent.HasMember = append(parent.HasMember, fhir.Ref(o))

		if isOverall(name) && st.summary.Summary == nil {
			st.summary.Summary = value
			if len(o.Code.Coding) > 0 {
				st.summary.Type = &fhir.CodeableConcept{Coding: o.Code.Coding, Text: name}
			}
			parent.ValueCodeableConcept = value
		}
	}

	if len(st.members) == 0 {
		parent.ValueCodeableConcept = fhir.TextConcept(NotAvailable)
		st.summary.Summary = fhir.TextConcept(NotAvailable)
	}
	st.summary.Assessment = []fhir.Reference{fhir.Ref(parent)}
	return st, nil
}

// isOverall reports whether a stage field holds the overall stage rather
// than one of its T, N or M dimensions.
func isOverall(name string) bool {
	return strings.HasSuffix(name, "_stage")
}
