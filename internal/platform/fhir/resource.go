package fhir

import (
	"fmt"
)

// Resource is the header shared by every emitted resource kind. Kinds embed
// it so the JSON encoder flattens resourceType, id and identifier into the
// top level of each document.
type Resource struct {
	ResourceType string       `json:"resourceType"`
	ID           string       `json:"id"`
	Identifier   []Identifier `json:"identifier,omitempty"`
}

// Header returns the shared resource header.
func (r *Resource) Header() *Resource { return r }

// Entity is implemented by every resource kind in this package.
type Entity interface {
	Header() *Resource
}

type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

type Reference struct {
	Reference string `json:"reference,omitempty"`
	Type      string `json:"type,omitempty"`
	Display   string `json:"display,omitempty"`
}

type Identifier struct {
	Use    string           `json:"use,omitempty"`
	Type   *CodeableConcept `json:"type,omitempty"`
	System string           `json:"system,omitempty"`
	Value  string           `json:"value,omitempty"`
}

// Quantity is used for ages, durations and measured amounts. Code holds the
// UCUM unit code ("d", "a", "mg", ...).
type Quantity struct {
	Value  float64 `json:"value"`
	Unit   string  `json:"unit,omitempty"`
	System string  `json:"system,omitempty"`
	Code   string  `json:"code,omitempty"`
}

type Period struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

type Annotation struct {
	Text string `json:"text"`
}

type Attachment struct {
	ContentType string `json:"contentType,omitempty"`
	URL         string `json:"url,omitempty"`
	Size        *int64 `json:"size,omitempty"`
	Title       string `json:"title,omitempty"`
	Creation    string `json:"creation,omitempty"`
}

type Extension struct {
	URL                  string           `json:"url"`
	ValueString          string           `json:"valueString,omitempty"`
	ValueCode            string           `json:"valueCode,omitempty"`
	ValueBoolean         *bool            `json:"valueBoolean,omitempty"`
	ValueInteger         *int64           `json:"valueInteger,omitempty"`
	ValueCoding          *Coding          `json:"valueCoding,omitempty"`
	ValueCodeableConcept *CodeableConcept `json:"valueCodeableConcept,omitempty"`
	ValueQuantity        *Quantity        `json:"valueQuantity,omitempty"`
	Extension            []Extension      `json:"extension,omitempty"`
}

// FormatReference creates a FHIR reference string.
func FormatReference(resourceType, id string) string {
	return fmt.Sprintf("%s/%s", resourceType, id)
}

// Ref builds a Reference pointing at e. The id must already be minted.
func Ref(e Entity) Reference {
	h := e.Header()
	return Reference{Reference: FormatReference(h.ResourceType, h.ID)}
}

// RefTo builds a Reference from a type and an already minted id.
func RefTo(resourceType, id string) Reference {
	return Reference{Reference: FormatReference(resourceType, id)}
}

// Concept is shorthand for a single-coding CodeableConcept.
func Concept(system, code, display string) *CodeableConcept {
	return &CodeableConcept{
		Coding: []Coding{{System: system, Code: code, Display: display}},
		Text:   display,
	}
}

// TextConcept wraps free text without a coding.
func TextConcept(text string) *CodeableConcept {
	return &CodeableConcept{Text: text}
}
