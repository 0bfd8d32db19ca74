package assembly

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/bmeg/fhirizer/internal/platform/fhir"
)

// Collection holds emitted resources bucketed by resource type, in
// insertion order within each bucket.
type Collection struct {
	byType map[string][]fhir.Entity
}

// NewCollection returns an empty collection.
func NewCollection() *Collection {
	return &Collection{byType: map[string][]fhir.Entity{}}
}

// Add appends resources to their type buckets.
func (c *Collection) Add(es ...fhir.Entity) {
	for _, e := range es {
		if e == nil {
			continue
		}
		t := e.Header().ResourceType
		c.byType[t] = append(c.byType[t], e)
	}
}

// Merge appends every resource of other, bucket by bucket.
func (c *Collection) Merge(other *Collection) {
	for _, t := range other.Types() {
		c.byType[t] = append(c.byType[t], other.byType[t]...)
	}
}

// Types returns the non-empty resource types: known kinds in fhir.Kinds
// order, then any others sorted.
func (c *Collection) Types() []string {
	var out []string
	known := map[string]bool{}
	for _, k := range fhir.Kinds {
		known[k] = true
		if len(c.byType[k]) > 0 {
			out = append(out, k)
		}
	}
	var extra []string
	for t, es := range c.byType {
		if !known[t] && len(es) > 0 {
			extra = append(extra, t)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

// Resources returns the bucket for resourceType.
func (c *Collection) Resources(resourceType string) []fhir.Entity {
	return c.byType[resourceType]
}

// Len returns the total number of resources.
func (c *Collection) Len() int {
	n := 0
	for _, es := range c.byType {
		n += len(es)
	}
	return n
}

// Contains reports whether a resource of resourceType with id is present.
func (c *Collection) Contains(resourceType, id string) bool {
	for _, e := range c.byType[resourceType] {
		if e.Header().ID == id {
			return true
		}
	}
	return false
}

// Collision records two resources sharing a type and id but not content.
type Collision struct {
	ResourceType string
	ID           string
	First        []byte
	Second       []byte
}

// CollisionError reports divergent id collisions found by Dedup.
type CollisionError struct {
	Collisions []Collision
}

func (e *CollisionError) Error() string {
	first := e.Collisions[0]
	return fmt.Sprintf("%d resource ids collide with divergent content (first: %s)",
		len(e.Collisions), fhir.FormatReference(first.ResourceType, first.ID))
}

// Dedup returns a collection with one resource per type and id. The first
// occurrence keeps its position and the last occurrence supplies the
// content. Since ids are minted deterministically, duplicates normally
// serialize identically; those that do not are returned as collisions.
func (c *Collection) Dedup() (*Collection, []Collision, error) {
	out := NewCollection()
	var collisions []Collision
	for _, t := range c.Types() {
		index := map[string]int{}
		var kept []fhir.Entity
		var encoded [][]byte
		for _, e := range c.byType[t] {
			data, err := json.Marshal(e)
			if err != nil {
				return nil, nil, fmt.Errorf("encode %s/%s: %w", t, e.Header().ID, err)
			}
			id := e.Header().ID
			if i, seen := index[id]; seen {
				if !bytes.Equal(encoded[i], data) {
					collisions = append(collisions, Collision{ResourceType: t, ID: id, First: encoded[i], Second: data})
				}
				kept[i] = e
				encoded[i] = data
				continue
			}
			index[id] = len(kept)
			kept = append(kept, e)
			encoded = append(encoded, data)
		}
		out.byType[t] = kept
	}
	return out, collisions, nil
}
