// Package sink writes assembled resources out: one NDJSON file per
// resource type in a directory, or rows of a PostgreSQL table.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/bmeg/fhirizer/internal/platform/assembly"
)

// Sink persists a collection. Write returns the number of resources
// written per type.
type Sink interface {
	Write(ctx context.Context, c *assembly.Collection) (map[string]int, error)
}

// Row is one encoded resource.
type Row struct {
	ResourceType string
	ID           string
	Content      []byte
}

// Rows encodes every resource of c in collection order.
func Rows(c *assembly.Collection) ([]Row, error) {
	var out []Row
	for _, t := range c.Types() {
		for _, e := range c.Resources(t) {
			data, err := json.Marshal(e)
			if err != nil {
				return nil, fmt.Errorf("encode %s/%s: %w", t, e.Header().ID, err)
			}
			out = append(out, Row{ResourceType: t, ID: e.Header().ID, Content: data})
		}
	}
	return out, nil
}

// ParseRow reads the type and id out of an encoded resource.
func ParseRow(data []byte) (Row, error) {
	var head struct {
		ResourceType string `json:"resourceType"`
		ID           string `json:"id"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return Row{}, err
	}
	if head.ResourceType == "" || head.ID == "" {
		return Row{}, fmt.Errorf("resource without resourceType or id")
	}
	return Row{ResourceType: head.ResourceType, ID: head.ID, Content: bytes.Clone(data)}, nil
}

var (
	_ Sink = (*DirSink)(nil)
	_ Sink = (*PGSink)(nil)
)
