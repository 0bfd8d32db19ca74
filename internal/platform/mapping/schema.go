// Package mapping holds the declarative field-mapping schema: an ordered list
// of source→destination field correspondences indexed both ways.
package mapping

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownSource is returned when a mutation names a source that is not
// in the schema.
var ErrUnknownSource = errors.New("unknown source field")

// Field describes one side of a mapping. ContentAnnotation names the lookup
// table used to code the value, if any. Keys the struct does not know are
// kept in Extra.
type Field struct {
	Name              string         `yaml:"name"`
	Title             string         `yaml:"title,omitempty"`
	Description       string         `yaml:"description,omitempty"`
	Category          string         `yaml:"category,omitempty"`
	Module            string         `yaml:"module,omitempty"`
	Type              string         `yaml:"type,omitempty"`
	Enums             []string       `yaml:"enums,omitempty"`
	ContentAnnotation string         `yaml:"content_annotation,omitempty"`
	Extra             map[string]any `yaml:",inline"`
}

// Map is one source→destination correspondence.
type Map struct {
	Source      Field `yaml:"source"`
	Destination Field `yaml:"destination"`
}

// MissingFieldsError reports destination fields a builder reads that the
// schema does not declare. It signals a programming error, not bad data.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("schema is missing destination fields: %s", strings.Join(e.Fields, ", "))
}

// Schema indexes maps by source and destination name. Lookups take a read
// lock; UpdateValues takes the write lock and must not run while records
// are being transformed.
type Schema struct {
	mu            sync.RWMutex
	objKey        string
	maps          []*Map
	bySource      map[string]*Map
	byDestination map[string]*Map
}

// New indexes maps. Source names must be unique; when several maps share a
// destination the first one is returned by FindByDestination.
func New(objKey string, maps []Map) (*Schema, error) {
	s := &Schema{
		objKey:        objKey,
		maps:          make([]*Map, 0, len(maps)),
		bySource:      make(map[string]*Map, len(maps)),
		byDestination: make(map[string]*Map, len(maps)),
	}
	for i := range maps {
		m := maps[i]
		if m.Source.Name == "" {
			return nil, fmt.Errorf("mapping %d: source name is required", i)
		}
		if _, dup := s.bySource[m.Source.Name]; dup {
			return nil, fmt.Errorf("mapping %d: duplicate source %q", i, m.Source.Name)
		}
		s.maps = append(s.maps, &m)
		s.bySource[m.Source.Name] = &m
		if m.Destination.Name != "" {
			if _, ok := s.byDestination[m.Destination.Name]; !ok {
				s.byDestination[m.Destination.Name] = &m
			}
		}
	}
	return s, nil
}

// ObjKey is the root object name source paths start with, e.g. "case".
func (s *Schema) ObjKey() string { return s.objKey }

// Len returns the number of maps.
func (s *Schema) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.maps)
}

// Maps returns copies of every map in declaration order.
func (s *Schema) Maps() []Map {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Map, len(s.maps))
	for i, m := range s.maps {
		out[i] = *m
	}
	return out
}

// FindBySource returns the map whose source name is name.
func (s *Schema) FindBySource(name string) (Map, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.bySource[name]
	if !ok {
		return Map{}, false
	}
	return *m, true
}

// FindByDestination returns the first map whose destination name is name.
func (s *Schema) FindByDestination(name string) (Map, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byDestination[name]
	if !ok {
		return Map{}, false
	}
	return *m, true
}

// HasSource reports whether a source name is mapped.
func (s *Schema) HasSource(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.bySource[name]
	return ok
}

// HasDestination reports whether any map targets name.
func (s *Schema) HasDestination(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byDestination[name]
	return ok
}

// Missing returns the destination names, sorted and deduplicated, that the
// schema does not declare.
func (s *Schema) Missing(destinations ...string) []string {
	seen := map[string]bool{}
	var out []string
	for _, d := range destinations {
		if seen[d] || s.HasDestination(d) {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Require returns a *MissingFieldsError when any destination is undeclared.
func (s *Schema) Require(destinations ...string) error {
	if missing := s.Missing(destinations...); len(missing) > 0 {
		return &MissingFieldsError{Fields: missing}
	}
	return nil
}

// UpdateValues enriches the map keyed by sourceName in place. Known keys
// (name, title, description, category, module, type, enums,
// content_annotation) set the matching Field member; anything else lands in
// Extra. Renaming either side re-indexes the schema.
func (s *Schema) UpdateValues(sourceName string, source, destination map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.bySource[sourceName]
	if !ok {
		return fmt.Errorf("%q: %w", sourceName, ErrUnknownSource)
	}

	src, dst := m.Source.clone(), m.Destination.clone()
	if err := applyValues(&src, source); err != nil {
		return fmt.Errorf("source %q: %w", sourceName, err)
	}
	if err := applyValues(&dst, destination); err != nil {
		return fmt.Errorf("destination of %q: %w", sourceName, err)
	}
	if src.Name != sourceName {
		if _, dup := s.bySource[src.Name]; dup {
			return fmt.Errorf("rename %q: source %q already exists", sourceName, src.Name)
		}
	}

	oldDest := m.Destination.Name
	m.Source, m.Destination = src, dst
	if src.Name != sourceName {
		delete(s.bySource, sourceName)
		s.bySource[src.Name] = m
	}
	if dst.Name != oldDest {
		s.reindexDestinations()
	}
	return nil
}

func (s *Schema) reindexDestinations() {
	s.byDestination = make(map[string]*Map, len(s.maps))
	for _, m := range s.maps {
		if m.Destination.Name == "" {
			continue
		}
		if _, ok := s.byDestination[m.Destination.Name]; !ok {
			s.byDestination[m.Destination.Name] = m
		}
	}
}

// clone copies the enums and extra values so edits leave f untouched.
func (f Field) clone() Field {
	if f.Enums != nil {
		f.Enums = append([]string(nil), f.Enums...)
	}
	if f.Extra != nil {
		extra := make(map[string]any, len(f.Extra))
		for k, v := range f.Extra {
			extra[k] = v
		}
		f.Extra = extra
	}
	return f
}

func applyValues(f *Field, values map[string]any) error {
	for k, v := range values {
		switch k {
		case "name", "title", "description", "category", "module", "type", "content_annotation":
			str, ok := v.(string)
			if !ok {
				return fmt.Errorf("%s must be a string, got %T", k, v)
			}
			switch k {
			case "name":
				if str == "" {
					return fmt.Errorf("name must not be empty")
				}
				f.Name = str
			case "title":
				f.Title = str
			case "description":
				f.Description = str
			case "category":
				f.Category = str
			case "module":
				f.Module = str
			case "type":
				f.Type = str
			case "content_annotation":
				f.ContentAnnotation = str
			}
		case "enums":
			enums, err := toStrings(v)
			if err != nil {
				return fmt.Errorf("enums: %w", err)
			}
			f.Enums = enums
		default:
			if f.Extra == nil {
				f.Extra = map[string]any{}
			}
			f.Extra[k] = v
		}
	}
	return nil
}

func toStrings(v any) ([]string, error) {
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...), nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string item, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected a list of strings, got %T", v)
}
