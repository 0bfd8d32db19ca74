package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmeg/fhirizer/internal/platform/assembly"
	"github.com/bmeg/fhirizer/internal/platform/fhir"
)

const fileExt = ".ndjson"

// DirSink writes <ResourceType>.ndjson files into Dir, replacing existing
// ones.
type DirSink struct {
	Dir string
}

// NewDirSink creates dir if needed.
func NewDirSink(dir string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &DirSink{Dir: dir}, nil
}

// Path returns the file resources of resourceType are written to.
func (s *DirSink) Path(resourceType string) string {
	return filepath.Join(s.Dir, resourceType+fileExt)
}

func (s *DirSink) Write(ctx context.Context, c *assembly.Collection) (map[string]int, error) {
	counts := map[string]int{}
	for _, t := range c.Types() {
		if err := ctx.Err(); err != nil {
			return counts, err
		}
		n, err := s.writeType(t, c.Resources(t))
		if err != nil {
			return counts, err
		}
		counts[t] = n
	}
	return counts, nil
}

func (s *DirSink) writeType(resourceType string, es []fhir.Entity) (int, error) {
	f, err := os.Create(s.Path(resourceType))
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", resourceType, err)
	}
	w := fhir.NewNDJSONWriter(f)
	for _, e := range es {
		if err := w.WriteResource(e); err != nil {
			f.Close()
			return 0, fmt.Errorf("write %s/%s: %w", resourceType, e.Header().ID, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return 0, fmt.Errorf("flush %s: %w", resourceType, err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close %s: %w", resourceType, err)
	}
	return w.Count(), nil
}

// ReadDir calls fn for every resource in the *.ndjson files of dir, files
// in name order.
func ReadDir(dir string, fn func(Row) error) error {
	paths, err := filepath.Glob(filepath.Join(dir, "*"+fileExt))
	if err != nil {
		return err
	}
	sort.Strings(paths)
	for _, p := range paths {
		if err := readFile(p, fn); err != nil {
			return err
		}
	}
	return nil
}

func readFile(path string, fn func(Row) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	want := strings.TrimSuffix(filepath.Base(path), fileExt)
	return fhir.ScanNDJSON(f, func(lineNo int, line []byte) error {
		row, err := ParseRow(line)
		if err != nil {
			return fmt.Errorf("%s: line %d: %w", filepath.Base(path), lineNo, err)
		}
		if row.ResourceType != want {
			return fmt.Errorf("%s: line %d: %s resource in %s file", filepath.Base(path), lineNo, row.ResourceType, want)
		}
		return fn(row)
	})
}
