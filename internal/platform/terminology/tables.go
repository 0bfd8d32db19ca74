package terminology

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Table names. Each is loaded from "<name>.json" in the tables directory.
const (
	TableDiseaseTypes        = "disease_types"
	TablePrimarySites        = "primary_sites"
	TableRace                = "race"
	TableEthnicity           = "ethnicity"
	TableStaging             = "staging"
	TableTumorGrades         = "tumor_grades"
	TableSampleTypes         = "sample_types"
	TableTissueTypes         = "tissue_types"
	TablePreservationMethods = "preservation_methods"
	TableTherapeuticAgents   = "therapeutic_agents"
	CrossRefNCItToMONDO      = "ncit2mondo"
)

var tableSystems = map[string]string{
	TableDiseaseTypes:        SystemNCIt,
	TablePrimarySites:        SystemSNOMED,
	TableRace:                SystemCDCREC,
	TableEthnicity:           SystemCDCREC,
	TableStaging:             SystemSNOMED,
	TableTumorGrades:         SystemSNOMED,
	TableSampleTypes:         SystemSNOMED,
	TableTissueTypes:         SystemSNOMED,
	TablePreservationMethods: SystemSNOMED,
	TableTherapeuticAgents:   SystemNCIt,
}

// TableNames lists the tables LoadTables looks for, in load order.
func TableNames() []string {
	return []string{
		TableDiseaseTypes, TablePrimarySites, TableRace, TableEthnicity,
		TableStaging, TableTumorGrades, TableSampleTypes, TableTissueTypes,
		TablePreservationMethods, TableTherapeuticAgents,
	}
}

// Tables bundles every lookup table a builder may consult. It is built once
// at startup and never mutated afterwards, so it is shared by all workers
// without locking.
type Tables struct {
	tables      map[string]*Table
	NCItToMONDO *CrossRef
}

// NewTables returns an empty set. Missing tables behave as empty tables.
func NewTables() *Tables {
	return &Tables{tables: map[string]*Table{}}
}

// With registers t under its name and returns the receiver for chaining.
func (ts *Tables) With(t *Table) *Tables {
	ts.tables[t.Name] = t
	return ts
}

// WithEntries registers a table built from entries, using the conventional
// code system for name.
func (ts *Tables) WithEntries(name string, entries []Entry) *Tables {
	return ts.With(NewTable(name, tableSystems[name], entries))
}

// Table returns the named table or nil.
func (ts *Tables) Table(name string) *Table {
	if ts == nil {
		return nil
	}
	return ts.tables[name]
}

// LoadTables reads every known table from dir. Files that do not exist are
// reported in missing and leave the table empty; malformed files are errors.
func LoadTables(dir string) (ts *Tables, missing []string, err error) {
	ts = NewTables()
	for _, name := range TableNames() {
		entries, err := readEntries(filepath.Join(dir, name+".json"))
		if errors.Is(err, os.ErrNotExist) {
			missing = append(missing, name)
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		ts.WithEntries(name, entries)
	}

	entries, err := readEntries(filepath.Join(dir, CrossRefNCItToMONDO+".json"))
	switch {
	case errors.Is(err, os.ErrNotExist):
		missing = append(missing, CrossRefNCItToMONDO)
	case err != nil:
		return nil, nil, err
	default:
		ts.NCItToMONDO = NewCrossRef(CrossRefNCItToMONDO, SystemMONDO, entries)
	}
	return ts, missing, nil
}

func readEntries(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse table %s: %w", path, err)
	}
	return entries, nil
}
