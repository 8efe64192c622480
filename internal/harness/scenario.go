package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is one conformance case: generate from Config and check Expect.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`

	// Config is the schema config path, relative to the scenario file.
	Config string `yaml:"config"`

	// Seed overrides the config seed when set.
	Seed *int64 `yaml:"seed,omitempty"`

	Expect []Expectation `yaml:"expect"`
}

// Expectation checks one table of the generated output.
type Expectation struct {
	Table string `yaml:"table"`

	// Rows is the expected row count, when set.
	Rows *int `yaml:"rows,omitempty"`

	// Cells pin exact values at (row_id, column).
	Cells []CellExpect `yaml:"cells,omitempty"`

	// FKMember requires every value of Column to appear among the parent
	// column's values (NULLs excluded).
	FKMember []FKExpect `yaml:"fk_member,omitempty"`
}

// CellExpect pins one generated value.
type CellExpect struct {
	RowID  int64  `yaml:"row_id"`
	Column string `yaml:"column"`
	Value  any    `yaml:"value"`
}

// FKExpect names a child column and the parent column it must draw from.
type FKExpect struct {
	Column       string `yaml:"column"`
	ParentTable  string `yaml:"parent_table"`
	ParentColumn string `yaml:"parent_column"`
}

// LoadScenario reads and parses a scenario file. The config path is
// resolved relative to the scenario file's directory. Unknown YAML fields
// are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", filepath.Base(path), err)
	}

	if !filepath.IsAbs(s.Config) {
		s.Config = filepath.Join(filepath.Dir(path), s.Config)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", filepath.Base(path), err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Config == "" {
		return fmt.Errorf("config is required")
	}
	if _, err := os.Stat(s.Config); err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	if len(s.Expect) == 0 {
		return fmt.Errorf("expect list is required and must be non-empty")
	}
	for i, e := range s.Expect {
		if e.Table == "" {
			return fmt.Errorf("expect[%d]: table is required", i)
		}
		if e.Rows == nil && len(e.Cells) == 0 && len(e.FKMember) == 0 {
			return fmt.Errorf("expect[%d]: at least one check is required", i)
		}
		for j, c := range e.Cells {
			if c.Column == "" {
				return fmt.Errorf("expect[%d].cells[%d]: column is required", i, j)
			}
		}
		for j, fk := range e.FKMember {
			if fk.Column == "" || fk.ParentTable == "" || fk.ParentColumn == "" {
				return fmt.Errorf("expect[%d].fk_member[%d]: column, parent_table and parent_column are required", i, j)
			}
		}
	}
	return nil
}
