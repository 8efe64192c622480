package harness

import (
	"context"
	"fmt"

	"github.com/quarrydata/quarry/internal/cache"
	"github.com/quarrydata/quarry/internal/engine"
	"github.com/quarrydata/quarry/internal/plan"
	"github.com/quarrydata/quarry/internal/registry"
	"github.com/quarrydata/quarry/internal/schema"
)

// Result holds the generated output of one scenario run.
type Result struct {
	Plan *plan.Plan
	Rows map[string][]engine.Row
}

// Run loads the scenario's config, generates every table and checks the
// expectations. The first failed expectation is returned as the error.
func Run(ctx context.Context, s *Scenario) (*Result, error) {
	ov := schema.Overrides{Seed: s.Seed}
	m, err := schema.LoadWith(s.Config, ov)
	if err != nil {
		return nil, err
	}
	reg, err := registry.New(m.Config.Locale)
	if err != nil {
		return nil, err
	}
	p, err := plan.Compile(m, reg)
	if err != nil {
		return nil, err
	}

	rows, err := engine.RunBatch(ctx, p, reg, cache.NewSet())
	if err != nil {
		return nil, err
	}
	result := &Result{Plan: p, Rows: rows}

	for _, e := range s.Expect {
		if err := checkExpectation(result, e); err != nil {
			return result, fmt.Errorf("scenario %q: %w", s.Name, err)
		}
	}
	return result, nil
}

func checkExpectation(r *Result, e Expectation) error {
	rows, ok := r.Rows[e.Table]
	if !ok {
		return fmt.Errorf("table %q was not generated", e.Table)
	}

	if e.Rows != nil && len(rows) != *e.Rows {
		return fmt.Errorf("table %q: got %d rows, want %d", e.Table, len(rows), *e.Rows)
	}

	byID := make(map[int64]engine.Row, len(rows))
	for _, row := range rows {
		if id, ok := row["row_id"].(int64); ok {
			byID[id] = row
		}
	}

	for _, c := range e.Cells {
		row, ok := byID[c.RowID]
		if !ok {
			return fmt.Errorf("table %q: no row with id %d", e.Table, c.RowID)
		}
		got := row[c.Column]
		if !valuesMatch(got, c.Value) {
			return fmt.Errorf("table %q row %d column %q: got %v, want %v",
				e.Table, c.RowID, c.Column, got, c.Value)
		}
	}

	for _, fk := range e.FKMember {
		parentRows, ok := r.Rows[fk.ParentTable]
		if !ok {
			return fmt.Errorf("fk check: parent table %q was not generated", fk.ParentTable)
		}
		valid := make(map[any]bool, len(parentRows))
		for _, prow := range parentRows {
			valid[prow[fk.ParentColumn]] = true
		}
		for _, row := range rows {
			v := row[fk.Column]
			if v == nil {
				continue
			}
			if !valid[v] {
				return fmt.Errorf("table %q column %q: value %v not found in %s.%s",
					e.Table, fk.Column, v, fk.ParentTable, fk.ParentColumn)
			}
		}
	}
	return nil
}

// valuesMatch compares a generated value against a YAML-decoded expected
// value, normalizing the integer width mismatch between the two.
func valuesMatch(got, want any) bool {
	switch w := want.(type) {
	case int:
		if g, ok := got.(int64); ok {
			return g == int64(w)
		}
	case int64:
		if g, ok := got.(int64); ok {
			return g == w
		}
	case float64:
		if g, ok := got.(float64); ok {
			return g == w
		}
	}
	return got == want
}
