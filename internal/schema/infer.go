package schema

import (
	"fmt"
	"strings"

	"github.com/quarrydata/quarry/internal/expr"
)

// autoData marks a column whose expression should be inferred from a parent
// entity attribute by name.
const autoData = "auto"

// inferAttributes rewrites "auto" columns into copy_from_fk calls against
// the best-matching parent column. The rewrite is deterministic, happens
// exactly once at load time, and leaves the model looking as if the user
// had written the copy_from_fk call themselves.
//
// Matching order for an auto column named N:
//  1. a parent referenced by a sibling foreign_key column that has a
//     column named exactly N
//  2. a parent column that N ends with (order_customer_name → name)
//
// With inference disabled, an "auto" column is a configuration error.
func (m *Model) inferAttributes() error {
	for _, t := range m.Tables {
		for _, c := range t.Columns {
			if strings.TrimSpace(c.Data) != autoData {
				continue
			}
			if !m.Config.InferAttrs {
				return Errf(t.Name, c.Name, "data is %q but infer_entity_attrs_by_name is not enabled", autoData)
			}
			rewritten, err := m.inferColumn(t, c)
			if err != nil {
				return err
			}
			c.Data = rewritten
		}
	}
	return nil
}

// fkColumns returns the table's columns carrying a foreign_key call with a
// literal parent table, paired with that parent table name.
func (m *Model) fkColumns(t *Table) []fkColumn {
	var out []fkColumn
	for _, c := range t.Columns {
		prog, err := expr.Parse(c.Data)
		if err != nil {
			continue // plan reports parse errors with full context
		}
		for _, call := range prog.FKCalls() {
			if call.Table != "" {
				out = append(out, fkColumn{column: c.Name, parent: call.Table})
				break
			}
		}
	}
	return out
}

type fkColumn struct {
	column string
	parent string
}

func (m *Model) inferColumn(t *Table, c *Column) (string, error) {
	fks := m.fkColumns(t)
	if len(fks) == 0 {
		return "", Errf(t.Name, c.Name, "cannot infer attribute: table has no foreign_key column")
	}

	// Pass 1: exact column-name match on any referenced parent.
	for _, fk := range fks {
		parent := m.Table(fk.parent)
		if parent == nil {
			continue
		}
		if parent.Column(c.Name) != nil {
			return copyFromFKExpr(fk.column, fk.parent, c.Name), nil
		}
	}

	// Pass 2: suffix match (customer_email → email).
	for _, fk := range fks {
		parent := m.Table(fk.parent)
		if parent == nil {
			continue
		}
		for _, pc := range parent.Columns {
			if pc.Name != c.Name && strings.HasSuffix(c.Name, "_"+pc.Name) {
				return copyFromFKExpr(fk.column, fk.parent, pc.Name), nil
			}
		}
	}

	return "", Errf(t.Name, c.Name, "cannot infer attribute: no matching column on parent table(s)")
}

func copyFromFKExpr(fkColumn, parentTable, parentAttr string) string {
	return fmt.Sprintf("copy_from_fk(%q, %q, %q)", fkColumn, parentTable, parentAttr)
}
