package plan

import (
	"strings"

	"github.com/quarrydata/quarry/internal/expr"
	"github.com/quarrydata/quarry/internal/schema"
)

// Column evaluation phases. Phase 1 columns reference no same-table
// columns; Phase 2 columns may reference Phase 1 results and earlier
// Phase 2 results.
const (
	PhaseIndependent = 1
	PhaseDependent   = 2
)

// Distribution kinds accepted by foreign_key.
const (
	DistUniform        = "uniform"
	DistZipf           = "zipf"
	DistWeightedParent = "weighted_parent"
)

// Column is one compiled column: the schema definition, its parsed
// program, static references, and its evaluation phase.
type Column struct {
	Schema *schema.Column
	Prog   *expr.Program
	Refs   expr.Refs
	Phase  int
}

// TablePlan is the per-table execution plan.
type TablePlan struct {
	Table *schema.Table

	// Ordered is the column evaluation order: Phase 1 columns in
	// declaration order, then Phase 2 columns in declaration order.
	Ordered []*Column

	// Parents are the tables this table references via foreign_key or
	// copy_from_fk, in first-appearance order.
	Parents []string
}

// Plan is the compiled execution plan for a whole model.
type Plan struct {
	Model  *schema.Model
	Tables map[string]*TablePlan

	// Order lists table names with every parent strictly before its
	// referencing children.
	Order []string
}

// CapabilityResolver answers whether a named generator function exists.
// Resolution happens here, once, so a typo in a function name is a
// load-time error rather than a run-time surprise.
type CapabilityResolver interface {
	Has(name string) bool
}

// Compile builds the execution plan for a validated model.
func Compile(m *schema.Model, caps CapabilityResolver) (*Plan, error) {
	p := &Plan{
		Model:  m,
		Tables: make(map[string]*TablePlan, len(m.Tables)),
	}

	for _, t := range m.Tables {
		tp, err := compileTable(m, t, caps)
		if err != nil {
			return nil, err
		}
		p.Tables[t.Name] = tp
	}

	order, err := orderTables(m, p.Tables)
	if err != nil {
		return nil, err
	}
	p.Order = order
	return p, nil
}

func compileTable(m *schema.Model, t *schema.Table, caps CapabilityResolver) (*TablePlan, error) {
	tp := &TablePlan{Table: t}
	byName := make(map[string]*Column, len(t.Columns))
	cols := make([]*Column, 0, len(t.Columns))
	seenParent := make(map[string]bool)

	for _, sc := range t.Columns {
		prog, err := expr.Parse(sc.Data)
		if err != nil {
			return nil, schema.Errf(t.Name, sc.Name, "invalid expression: %v", err)
		}
		col := &Column{Schema: sc, Prog: prog, Refs: prog.Refs()}

		if col.Refs.NonLiteralParent {
			return nil, schema.Errf(t.Name, sc.Name, "foreign_key/copy_from_fk requires a literal parent table name")
		}
		for _, call := range col.Refs.Calls {
			if caps != nil && !caps.Has(call) {
				return nil, schema.Errf(t.Name, sc.Name, "unknown function %q", call)
			}
		}
		if err := validateFKCalls(m, t, col); err != nil {
			return nil, err
		}
		for _, parent := range col.Refs.ParentTables {
			if !seenParent[parent] {
				seenParent[parent] = true
				tp.Parents = append(tp.Parents, parent)
			}
		}

		byName[sc.Name] = col
		cols = append(cols, col)
	}

	// Column references must name real same-table columns.
	for _, col := range cols {
		for _, ref := range col.Refs.Columns {
			if _, ok := byName[ref]; !ok {
				return nil, schema.Errf(t.Name, col.Schema.Name, "unresolved identifier %q", ref)
			}
		}
	}

	// Cycles among columns are unreachable configurations - report the
	// cycle path before the forward-reference check turns them into a
	// less helpful message.
	if cyclePath := findColumnCycle(cols); cyclePath != nil {
		return nil, schema.Errf(t.Name, "", "column dependency cycle: %s", strings.Join(cyclePath, " -> "))
	}

	// Phase assignment and the two-phase ordering.
	resolved := make(map[string]bool, len(cols))
	for _, col := range cols {
		if len(col.Refs.Columns) == 0 {
			col.Phase = PhaseIndependent
			tp.Ordered = append(tp.Ordered, col)
			resolved[col.Schema.Name] = true
		}
	}
	for _, col := range cols {
		if col.Phase != 0 {
			continue
		}
		col.Phase = PhaseDependent
		for _, ref := range col.Refs.Columns {
			if !resolved[ref] {
				return nil, schema.Errf(t.Name, col.Schema.Name,
					"references column %q before it is resolved (columns may only reference earlier columns)", ref)
			}
		}
		tp.Ordered = append(tp.Ordered, col)
		resolved[col.Schema.Name] = true
	}

	return tp, nil
}

// validateFKCalls rejects statically invalid foreign_key calls: unknown
// parent tables/columns, non-key parent columns, bad distribution specs.
func validateFKCalls(m *schema.Model, t *schema.Table, col *Column) error {
	for _, call := range col.Prog.FKCalls() {
		if call.Table == "" || call.Column == "" {
			return schema.Errf(t.Name, col.Schema.Name, "foreign_key requires literal parent table and column names")
		}
		parent := m.Table(call.Table)
		if parent == nil {
			return schema.Errf(t.Name, col.Schema.Name, "foreign_key references unknown table %q", call.Table)
		}
		if call.Table == t.Name {
			return schema.Errf(t.Name, col.Schema.Name, "foreign_key cannot reference its own table")
		}
		pc := parent.Column(call.Column)
		if pc == nil {
			return schema.Errf(t.Name, col.Schema.Name, "foreign_key references unknown column %s.%s", call.Table, call.Column)
		}
		if !pc.PrimaryKey {
			return schema.Errf(t.Name, col.Schema.Name, "foreign_key target %s.%s is not a primary key", call.Table, call.Column)
		}
		if call.ParentAttr != "" && parent.Column(call.ParentAttr) == nil {
			return schema.Errf(t.Name, col.Schema.Name, "parent_attr references unknown column %s.%s", call.Table, call.ParentAttr)
		}

		switch call.Distribution {
		case "", DistUniform:
		case DistZipf:
			if call.HasParam {
				f, ok := asFloat(call.Param)
				if !ok || f <= 0 {
					return schema.Errf(t.Name, col.Schema.Name, "zipf param must be a positive number, got %v", call.Param)
				}
			}
		case DistWeightedParent:
			for _, w := range call.Weights {
				f, ok := asFloat(w)
				if !ok || f < 0 {
					return schema.Errf(t.Name, col.Schema.Name, "weights must be non-negative numbers, got %v", w)
				}
			}
		default:
			return schema.Errf(t.Name, col.Schema.Name, "unknown distribution %q (want uniform, zipf or weighted_parent)", call.Distribution)
		}
	}
	for _, call := range col.Prog.CopyCalls() {
		if call.FKColumn == "" || call.Table == "" || call.Attr == "" {
			return schema.Errf(t.Name, col.Schema.Name, "copy_from_fk requires literal fk column, parent table and attribute names")
		}
		parent := m.Table(call.Table)
		if parent == nil {
			return schema.Errf(t.Name, col.Schema.Name, "copy_from_fk references unknown table %q", call.Table)
		}
		if parent.Column(call.Attr) == nil {
			return schema.Errf(t.Name, col.Schema.Name, "copy_from_fk references unknown column %s.%s", call.Table, call.Attr)
		}
		if t.Column(call.FKColumn) == nil {
			return schema.Errf(t.Name, col.Schema.Name, "copy_from_fk fk column %q does not exist in table %s", call.FKColumn, t.Name)
		}
	}
	return nil
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// orderTables produces the global generation order via Kahn's algorithm,
// preserving config declaration order among ready tables so the result is
// deterministic. A cycle is reported with its path.
func orderTables(m *schema.Model, tables map[string]*TablePlan) ([]string, error) {
	indeg := make(map[string]int, len(m.Tables))
	children := make(map[string][]string, len(m.Tables))

	for _, t := range m.Tables {
		indeg[t.Name] = 0
	}
	for _, t := range m.Tables {
		for _, parent := range tables[t.Name].Parents {
			if _, ok := indeg[parent]; !ok {
				return nil, schema.Errf(t.Name, "", "depends on unknown table %q", parent)
			}
			children[parent] = append(children[parent], t.Name)
			indeg[t.Name]++
		}
	}

	var order []string
	var ready []string
	for _, t := range m.Tables {
		if indeg[t.Name] == 0 {
			ready = append(ready, t.Name)
		}
	}
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)
		for _, child := range children[name] {
			indeg[child]--
			if indeg[child] == 0 {
				ready = append(ready, child)
			}
		}
	}

	if len(order) != len(m.Tables) {
		cycle := findTableCycle(m, tables)
		return nil, schema.Errf("", "", "table dependency cycle: %s", strings.Join(cycle, " -> "))
	}
	return order, nil
}
