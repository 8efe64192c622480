package expr

import "strings"

// Names of the two built-ins the engine itself implements. Everything else
// called from an expression resolves through the capability registry.
const (
	BuiltinForeignKey = "foreign_key"
	BuiltinCopyFromFK = "copy_from_fk"
)

// Refs is the result of static inspection of one program: which same-table
// columns it reads, which parent tables it references through built-ins,
// and which capability functions it calls.
//
// Column references exclude row_id (engine-provided) and block-local
// bindings. Parent tables are extracted only from literal first/second
// arguments of foreign_key/copy_from_fk; a non-literal table argument is
// not resolvable statically and is rejected during planning.
type Refs struct {
	Columns      []string // same-table columns read, in first-appearance order
	ParentTables []string // tables referenced via foreign_key/copy_from_fk
	Calls        []string // capability function names (built-ins excluded)

	// NonLiteralParent is set when a foreign_key/copy_from_fk call has a
	// non-literal table argument, which makes table ordering undecidable.
	NonLiteralParent bool
}

// RowIdent is the engine-provided row identity variable.
const RowIdent = "row_id"

// Refs statically inspects the program.
func (p *Program) Refs() Refs {
	c := &refCollector{
		seenCols:   map[string]bool{},
		seenTables: map[string]bool{},
		seenCalls:  map[string]bool{},
		locals:     map[string]bool{},
	}
	for _, s := range p.stmts {
		c.walk(s.expr)
		if s.assign != "" {
			// Bindings shadow columns only for statements after them.
			c.locals[s.assign] = true
		}
	}
	return c.refs
}

type refCollector struct {
	refs       Refs
	seenCols   map[string]bool
	seenTables map[string]bool
	seenCalls  map[string]bool
	locals     map[string]bool
}

func (c *refCollector) walk(n node) {
	switch n := n.(type) {
	case litNode:
	case identNode:
		if n.name == RowIdent || c.locals[n.name] {
			return
		}
		if !c.seenCols[n.name] {
			c.seenCols[n.name] = true
			c.refs.Columns = append(c.refs.Columns, n.name)
		}
	case callNode:
		c.walkCall(n)
	case unaryNode:
		c.walk(n.inner)
	case binaryNode:
		c.walk(n.lhs)
		c.walk(n.rhs)
	case condNode:
		c.walk(n.cond)
		c.walk(n.then)
		c.walk(n.els)
	case listNode:
		for _, e := range n.elems {
			c.walk(e)
		}
	}
}

func (c *refCollector) walkCall(n callNode) {
	switch n.name {
	case BuiltinForeignKey:
		// foreign_key(parent_table, parent_column, ...)
		c.addParent(n, 0)
	case BuiltinCopyFromFK:
		// copy_from_fk(fk_column, parent_table, parent_attr)
		// The fk column is read from the current row, so it is a column
		// dependency even though it appears as a string literal.
		if len(n.args) > 0 {
			if name, ok := litString(n.args[0]); ok && !c.seenCols[name] && !c.locals[name] {
				c.seenCols[name] = true
				c.refs.Columns = append(c.refs.Columns, name)
			}
		}
		c.addParent(n, 1)
	default:
		if !c.seenCalls[n.name] {
			c.seenCalls[n.name] = true
			c.refs.Calls = append(c.refs.Calls, n.name)
		}
	}
	for _, a := range n.args {
		c.walk(a)
	}
	for _, kw := range n.kwargs {
		c.walk(kw.val)
	}
}

func (c *refCollector) addParent(n callNode, argIdx int) {
	if argIdx >= len(n.args) {
		c.refs.NonLiteralParent = true
		return
	}
	lit, ok := n.args[argIdx].(litNode)
	if !ok {
		c.refs.NonLiteralParent = true
		return
	}
	table, ok := lit.val.(string)
	if !ok || strings.TrimSpace(table) == "" {
		c.refs.NonLiteralParent = true
		return
	}
	if !c.seenTables[table] {
		c.seenTables[table] = true
		c.refs.ParentTables = append(c.refs.ParentTables, table)
	}
}

// UsesBuiltins reports whether the program calls foreign_key or copy_from_fk.
func (p *Program) UsesBuiltins() bool {
	r := p.Refs()
	return len(r.ParentTables) > 0 || r.NonLiteralParent
}

// FKCalls returns the literal argument tuples of every foreign_key call in
// the program, for load-time distribution validation. Non-literal arguments
// are returned as nil entries in the tuple.
func (p *Program) FKCalls() []FKCall {
	var out []FKCall
	for _, s := range p.stmts {
		collectFKCalls(s.expr, &out)
	}
	return out
}

// FKCall captures the statically known arguments of one foreign_key call.
// Signature: foreign_key(parent_table, parent_column, distribution="uniform",
// param=null, parent_attr=null, weights=null).
type FKCall struct {
	Table        string // empty when non-literal
	Column       string // empty when non-literal
	Distribution string // empty when unspecified or non-literal
	Param        any    // literal value of the param argument, nil otherwise
	ParentAttr   string
	Weights      []any // literal weights list, nil otherwise
	HasParam     bool
}

func collectFKCalls(n node, out *[]FKCall) {
	switch n := n.(type) {
	case callNode:
		if n.name == BuiltinForeignKey {
			call := FKCall{}
			if len(n.args) > 0 {
				if s, ok := litString(n.args[0]); ok {
					call.Table = s
				}
			}
			if len(n.args) > 1 {
				if s, ok := litString(n.args[1]); ok {
					call.Column = s
				}
			}
			if len(n.args) > 2 {
				if s, ok := litString(n.args[2]); ok {
					call.Distribution = s
				}
			}
			if len(n.args) > 3 {
				if v, ok := litValue(n.args[3]); ok {
					call.Param = v
					call.HasParam = v != nil
				}
			}
			if len(n.args) > 4 {
				if s, ok := litString(n.args[4]); ok {
					call.ParentAttr = s
				}
			}
			if len(n.args) > 5 {
				call.Weights = litList(n.args[5])
			}
			for _, kw := range n.kwargs {
				switch kw.name {
				case "distribution":
					if s, ok := litString(kw.val); ok {
						call.Distribution = s
					}
				case "param":
					if v, ok := litValue(kw.val); ok {
						call.Param = v
						call.HasParam = v != nil
					}
				case "parent_attr":
					if s, ok := litString(kw.val); ok {
						call.ParentAttr = s
					}
				case "weights":
					call.Weights = litList(kw.val)
				}
			}
			*out = append(*out, call)
		}
		for _, a := range n.args {
			collectFKCalls(a, out)
		}
		for _, kw := range n.kwargs {
			collectFKCalls(kw.val, out)
		}
	case unaryNode:
		collectFKCalls(n.inner, out)
	case binaryNode:
		collectFKCalls(n.lhs, out)
		collectFKCalls(n.rhs, out)
	case condNode:
		collectFKCalls(n.cond, out)
		collectFKCalls(n.then, out)
		collectFKCalls(n.els, out)
	case listNode:
		for _, e := range n.elems {
			collectFKCalls(e, out)
		}
	}
}

// CopyCall captures the statically known arguments of one copy_from_fk call.
// Signature: copy_from_fk(fk_column, parent_table, parent_attr).
type CopyCall struct {
	FKColumn string
	Table    string
	Attr     string
}

// CopyCalls returns the literal argument tuples of every copy_from_fk call.
func (p *Program) CopyCalls() []CopyCall {
	var out []CopyCall
	for _, s := range p.stmts {
		collectCopyCalls(s.expr, &out)
	}
	return out
}

func collectCopyCalls(n node, out *[]CopyCall) {
	switch n := n.(type) {
	case callNode:
		if n.name == BuiltinCopyFromFK {
			call := CopyCall{}
			if len(n.args) > 0 {
				call.FKColumn, _ = litString(n.args[0])
			}
			if len(n.args) > 1 {
				call.Table, _ = litString(n.args[1])
			}
			if len(n.args) > 2 {
				call.Attr, _ = litString(n.args[2])
			}
			*out = append(*out, call)
		}
		for _, a := range n.args {
			collectCopyCalls(a, out)
		}
		for _, kw := range n.kwargs {
			collectCopyCalls(kw.val, out)
		}
	case unaryNode:
		collectCopyCalls(n.inner, out)
	case binaryNode:
		collectCopyCalls(n.lhs, out)
		collectCopyCalls(n.rhs, out)
	case condNode:
		collectCopyCalls(n.cond, out)
		collectCopyCalls(n.then, out)
		collectCopyCalls(n.els, out)
	case listNode:
		for _, e := range n.elems {
			collectCopyCalls(e, out)
		}
	}
}

func litString(n node) (string, bool) {
	lit, ok := n.(litNode)
	if !ok {
		return "", false
	}
	s, ok := lit.val.(string)
	return s, ok
}

// litValue extracts a literal value, folding unary minus over numeric
// literals so -1 and -0.5 count as statically known.
func litValue(n node) (any, bool) {
	switch n := n.(type) {
	case litNode:
		return n.val, true
	case unaryNode:
		if n.op != tokMinus {
			return nil, false
		}
		inner, ok := litValue(n.inner)
		if !ok {
			return nil, false
		}
		switch v := inner.(type) {
		case int64:
			return -v, true
		case float64:
			return -v, true
		}
	}
	return nil, false
}

func litList(n node) []any {
	list, ok := n.(listNode)
	if !ok {
		return nil
	}
	vals := make([]any, 0, len(list.elems))
	for _, e := range list.elems {
		v, ok := litValue(e)
		if !ok {
			return nil
		}
		vals = append(vals, v)
	}
	return vals
}
