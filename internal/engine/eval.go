package engine

import (
	"fmt"
	"math"
	"strconv"

	"github.com/quarrydata/quarry/internal/expr"
	"github.com/quarrydata/quarry/internal/plan"
	"github.com/quarrydata/quarry/internal/schema"
)

// evalColumn produces one column value for the row under construction.
// Null injection happens before evaluation: a column that comes up NULL
// skips its expression entirely, so it has no cache or rng side effects
// beyond the single injection draw.
func (g *Generator) evalColumn(col *plan.Column, row map[string]any) (any, error) {
	if p := col.Schema.NullPercentage; p > 0 && g.rng.Float64() < p {
		return nil, nil
	}

	env := &expr.Env{
		Vars: row,
		Call: func(name string, args []any, kwargs map[string]any) (any, error) {
			switch name {
			case expr.BuiltinForeignKey:
				return g.resolver.ForeignKey(col.Schema.Name, args, kwargs)
			case expr.BuiltinCopyFromFK:
				return g.resolver.CopyFromFK(col.Schema.Name, row, args, kwargs)
			}
			return g.reg.Call(name, g.rng, args, kwargs)
		},
	}

	v, err := col.Prog.Eval(env)
	if err != nil {
		return nil, err
	}
	return coerce(col.Schema.Type, v)
}

// coerce applies the column's declared type to an evaluated value. NULL
// passes through untyped. An empty declared type keeps the value as-is.
func coerce(typ string, v any) (any, error) {
	if v == nil || typ == "" {
		return v, nil
	}
	switch typ {
	case schema.TypeString:
		switch s := v.(type) {
		case string:
			return s, nil
		default:
			return expr.FormatValue(v), nil
		}

	case schema.TypeInt64:
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		return n, nil

	case schema.TypeInt32:
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, fmt.Errorf("value %d overflows int32", n)
		}
		return n, nil

	case schema.TypeFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int64:
			return float64(n), nil
		}
		return nil, fmt.Errorf("cannot coerce %T to float", v)

	case schema.TypeBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("cannot coerce %T to boolean", v)
	}
	return nil, fmt.Errorf("unknown column type %q", typ)
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.IsNaN(n) {
			return 0, fmt.Errorf("value %v is not a whole number", n)
		}
		return int64(n), nil
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot coerce %q to integer", n)
		}
		return parsed, nil
	}
	return 0, fmt.Errorf("cannot coerce %T to integer", v)
}
