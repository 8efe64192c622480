package expr

import (
	"fmt"
	"strings"
)

// CallFunc dispatches a function call to the host. The engine intercepts
// its own built-ins (foreign_key, copy_from_fk) and forwards everything
// else to the capability registry.
type CallFunc func(name string, args []any, kwargs map[string]any) (any, error)

// Env is the fixed evaluation scope of one program run: the row context
// (plus row_id) and the host call hook. Vars is read-only for the caller;
// block-local bindings are kept separately and discarded after Eval.
type Env struct {
	Vars map[string]any
	Call CallFunc
}

// Eval runs the program and returns the value of its return statement.
// Values are nil, bool, int64, float64 or string.
func (p *Program) Eval(env *Env) (any, error) {
	locals := map[string]any(nil)
	for _, s := range p.stmts {
		v, err := evalNode(s.expr, env, locals)
		if err != nil {
			return nil, err
		}
		if s.isRet {
			return v, nil
		}
		if s.assign != "" {
			if locals == nil {
				locals = make(map[string]any)
			}
			locals[s.assign] = v
		}
	}
	// Unreachable: Parse guarantees a final return.
	return nil, fmt.Errorf("program %q produced no value", abbreviate(p.src))
}

func evalNode(n node, env *Env, locals map[string]any) (any, error) {
	switch n := n.(type) {
	case litNode:
		return n.val, nil

	case identNode:
		if v, ok := locals[n.name]; ok {
			return v, nil
		}
		if v, ok := env.Vars[n.name]; ok {
			return v, nil
		}
		return nil, fmt.Errorf("unresolved identifier %q", n.name)

	case callNode:
		args := make([]any, len(n.args))
		for i, a := range n.args {
			v, err := evalNode(a, env, locals)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		var kwargs map[string]any
		if len(n.kwargs) > 0 {
			kwargs = make(map[string]any, len(n.kwargs))
			for _, kw := range n.kwargs {
				v, err := evalNode(kw.val, env, locals)
				if err != nil {
					return nil, err
				}
				kwargs[kw.name] = v
			}
		}
		return env.Call(n.name, args, kwargs)

	case unaryNode:
		v, err := evalNode(n.inner, env, locals)
		if err != nil {
			return nil, err
		}
		return evalUnary(n.op, v)

	case binaryNode:
		// Short-circuit boolean operators before evaluating the rhs.
		if n.op == tokAnd || n.op == tokOr {
			return evalLogical(n, env, locals)
		}
		lhs, err := evalNode(n.lhs, env, locals)
		if err != nil {
			return nil, err
		}
		rhs, err := evalNode(n.rhs, env, locals)
		if err != nil {
			return nil, err
		}
		return evalBinary(n.op, lhs, rhs)

	case listNode:
		elems := make([]any, len(n.elems))
		for i, e := range n.elems {
			v, err := evalNode(e, env, locals)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return elems, nil

	case condNode:
		cond, err := evalNode(n.cond, env, locals)
		if err != nil {
			return nil, err
		}
		b, ok := cond.(bool)
		if !ok {
			return nil, fmt.Errorf("condition is %s, not boolean", typeName(cond))
		}
		if b {
			return evalNode(n.then, env, locals)
		}
		return evalNode(n.els, env, locals)

	default:
		return nil, fmt.Errorf("unknown expression node %T", n)
	}
}

func evalLogical(n binaryNode, env *Env, locals map[string]any) (any, error) {
	lhs, err := evalNode(n.lhs, env, locals)
	if err != nil {
		return nil, err
	}
	lb, ok := lhs.(bool)
	if !ok {
		return nil, fmt.Errorf("left operand of %s is %s, not boolean", opName(n.op), typeName(lhs))
	}
	if n.op == tokAnd && !lb {
		return false, nil
	}
	if n.op == tokOr && lb {
		return true, nil
	}
	rhs, err := evalNode(n.rhs, env, locals)
	if err != nil {
		return nil, err
	}
	rb, ok := rhs.(bool)
	if !ok {
		return nil, fmt.Errorf("right operand of %s is %s, not boolean", opName(n.op), typeName(rhs))
	}
	return rb, nil
}

func evalUnary(op tokenKind, v any) (any, error) {
	switch op {
	case tokMinus:
		switch n := v.(type) {
		case int64:
			return -n, nil
		case float64:
			return -n, nil
		}
		return nil, fmt.Errorf("cannot negate %s", typeName(v))
	case tokNot:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("cannot apply ! to %s", typeName(v))
		}
		return !b, nil
	}
	return nil, fmt.Errorf("unknown unary operator")
}

func evalBinary(op tokenKind, lhs, rhs any) (any, error) {
	switch op {
	case tokPlus:
		if ls, ok := lhs.(string); ok {
			rs, ok := rhs.(string)
			if !ok {
				return nil, fmt.Errorf("cannot concatenate string with %s", typeName(rhs))
			}
			return ls + rs, nil
		}
		return arith(op, lhs, rhs)
	case tokMinus, tokStar, tokSlash, tokPercent:
		return arith(op, lhs, rhs)
	case tokEq:
		return valuesEqual(lhs, rhs), nil
	case tokNeq:
		return !valuesEqual(lhs, rhs), nil
	case tokLt, tokLte, tokGt, tokGte:
		return compare(op, lhs, rhs)
	}
	return nil, fmt.Errorf("unknown binary operator")
}

// arith applies +,-,*,/,% to numeric operands. Two integers stay integral;
// any float operand promotes the result to float.
func arith(op tokenKind, lhs, rhs any) (any, error) {
	li, lIsInt := lhs.(int64)
	ri, rIsInt := rhs.(int64)
	if lIsInt && rIsInt {
		switch op {
		case tokPlus:
			return li + ri, nil
		case tokMinus:
			return li - ri, nil
		case tokStar:
			return li * ri, nil
		case tokSlash:
			if ri == 0 {
				return nil, fmt.Errorf("division by zero")
			}
			return li / ri, nil
		case tokPercent:
			if ri == 0 {
				return nil, fmt.Errorf("modulo by zero")
			}
			return li % ri, nil
		}
	}

	lf, lok := toFloat(lhs)
	rf, rok := toFloat(rhs)
	if !lok || !rok {
		return nil, fmt.Errorf("cannot apply %s to %s and %s", opName(op), typeName(lhs), typeName(rhs))
	}
	switch op {
	case tokPlus:
		return lf + rf, nil
	case tokMinus:
		return lf - rf, nil
	case tokStar:
		return lf * rf, nil
	case tokSlash:
		if rf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return lf / rf, nil
	case tokPercent:
		return nil, fmt.Errorf("modulo requires integer operands")
	}
	return nil, fmt.Errorf("unknown arithmetic operator")
}

func compare(op tokenKind, lhs, rhs any) (any, error) {
	if ls, ok := lhs.(string); ok {
		rs, ok := rhs.(string)
		if !ok {
			return nil, fmt.Errorf("cannot compare string with %s", typeName(rhs))
		}
		switch op {
		case tokLt:
			return ls < rs, nil
		case tokLte:
			return ls <= rs, nil
		case tokGt:
			return ls > rs, nil
		case tokGte:
			return ls >= rs, nil
		}
	}
	lf, lok := toFloat(lhs)
	rf, rok := toFloat(rhs)
	if !lok || !rok {
		return nil, fmt.Errorf("cannot compare %s with %s", typeName(lhs), typeName(rhs))
	}
	switch op {
	case tokLt:
		return lf < rf, nil
	case tokLte:
		return lf <= rf, nil
	case tokGt:
		return lf > rf, nil
	case tokGte:
		return lf >= rf, nil
	}
	return nil, fmt.Errorf("unknown comparison operator")
}

// valuesEqual compares with numeric normalization so 3 == 3.0 holds.
func valuesEqual(lhs, rhs any) bool {
	if lhs == nil || rhs == nil {
		return lhs == nil && rhs == nil
	}
	lf, lok := toFloat(lhs)
	rf, rok := toFloat(rhs)
	if lok && rok {
		return lf == rf
	}
	return lhs == rhs
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case int64:
		return "integer"
	case float64:
		return "float"
	case string:
		return "string"
	case []any:
		return "list"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func opName(op tokenKind) string {
	switch op {
	case tokPlus:
		return "+"
	case tokMinus:
		return "-"
	case tokStar:
		return "*"
	case tokSlash:
		return "/"
	case tokPercent:
		return "%"
	case tokAnd:
		return "&&"
	case tokOr:
		return "||"
	}
	return "?"
}

// FormatValue renders a value the way encoders and error messages show it.
func FormatValue(v any) string {
	if v == nil {
		return "null"
	}
	if s, ok := v.(string); ok {
		return s
	}
	if f, ok := v.(float64); ok {
		s := fmt.Sprintf("%g", f)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	}
	return fmt.Sprintf("%v", v)
}
