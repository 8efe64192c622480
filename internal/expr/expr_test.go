package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// evalWith runs src against a row context and a call hook.
func evalWith(t *testing.T, src string, vars map[string]any, call CallFunc) (any, error) {
	t.Helper()
	p, err := Parse(src)
	require.NoError(t, err)
	return p.Eval(&Env{Vars: vars, Call: call})
}

func TestEvalLiteralsAndArithmetic(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want any
	}{
		{"int", "42", int64(42)},
		{"float", "3.5", 3.5},
		{"single quoted string", "'hello'", "hello"},
		{"double quoted string", `"hello"`, "hello"},
		{"true", "true", true},
		{"false", "false", false},
		{"null", "null", nil},
		{"python none", "None", nil},
		{"int addition", "1 + 2", int64(3)},
		{"int division truncates", "7 / 2", int64(3)},
		{"modulo", "7 % 3", int64(1)},
		{"float promotion", "1 + 0.5", 1.5},
		{"precedence", "2 + 3 * 4", int64(14)},
		{"parens", "(2 + 3) * 4", int64(20)},
		{"unary minus", "-5 + 2", int64(-3)},
		{"string concat", "'a' + 'b'", "ab"},
		{"equality", "3 == 3.0", true},
		{"inequality", "'x' != 'y'", true},
		{"comparison", "2 < 3", true},
		{"logical and", "true && false", false},
		{"logical or", "false || true", true},
		{"not", "!false", true},
		{"ternary then", "true ? 1 : 2", int64(1)},
		{"ternary else", "1 > 2 ? 'yes' : 'no'", "no"},
		{"list", "[1, 'a', 2.5]", []any{int64(1), "a", 2.5}},
		{"empty list", "[]", []any(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evalWith(t, tt.src, nil, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvalErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"division by zero", "1 / 0"},
		{"modulo by zero", "1 % 0"},
		{"float modulo", "1.5 % 2"},
		{"string plus int", "'a' + 1"},
		{"non-boolean condition", "1 ? 2 : 3"},
		{"non-boolean and", "1 && true"},
		{"negate string", "-'a'"},
		{"unresolved identifier", "missing_column"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := evalWith(t, tt.src, nil, nil)
			require.Error(t, err)
		})
	}
}

func TestEvalRowContext(t *testing.T) {
	vars := map[string]any{
		"row_id":     int64(7),
		"first_name": "Ada",
		"last_name":  "Lovelace",
	}
	got, err := evalWith(t, "first_name + ' ' + last_name", vars, nil)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", got)

	got, err = evalWith(t, "row_id * 10", vars, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(70), got)
}

func TestUnicodeIdentifiers(t *testing.T) {
	vars := map[string]any{"prénom": "Zoé", "größe": "XL"}
	got, err := evalWith(t, "prénom + ' ' + größe", vars, nil)
	require.NoError(t, err)
	assert.Equal(t, "Zoé XL", got)

	refs := MustParse("prénom + ' ' + größe").Refs()
	assert.Equal(t, []string{"prénom", "größe"}, refs.Columns)
}

func TestEvalBlocks(t *testing.T) {
	t.Run("bindings and explicit return", func(t *testing.T) {
		src := "base = 100\nbonus = 20\nreturn base + bonus"
		got, err := evalWith(t, src, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(120), got)
	})

	t.Run("semicolon separators", func(t *testing.T) {
		got, err := evalWith(t, "x = 2; y = x * x; return y + 1", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(5), got)
	})

	t.Run("binding shadows column", func(t *testing.T) {
		vars := map[string]any{"amount": int64(1)}
		got, err := evalWith(t, "amount = 50\nreturn amount", vars, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(50), got)
	})
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", ""},
		{"whitespace only", "  \n  "},
		{"block without return", "x = 1\ny = 2"},
		{"return not last", "return 1\nx = 2"},
		{"assignment to dotted name", "person.name = 1"},
		{"dotted name not called", "person.first_name"},
		{"unterminated string", "'abc"},
		{"unterminated call", "foo(1, 2"},
		{"positional after keyword", "foo(a=1, 2)"},
		{"unterminated list", "[1, 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			require.Error(t, err)
		})
	}
}

func TestCallDispatch(t *testing.T) {
	var gotName string
	var gotArgs []any
	var gotKwargs map[string]any
	call := func(name string, args []any, kwargs map[string]any) (any, error) {
		gotName, gotArgs, gotKwargs = name, args, kwargs
		return "ok", nil
	}

	got, err := evalWith(t, "person.first_name()", nil, call)
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, "person.first_name", gotName)
	assert.Empty(t, gotArgs)

	_, err = evalWith(t, "number.int(1, 10, step=2)", nil, call)
	require.NoError(t, err)
	assert.Equal(t, "number.int", gotName)
	assert.Equal(t, []any{int64(1), int64(10)}, gotArgs)
	assert.Equal(t, map[string]any{"step": int64(2)}, gotKwargs)
}

func TestRefs(t *testing.T) {
	t.Run("bare identifiers are column refs", func(t *testing.T) {
		refs := MustParse("first_name + ' ' + last_name").Refs()
		assert.Equal(t, []string{"first_name", "last_name"}, refs.Columns)
		assert.Empty(t, refs.ParentTables)
	})

	t.Run("row_id is not a column ref", func(t *testing.T) {
		refs := MustParse("row_id + 100").Refs()
		assert.Empty(t, refs.Columns)
	})

	t.Run("locals are not column refs", func(t *testing.T) {
		refs := MustParse("x = amount * 2\nreturn x").Refs()
		assert.Equal(t, []string{"amount"}, refs.Columns)
	})

	t.Run("foreign_key parent table", func(t *testing.T) {
		refs := MustParse(`foreign_key("customers", "id")`).Refs()
		assert.Equal(t, []string{"customers"}, refs.ParentTables)
		assert.False(t, refs.NonLiteralParent)
	})

	t.Run("copy_from_fk fk column is a dependency", func(t *testing.T) {
		refs := MustParse(`copy_from_fk("customer_id", "customers", "name")`).Refs()
		assert.Equal(t, []string{"customer_id"}, refs.Columns)
		assert.Equal(t, []string{"customers"}, refs.ParentTables)
	})

	t.Run("non-literal parent is flagged", func(t *testing.T) {
		refs := MustParse("foreign_key(some_column, 'id')").Refs()
		assert.True(t, refs.NonLiteralParent)
	})

	t.Run("capability calls are collected", func(t *testing.T) {
		refs := MustParse("person.first_name() + lorem.word()").Refs()
		assert.Equal(t, []string{"person.first_name", "lorem.word"}, refs.Calls)
	})
}

func TestFKCalls(t *testing.T) {
	t.Run("positional arguments", func(t *testing.T) {
		calls := MustParse(`foreign_key("customers", "id", "zipf", 1.5)`).FKCalls()
		require.Len(t, calls, 1)
		assert.Equal(t, "customers", calls[0].Table)
		assert.Equal(t, "id", calls[0].Column)
		assert.Equal(t, "zipf", calls[0].Distribution)
		assert.True(t, calls[0].HasParam)
		assert.Equal(t, 1.5, calls[0].Param)
	})

	t.Run("keyword arguments", func(t *testing.T) {
		calls := MustParse(`foreign_key("customers", "id", distribution="weighted_parent", weights=[0.5, 0.3, 0.2])`).FKCalls()
		require.Len(t, calls, 1)
		assert.Equal(t, "weighted_parent", calls[0].Distribution)
		assert.Equal(t, []any{0.5, 0.3, 0.2}, calls[0].Weights)
	})

	t.Run("defaults", func(t *testing.T) {
		calls := MustParse(`foreign_key("customers", "id")`).FKCalls()
		require.Len(t, calls, 1)
		assert.Empty(t, calls[0].Distribution)
		assert.False(t, calls[0].HasParam)
	})
}

func TestCopyCalls(t *testing.T) {
	calls := MustParse(`copy_from_fk("customer_id", "customers", "email")`).CopyCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, CopyCall{FKColumn: "customer_id", Table: "customers", Attr: "email"}, calls[0])
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "null", FormatValue(nil))
	assert.Equal(t, "hello", FormatValue("hello"))
	assert.Equal(t, "42", FormatValue(int64(42)))
	assert.Equal(t, "true", FormatValue(true))
	assert.Equal(t, "2.5", FormatValue(2.5))
	assert.Equal(t, "3.0", FormatValue(3.0))
}
