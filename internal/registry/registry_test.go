package registry

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := New("")
	require.NoError(t, err)
	return r
}

func rng(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func TestNewLocale(t *testing.T) {
	_, err := New("en_US")
	require.NoError(t, err)

	_, err = New("de")
	require.NoError(t, err)

	_, err = New("not a locale")
	require.Error(t, err)
}

func TestHasAndRegister(t *testing.T) {
	r := newRegistry(t)
	assert.True(t, r.Has("person.first_name"))
	assert.True(t, r.Has("uuid"))
	assert.False(t, r.Has("person.tax_id"))

	r.Register("person.tax_id", func(_ *rand.Rand, _ []any, _ map[string]any) (any, error) {
		return "000-00-0000", nil
	})
	assert.True(t, r.Has("person.tax_id"))

	v, err := r.Call("person.tax_id", rng(1), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "000-00-0000", v)
}

func TestCallUnknown(t *testing.T) {
	r := newRegistry(t)
	_, err := r.Call("no.such.function", rng(1), nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown function")
}

func TestDeterminism(t *testing.T) {
	r := newRegistry(t)
	names := []string{
		"person.first_name", "person.full_name", "internet.email",
		"address.city", "address.street_address", "lorem.word", "uuid",
	}
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			a, err := r.Call(name, rng(42), nil, nil)
			require.NoError(t, err)
			b, err := r.Call(name, rng(42), nil, nil)
			require.NoError(t, err)
			assert.Equal(t, a, b, "same seed must give same value")
		})
	}
}

func TestNumberInt(t *testing.T) {
	r := newRegistry(t)
	rg := rng(7)
	for i := 0; i < 200; i++ {
		v, err := r.Call("number.int", rg, []any{int64(10), int64(20)}, nil)
		require.NoError(t, err)
		n := v.(int64)
		assert.GreaterOrEqual(t, n, int64(10))
		assert.LessOrEqual(t, n, int64(20))
	}

	_, err := r.Call("number.int", rg, []any{int64(20), int64(10)}, nil)
	require.Error(t, err)

	_, err = r.Call("number.int", rg, []any{int64(1)}, nil)
	require.Error(t, err)
}

func TestNumberFloat(t *testing.T) {
	r := newRegistry(t)
	rg := rng(7)
	for i := 0; i < 100; i++ {
		v, err := r.Call("number.float", rg, []any{0.5, 2.5}, nil)
		require.NoError(t, err)
		f := v.(float64)
		assert.GreaterOrEqual(t, f, 0.5)
		assert.Less(t, f, 2.5)
	}
}

func TestBoolean(t *testing.T) {
	r := newRegistry(t)

	v, err := r.Call("boolean.boolean", rng(1), nil, map[string]any{"truth_probability": int64(100)})
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = r.Call("boolean.boolean", rng(1), nil, map[string]any{"truth_probability": int64(0)})
	require.NoError(t, err)
	assert.Equal(t, false, v)

	_, err = r.Call("boolean.boolean", rng(1), nil, map[string]any{"truth_probability": int64(150)})
	require.Error(t, err)
}

func TestDateBetween(t *testing.T) {
	r := newRegistry(t)
	rg := rng(3)
	for i := 0; i < 50; i++ {
		v, err := r.Call("datetime.date_between", rg, []any{"2020-01-01", "2020-12-31"}, nil)
		require.NoError(t, err)
		s := v.(string)
		assert.GreaterOrEqual(t, s, "2020-01-01")
		assert.LessOrEqual(t, s, "2020-12-31")
	}

	_, err := r.Call("datetime.date_between", rg, []any{"2020-12-31", "2020-01-01"}, nil)
	require.Error(t, err)

	_, err = r.Call("datetime.date_between", rg, []any{"not-a-date", "2020-01-01"}, nil)
	require.Error(t, err)
}

func TestUUIDDeterministic(t *testing.T) {
	r := newRegistry(t)
	a, err := r.Call("uuid", rng(9), nil, nil)
	require.NoError(t, err)
	b, err := r.Call("uuid", rng(9), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a.(string), 36)
}

func TestChoice(t *testing.T) {
	r := newRegistry(t)
	list := []any{"a", "b", "c"}
	v, err := r.Call("choice", rng(5), []any{list}, nil)
	require.NoError(t, err)
	assert.Contains(t, list, v)

	_, err = r.Call("choice", rng(5), []any{[]any{}}, nil)
	require.Error(t, err)

	_, err = r.Call("choice", rng(5), []any{"not-a-list"}, nil)
	require.Error(t, err)
}

func TestLoremSentence(t *testing.T) {
	r := newRegistry(t)
	v, err := r.Call("lorem.sentence", rng(2), []any{int64(4)}, nil)
	require.NoError(t, err)
	s := v.(string)
	assert.Regexp(t, `^[A-Z][a-z]*( [a-z]+){3}\.$`, s)

	_, err = r.Call("lorem.sentence", rng(2), []any{int64(0)}, nil)
	require.Error(t, err)
}

func TestNamesSorted(t *testing.T) {
	r := newRegistry(t)
	names := r.Names()
	require.NotEmpty(t, names)
	for i := 1; i < len(names); i++ {
		assert.Less(t, names[i-1], names[i])
	}
}
