// Package registry implements the capability registry: the named generator
// functions that column expressions may call.
//
// The registry is an opaque capability map, not a scripting sandbox. Names
// are resolved once at schema-validation time, so a typo is a load-time
// error. Built-in providers cover the common fake-data namespaces; external
// providers add functions through Register before planning.
//
// Every function draws randomness exclusively from the *rand.Rand it is
// handed, which is the calling table's seeded sub-stream. Nothing in this
// package touches a process-global randomness source - that would break
// run-to-run determinism.
package registry

import (
	"fmt"
	"math/rand"
	"sort"

	"golang.org/x/text/language"
)

// Func is one named generator capability.
type Func func(rng *rand.Rand, args []any, kwargs map[string]any) (any, error)

// Registry maps capability names to functions.
type Registry struct {
	locale language.Tag
	funcs  map[string]Func
}

// New creates a registry with all built-in providers installed. The locale
// must be a valid BCP 47 tag (e.g. "en_US"); empty defaults to English.
func New(locale string) (*Registry, error) {
	tag := language.English
	if locale != "" {
		parsed, err := language.Parse(locale)
		if err != nil {
			return nil, fmt.Errorf("invalid locale %q: %w", locale, err)
		}
		tag = parsed
	}
	r := &Registry{
		locale: tag,
		funcs:  make(map[string]Func, 64),
	}
	r.installBuiltins()
	return r, nil
}

// Register adds or replaces a capability. External providers call this
// before the schema is planned so resolution can see their functions.
func (r *Registry) Register(name string, fn Func) {
	r.funcs[name] = fn
}

// Has reports whether a capability name resolves.
// Satisfies plan.CapabilityResolver.
func (r *Registry) Has(name string) bool {
	_, ok := r.funcs[name]
	return ok
}

// Call invokes a capability by name.
func (r *Registry) Call(name string, rng *rand.Rand, args []any, kwargs map[string]any) (any, error) {
	fn, ok := r.funcs[name]
	if !ok {
		return nil, fmt.Errorf("unknown function %q", name)
	}
	v, err := fn(rng, args, kwargs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

// Names returns all registered capability names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Locale returns the registry's locale tag.
func (r *Registry) Locale() language.Tag {
	return r.locale
}

// Argument coercion helpers shared by built-in providers.

func argString(args []any, idx int, what string) (string, error) {
	if idx >= len(args) {
		return "", fmt.Errorf("missing %s argument", what)
	}
	s, ok := args[idx].(string)
	if !ok {
		return "", fmt.Errorf("%s argument must be a string, got %T", what, args[idx])
	}
	return s, nil
}

func argInt(args []any, idx int, what string) (int64, error) {
	if idx >= len(args) {
		return 0, fmt.Errorf("missing %s argument", what)
	}
	switch n := args[idx].(type) {
	case int64:
		return n, nil
	case float64:
		if n == float64(int64(n)) {
			return int64(n), nil
		}
	}
	return 0, fmt.Errorf("%s argument must be an integer, got %v", what, args[idx])
}

func argFloat(args []any, idx int, what string) (float64, error) {
	if idx >= len(args) {
		return 0, fmt.Errorf("missing %s argument", what)
	}
	switch n := args[idx].(type) {
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	}
	return 0, fmt.Errorf("%s argument must be a number, got %T", what, args[idx])
}

func kwFloat(kwargs map[string]any, name string, def float64) (float64, error) {
	v, ok := kwargs[name]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	}
	return 0, fmt.Errorf("%s must be a number, got %T", name, v)
}
