package engine

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/quarrydata/quarry/internal/cache"
	"github.com/quarrydata/quarry/internal/plan"
	"github.com/quarrydata/quarry/internal/schema"
)

// Resolver implements the foreign_key and copy_from_fk built-ins for one
// child table. It samples from snapshots of the shared caches; a snapshot
// taken mid-run simply sees however many parent keys exist at that moment.
type Resolver struct {
	model  *schema.Model
	table  string
	caches *cache.Set
	rng    *rand.Rand

	// Cumulative 1/rank^param weights, extended as the parent grows so a
	// zipf draw costs one binary search instead of rebuilding the table.
	zipfParam float64
	zipfCum   []float64
}

// NewResolver creates the built-in resolver for one table's generator.
func NewResolver(m *schema.Model, table string, caches *cache.Set, rng *rand.Rand) *Resolver {
	return &Resolver{model: m, table: table, caches: caches, rng: rng}
}

// fkArgs is the resolved argument set of one foreign_key call.
type fkArgs struct {
	parentTable  string
	parentColumn string
	distribution string
	param        float64
	parentAttr   string
	weights      []float64
}

// ForeignKey samples one previously emitted key from the parent table's key
// cache. An empty cache is a MissingParentRowError, never a silent NULL.
func (r *Resolver) ForeignKey(column string, args []any, kwargs map[string]any) (any, error) {
	fa, err := parseFKArgs(args, kwargs)
	if err != nil {
		return nil, err
	}

	keys := r.caches.Keys.Snapshot(fa.parentTable, fa.parentColumn)
	m := len(keys)
	if m == 0 {
		return nil, &MissingParentRowError{Table: r.table, Column: column, Parent: fa.parentTable}
	}

	var idx int
	switch fa.distribution {
	case "", plan.DistUniform:
		idx = r.rng.Intn(m)
	case plan.DistZipf:
		idx = r.sampleZipf(m, fa.param)
	case plan.DistWeightedParent:
		if len(fa.weights) != m {
			return nil, schema.Errf(r.table, column,
				"weighted_parent has %d weights but parent %q has %d keys", len(fa.weights), fa.parentTable, m)
		}
		idx = sampleWeighted(r.rng, fa.weights)
	default:
		return nil, schema.Errf(r.table, column, "unknown distribution %q", fa.distribution)
	}

	key := keys[idx]
	if fa.parentAttr == "" || fa.parentAttr == fa.parentColumn {
		return key, nil
	}
	return r.parentAttr(column, fa.parentTable, key, fa.parentAttr)
}

// CopyFromFK returns a parent attribute for the parent row this row already
// references through its fk column. A NULL fk value copies as NULL.
func (r *Resolver) CopyFromFK(column string, row map[string]any, args []any, kwargs map[string]any) (any, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("copy_from_fk takes exactly 3 arguments, got %d", len(args))
	}
	if len(kwargs) != 0 {
		return nil, fmt.Errorf("copy_from_fk takes no keyword arguments")
	}
	fkColumn, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("copy_from_fk fk column must be a string, got %T", args[0])
	}
	parentTable, ok := args[1].(string)
	if !ok {
		return nil, fmt.Errorf("copy_from_fk parent table must be a string, got %T", args[1])
	}
	attr, ok := args[2].(string)
	if !ok {
		return nil, fmt.Errorf("copy_from_fk attribute must be a string, got %T", args[2])
	}

	key, ok := row[fkColumn]
	if !ok {
		return nil, fmt.Errorf("copy_from_fk column %q is not resolved yet", fkColumn)
	}
	if key == nil {
		return nil, nil
	}
	return r.parentAttr(column, parentTable, key, attr)
}

// parentAttr looks up one attribute of the parent row identified by key.
// The row cache is authoritative; when the full row was never cached (a
// bootstrap that only recorded keys) the key cache answers positionally,
// which works whenever the attribute is itself a key column.
func (r *Resolver) parentAttr(column, parentTable string, key any, attr string) (any, error) {
	key = normKey(key)
	if row, ok := r.caches.Rows.Get(parentTable, key); ok {
		v, ok := row[attr]
		if !ok {
			return nil, schema.Errf(r.table, column, "parent table %q has no attribute %q", parentTable, attr)
		}
		return v, nil
	}

	parent := r.model.Table(parentTable)
	if parent != nil {
		for _, pk := range parent.PrimaryKeys() {
			seq := r.caches.Keys.Snapshot(parentTable, pk.Name)
			for i, k := range seq {
				if normKey(k) == key {
					attrSeq := r.caches.Keys.Snapshot(parentTable, attr)
					if i < len(attrSeq) {
						return attrSeq[i], nil
					}
				}
			}
		}
	}
	return nil, &MissingParentRowError{Table: r.table, Column: column, Parent: parentTable, Key: key}
}

func parseFKArgs(args []any, kwargs map[string]any) (fkArgs, error) {
	fa := fkArgs{distribution: plan.DistUniform, param: 1.0}

	if len(args) < 2 {
		return fa, fmt.Errorf("foreign_key requires parent table and column arguments")
	}
	if len(args) > 6 {
		return fa, fmt.Errorf("foreign_key takes at most 6 arguments, got %d", len(args))
	}

	var ok bool
	if fa.parentTable, ok = args[0].(string); !ok {
		return fa, fmt.Errorf("parent table must be a string, got %T", args[0])
	}
	if fa.parentColumn, ok = args[1].(string); !ok {
		return fa, fmt.Errorf("parent column must be a string, got %T", args[1])
	}

	positional := map[int]string{2: "distribution", 3: "param", 4: "parent_attr", 5: "weights"}
	merged := make(map[string]any, len(kwargs)+4)
	for i := 2; i < len(args); i++ {
		merged[positional[i]] = args[i]
	}
	for name, v := range kwargs {
		if _, dup := merged[name]; dup {
			return fa, fmt.Errorf("duplicate argument %q", name)
		}
		merged[name] = v
	}

	for name, v := range merged {
		if v == nil {
			continue
		}
		switch name {
		case "distribution":
			s, ok := v.(string)
			if !ok {
				return fa, fmt.Errorf("distribution must be a string, got %T", v)
			}
			fa.distribution = s
		case "param":
			f, ok := toFloat(v)
			if !ok {
				return fa, fmt.Errorf("param must be a number, got %T", v)
			}
			if f <= 0 {
				return fa, fmt.Errorf("zipf param must be positive, got %v", f)
			}
			fa.param = f
		case "parent_attr":
			s, ok := v.(string)
			if !ok {
				return fa, fmt.Errorf("parent_attr must be a string, got %T", v)
			}
			fa.parentAttr = s
		case "weights":
			list, ok := v.([]any)
			if !ok {
				return fa, fmt.Errorf("weights must be a list, got %T", v)
			}
			fa.weights = make([]float64, len(list))
			for i, w := range list {
				f, ok := toFloat(w)
				if !ok || f < 0 {
					return fa, fmt.Errorf("weights must be non-negative numbers, got %v", w)
				}
				fa.weights[i] = f
			}
		default:
			return fa, fmt.Errorf("unknown argument %q", name)
		}
	}
	return fa, nil
}

// sampleZipf draws an index in [0, m) with weight 1/rank^param for rank
// 1..m, so early-emitted parent keys are favored. The cumulative weight
// table is cached and only the ranks a grown parent added are computed.
func (r *Resolver) sampleZipf(m int, param float64) int {
	if param != r.zipfParam {
		r.zipfParam = param
		r.zipfCum = r.zipfCum[:0]
	}
	for len(r.zipfCum) < m {
		rank := len(r.zipfCum) + 1
		w := 1 / math.Pow(float64(rank), param)
		var prev float64
		if len(r.zipfCum) > 0 {
			prev = r.zipfCum[len(r.zipfCum)-1]
		}
		r.zipfCum = append(r.zipfCum, prev+w)
	}
	target := r.rng.Float64() * r.zipfCum[m-1]
	idx := sort.SearchFloat64s(r.zipfCum[:m], target)
	if idx >= m {
		idx = m - 1
	}
	return idx
}

// sampleWeighted draws an index from an explicit categorical distribution.
// Weights need not be normalized; all-zero weights degrade to uniform.
func sampleWeighted(rng *rand.Rand, weights []float64) int {
	var total float64
	for _, w := range weights {
		total += w
	}
	if total == 0 {
		return rng.Intn(len(weights))
	}
	target := rng.Float64() * total
	for i, w := range weights {
		target -= w
		if target < 0 {
			return i
		}
	}
	return len(weights) - 1
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

// normKey folds whole-number floats to int64 so a key round-tripped through
// float arithmetic still matches its cached int form.
func normKey(v any) any {
	if f, ok := v.(float64); ok && f == math.Trunc(f) && !math.IsInf(f, 0) {
		return int64(f)
	}
	return v
}
