// Package cache holds the shared generation caches: the per-table
// primary-key sequences consulted by foreign-key sampling, and the
// per-table resolved-row maps consulted by attribute copying.
//
// Access discipline (single writer, many readers): entries for a table are
// written only by that table's own generation loop and read concurrently by
// any number of other tables' resolvers. Readers always operate on stable
// snapshots - an in-progress append is never observable.
package cache

import "sync"

// Keys is the primary-key cache: per table, per key column, the ordered
// append-only sequence of emitted key values.
type Keys struct {
	mu     sync.RWMutex
	tables map[string]map[string][]any
}

// NewKeys creates an empty primary-key cache.
func NewKeys() *Keys {
	return &Keys{tables: make(map[string]map[string][]any)}
}

// Append records one emitted key value. Called only by the owning table's
// generation loop.
func (k *Keys) Append(table, column string, value any) {
	k.mu.Lock()
	defer k.mu.Unlock()
	cols, ok := k.tables[table]
	if !ok {
		cols = make(map[string][]any)
		k.tables[table] = cols
	}
	cols[column] = append(cols[column], value)
}

// AppendAll records a batch of key values in order.
func (k *Keys) AppendAll(table, column string, values []any) {
	k.mu.Lock()
	defer k.mu.Unlock()
	cols, ok := k.tables[table]
	if !ok {
		cols = make(map[string][]any)
		k.tables[table] = cols
	}
	cols[column] = append(cols[column], values...)
}

// Snapshot returns a stable view of the key sequence at call time. The
// returned slice is capacity-clamped so a concurrent append can never write
// into it; the cache is append-only, so existing elements never change.
func (k *Keys) Snapshot(table, column string) []any {
	k.mu.RLock()
	defer k.mu.RUnlock()
	seq := k.tables[table][column]
	return seq[:len(seq):len(seq)]
}

// Len returns the current length of a key sequence.
func (k *Keys) Len(table, column string) int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.tables[table][column])
}

// HasTable reports whether any key column for the table holds values.
func (k *Keys) HasTable(table string) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	for _, seq := range k.tables[table] {
		if len(seq) > 0 {
			return true
		}
	}
	return false
}

// Rows is the parent-row cache: per table, a map from primary-key value to
// the fully resolved row, satisfying attribute-copy requests without
// re-deriving values.
type Rows struct {
	mu     sync.RWMutex
	tables map[string]map[any]map[string]any
}

// NewRows creates an empty parent-row cache.
func NewRows() *Rows {
	return &Rows{tables: make(map[string]map[any]map[string]any)}
}

// Put stores a resolved row under its primary-key value. The row map must
// not be mutated by the caller afterwards.
func (r *Rows) Put(table string, key any, row map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows, ok := r.tables[table]
	if !ok {
		rows = make(map[any]map[string]any)
		r.tables[table] = rows
	}
	rows[key] = row
}

// Get returns the resolved row for a primary-key value.
func (r *Rows) Get(table string, key any) (map[string]any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.tables[table][key]
	return row, ok
}

// Len returns the number of cached rows for a table.
func (r *Rows) Len(table string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tables[table])
}

// Set bundles the two caches; one Set is shared by every generator of a run.
type Set struct {
	Keys *Keys
	Rows *Rows
}

// NewSet creates the caches for one generation run.
func NewSet() *Set {
	return &Set{Keys: NewKeys(), Rows: NewRows()}
}
