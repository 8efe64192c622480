package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeysAppendAndSnapshot(t *testing.T) {
	k := NewKeys()
	assert.False(t, k.HasTable("customers"))
	assert.Empty(t, k.Snapshot("customers", "id"))

	k.Append("customers", "id", int64(1))
	k.Append("customers", "id", int64(2))
	k.AppendAll("customers", "id", []any{int64(3), int64(4)})

	assert.True(t, k.HasTable("customers"))
	assert.Equal(t, 4, k.Len("customers", "id"))
	assert.Equal(t, []any{int64(1), int64(2), int64(3), int64(4)}, k.Snapshot("customers", "id"))
}

func TestKeysSnapshotIsStable(t *testing.T) {
	k := NewKeys()
	k.Append("t", "id", int64(1))

	snap := k.Snapshot("t", "id")
	k.Append("t", "id", int64(2))
	k.Append("t", "id", int64(3))

	// The snapshot must not observe appends made after it was taken.
	assert.Equal(t, []any{int64(1)}, snap)
	assert.Equal(t, 3, k.Len("t", "id"))
}

func TestKeysConcurrentReadersSingleWriter(t *testing.T) {
	k := NewKeys()
	const total = 500

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			k.Append("t", "id", int64(i))
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				snap := k.Snapshot("t", "id")
				// Prefix stability: element j is always j.
				for j, v := range snap {
					if v.(int64) != int64(j) {
						t.Errorf("snapshot[%d] = %v", j, v)
						return
					}
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, total, k.Len("t", "id"))
}

func TestRows(t *testing.T) {
	r := NewRows()
	_, ok := r.Get("customers", int64(1))
	assert.False(t, ok)

	row := map[string]any{"id": int64(1), "name": "Ada"}
	r.Put("customers", int64(1), row)

	got, ok := r.Get("customers", int64(1))
	require.True(t, ok)
	assert.Equal(t, "Ada", got["name"])
	assert.Equal(t, 1, r.Len("customers"))

	// Re-put under the same key replaces.
	r.Put("customers", int64(1), map[string]any{"id": int64(1), "name": "Grace"})
	got, _ = r.Get("customers", int64(1))
	assert.Equal(t, "Grace", got["name"])
	assert.Equal(t, 1, r.Len("customers"))
}

func TestNewSet(t *testing.T) {
	s := NewSet()
	require.NotNil(t, s.Keys)
	require.NotNil(t, s.Rows)
}
