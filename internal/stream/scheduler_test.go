package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrydata/quarry/internal/engine"
	"github.com/quarrydata/quarry/internal/plan"
	"github.com/quarrydata/quarry/internal/registry"
	"github.com/quarrydata/quarry/internal/schema"
)

// memSink is an in-memory Sink with per-table append failure injection.
type memSink struct {
	mu       sync.Mutex
	rows     map[string][]engine.Row
	failures map[string]int // remaining appends to reject per table
}

func newMemSink() *memSink {
	return &memSink{rows: map[string][]engine.Row{}, failures: map[string]int{}}
}

func (m *memSink) LoadExisting(_ context.Context, t *schema.Table) ([]engine.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]engine.Row, len(m.rows[t.Name]))
	copy(out, m.rows[t.Name])
	return out, nil
}

func (m *memSink) AppendAtomic(_ context.Context, t *schema.Table, rows []engine.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures[t.Name] > 0 {
		m.failures[t.Name]--
		return errors.New("sink unavailable")
	}
	m.rows[t.Name] = append(m.rows[t.Name], rows...)
	return nil
}

func (m *memSink) count(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows[table])
}

func (m *memSink) rowIDs(table string) []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(m.rows[table]))
	for _, r := range m.rows[table] {
		ids = append(ids, r["row_id"].(int64))
	}
	return ids
}

func compileStream(t *testing.T, m *schema.Model) (*plan.Plan, *registry.Registry) {
	t.Helper()
	reg, err := registry.New(m.Config.Locale)
	require.NoError(t, err)
	p, err := plan.Compile(m, reg)
	require.NoError(t, err)
	return p, reg
}

func boolPtr(b bool) *bool { return &b }

func customersTable(rpm float64) *schema.Table {
	return &schema.Table{
		Name:     "customers",
		RowCount: 10,
		Columns: []*schema.Column{
			{Name: "id", Data: "row_id", Type: schema.TypeInt64, PrimaryKey: true},
			{Name: "name", Data: "person.full_name()", Type: schema.TypeString},
		},
		Cadence: schema.Cadence{RowsPerMinute: rpm},
	}
}

func TestRunRejectsReplacePolicy(t *testing.T) {
	tbl := customersTable(60)
	tbl.UpdatePolicy = schema.PolicyReplace
	p, reg := compileStream(t, &schema.Model{Tables: []*schema.Table{tbl}})

	s := New(p, reg, newMemSink(), Options{Tick: time.Millisecond})
	err := s.Run(context.Background())
	require.Error(t, err)
	assert.True(t, schema.IsConfigError(err))
	assert.Contains(t, err.Error(), "not supported in streaming mode")
}

func TestBootstrapFromPersistedRows(t *testing.T) {
	customers := customersTable(0)
	customers.Cadence.Enabled = boolPtr(false)
	orders := &schema.Table{
		Name:         "orders",
		RowCount:     20,
		UpdatePolicy: schema.PolicyDisabled,
		Columns: []*schema.Column{
			{Name: "id", Data: "row_id", Type: schema.TypeInt64, PrimaryKey: true},
			{Name: "customer_id", Data: `foreign_key("customers", "id")`, Type: schema.TypeInt64},
		},
	}
	p, reg := compileStream(t, &schema.Model{Tables: []*schema.Table{customers, orders}})

	// 50 customers already on disk from a previous run.
	sink := newMemSink()
	for i := int64(1); i <= 50; i++ {
		sink.rows["customers"] = append(sink.rows["customers"], engine.Row{
			"row_id": i, "id": i, "name": "existing",
		})
	}

	s := New(p, reg, sink, Options{Tick: time.Millisecond})
	require.NoError(t, s.Run(context.Background()))

	// The disabled table was generated once, sampling only persisted keys.
	require.Equal(t, 20, sink.count("orders"))
	for _, r := range sink.rows["orders"] {
		cid := r["customer_id"].(int64)
		assert.GreaterOrEqual(t, cid, int64(1))
		assert.LessOrEqual(t, cid, int64(50))
	}
	assert.Equal(t, StateStopped, s.State("customers"))
	assert.Equal(t, StateStopped, s.State("orders"))

	// A second run finds the one-shot rows persisted and generates nothing.
	s2 := New(p, reg, sink, Options{Tick: time.Millisecond})
	require.NoError(t, s2.Run(context.Background()))
	assert.Equal(t, 20, sink.count("orders"))
	assert.Equal(t, 50, sink.count("customers"))
}

func TestTickingAppendsContiguousRows(t *testing.T) {
	// 6000 rows/minute at a 10ms tick is about one row per tick.
	tbl := customersTable(6000)
	p, reg := compileStream(t, &schema.Model{Tables: []*schema.Table{tbl}})
	sink := newMemSink()

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	s := New(p, reg, sink, Options{Tick: 10 * time.Millisecond})
	require.NoError(t, s.Run(ctx), "cancellation is a clean stop")

	ids := sink.rowIDs("customers")
	require.NotEmpty(t, ids)
	for i, id := range ids {
		assert.Equal(t, int64(i+1), id, "row ids start at 1 and stay contiguous")
	}
	assert.Equal(t, StateStopped, s.State("customers"))
	assert.Zero(t, s.TickErrors("customers"))
}

func TestTickingResumesAfterBootstrap(t *testing.T) {
	tbl := customersTable(6000)
	p, reg := compileStream(t, &schema.Model{Tables: []*schema.Table{tbl}})

	sink := newMemSink()
	for i := int64(1); i <= 5; i++ {
		sink.rows["customers"] = append(sink.rows["customers"], engine.Row{
			"row_id": i, "id": i, "name": "existing",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	s := New(p, reg, sink, Options{Tick: 10 * time.Millisecond})
	require.NoError(t, s.Run(ctx))

	ids := sink.rowIDs("customers")
	require.Greater(t, len(ids), 5, "new rows were appended")
	for i, id := range ids {
		assert.Equal(t, int64(i+1), id, "new ids continue after the persisted maximum")
	}
}

func TestAppendFailureRetriesWithoutGaps(t *testing.T) {
	tbl := customersTable(6000)
	p, reg := compileStream(t, &schema.Model{Tables: []*schema.Table{tbl}})

	sink := newMemSink()
	sink.failures["customers"] = 2

	ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer cancel()

	s := New(p, reg, sink, Options{Tick: 10 * time.Millisecond})
	require.NoError(t, s.Run(ctx))

	assert.GreaterOrEqual(t, s.TickErrors("customers"), 1)
	ids := sink.rowIDs("customers")
	require.NotEmpty(t, ids, "rows land once the sink recovers")
	for i, id := range ids {
		assert.Equal(t, int64(i+1), id, "retried batches keep ids contiguous")
	}
}

// cancelOnceSink cancels the run on its first append and rejects that batch,
// recording the context state seen by every append.
type cancelOnceSink struct {
	*memSink
	cancel  context.CancelFunc
	tripped bool
	ctxErrs []error
}

func (c *cancelOnceSink) AppendAtomic(ctx context.Context, t *schema.Table, rows []engine.Row) error {
	c.mu.Lock()
	first := !c.tripped
	c.tripped = true
	c.ctxErrs = append(c.ctxErrs, ctx.Err())
	c.mu.Unlock()
	if first {
		c.cancel()
		return errors.New("sink unavailable")
	}
	return c.memSink.AppendAtomic(ctx, t, rows)
}

func TestShutdownFlushesPendingBatch(t *testing.T) {
	tbl := customersTable(6000)
	p, reg := compileStream(t, &schema.Model{Tables: []*schema.Table{tbl}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &cancelOnceSink{memSink: newMemSink(), cancel: cancel}

	s := New(p, reg, sink, Options{Tick: 10 * time.Millisecond})
	require.NoError(t, s.Run(ctx))

	// The batch rejected at shutdown time was held and flushed on exit.
	ids := sink.rowIDs("customers")
	require.NotEmpty(t, ids, "held batch must be appended before exit")
	for i, id := range ids {
		assert.Equal(t, int64(i+1), id)
	}
	assert.GreaterOrEqual(t, s.TickErrors("customers"), 1)

	// Appends never see a cancelled context, even after shutdown began.
	for _, err := range sink.ctxErrs {
		assert.NoError(t, err)
	}
}

func TestBootstrapAppendFailure(t *testing.T) {
	tbl := customersTable(0)
	tbl.UpdatePolicy = schema.PolicyDisabled
	p, reg := compileStream(t, &schema.Model{Tables: []*schema.Table{tbl}})

	sink := newMemSink()
	sink.failures["customers"] = 1

	s := New(p, reg, sink, Options{Tick: time.Millisecond})
	err := s.Run(context.Background())
	require.Error(t, err)
	assert.True(t, IsAppendError(err))
	assert.Contains(t, err.Error(), `table "customers"`)
}

func TestZeroCadenceTableDoesNotTick(t *testing.T) {
	tbl := customersTable(0)
	p, reg := compileStream(t, &schema.Model{Tables: []*schema.Table{tbl}})
	sink := newMemSink()

	s := New(p, reg, sink, Options{Tick: time.Millisecond})
	require.NoError(t, s.Run(context.Background()))
	assert.Zero(t, sink.count("customers"))
	assert.Equal(t, StateStopped, s.State("customers"))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "bootstrapping", StateBootstrapping.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "ticking", StateTicking.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "unknown", State(99).String())
}
