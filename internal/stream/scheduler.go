package stream

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quarrydata/quarry/internal/cache"
	"github.com/quarrydata/quarry/internal/engine"
	"github.com/quarrydata/quarry/internal/plan"
	"github.com/quarrydata/quarry/internal/registry"
	"github.com/quarrydata/quarry/internal/schema"
)

// DefaultTick is the scheduler-wide tick interval.
const DefaultTick = 10 * time.Second

// Sink is the durable storage collaborator. The store package provides the
// SQLite implementation; tests substitute an in-memory one.
type Sink interface {
	LoadExisting(ctx context.Context, t *schema.Table) ([]engine.Row, error)
	AppendAtomic(ctx context.Context, t *schema.Table, rows []engine.Row) error
}

// Options tunes a Scheduler. Zero values pick defaults.
type Options struct {
	Tick   time.Duration
	Logger *slog.Logger
}

// Scheduler drives streaming generation for every table of a plan.
type Scheduler struct {
	plan   *plan.Plan
	reg    *registry.Registry
	caches *cache.Set
	sink   Sink
	tick   time.Duration
	log    *slog.Logger

	mu        sync.Mutex
	states    map[string]State
	tickErrs  map[string]int
	nextRowID map[string]int64
}

// New creates a scheduler over a compiled plan and a sink.
func New(p *plan.Plan, reg *registry.Registry, sink Sink, opts Options) *Scheduler {
	tick := opts.Tick
	if tick <= 0 {
		tick = DefaultTick
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		plan:      p,
		reg:       reg,
		caches:    cache.NewSet(),
		sink:      sink,
		tick:      tick,
		log:       logger,
		states:    make(map[string]State, len(p.Order)),
		tickErrs:  make(map[string]int, len(p.Order)),
		nextRowID: make(map[string]int64, len(p.Order)),
	}
	for _, name := range p.Order {
		s.states[name] = StateIdle
	}
	return s
}

// State returns the lifecycle state of one table's loop.
func (s *Scheduler) State(table string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[table]
}

// TickErrors returns how many ticks of a table have failed so far.
func (s *Scheduler) TickErrors(table string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tickErrs[table]
}

func (s *Scheduler) setState(table string, st State) {
	s.mu.Lock()
	s.states[table] = st
	s.mu.Unlock()
}

func (s *Scheduler) countTickError(table string) {
	s.mu.Lock()
	s.tickErrs[table]++
	s.mu.Unlock()
}

// Run bootstraps every table and then ticks the cadenced ones until the
// context is cancelled. Cancellation is a normal stop, not an error.
func (s *Scheduler) Run(ctx context.Context) error {
	for _, t := range s.plan.Model.Tables {
		if t.Policy() == schema.PolicyReplace {
			return schema.Errf(t.Name, "", `update_policy "replace" is not supported in streaming mode`)
		}
	}

	if err := s.bootstrap(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, name := range s.plan.Order {
		t := s.plan.Tables[name].Table
		if t.Policy() == schema.PolicyDisabled || !t.Cadence.EnabledOrDefault() || t.Cadence.RowsPerMinute <= 0 {
			s.setState(name, StateStopped)
			continue
		}
		gen, err := engine.NewGenerator(s.plan, name, s.reg, s.caches)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return s.tableLoop(ctx, gen)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// bootstrap loads every table's persisted rows into the caches, in
// dependency order, and decides each table's next row id. Disabled tables
// with no persisted rows are generated once to their full row count.
func (s *Scheduler) bootstrap(ctx context.Context) error {
	for _, name := range s.plan.Order {
		t := s.plan.Tables[name].Table
		s.setState(name, StateBootstrapping)

		rows, err := s.sink.LoadExisting(ctx, t)
		if err != nil {
			return err
		}
		maxID := int64(0)
		for _, row := range rows {
			engine.RegisterRow(s.caches, t, row)
			if id, ok := row["row_id"].(int64); ok && id > maxID {
				maxID = id
			}
		}
		next := t.Start()
		if maxID >= next {
			next = maxID + 1
		}

		if t.Policy() == schema.PolicyDisabled && len(rows) == 0 && t.RowCount > 0 {
			gen, err := engine.NewGenerator(s.plan, name, s.reg, s.caches)
			if err != nil {
				return err
			}
			generated, err := gen.Generate(ctx, next, t.RowCount)
			if err != nil {
				return err
			}
			if err := s.sink.AppendAtomic(ctx, t, generated); err != nil {
				return &AppendError{Table: name, Rows: len(generated), Err: err}
			}
			next += t.RowCount
		}

		s.mu.Lock()
		s.nextRowID[name] = next
		s.mu.Unlock()
		s.log.Info("bootstrap complete", "table", name, "persisted", len(rows), "next_row_id", next)
	}
	return nil
}

// tableLoop is one table's streaming loop. Rows due per tick accumulate as
// rows_per_minute scaled by real elapsed time, with the fractional remainder
// carried so low cadences still make progress.
//
// Cancellation is observed only between ticks. Tick work runs on a context
// detached from cancellation so an in-flight batch always completes and
// appends; a batch still held from a failed append is flushed before exit.
func (s *Scheduler) tableLoop(ctx context.Context, gen *engine.Generator) error {
	t := gen.Table()
	name := t.Name
	s.setState(name, StateRunning)
	defer s.setState(name, StateStopped)

	s.mu.Lock()
	next := s.nextRowID[name]
	s.mu.Unlock()

	var (
		carry   float64
		pending []engine.Row
		last    = time.Now()
	)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if pending != nil {
				if err := s.sink.AppendAtomic(context.WithoutCancel(ctx), t, pending); err != nil {
					s.countTickError(name)
					s.log.Error("final append failed", "table", name, "rows", len(pending), "error", err)
				}
			}
			return ctx.Err()
		case now := <-ticker.C:
			s.setState(name, StateTicking)
			tickCtx := context.WithoutCancel(ctx)

			// A batch whose append failed is retried before anything new
			// is generated, keeping persisted row ids contiguous.
			if pending != nil {
				if err := s.sink.AppendAtomic(tickCtx, t, pending); err != nil {
					s.countTickError(name)
					s.log.Error("append retry failed", "table", name, "rows", len(pending), "error", err)
					s.setState(name, StateRunning)
					continue
				}
				pending = nil
			}

			elapsed := now.Sub(last)
			last = now
			due := t.Cadence.RowsPerMinute*elapsed.Minutes() + carry
			n := int64(math.Floor(due))
			carry = due - float64(n)

			if n > 0 {
				rows, err := gen.Generate(tickCtx, next, n)
				if err != nil {
					s.countTickError(name)
					s.log.Error("tick generation failed", "table", name, "rows", n, "error", err)
					s.setState(name, StateRunning)
					continue
				}
				next += n
				if err := s.sink.AppendAtomic(tickCtx, t, rows); err != nil {
					pending = rows
					s.countTickError(name)
					s.log.Error("append failed", "table", name, "rows", len(rows), "error", err)
				} else {
					s.log.Debug("tick appended", "table", name, "rows", len(rows), "next_row_id", next)
				}
			}
			s.setState(name, StateRunning)
		}
	}
}
