package engine

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/quarrydata/quarry/internal/cache"
	"github.com/quarrydata/quarry/internal/plan"
	"github.com/quarrydata/quarry/internal/registry"
	"github.com/quarrydata/quarry/internal/schema"
)

// Row is one generated row keyed by column name, plus the engine-provided
// row id under "row_id".
type Row map[string]any

// Generator produces rows for one table. It is the single writer for that
// table's cache entries; one goroutine drives it at a time.
type Generator struct {
	model    *schema.Model
	tp       *plan.TablePlan
	reg      *registry.Registry
	caches   *cache.Set
	rng      *rand.Rand
	resolver *Resolver
}

// NewGenerator creates the generator for one table of a compiled plan.
func NewGenerator(p *plan.Plan, table string, reg *registry.Registry, caches *cache.Set) (*Generator, error) {
	tp, ok := p.Tables[table]
	if !ok {
		return nil, fmt.Errorf("no plan for table %q", table)
	}
	rng := deriveRand(p.Model.Config.Seed, table)
	return &Generator{
		model:    p.Model,
		tp:       tp,
		reg:      reg,
		caches:   caches,
		rng:      rng,
		resolver: NewResolver(p.Model, table, caches, rng),
	}, nil
}

// Table returns the schema table this generator produces.
func (g *Generator) Table() *schema.Table { return g.tp.Table }

// Generate produces exactly n rows with ids start..start+n-1. The batch is
// committed to the shared caches only after every row has succeeded: a
// mid-batch failure leaves no trace, so a caller that retries the same id
// range cannot duplicate keys other tables may already have sampled.
func (g *Generator) Generate(ctx context.Context, start, n int64) ([]Row, error) {
	rows := make([]Row, 0, n)
	for i := int64(0); i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rowID := start + i
		row, err := g.generateRow(rowID)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	registerBatch(g.caches, g.tp.Table, rows)
	return rows, nil
}

func (g *Generator) generateRow(rowID int64) (Row, error) {
	row := Row{"row_id": rowID}
	for _, col := range g.tp.Ordered {
		v, err := g.evalColumn(col, row)
		if err != nil {
			if IsMissingParentRow(err) || schema.IsConfigError(err) {
				return nil, err
			}
			return nil, &EvalError{Table: g.tp.Table.Name, Column: col.Schema.Name, RowID: rowID, Err: err}
		}
		row[col.Schema.Name] = v
	}
	return row, nil
}

// registerBatch commits a finished batch to both caches in one publication:
// every primary-key value into the key cache, and each full row into the row
// cache under its first primary key.
func registerBatch(caches *cache.Set, t *schema.Table, rows []Row) {
	pks := t.PrimaryKeys()
	for _, pk := range pks {
		values := make([]any, 0, len(rows))
		for _, row := range rows {
			if v, ok := row[pk.Name]; ok && v != nil {
				values = append(values, v)
			}
		}
		caches.Keys.AppendAll(t.Name, pk.Name, values)
	}
	if len(pks) == 0 {
		return
	}
	for _, row := range rows {
		if key, ok := row[pks[0].Name]; ok && key != nil {
			caches.Rows.Put(t.Name, normKey(key), map[string]any(row))
		}
	}
}

// RegisterRow records one already-persisted row in both caches. Used by
// streaming bootstrap to replay rows loaded from the sink.
func RegisterRow(caches *cache.Set, t *schema.Table, row Row) {
	pks := t.PrimaryKeys()
	for _, pk := range pks {
		if v, ok := row[pk.Name]; ok && v != nil {
			caches.Keys.Append(t.Name, pk.Name, v)
		}
	}
	if len(pks) > 0 {
		if key, ok := row[pks[0].Name]; ok && key != nil {
			caches.Rows.Put(t.Name, normKey(key), map[string]any(row))
		}
	}
}

// RunBatch generates every table of the plan to its configured row count,
// in dependency order, on a single goroutine. Returns rows per table name.
func RunBatch(ctx context.Context, p *plan.Plan, reg *registry.Registry, caches *cache.Set) (map[string][]Row, error) {
	out := make(map[string][]Row, len(p.Order))
	for _, name := range p.Order {
		g, err := NewGenerator(p, name, reg, caches)
		if err != nil {
			return nil, err
		}
		t := g.Table()
		rows, err := g.Generate(ctx, t.Start(), t.RowCount)
		if err != nil {
			return nil, fmt.Errorf("generate table %q: %w", name, err)
		}
		out[name] = rows
	}
	return out, nil
}
