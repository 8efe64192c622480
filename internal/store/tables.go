package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/quarrydata/quarry/internal/engine"
	"github.com/quarrydata/quarry/internal/schema"
)

// rowIDColumn is the implicit first column of every persisted table. It
// carries the engine's row id so a restart can continue the sequence.
const rowIDColumn = "row_id"

// sqlType maps a schema column type to its SQLite storage class. Untyped
// columns land in TEXT; their Go value is recovered from the schema on read.
func sqlType(typ string) string {
	switch typ {
	case schema.TypeInt32, schema.TypeInt64, schema.TypeBoolean:
		return "INTEGER"
	case schema.TypeFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}

// EnsureTable creates the SQL table for a schema table if absent.
// One column per schema column plus the leading row_id. Idempotent.
func (s *Store) EnsureTable(ctx context.Context, t *schema.Table) error {
	cols := make([]string, 0, len(t.Columns)+1)
	cols = append(cols, quoteIdent(rowIDColumn)+" INTEGER PRIMARY KEY")
	for _, c := range t.Columns {
		cols = append(cols, quoteIdent(c.Name)+" "+sqlType(c.Type))
	}
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		quoteIdent(t.Name), strings.Join(cols, ", "))
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("ensure table %q: %w", t.Name, err)
	}
	return nil
}

// AppendAtomic inserts a whole batch in one transaction. Either every row
// of the batch becomes durable or none does; a batch is never split.
func (s *Store) AppendAtomic(ctx context.Context, t *schema.Table, rows []engine.Row) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append to %q: begin tx: %w", t.Name, err)
	}
	defer tx.Rollback() // no-op if committed

	names := make([]string, 0, len(t.Columns)+1)
	placeholders := make([]string, 0, len(t.Columns)+1)
	names = append(names, quoteIdent(rowIDColumn))
	placeholders = append(placeholders, "?")
	for _, c := range t.Columns {
		names = append(names, quoteIdent(c.Name))
		placeholders = append(placeholders, "?")
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(t.Name), strings.Join(names, ", "), strings.Join(placeholders, ", ")))
	if err != nil {
		return fmt.Errorf("append to %q: prepare: %w", t.Name, err)
	}
	defer stmt.Close()

	for _, row := range rows {
		args := make([]any, 0, len(t.Columns)+1)
		args = append(args, row[rowIDColumn])
		for _, c := range t.Columns {
			args = append(args, toStorage(row[c.Name]))
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("append to %q: insert row %v: %w", t.Name, row[rowIDColumn], err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append to %q: commit: %w", t.Name, err)
	}
	return nil
}

// LoadExisting reads every persisted row of a table ordered by row id, with
// values restored to their schema-declared Go types.
func (s *Store) LoadExisting(ctx context.Context, t *schema.Table) ([]engine.Row, error) {
	names := make([]string, 0, len(t.Columns)+1)
	names = append(names, quoteIdent(rowIDColumn))
	for _, c := range t.Columns {
		names = append(names, quoteIdent(c.Name))
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(names, ", "), quoteIdent(t.Name), quoteIdent(rowIDColumn))

	sqlRows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load %q: %w", t.Name, err)
	}
	defer sqlRows.Close()

	var out []engine.Row
	for sqlRows.Next() {
		raw := make([]any, len(t.Columns)+1)
		ptrs := make([]any, len(raw))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := sqlRows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("load %q: scan: %w", t.Name, err)
		}

		row := make(engine.Row, len(t.Columns)+1)
		row[rowIDColumn] = raw[0]
		for i, c := range t.Columns {
			v, err := fromStorage(c, raw[i+1])
			if err != nil {
				return nil, fmt.Errorf("load %q: column %q row %v: %w", t.Name, c.Name, raw[0], err)
			}
			row[c.Name] = v
		}
		out = append(out, row)
	}
	if err := sqlRows.Err(); err != nil {
		return nil, fmt.Errorf("load %q: %w", t.Name, err)
	}
	return out, nil
}

// MaxRowID returns the highest persisted row id for a table, or 0 when the
// table is empty.
func (s *Store) MaxRowID(ctx context.Context, table string) (int64, error) {
	var maxID *int64
	query := fmt.Sprintf("SELECT MAX(%s) FROM %s", quoteIdent(rowIDColumn), quoteIdent(table))
	if err := s.db.QueryRowContext(ctx, query).Scan(&maxID); err != nil {
		return 0, fmt.Errorf("max row id of %q: %w", table, err)
	}
	if maxID == nil {
		return 0, nil
	}
	return *maxID, nil
}

// Count returns the number of persisted rows for a table.
func (s *Store) Count(ctx context.Context, table string) (int64, error) {
	var n int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdent(table))
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %q: %w", table, err)
	}
	return n, nil
}

// toStorage converts an engine value to its SQLite representation.
func toStorage(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return int64(1)
		}
		return int64(0)
	}
	return v
}

// fromStorage restores a scanned SQLite value to the column's Go type.
func fromStorage(c *schema.Column, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	switch c.Type {
	case schema.TypeBoolean:
		n, ok := v.(int64)
		if !ok {
			return nil, fmt.Errorf("expected integer-encoded boolean, got %T", v)
		}
		return n != 0, nil
	case schema.TypeInt32, schema.TypeInt64:
		if n, ok := v.(int64); ok {
			return n, nil
		}
		return nil, fmt.Errorf("expected integer, got %T", v)
	case schema.TypeFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int64:
			return float64(n), nil
		}
		return nil, fmt.Errorf("expected float, got %T", v)
	case schema.TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return nil, fmt.Errorf("expected string, got %T", v)
	default:
		return v, nil
	}
}
