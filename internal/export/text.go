package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/quarrydata/quarry/internal/engine"
	"github.com/quarrydata/quarry/internal/expr"
	"github.com/quarrydata/quarry/internal/schema"
)

// csvEncoder writes a header row followed by one record per row. NULL is
// encoded as the empty field.
type csvEncoder struct{}

func (csvEncoder) Ext() string { return "csv" }

func (csvEncoder) Encode(w io.Writer, t *schema.Table, rows []engine.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.ColumnNames()); err != nil {
		return err
	}
	record := make([]string, len(t.Columns))
	for _, row := range rows {
		for i, c := range t.Columns {
			v := row[c.Name]
			if v == nil {
				record[i] = ""
			} else {
				record[i] = expr.FormatValue(v)
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// jsonEncoder writes a JSON array of objects with keys in schema column
// order. json.Marshal would sort keys alphabetically, so objects are
// assembled by hand.
type jsonEncoder struct{}

func (jsonEncoder) Ext() string { return "json" }

func (jsonEncoder) Encode(w io.Writer, t *schema.Table, rows []engine.Row) error {
	var b strings.Builder
	b.WriteString("[\n")
	for i, row := range rows {
		if i > 0 {
			b.WriteString(",\n")
		}
		b.WriteString("  {")
		for j, c := range t.Columns {
			if j > 0 {
				b.WriteString(", ")
			}
			key, err := json.Marshal(c.Name)
			if err != nil {
				return err
			}
			val, err := json.Marshal(row[c.Name])
			if err != nil {
				return fmt.Errorf("column %q: %w", c.Name, err)
			}
			b.Write(key)
			b.WriteString(": ")
			b.Write(val)
		}
		b.WriteString("}")
	}
	b.WriteString("\n]\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// sqlEncoder writes one INSERT statement per row.
type sqlEncoder struct{}

func (sqlEncoder) Ext() string { return "sql" }

func (sqlEncoder) Encode(w io.Writer, t *schema.Table, rows []engine.Row) error {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = quoteSQLIdent(c.Name)
	}
	columnList := strings.Join(names, ", ")

	var b strings.Builder
	for _, row := range rows {
		vals := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			vals[i] = sqlLiteral(row[c.Name])
		}
		fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s);\n",
			quoteSQLIdent(t.Name), columnList, strings.Join(vals, ", "))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func quoteSQLIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func sqlLiteral(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	default:
		return expr.FormatValue(v)
	}
}
