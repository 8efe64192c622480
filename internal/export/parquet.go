package export

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/quarrydata/quarry/internal/engine"
	"github.com/quarrydata/quarry/internal/expr"
	"github.com/quarrydata/quarry/internal/schema"
)

// parquetEncoder writes one Arrow record batch per call through the parquet
// file writer. Untyped columns are stored as strings.
type parquetEncoder struct{}

func (parquetEncoder) Ext() string { return "parquet" }

func arrowType(typ string) arrow.DataType {
	switch typ {
	case schema.TypeInt32:
		return arrow.PrimitiveTypes.Int32
	case schema.TypeInt64:
		return arrow.PrimitiveTypes.Int64
	case schema.TypeFloat:
		return arrow.PrimitiveTypes.Float64
	case schema.TypeBoolean:
		return arrow.FixedWidthTypes.Boolean
	default:
		return arrow.BinaryTypes.String
	}
}

func arrowSchema(t *schema.Table) *arrow.Schema {
	fields := make([]arrow.Field, len(t.Columns))
	for i, c := range t.Columns {
		fields[i] = arrow.Field{
			Name:     c.Name,
			Type:     arrowType(c.Type),
			Nullable: !c.PrimaryKey,
		}
	}
	return arrow.NewSchema(fields, nil)
}

func (parquetEncoder) Encode(w io.Writer, t *schema.Table, rows []engine.Row) error {
	mem := memory.NewGoAllocator()
	arrSchema := arrowSchema(t)

	writer, err := pqarrow.NewFileWriter(arrSchema, w, nil,
		pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(mem)))
	if err != nil {
		return fmt.Errorf("create parquet writer: %w", err)
	}

	builder := array.NewRecordBuilder(mem, arrSchema)
	defer builder.Release()

	for _, row := range rows {
		for i, c := range t.Columns {
			if err := appendValue(builder.Field(i), c, row[c.Name]); err != nil {
				writer.Close()
				return fmt.Errorf("column %q: %w", c.Name, err)
			}
		}
	}

	record := builder.NewRecord()
	err = writer.Write(record)
	record.Release()
	if err != nil {
		writer.Close()
		return fmt.Errorf("write record batch: %w", err)
	}
	return writer.Close()
}

func appendValue(b array.Builder, c *schema.Column, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}
	switch b := b.(type) {
	case *array.Int32Builder:
		n, ok := v.(int64)
		if !ok {
			return fmt.Errorf("expected integer, got %T", v)
		}
		b.Append(int32(n))
	case *array.Int64Builder:
		n, ok := v.(int64)
		if !ok {
			return fmt.Errorf("expected integer, got %T", v)
		}
		b.Append(n)
	case *array.Float64Builder:
		switch n := v.(type) {
		case float64:
			b.Append(n)
		case int64:
			b.Append(float64(n))
		default:
			return fmt.Errorf("expected float, got %T", v)
		}
	case *array.BooleanBuilder:
		bv, ok := v.(bool)
		if !ok {
			return fmt.Errorf("expected boolean, got %T", v)
		}
		b.Append(bv)
	case *array.StringBuilder:
		if s, ok := v.(string); ok {
			b.Append(s)
		} else {
			b.Append(expr.FormatValue(v))
		}
	default:
		return fmt.Errorf("unsupported builder %T", b)
	}
	return nil
}
