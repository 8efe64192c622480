// Package export writes generated batches to files: CSV, JSON, SQL insert
// text, and Parquet. Encoders operate on schema column order so output
// layout is stable across runs.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/quarrydata/quarry/internal/engine"
	"github.com/quarrydata/quarry/internal/schema"
)

// Encoder writes one batch of rows for one table.
type Encoder interface {
	// Ext is the file extension without the dot, e.g. "csv".
	Ext() string
	// Encode writes rows in schema column order to w.
	Encode(w io.Writer, t *schema.Table, rows []engine.Row) error
}

// ForFormat returns the encoder for a format name.
func ForFormat(format string) (Encoder, error) {
	switch format {
	case "csv":
		return csvEncoder{}, nil
	case "json":
		return jsonEncoder{}, nil
	case "sql":
		return sqlEncoder{}, nil
	case "parquet":
		return parquetEncoder{}, nil
	default:
		return nil, fmt.Errorf("unknown format %q (want csv, json, sql or parquet)", format)
	}
}

// WriteTable writes one table's rows into dir as <table>.<ext>. When the
// table carries a rows-per-file hint the output is split into numbered
// files <table>_000.<ext>, <table>_001.<ext>, and so on.
func WriteTable(dir string, enc Encoder, t *schema.Table, rows []engine.Row) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create target directory: %w", err)
	}

	chunk := t.ExportRowsPerFile
	if chunk <= 0 || int64(len(rows)) <= chunk {
		path := filepath.Join(dir, fmt.Sprintf("%s.%s", t.Name, enc.Ext()))
		if err := writeFile(path, enc, t, rows); err != nil {
			return nil, err
		}
		return []string{path}, nil
	}

	var paths []string
	for i, off := 0, int64(0); off < int64(len(rows)); i, off = i+1, off+chunk {
		end := off + chunk
		if end > int64(len(rows)) {
			end = int64(len(rows))
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_%03d.%s", t.Name, i, enc.Ext()))
		if err := writeFile(path, enc, t, rows[off:end]); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, enc Encoder, t *schema.Table, rows []engine.Row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := enc.Encode(f, t, rows); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
