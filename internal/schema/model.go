package schema

import (
	"errors"
	"fmt"
)

// Column types accepted by the "type" attribute. An empty type means the
// value keeps whatever type its expression produced.
const (
	TypeString  = "string"
	TypeInt32   = "int32"
	TypeInt64   = "int64"
	TypeFloat   = "float"
	TypeBoolean = "boolean"
)

// Update policies for streaming mode.
const (
	PolicyAppend   = "append"
	PolicyDisabled = "disabled"
	PolicyReplace  = "replace" // reserved; rejected with an explicit error
)

// Model is the root of a generation config. Read-only after load.
type Model struct {
	Version int      `yaml:"version,omitempty" json:"version,omitempty"`
	Config  Config   `yaml:"config,omitempty" json:"config,omitempty"`
	Tables  []*Table `yaml:"tables" json:"tables"`
}

// Config is the global configuration block.
type Config struct {
	Locale string `yaml:"locale,omitempty" json:"locale,omitempty"`
	Seed   int64  `yaml:"seed,omitempty" json:"seed,omitempty"`

	// InferAttrs enables rewriting "auto" column expressions into
	// copy_from_fk calls against the best-matching parent column by name.
	InferAttrs bool `yaml:"infer_entity_attrs_by_name,omitempty" json:"infer_entity_attrs_by_name,omitempty"`
}

// Table describes one output table.
type Table struct {
	Name       string    `yaml:"table_name" json:"table_name"`
	RowCount   int64     `yaml:"row_count,omitempty" json:"row_count,omitempty"`
	StartRowID int64     `yaml:"start_row_id,omitempty" json:"start_row_id,omitempty"`
	Columns    []*Column `yaml:"columns" json:"columns"`

	// ExportRowsPerFile is a chunking hint for file encoders: split the
	// batch output into files of at most this many rows. Zero means one file.
	ExportRowsPerFile int64 `yaml:"export_file_row_count,omitempty" json:"export_file_row_count,omitempty"`

	// UpdatePolicy governs streaming behavior. Defaults to "append".
	UpdatePolicy string  `yaml:"update_policy,omitempty" json:"update_policy,omitempty"`
	Cadence      Cadence `yaml:"cadence,omitempty" json:"cadence,omitempty"`
}

// Cadence configures the streaming generation rate of a table.
type Cadence struct {
	RowsPerMinute float64 `yaml:"rows_per_minute,omitempty" json:"rows_per_minute,omitempty"`
	Enabled       *bool   `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// EnabledOrDefault reports whether the cadence is active. Unset means enabled.
func (c Cadence) EnabledOrDefault() bool {
	if c.Enabled == nil {
		return true
	}
	return *c.Enabled
}

// Column describes one column of a table.
type Column struct {
	Name           string  `yaml:"column_name" json:"column_name"`
	Data           string  `yaml:"data" json:"data"`
	Type           string  `yaml:"type,omitempty" json:"type,omitempty"`
	NullPercentage float64 `yaml:"null_percentage,omitempty" json:"null_percentage,omitempty"`
	PrimaryKey     bool    `yaml:"is_primary_key,omitempty" json:"is_primary_key,omitempty"`
	Description    string  `yaml:"description,omitempty" json:"description,omitempty"`
}

// Policy returns the table's update policy, defaulting to append.
func (t *Table) Policy() string {
	if t.UpdatePolicy == "" {
		return PolicyAppend
	}
	return t.UpdatePolicy
}

// Start returns the first row id, defaulting to 1.
func (t *Table) Start() int64 {
	if t.StartRowID == 0 {
		return 1
	}
	return t.StartRowID
}

// Column returns the named column, or nil.
func (t *Table) Column(name string) *Column {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// PrimaryKeys returns the table's primary-key columns in declaration order.
func (t *Table) PrimaryKeys() []*Column {
	var pks []*Column
	for _, c := range t.Columns {
		if c.PrimaryKey {
			pks = append(pks, c)
		}
	}
	return pks
}

// ColumnNames returns all column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Table returns the named table, or nil.
func (m *Model) Table(name string) *Table {
	for _, t := range m.Tables {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// ConfigError is a fatal configuration problem detected at load or
// validation time. It names the offending table/column so the message is
// actionable without opening the config file.
type ConfigError struct {
	Table  string
	Column string
	Msg    string
}

func (e *ConfigError) Error() string {
	switch {
	case e.Table != "" && e.Column != "":
		return fmt.Sprintf("config: table %q column %q: %s", e.Table, e.Column, e.Msg)
	case e.Table != "":
		return fmt.Sprintf("config: table %q: %s", e.Table, e.Msg)
	default:
		return fmt.Sprintf("config: %s", e.Msg)
	}
}

// Errf builds a ConfigError with a formatted message.
func Errf(table, column, format string, args ...any) *ConfigError {
	return &ConfigError{Table: table, Column: column, Msg: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
