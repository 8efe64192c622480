package schema

import (
	"golang.org/x/text/language"
)

var validTypes = map[string]bool{
	"":          true, // inferred from the expression result
	TypeString:  true,
	TypeInt32:   true,
	TypeInt64:   true,
	TypeFloat:   true,
	TypeBoolean: true,
}

var validPolicies = map[string]bool{
	PolicyAppend:   true,
	PolicyDisabled: true,
	PolicyReplace:  true,
}

// Validate performs the structural checks that do not need expression
// analysis (package plan owns those). All violations are ConfigErrors:
// fatal, reported with table/column context, never retried.
func (m *Model) Validate() error {
	if len(m.Tables) == 0 {
		return Errf("", "", "config must define at least one table")
	}

	if m.Config.Locale != "" {
		if _, err := language.Parse(m.Config.Locale); err != nil {
			return Errf("", "", "invalid locale %q: %v", m.Config.Locale, err)
		}
	}

	seenTables := make(map[string]bool, len(m.Tables))
	for _, t := range m.Tables {
		if t.Name == "" {
			return Errf("", "", "table without a table_name attribute")
		}
		if seenTables[t.Name] {
			return Errf(t.Name, "", "duplicate table name")
		}
		seenTables[t.Name] = true

		if err := t.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) validate() error {
	if len(t.Columns) == 0 {
		return Errf(t.Name, "", "table must define at least one column")
	}
	if t.RowCount < 0 {
		return Errf(t.Name, "", "row_count must not be negative")
	}
	if t.StartRowID < 0 {
		return Errf(t.Name, "", "start_row_id must not be negative")
	}
	if t.ExportRowsPerFile < 0 {
		return Errf(t.Name, "", "export_file_row_count must not be negative")
	}
	if !validPolicies[t.Policy()] {
		return Errf(t.Name, "", "unknown update_policy %q (want append, disabled or replace)", t.UpdatePolicy)
	}
	if t.Cadence.RowsPerMinute < 0 {
		return Errf(t.Name, "", "cadence.rows_per_minute must not be negative")
	}

	seenCols := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if c.Name == "" {
			return Errf(t.Name, "", "column without a column_name attribute")
		}
		if seenCols[c.Name] {
			return Errf(t.Name, c.Name, "duplicate column name")
		}
		seenCols[c.Name] = true

		if c.Data == "" {
			return Errf(t.Name, c.Name, "column must have a data attribute")
		}
		if !validTypes[c.Type] {
			return Errf(t.Name, c.Name, "unknown type %q (want string, int32, int64, float or boolean)", c.Type)
		}
		if c.NullPercentage < 0 || c.NullPercentage > 1 {
			return Errf(t.Name, c.Name, "null_percentage %v outside [0, 1]", c.NullPercentage)
		}
		// A primary key must never resolve to NULL, so a nonzero null
		// probability is contradictory config rather than a runtime surprise.
		if c.PrimaryKey && c.NullPercentage != 0 {
			return Errf(t.Name, c.Name, "primary key column cannot have a null_percentage")
		}
	}
	return nil
}
