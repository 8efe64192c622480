// Package schema holds the typed in-memory model of a generation config:
// tables, columns, cadence and the global config block.
//
// A Model is built once per run - by Load from a YAML, JSON or CUE file, or
// assembled directly in tests - validated, optionally rewritten by attribute
// inference, and never mutated afterwards. Everything downstream (planning,
// generation, streaming) treats it as read-only.
package schema
