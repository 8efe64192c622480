// Package plan turns a validated schema model into an execution plan:
// compiled column expressions, a two-phase evaluation order per table, and
// a global table order that puts every parent strictly before its children.
//
// Planning is the expression-aware half of load-time validation. Everything
// it rejects - unparseable expressions, unresolved identifiers, unknown
// capabilities, invalid distribution parameters, dependency cycles - is a
// ConfigError: fatal, reported once with table/column context, never
// retried at row time.
//
// A Plan is computed once per run and reused for every row and every
// streaming tick.
package plan
