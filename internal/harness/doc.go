// Package harness runs declarative conformance scenarios: a YAML file names
// a schema config, a seed, and expectations over the generated output
// (row counts, exact cell values, foreign-key membership).
//
// Scenarios keep end-to-end behavior checks out of Go code so adding a
// regression case is a data change, not a code change.
package harness
