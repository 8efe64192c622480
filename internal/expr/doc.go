// Package expr implements the column expression mini-language.
//
// Every column's data attribute is one expression program: either a single
// expression or a short block of statements ending in an explicit return.
// The language is deliberately small - it is a value grammar, not a
// scripting sandbox:
//
//   - literals: strings ('..' or ".."), integers, floats, true/false/null
//   - identifiers: previously resolved columns of the current row, row_id
//   - arithmetic (+ - * / %), string concatenation via +
//   - comparison (== != < <= > >=), boolean (&& ||), unary (- !)
//   - conditionals: cond ? then : else
//   - calls into the capability registry: person.first_name(),
//     number.int(1, 100), foreign_key("customers", "id", distribution="zipf")
//   - blocks: name = expr bindings separated by ; or newline, closed by
//     exactly one return statement
//
// Programs are parsed once at schema-load time. Static analysis (Refs)
// exposes the identifiers and parent tables an expression depends on, which
// drives two-phase column ordering and global table ordering.
//
// Evaluation is side-effect free: a program reads the supplied environment
// and produces exactly one value. All host interaction goes through the
// environment's call hook.
package expr
