// Package engine generates rows from a compiled plan.
//
// A Generator owns one table: it evaluates that table's columns in phase
// order for each row, resolves foreign keys against the shared caches, and
// publishes each finished batch back into them. Batch mode runs generators
// sequentially in table dependency order; streaming mode runs one generator
// per table concurrently, which is safe because each cache entry has a
// single writer (the owning table's generator) and snapshot-reading
// consumers.
//
// Determinism: every generator draws from a sub-stream seeded by the model
// seed and the table name, so a table's output depends only on the seed and
// its own row ids, never on which other tables run or in what order.
package engine
