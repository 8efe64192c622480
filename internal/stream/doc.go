// Package stream runs continuous generation: one goroutine per cadenced
// table, a shared tick interval, and batch appends into a durable sink.
//
// Lifecycle per table: Idle -> Bootstrapping -> Running <-> Ticking ->
// Stopped. Bootstrap replays every persisted row into the shared caches
// before any table ticks, so foreign keys resolve against the full history
// and row ids continue from where the previous run stopped.
//
// Errors inside a tick (generation or append) are logged and counted but
// never kill the loop; a failed append is retried with the same batch on
// the next tick so persisted row ids stay contiguous. Cancellation is
// cooperative and observed at tick boundaries only, which guarantees an
// in-flight batch is either fully appended or not generated at all.
package stream
