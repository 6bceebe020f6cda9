/*
Package types defines the core data structures shared across the board
coordinator: Task (the sole mutable domain entity), UserPresence
(transient per-connection state), QueuedOp (an offline-buffered client
operation replayed on reconnect), and ConflictAuditRecord (the
append-only audit row written when a move loses a lock race).

Task.Order is a fractional index within its ColumnID (see pkg/order);
Task.Version increases on every successful mutation and is never
rejected on mismatch — see pkg/conflict for why.
*/
package types
