/*
Package flush implements the coordinator's debounced write-behind
durability queue: mutations land here first and are drained to durable
storage by a small worker pool after a short delay, collapsing repeated
writes to the same task into one and retrying failures with backoff.
*/
package flush
