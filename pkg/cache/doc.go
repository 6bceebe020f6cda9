/*
Package cache holds the coordinator's authoritative, TTL-bound view of
board state: MemCache for a single process, RedisCache for a shared
external store, both behind the same Cache interface.
*/
package cache
