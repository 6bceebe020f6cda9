/*
Package presence tracks live board connections in a TTL-refreshed
registry, assigning each connected user a stable color from a fixed
palette for the duration of its session.
*/
package presence
