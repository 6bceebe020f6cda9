/*
Package lock implements the coordinator's move-lock: a TTL-bounded,
set-if-absent advisory lock keyed by task id.
*/
package lock
