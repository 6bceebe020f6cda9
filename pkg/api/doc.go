/*
Package api exposes the coordinator's external interfaces: a websocket
upgrade endpoint that carries the full bidirectional event protocol
(pkg/router does the actual dispatch), a small read-only HTTP fallback
(GET /tasks, GET /tasks/{id}), and the /health, /ready, /metrics
operational endpoints.

Every mutation goes through the websocket event channel so conflict
resolution stays single-sourced; the HTTP surface never writes.
*/
package api
