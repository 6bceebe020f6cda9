/*
Package router is the coordinator's transport-thin event dispatcher: per
connection, it binds event types to handlers, validates every inbound
payload before touching any other component, and fans the resulting
server events out through pkg/events.

Router owns no state of its own beyond its component references. It is
the only package that knows the full event protocol; pkg/task,
pkg/conflict, and pkg/presence are unaware transport exists at all.
*/
package router
