/*
Package task implements create/update/move/delete/getAll against the
authoritative cache: the pure mutation core the event router and replay
path both call into.
*/
package task
