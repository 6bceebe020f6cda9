/*
Package log provides structured logging for the board coordinator using zerolog.

A single global zerolog.Logger is configured once via Init, then every
component obtains a child logger carrying its own "component" field:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	taskLog := log.WithComponent("task")
	taskLog.Info().Str("task_id", id).Msg("task created")

WithTaskID, WithConnectionID, and WithColumnID attach the identifiers
that recur across the coordinator's event flow. Fatal is reserved for
main — library code always returns errors.
*/
package log
