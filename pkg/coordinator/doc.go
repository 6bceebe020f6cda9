/*
Package coordinator assembles one board's full component graph —
cache, durable store, flush queue, task service, conflict resolver,
presence registry, event broker, router, and HTTP/websocket server —
behind a single construct-start-shutdown lifecycle.

# Lifecycle

	cfg := coordinator.Config{ListenAddr: ":8080", DataDir: "./data"}
	c, err := coordinator.New(cfg)
	errCh := c.Start(ctx)
	...
	c.Shutdown(shutdownCtx)

Start begins the background loops (event broker delivery, flush queue
dispatch, metrics collection) and serves HTTP in a goroutine; listener
errors surface on the returned channel. Shutdown stops the listener,
forces any pending flush jobs to run immediately instead of waiting
out their debounce window, and closes the durable store — bounded by
DrainTimeout so a stuck write can't hang the process indefinitely.
*/
package coordinator
