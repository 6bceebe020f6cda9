/*
Package client is a thin websocket client for the board coordinator's
event protocol, used where opening a browser tab is impractical:
cmd/board's replay subcommand (the tasks subcommand reads the HTTP
fallback directly), and tests that need to drive a real coordinator
end-to-end.

# Architecture

	┌──────────────────── APPLICATION CODE ──────────────────────┐
	│                                                              │
	│  import "github.com/collabboard/coordinator/pkg/client"     │
	│                                                              │
	│  c, err := client.New("ws://localhost:8080", "Alice")       │
	│  err = c.CreateTask("t1", types.ColumnTodo, "Ship it", "")   │
	│  env := <-c.Events()                                        │
	│                                                              │
	└──────────────────┬───────────────────────────────────────┘
	                   │
	┌──────────────────▼──── pkg/client ─────────────────────────┐
	│                                                              │
	│  Client                                                      │
	│    - one method per outbound event type                      │
	│    - background read loop feeding Events()                   │
	│    - WaitFor helper for synchronous request/response tests   │
	│                                                              │
	└─────────────────────┬────────────────────────────────────┘
	                      │ websocket (/ws), JSON-encoded events.Envelope
	                      ▼
	              Coordinator process

# Usage

Create a client, send a mutation, and wait for its echo:

	c, err := client.New("ws://localhost:8080", "Alice")
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.CreateTask("t1", types.ColumnTodo, "Ship it", ""); err != nil {
		return err
	}
	env, err := client.WaitFor(ctx, c, events.TaskCreated)

Connecting immediately delivers a BOARD_SNAPSHOT followed by a
PRESENCE_STATE envelope; callers that only care about subsequent
mutations should drain and discard both before sending anything.

# Error handling

Send methods return only transport-level errors (a broken connection,
a JSON encoding failure). Protocol-level rejections — validation
failures, not-found tasks — arrive asynchronously as
ERROR envelopes on the Events channel, exactly as they would for a
browser client; there is no synchronous request/response pairing at
the websocket layer for mutations.
*/
package client
