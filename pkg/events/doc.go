/*
Package events defines the board's event envelope and the per-connection
broker that delivers server→client events over the websocket transport.

# Architecture

	┌──────────────────────── BROKER ─────────────────────────┐
	│                                                          │
	│  Router calls Broadcast(env) or Send(connID, env)        │
	│       │                                                  │
	│       ▼                                                  │
	│  outCh (buffer: 256)                                     │
	│       │                                                  │
	│       ▼                                                  │
	│  run() loop: ConnID == "" ? deliverAll : deliverOne       │
	│       │                                                  │
	│       ▼                                                  │
	│  connections[connID] (buffer: 64, one per websocket)      │
	└──────────────────────────────────────────────────────────┘

# Core components

Envelope is the wire shape in both directions: a Type discriminant and
an opaque Payload the handler for that type decodes. Inbound types
(TASK_CREATE, TASK_UPDATE, TASK_MOVE, TASK_DELETE, REPLAY_OPS,
PRESENCE_UPDATE) arrive from pkg/api's websocket read loop, which hands
them to pkg/router. Outbound
types (BOARD_SNAPSHOT, TASK_CREATED/UPDATED/MOVED/DELETED,
CONFLICT_NOTIFY, PRESENCE_STATE, ERROR) are queued here for delivery.

Broker.Broadcast reaches every registered connection; Broker.Send
reaches exactly one. BOARD_SNAPSHOT, CONFLICT_NOTIFY, and ERROR are
always Send, never Broadcast — they carry state or an error specific to
the connection that triggered them.

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Register(connID)
	defer broker.Unregister(connID)

	go func() {
		for env := range sub {
			writeToSocket(env)
		}
	}()

	broker.Broadcast(events.Envelope{Type: events.TaskCreated, Payload: task})
	broker.Send(connID, events.Envelope{Type: events.BoardSnapshot, Payload: snapshot})

# Delivery semantics

Delivery is non-blocking: a full connection mailbox drops the event
rather than stalling the broker or the publisher. A dropped event is
not redelivered; the connection sees current state again only in the
BOARD_SNAPSHOT it receives on its next connect. A stalled broker, by
contrast, would back up every other connection's deliveries.
*/
package events
