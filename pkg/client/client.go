/*
Package client is a small websocket client for the board coordinator,
used by cmd/board's replay subcommand and by this package's tests to
drive the coordinator end-to-end without a browser.
*/
package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/collabboard/coordinator/pkg/events"
	"github.com/collabboard/coordinator/pkg/types"
)

// dialTimeout bounds the initial websocket handshake.
const dialTimeout = 10 * time.Second

// Client is a single connection to a coordinator's /ws endpoint. Send
// methods may be called concurrently with draining Events.
type Client struct {
	conn *websocket.Conn

	mu     sync.Mutex
	events chan events.Envelope
	done   chan struct{}
	err    error
}

// New dials addr's websocket endpoint (e.g. "ws://localhost:8080") and
// begins reading server events into the channel returned by Events.
// displayName is optional; an empty string lets the server assign one.
func New(addr, displayName string) (*Client, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("parse address: %w", err)
	}
	if !strings.HasSuffix(u.Path, "/ws") {
		u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	}
	if displayName != "" {
		q := u.Query()
		q.Set("displayName", displayName)
		u.RawQuery = q.Encode()
	}

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial coordinator: %w", err)
	}

	c := &Client{
		conn:   conn,
		events: make(chan events.Envelope, 64),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.events)
	for {
		var env events.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			c.mu.Lock()
			c.err = err
			c.mu.Unlock()
			close(c.done)
			return
		}
		select {
		case c.events <- env:
		case <-c.done:
			return
		}
	}
}

// Events returns the channel of envelopes pushed by the server: the
// initial BOARD_SNAPSHOT and PRESENCE_STATE, then every broadcast
// TASK_* and CONFLICT_NOTIFY/ERROR event for the life of the
// connection. The channel closes when the connection is lost.
func (c *Client) Events() <-chan events.Envelope {
	return c.events
}

// Err returns the error that ended the read loop, set once Events has
// closed.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) send(typ events.Type, payload any) error {
	return c.conn.WriteJSON(events.Envelope{Type: typ, Payload: payload})
}

// CreateTask sends a TASK_CREATE event for a new card.
func (c *Client) CreateTask(id string, columnID types.ColumnID, title, description string) error {
	return c.send(events.TaskCreate, map[string]any{
		"id":          id,
		"columnId":    columnID,
		"title":       title,
		"description": description,
	})
}

// UpdateTask sends a TASK_UPDATE event. Pass nil for a field to leave
// it unchanged.
func (c *Client) UpdateTask(id string, title, description *string, version int) error {
	return c.send(events.TaskUpdate, map[string]any{
		"id":          id,
		"title":       title,
		"description": description,
		"version":     version,
	})
}

// MoveTask sends a TASK_MOVE event relocating a card to columnID at
// the given fractional order.
func (c *Client) MoveTask(id string, columnID types.ColumnID, order float64, version int) error {
	return c.send(events.TaskMove, map[string]any{
		"id":       id,
		"columnId": columnID,
		"order":    order,
		"version":  version,
	})
}

// DeleteTask sends a TASK_DELETE event.
func (c *Client) DeleteTask(id string) error {
	return c.send(events.TaskDelete, map[string]any{"id": id})
}

// UpdatePresence sends a PRESENCE_UPDATE event reporting this
// connection's current activity.
func (c *Client) UpdatePresence(status types.PresenceStatus, taskID string) error {
	return c.send(events.PresenceUpdate, map[string]any{
		"status": status,
		"taskId": taskID,
	})
}

// Replay sends a REPLAY_OPS event carrying ops queued while this
// client was offline. The server re-sorts by ClientTimestamp before
// applying them.
func (c *Client) Replay(ops []types.QueuedOp) error {
	return c.send(events.ReplayOps, ops)
}

// WaitFor blocks until an envelope of type typ arrives, ctx is
// cancelled, or the connection closes.
func WaitFor(ctx context.Context, c *Client, typ events.Type) (events.Envelope, error) {
	for {
		select {
		case env, ok := <-c.Events():
			if !ok {
				if err := c.Err(); err != nil {
					return events.Envelope{}, err
				}
				return events.Envelope{}, fmt.Errorf("connection closed waiting for %s", typ)
			}
			if env.Type == typ {
				return env, nil
			}
		case <-ctx.Done():
			return events.Envelope{}, ctx.Err()
		}
	}
}
