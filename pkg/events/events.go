package events

import (
	"sync"
	"time"
)

// Type identifies a board event's shape, used as the dispatch
// discriminant on both the inbound (client→server) and outbound
// (server→client) sides.
type Type string

const (
	// Inbound, client-originated.
	TaskCreate     Type = "TASK_CREATE"
	TaskUpdate     Type = "TASK_UPDATE"
	TaskMove       Type = "TASK_MOVE"
	TaskDelete     Type = "TASK_DELETE"
	ReplayOps      Type = "REPLAY_OPS"
	PresenceUpdate Type = "PRESENCE_UPDATE"

	// Outbound, server-originated.
	BoardSnapshot Type = "BOARD_SNAPSHOT"
	TaskCreated   Type = "TASK_CREATED"
	TaskUpdated   Type = "TASK_UPDATED"
	TaskMoved     Type = "TASK_MOVED"
	TaskDeleted   Type = "TASK_DELETED"
	ConflictNotify Type = "CONFLICT_NOTIFY"
	PresenceState Type = "PRESENCE_STATE"
	ErrorEvent    Type = "ERROR"
)

// Envelope is the wire shape of every event in either direction: a type
// discriminant plus an opaque payload the handler for that type knows
// how to decode.
type Envelope struct {
	Type    Type `json:"type"`
	Payload any  `json:"payload"`
}

// outbound is one envelope addressed to a single connection (or to every
// connection, when ConnID is empty).
type outbound struct {
	ConnID string
	Msg    Envelope
}

// Subscriber is a connection's outbound mailbox.
type Subscriber chan Envelope

// Broker fans server→client events out to connections: Broadcast reaches
// everyone currently registered, Send reaches exactly one, since most
// board events are private replies or targeted notifications rather
// than pure broadcasts.
type Broker struct {
	mu          sync.RWMutex
	connections map[string]Subscriber

	outCh  chan outbound
	stopCh chan struct{}
}

// NewBroker creates an empty connection registry.
func NewBroker() *Broker {
	return &Broker{
		connections: make(map[string]Subscriber),
		outCh:       make(chan outbound, 256),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's delivery loop.
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker.
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Register creates and returns the mailbox for a newly connected
// connection id.
func (b *Broker) Register(connID string) Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 64)
	b.connections[connID] = sub
	return sub
}

// Unregister removes and closes a connection's mailbox.
func (b *Broker) Unregister(connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.connections[connID]; ok {
		delete(b.connections, connID)
		close(sub)
	}
}

// Broadcast queues msg for delivery to every registered connection.
func (b *Broker) Broadcast(msg Envelope) {
	select {
	case b.outCh <- outbound{Msg: msg}:
	case <-b.stopCh:
	}
}

// Send queues msg for delivery to exactly one connection.
func (b *Broker) Send(connID string, msg Envelope) {
	select {
	case b.outCh <- outbound{ConnID: connID, Msg: msg}:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case out := <-b.outCh:
			if out.ConnID == "" {
				b.deliverAll(out.Msg)
			} else {
				b.deliverOne(out.ConnID, out.Msg)
			}
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) deliverAll(msg Envelope) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.connections {
		select {
		case sub <- msg:
		default:
			// connection's mailbox is full; drop rather than block the broker
		}
	}
}

func (b *Broker) deliverOne(connID string, msg Envelope) {
	b.mu.RLock()
	sub, ok := b.connections[connID]
	b.mu.RUnlock()
	if !ok {
		return
	}

	select {
	case sub <- msg:
	default:
	}
}

// ConnectionCount returns the number of currently registered connections.
func (b *Broker) ConnectionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.connections)
}

// timestamped is a small helper for payloads that want an explicit
// server timestamp; no current board payload embeds it, since they carry
// the full Task instead.
type timestamped struct {
	At time.Time `json:"at"`
}
