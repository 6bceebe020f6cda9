package router

import (
	"context"
	"errors"
	"sort"

	"github.com/rs/zerolog"

	"github.com/collabboard/coordinator/pkg/code"
	"github.com/collabboard/coordinator/pkg/conflict"
	"github.com/collabboard/coordinator/pkg/events"
	"github.com/collabboard/coordinator/pkg/log"
	"github.com/collabboard/coordinator/pkg/metrics"
	"github.com/collabboard/coordinator/pkg/presence"
	"github.com/collabboard/coordinator/pkg/task"
	"github.com/collabboard/coordinator/pkg/types"
)

// Router binds inbound event types to handlers for a single board: it
// validates every payload first, calls into the domain services, and
// fans results out through the event broker. It holds no per-connection
// state itself; that lives in pkg/events' connection registry.
type Router struct {
	tasks     *task.Service
	conflicts *conflict.Resolver
	presences *presence.Registry
	broker    *events.Broker
	logger    zerolog.Logger
}

// New builds a Router over the given components.
func New(tasks *task.Service, conflicts *conflict.Resolver, presences *presence.Registry, broker *events.Broker) *Router {
	return &Router{
		tasks:     tasks,
		conflicts: conflicts,
		presences: presences,
		broker:    broker,
		logger:    log.WithComponent("router"),
	}
}

// Connect registers presence for a newly-opened connection, sends it a
// private BOARD_SNAPSHOT, and broadcasts the updated participant list to
// every registered connection. The new connection is not excluded: it
// receives that PRESENCE_STATE too, right after its snapshot.
func (r *Router) Connect(ctx context.Context, connID, displayName string) error {
	tasks, err := r.tasks.GetAllTasks(ctx)
	if err != nil {
		r.broker.Send(connID, events.Envelope{
			Type:    events.ErrorEvent,
			Payload: ErrorPayload{Code: CodeConnectFailed, Message: "failed to assemble board snapshot"},
		})
		return err
	}

	p := r.presences.Join(connID, displayName)

	r.broker.Send(connID, events.Envelope{
		Type: events.BoardSnapshot,
		Payload: snapshotPayload{
			Tasks:    tasks,
			Presence: r.presences.ListActive(),
		},
	})
	r.broker.Broadcast(events.Envelope{Type: events.PresenceState, Payload: r.presences.ListActive()})

	r.logger.Info().Str("connection_id", connID).Str("display_name", p.DisplayName).Msg("connection joined")
	return nil
}

// Disconnect removes presence for a closed connection and broadcasts the
// updated participant list.
func (r *Router) Disconnect(connID string) {
	r.presences.Leave(connID)
	r.broker.Broadcast(events.Envelope{Type: events.PresenceState, Payload: r.presences.ListActive()})
}

// snapshotPayload is BOARD_SNAPSHOT's payload shape.
type snapshotPayload struct {
	Tasks    []*types.Task        `json:"tasks"`
	Presence []types.UserPresence `json:"presence"`
}

// ErrorPayload is ERROR's payload shape.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Dispatch routes one inbound envelope from connID to its handler. The
// returned error is informational only; the caller's reply has already
// been sent privately through the broker.
func (r *Router) Dispatch(ctx context.Context, connID string, env events.Envelope) error {
	timer := metrics.NewTimer()
	status := "ok"
	defer func() {
		metrics.EventsTotal.WithLabelValues(string(env.Type), status).Inc()
		timer.ObserveDurationVec(metrics.EventDuration, string(env.Type))
	}()

	var err error
	switch env.Type {
	case events.TaskCreate:
		err = r.handleCreate(ctx, connID, env.Payload)
	case events.TaskUpdate:
		err = r.handleUpdate(ctx, connID, env.Payload)
	case events.TaskMove:
		err = r.handleMove(ctx, connID, env.Payload)
	case events.TaskDelete:
		err = r.handleDelete(ctx, connID, env.Payload)
	case events.PresenceUpdate:
		err = r.handlePresence(ctx, connID, env.Payload)
	case events.ReplayOps:
		err = r.handleReplay(ctx, connID, env.Payload)
	default:
		err = invalid("unknown event type %q", env.Type)
	}

	if err != nil {
		status = "error"
	}
	return err
}

func (r *Router) handleCreate(ctx context.Context, connID string, raw any) error {
	p, err := parseCreate(raw)
	if err != nil {
		r.reject(connID, err)
		return err
	}

	created, err := r.tasks.CreateTask(ctx, task.CreateInput{
		ID:           p.ID,
		ColumnID:     p.ColumnID,
		Title:        p.Title,
		Description:  p.Description,
		CreatorName:  p.CreatorName,
		CreatorColor: p.CreatorColor,
	})
	if err != nil {
		r.broker.Send(connID, errEnvelope(CodeCreateFailed, "failed to create task"))
		return err
	}

	r.broker.Broadcast(events.Envelope{Type: events.TaskCreated, Payload: created})
	return nil
}

func (r *Router) handleUpdate(ctx context.Context, connID string, raw any) error {
	p, err := parseUpdate(raw)
	if err != nil {
		r.reject(connID, err)
		return err
	}

	actor, _ := r.presences.Get(connID)
	updated, err := r.tasks.UpdateTask(ctx, task.UpdateInput{
		ID:             p.ID,
		Title:          p.Title,
		Description:    p.Description,
		UpdatedByName:  actor.DisplayName,
		UpdatedByColor: actor.Color,
	})
	if errors.Is(err, task.ErrNotFound) {
		r.broker.Send(connID, errEnvelope(CodeNotFound, "task not found"))
		return err
	}
	if err != nil {
		r.broker.Send(connID, errEnvelope(CodeUpdateFailed, "failed to update task"))
		return err
	}

	r.broker.Broadcast(events.Envelope{Type: events.TaskUpdated, Payload: updated})
	return nil
}

// handleMove implements the move+move conflict rule: the lock acquire
// winner applies the move and broadcasts, the loser waits for the
// winner to finish before reading resolved state and gets a private
// CONFLICT_NOTIFY plus a fire-and-forget audit row.
func (r *Router) handleMove(ctx context.Context, connID string, raw any) error {
	p, err := parseMove(raw)
	if err != nil {
		r.reject(connID, err)
		return err
	}

	acquired, holder := r.conflicts.AcquireMove(p.ID, connID)
	if !acquired {
		r.conflicts.WaitForWinner(holder)

		current, getErr := r.tasks.GetAllTasks(ctx)
		var resolved *types.Task
		if getErr == nil {
			for _, t := range current {
				if t.ID == p.ID {
					resolved = t
					break
				}
			}
		}
		notify := r.conflicts.LoserNotify(p.ID, resolved)
		r.broker.Send(connID, events.Envelope{Type: events.ConflictNotify, Payload: conflictNotifyPayload(notify)})
		r.conflicts.RecordConflict(p.ID, string(events.TaskMove), string(events.TaskMove), holder.OwnerID, connID, resolved, notify.Message)
		return nil
	}
	defer r.conflicts.ReleaseMove(p.ID, connID)

	actor, _ := r.presences.Get(connID)
	moved, err := r.tasks.MoveTask(ctx, task.MoveInput{
		ID:             p.ID,
		ColumnID:       p.ColumnID,
		Order:          p.Order,
		UpdatedByName:  actor.DisplayName,
		UpdatedByColor: actor.Color,
	})
	if errors.Is(err, task.ErrNotFound) {
		r.broker.Send(connID, errEnvelope(CodeNotFound, "task not found"))
		return err
	}
	if err != nil {
		r.broker.Send(connID, errEnvelope(CodeMoveFailed, "failed to move task"))
		return err
	}

	r.broker.Broadcast(events.Envelope{Type: events.TaskMoved, Payload: moved})
	return nil
}

func (r *Router) handleDelete(ctx context.Context, connID string, raw any) error {
	p, err := parseDelete(raw)
	if err != nil {
		r.reject(connID, err)
		return err
	}

	if err := r.tasks.DeleteTask(ctx, p.ID); err != nil {
		r.broker.Send(connID, errEnvelope(CodeDeleteFailed, "failed to delete task"))
		return err
	}

	r.broker.Broadcast(events.Envelope{Type: events.TaskDeleted, Payload: deletedPayload{ID: p.ID}})
	return nil
}

func (r *Router) handlePresence(_ context.Context, connID string, raw any) error {
	p, err := parsePresence(raw)
	if err != nil {
		r.reject(connID, err)
		return err
	}

	r.presences.Refresh(connID, p.Status, p.TaskID)
	r.broker.Broadcast(events.Envelope{Type: events.PresenceState, Payload: r.presences.ListActive()})
	return nil
}

// handleReplay sorts the offline operation log by clientTimestamp and
// dispatches each entry through the same handler chain as a live event,
// so conflict resolution applies identically. PRESENCE_UPDATE entries
// are dropped: stale presence is meaningless by replay time.
func (r *Router) handleReplay(ctx context.Context, connID string, raw any) error {
	entries, err := parseReplay(raw)
	if err != nil {
		r.reject(connID, err)
		return err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ClientTimestamp < entries[j].ClientTimestamp
	})

	for _, e := range entries {
		if events.Type(e.Type) == events.PresenceUpdate {
			continue
		}
		_ = r.Dispatch(ctx, connID, events.Envelope{Type: events.Type(e.Type), Payload: e.Payload})
	}
	return nil
}

func (r *Router) reject(connID string, err error) {
	r.broker.Send(connID, errEnvelope(code.CodeOf(err), err.Error()))
}

func errEnvelope(code, message string) events.Envelope {
	return events.Envelope{Type: events.ErrorEvent, Payload: ErrorPayload{Code: code, Message: message}}
}

type deletedPayload struct {
	ID string `json:"id"`
}

type conflictNotifyPayload struct {
	TaskID        string      `json:"taskId"`
	ResolvedState *types.Task `json:"resolvedState"`
	Message       string      `json:"message"`
}
