/*
Package conflict classifies and resolves the board's three concurrent
mutation shapes:

  - move + edit: orthogonal fields, resolved by letting both mutations
    apply independently (see pkg/task) — no coordination needed here.
  - move + move: a true conflict on the same field set, serialized by
    pkg/lock; the loser gets a CONFLICT_NOTIFY built by this package and
    an audit row is written fire-and-forget.
  - reorder + insert: resolved structurally by pkg/order; this package
    is not involved.

Only the move + move rule needs runtime machinery, so Resolver wraps the
lock manager and the audit sink.
*/
package conflict

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/collabboard/coordinator/pkg/durable"
	"github.com/collabboard/coordinator/pkg/lock"
	"github.com/collabboard/coordinator/pkg/log"
	"github.com/collabboard/coordinator/pkg/metrics"
	"github.com/collabboard/coordinator/pkg/types"
)

// MoveLockTTL bounds how long a move lock is held before it self-expires.
const MoveLockTTL = 2 * time.Second

// Notify is the payload sent privately to the loser of a move+move
// conflict.
type Notify struct {
	TaskID        string
	ResolvedState *types.Task
	Message       string
}

// Resolver serializes concurrent moves on the same task and records the
// outcome for the side that lost the race.
type Resolver struct {
	locks  *lock.Manager
	audit  durable.AuditStore
	logger zerolog.Logger
}

// NewResolver builds a Resolver over the given lock manager and audit
// sink.
func NewResolver(locks *lock.Manager, audit durable.AuditStore) *Resolver {
	return &Resolver{locks: locks, audit: audit, logger: log.WithComponent("conflict")}
}

// AcquireMove attempts to win the per-task move lock for ownerID
// (typically the connection id). acquired is true if the caller should
// proceed with the move.
func (r *Resolver) AcquireMove(taskID, ownerID string) (acquired bool, holder lock.Holder) {
	return r.locks.Acquire(taskID, ownerID, MoveLockTTL)
}

// ReleaseMove releases the move lock taskID held by ownerID. Safe to call
// even if ownerID no longer holds it (compare-and-delete, a no-op then).
func (r *Resolver) ReleaseMove(taskID, ownerID string) {
	r.locks.Release(taskID, ownerID)
}

// WaitForWinner blocks until the move holder identified by holder has
// released its lock (the winning MoveTask call returned) or its TTL
// expires, whichever comes first. A loser must call this before reading
// resolvedState, otherwise it can observe the board mid-write and build
// a CONFLICT_NOTIFY carrying the pre-move version instead of the
// winner's.
func (r *Resolver) WaitForWinner(holder lock.Holder) {
	if holder.Done == nil {
		return
	}
	wait := time.Until(holder.ExpiresAt)
	if wait <= 0 {
		return
	}

	select {
	case <-holder.Done:
	case <-time.After(wait):
	}
}

// LoserNotify builds the CONFLICT_NOTIFY payload for whoever lost the
// lock race, using the winner's post-move state as resolvedState.
func (r *Resolver) LoserNotify(taskID string, resolvedState *types.Task) Notify {
	return Notify{
		TaskID:        taskID,
		ResolvedState: resolvedState,
		Message:       fmt.Sprintf("task %s was moved by another user; your change was not applied", taskID),
	}
}

// RecordConflict writes an audit row fire-and-forget: the caller does
// not wait on it and a failure only gets logged, never surfaced.
func (r *Resolver) RecordConflict(taskID, winnerEvent, loserEvent, winnerUserID, loserUserID string, resolvedState *types.Task, message string) {
	metrics.ConflictsTotal.WithLabelValues("move_move").Inc()
	metrics.LockContentionTotal.Inc()

	record := &types.ConflictAuditRecord{
		ID:            uuid.New().String(),
		TaskID:        taskID,
		WinnerEvent:   winnerEvent,
		LoserEvent:    loserEvent,
		WinnerUserID:  winnerUserID,
		LoserUserID:   loserUserID,
		ResolvedState: resolvedState,
		Message:       message,
		ConflictAt:    time.Now(),
	}

	go func() {
		if err := r.audit.AppendAudit(record); err != nil {
			r.logger.Error().Err(err).Str("task_id", taskID).Msg("failed to write conflict audit record")
		}
	}()
}
