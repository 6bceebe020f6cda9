/*
Package presence tracks who is currently connected to the board: a
TTL-refreshed registry of live users, each assigned a stable display
color from a small fixed palette.
*/
package presence

import (
	"sync"
	"time"

	"github.com/collabboard/coordinator/pkg/types"
)

// TTL is how long a presence entry survives without a refresh before it
// is considered stale and self-healed out of the registry.
const TTL = 2 * time.Hour

// Palette is the fixed set of display colors handed out to connected
// users, assigned round-robin by least-recently-used count so a small
// board doesn't repeat a color while other colors sit idle.
var Palette = []string{
	"#E57373", // red
	"#64B5F6", // blue
	"#81C784", // green
	"#FFD54F", // yellow
	"#BA68C8", // purple
	"#4DB6AC", // teal
}

type registered struct {
	presence  types.UserPresence
	expiresAt time.Time
}

// Registry holds the set of currently-connected users.
type Registry struct {
	mu    sync.Mutex
	users map[string]*registered
}

// NewRegistry returns an empty presence registry.
func NewRegistry() *Registry {
	return &Registry{users: make(map[string]*registered)}
}

// Join registers a newly-connected user, assigning it a color from
// Palette, and returns the resulting presence record.
func (r *Registry) Join(userID, displayName string) types.UserPresence {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	p := types.UserPresence{
		UserID:      userID,
		DisplayName: displayName,
		Color:       r.assignColorLocked(),
		ConnectedAt: now,
	}
	r.users[userID] = &registered{presence: p, expiresAt: now.Add(TTL)}
	return p
}

// assignColorLocked picks the color currently used by the fewest active
// users, breaking ties by palette order. Must be called with mu held.
func (r *Registry) assignColorLocked() string {
	counts := make(map[string]int, len(Palette))
	for _, c := range Palette {
		counts[c] = 0
	}
	for _, reg := range r.users {
		if _, known := counts[reg.presence.Color]; known {
			counts[reg.presence.Color]++
		}
	}

	best := Palette[0]
	bestCount := counts[best]
	for _, c := range Palette[1:] {
		if counts[c] < bestCount {
			best = c
			bestCount = counts[c]
		}
	}
	return best
}

// Refresh extends a user's TTL and updates its reported editing state.
// It returns false if the user is not currently registered.
func (r *Registry) Refresh(userID string, status types.PresenceStatus, editingTaskID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.users[userID]
	if !ok {
		return false
	}

	if status == types.PresenceEditing {
		reg.presence.EditingTaskID = editingTaskID
	} else {
		reg.presence.EditingTaskID = ""
	}
	reg.expiresAt = time.Now().Add(TTL)
	return true
}

// Leave explicitly removes a user, e.g. on disconnect.
func (r *Registry) Leave(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, userID)
}

// ListActive returns every currently live (unexpired) presence, silently
// reclaiming any stale entries it encounters along the way.
func (r *Registry) ListActive() []types.UserPresence {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	active := make([]types.UserPresence, 0, len(r.users))
	for userID, reg := range r.users {
		if now.After(reg.expiresAt) {
			delete(r.users, userID)
			continue
		}
		active = append(active, reg.presence)
	}
	return active
}

// Get returns a single user's presence, if currently active.
func (r *Registry) Get(userID string) (types.UserPresence, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.users[userID]
	if !ok || time.Now().After(reg.expiresAt) {
		return types.UserPresence{}, false
	}
	return reg.presence, true
}
