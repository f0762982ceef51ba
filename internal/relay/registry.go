package relay

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"signalrelay/internal/metrics"
)

// Registry maps room names to their member sets.
//
// A single mutex covers the whole map, so removing the last member and
// deleting the room happen in one critical section: a Join racing that Leave
// either lands before it (and keeps the room alive) or after it (and creates a
// fresh room). Rooms with no members are never observable.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]map[Conn]struct{}
	where map[Conn]string // member -> room, enforces one room per connection

	metrics *metrics.Relay
}

func NewRegistry(m *metrics.Relay) *Registry {
	return &Registry{
		rooms:   make(map[string]map[Conn]struct{}),
		where:   make(map[Conn]string),
		metrics: m,
	}
}

// Join registers c under room, creating the room if needed, and returns the
// member count afterwards. A connection already in another room is moved.
func (r *Registry) Join(room string, c Conn) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.where[c]; ok {
		if prev == room {
			return len(r.rooms[room])
		}
		r.removeLocked(prev, c)
	}

	members, ok := r.rooms[room]
	if !ok {
		members = make(map[Conn]struct{})
		r.rooms[room] = members
		r.metrics.Rooms.Inc()
		zap.L().Debug("relay.room_opened", zap.String("room", room))
	}
	members[c] = struct{}{}
	r.where[c] = room
	r.metrics.Members.Inc()
	return len(members)
}

// Leave removes c from room and returns the remaining member count. The room
// is deleted when it empties. Leaving a room c is not in is a no-op.
func (r *Registry) Leave(room string, c Conn) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.where[c] != room {
		return len(r.rooms[room])
	}
	return r.removeLocked(room, c)
}

func (r *Registry) removeLocked(room string, c Conn) int {
	members := r.rooms[room]
	delete(members, c)
	delete(r.where, c)
	r.metrics.Members.Dec()

	if len(members) == 0 {
		delete(r.rooms, room)
		r.metrics.Rooms.Dec()
		zap.L().Info("relay.room_closed", zap.String("room", room))
	}
	return len(members)
}

// MembersOf returns a snapshot of the members of room. Unknown rooms yield an
// empty slice.
func (r *Registry) MembersOf(room string) []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := r.rooms[room]
	out := make([]Conn, 0, len(members))
	for c := range members {
		out = append(out, c)
	}
	return out
}

// Has reports whether room is currently registered.
func (r *Registry) Has(room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rooms[room]
	return ok
}

// Rooms returns the registered room names in sorted order.
func (r *Registry) Rooms() []string {
	r.mu.Lock()
	names := make([]string, 0, len(r.rooms))
	for name := range r.rooms {
		names = append(names, name)
	}
	r.mu.Unlock()

	sort.Strings(names)
	return names
}

// Len is the number of registered rooms.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// Members returns every registered connection across all rooms.
func (r *Registry) Members() []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Conn, 0, len(r.where))
	for c := range r.where {
		out = append(out, c)
	}
	return out
}
