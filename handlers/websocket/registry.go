package websocket

import "sync"

// Registry maps document IDs to the set of live connections bound to them.
// It is plain bookkeeping: none of its operations fail, and it holds no lock
// across network calls. Instantiate one per server so tests get isolated
// registries.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[*Conn]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]map[*Conn]struct{}),
	}
}

// Bind adds the connection to the document's room, creating it if absent.
func (r *Registry) Bind(documentID string, c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[documentID]
	if !ok {
		room = make(map[*Conn]struct{})
		r.rooms[documentID] = room
	}
	room[c] = struct{}{}
}

// Unbind removes the connection from its room. No-op for unbound
// connections. Empty rooms are reclaimed so the map does not grow without
// bound.
func (r *Registry) Unbind(c *Conn) {
	documentID := c.DocumentID()
	if documentID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[documentID]
	if !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(r.rooms, documentID)
	}
}

// BroadcastTargets returns a snapshot of the room minus the excluded
// connection. Later binds and unbinds do not affect the returned slice, so
// callers can deliver without holding any lock.
func (r *Registry) BroadcastTargets(documentID string, exclude *Conn) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[documentID]
	if !ok {
		return nil
	}
	targets := make([]*Conn, 0, len(room))
	for c := range room {
		if c != exclude {
			targets = append(targets, c)
		}
	}
	return targets
}

// RoomCounts returns the number of connections per active room.
func (r *Registry) RoomCounts() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int, len(r.rooms))
	for id, room := range r.rooms {
		counts[id] = len(room)
	}
	return counts
}
