package rooms

import "sync"

// Table maps a match id to the set of connections currently in its room.
// Rooms spring into existence on first join and are unlinked the moment
// they go empty; that lifetime is part of the contract, not an accident.
//
// The outer lock only guards the room map. Membership mutations serialize
// on the room's own mutex, so traffic in one room never blocks another.
type Table struct {
	mu    sync.RWMutex
	rooms map[string]*tableRoom
}

type tableRoom struct {
	mu      sync.Mutex
	members map[string]struct{}
	closed  bool // unlinked from the table after going empty
}

func NewTable() *Table {
	return &Table{rooms: make(map[string]*tableRoom)}
}

// Join adds the connection to the room, creating the room if absent, and
// returns the resulting size. Re-joining is a no-op that still reports
// the current size.
func (t *Table) Join(matchID, connID string) int {
	for {
		r := t.getOrCreate(matchID)
		r.mu.Lock()
		if r.closed {
			// Lost a race with a leave that emptied and unlinked this
			// room; fetch a fresh one.
			r.mu.Unlock()
			continue
		}
		r.members[connID] = struct{}{}
		n := len(r.members)
		r.mu.Unlock()
		return n
	}
}

// Leave removes the connection and returns the resulting size (0 when
// the room does not exist or just emptied). An empty room is unlinked so
// the table never leaks rooms nobody is in.
func (t *Table) Leave(matchID, connID string) int {
	t.mu.RLock()
	r := t.rooms[matchID]
	t.mu.RUnlock()
	if r == nil {
		return 0
	}
	r.mu.Lock()
	delete(r.members, connID)
	n := len(r.members)
	r.mu.Unlock()
	if n == 0 {
		t.reap(matchID, r)
	}
	return n
}

// Members returns a copy of the room's member set; empty if the room
// does not exist.
func (t *Table) Members(matchID string) []string {
	t.mu.RLock()
	r := t.rooms[matchID]
	t.mu.RUnlock()
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.members))
	for connID := range r.members {
		out = append(out, connID)
	}
	return out
}

// Size reports the room's current cardinality; 0 for unknown rooms.
func (t *Table) Size(matchID string) int {
	t.mu.RLock()
	r := t.rooms[matchID]
	t.mu.RUnlock()
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Sizes snapshots the size of every live room.
func (t *Table) Sizes() map[string]int {
	t.mu.RLock()
	rooms := make(map[string]*tableRoom, len(t.rooms))
	for matchID, r := range t.rooms {
		rooms[matchID] = r
	}
	t.mu.RUnlock()

	out := make(map[string]int, len(rooms))
	for matchID, r := range rooms {
		r.mu.Lock()
		n := len(r.members)
		r.mu.Unlock()
		if n > 0 {
			out[matchID] = n
		}
	}
	return out
}

func (t *Table) getOrCreate(matchID string) *tableRoom {
	t.mu.RLock()
	r := t.rooms[matchID]
	t.mu.RUnlock()
	if r != nil {
		return r
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if r = t.rooms[matchID]; r == nil {
		r = &tableRoom{members: make(map[string]struct{})}
		t.rooms[matchID] = r
	}
	return r
}

// reap unlinks a room that went empty. Emptiness is re-checked under
// both locks so a join that raced in keeps the room alive.
func (t *Table) reap(matchID string, r *tableRoom) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rooms[matchID] != r {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.members) > 0 {
		return
	}
	r.closed = true
	delete(t.rooms, matchID)
}
