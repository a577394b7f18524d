package rooms

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrUnknownConnection is returned for room operations on a connection
// that was never registered, or whose unregistration already began.
var ErrUnknownConnection = errors.New("unknown connection")

// connState is one connection's side of the membership index. Its mutex
// serializes join/leave/unregister for that connection, and is held across
// the paired room-table mutation so the two sides can never diverge.
type connState struct {
	mu    sync.Mutex
	rooms map[string]struct{}
	gone  bool // unregistration started; no join may succeed past this
}

// Registry tracks which rooms each live connection has joined, reverse
// indexed so a disconnect resolves to all affected rooms in one pass.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*connState
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*connState)}
}

// Register initializes an empty room set for the connection. A second
// call for the same id is a protocol violation by the transport adapter;
// it is logged and ignored so existing membership stays intact.
func (g *Registry) Register(connID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.conns[connID]; ok {
		zap.L().Warn("rooms.double_register", zap.String("conn_id", connID))
		return
	}
	g.conns[connID] = &connState{rooms: make(map[string]struct{})}
}

// AddRoom records the (connection, room) pair and runs join while the
// connection entry is locked, so an unregister cannot slip between the
// index update and the room-table update. Returns join's result.
func (g *Registry) AddRoom(connID, matchID string, join func() int) (size int, added bool, err error) {
	cs := g.lookup(connID)
	if cs == nil {
		return 0, false, ErrUnknownConnection
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.gone {
		return 0, false, ErrUnknownConnection
	}
	_, member := cs.rooms[matchID]
	cs.rooms[matchID] = struct{}{}
	return join(), !member, nil
}

// DropRoom removes the pair and runs leave under the same lock. Dropping
// a room the connection is not in is a no-op (removed=false).
func (g *Registry) DropRoom(connID, matchID string, leave func() int) (size int, removed bool, err error) {
	cs := g.lookup(connID)
	if cs == nil {
		return 0, false, ErrUnknownConnection
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.gone {
		return 0, false, ErrUnknownConnection
	}
	if _, member := cs.rooms[matchID]; !member {
		return leave(), false, nil
	}
	delete(cs.rooms, matchID)
	return leave(), true, nil
}

// Unregister marks the connection gone, sweeps it out of every room it
// belonged to via leave, and returns those room ids. Once the gone flag
// is set no concurrent AddRoom can succeed, so the sweep is complete.
func (g *Registry) Unregister(connID string, leave func(matchID string)) []string {
	g.mu.Lock()
	cs := g.conns[connID]
	delete(g.conns, connID)
	g.mu.Unlock()
	if cs == nil {
		return nil
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.gone = true
	affected := make([]string, 0, len(cs.rooms))
	for matchID := range cs.rooms {
		leave(matchID)
		affected = append(affected, matchID)
	}
	cs.rooms = make(map[string]struct{})
	return affected
}

// RoomsOf returns a snapshot of the rooms the connection is in; empty
// for unknown connections, never an error.
func (g *Registry) RoomsOf(connID string) []string {
	cs := g.lookup(connID)
	if cs == nil {
		return nil
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	out := make([]string, 0, len(cs.rooms))
	for matchID := range cs.rooms {
		out = append(out, matchID)
	}
	return out
}

// Known reports whether the connection is currently registered.
func (g *Registry) Known(connID string) bool {
	return g.lookup(connID) != nil
}

// Count returns the number of registered connections.
func (g *Registry) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.conns)
}

func (g *Registry) lookup(connID string) *connState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.conns[connID]
}
