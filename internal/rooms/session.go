package rooms

import (
	"go.uber.org/zap"
)

// Session is the single entry point the transport adapter and the
// application layer call. It owns the registry/table pair, keeps them
// bidirectionally consistent, and emits presence and relay events to
// room members through the injected Deliverer.
//
// Locks are held only long enough to mutate or snapshot membership;
// every Deliver call happens after they are released, so one slow
// connection can never stall joins or leaves for the rest of a room.
type Session struct {
	registry *Registry
	table    *Table
	deliver  Deliverer
	bus      Publisher // optional cross-instance fan-out
}

func NewSession(d Deliverer) *Session {
	return &Session{
		registry: NewRegistry(),
		table:    NewTable(),
		deliver:  d,
	}
}

// AttachBus wires a cross-instance publisher. Must be called before the
// session starts taking traffic.
func (s *Session) AttachBus(p Publisher) { s.bus = p }

// Register is called once per transport session, before any room op.
func (s *Session) Register(connID string) {
	s.registry.Register(connID)
}

// Join puts the connection into the match room and broadcasts the new
// viewer count to the room (joiner included). Re-joining changes
// nothing and broadcasts nothing. Returns the room size, whether the
// membership actually changed, and ErrUnknownConnection for connections
// that are not (or no longer) registered.
func (s *Session) Join(matchID, connID string) (int, bool, error) {
	size, added, err := s.registry.AddRoom(connID, matchID, func() int {
		return s.table.Join(matchID, connID)
	})
	if err != nil {
		return 0, false, err
	}
	if added {
		s.broadcastPresence(matchID)
	}
	return size, added, nil
}

// Leave removes the connection from the room and broadcasts the new
// count to whoever remains. Leaving a room you are not in is a no-op.
func (s *Session) Leave(matchID, connID string) (int, bool, error) {
	size, removed, err := s.registry.DropRoom(connID, matchID, func() int {
		return s.table.Leave(matchID, connID)
	})
	if err != nil {
		return 0, false, err
	}
	if removed {
		s.broadcastPresence(matchID)
	}
	return size, removed, nil
}

// Disconnect sweeps the connection out of every room it was in and
// unregisters it. Exactly one presence broadcast goes out per affected
// room, each reflecting the count after the removal. Returns the
// affected room ids so the caller can release per-room resources.
func (s *Session) Disconnect(connID string) []string {
	affected := s.registry.Unregister(connID, func(matchID string) {
		s.table.Leave(matchID, connID)
	})
	for _, matchID := range affected {
		s.broadcastPresence(matchID)
	}
	return affected
}

// Relay delivers the event to every current member of its room, and
// forwards it to sibling instances when a bus is attached. Delivery is
// fire-and-forget per connection; failures are logged, never returned.
func (s *Session) Relay(ev Event) {
	if s.bus != nil {
		s.bus.Publish(ev)
	}
	s.DeliverLocal(ev)
}

// DeliverLocal fans the event out to local members only. The bus
// subscriber uses this for remote-origin events so they are not
// re-published.
func (s *Session) DeliverLocal(ev Event) {
	name := ev.WireName()
	for _, connID := range s.table.Members(ev.MatchID) {
		if err := s.deliver.Deliver(connID, name, ev.Payload); err != nil {
			zap.L().Warn("rooms.deliver_failed",
				zap.String("conn_id", connID),
				zap.String("match_id", ev.MatchID),
				zap.String("event", name),
				zap.Error(err),
			)
		}
	}
}

// RoomsOf returns the rooms the connection is currently in.
func (s *Session) RoomsOf(connID string) []string {
	return s.registry.RoomsOf(connID)
}

// Members returns a snapshot of the room's member connections.
func (s *Session) Members(matchID string) []string {
	return s.table.Members(matchID)
}

// Size reports the current viewer count for a match; 0 when nobody is
// watching.
func (s *Session) Size(matchID string) int {
	return s.table.Size(matchID)
}

// Sizes snapshots viewer counts for every live room.
func (s *Session) Sizes() map[string]int {
	return s.table.Sizes()
}

// Stats reports live room and connection totals.
func (s *Session) Stats() (roomCount, connCount int) {
	return len(s.table.Sizes()), s.registry.Count()
}

// broadcastPresence pushes the authoritative viewer count to the room's
// membership as it stands right now. The count is the snapshot's
// cardinality, never a cached number.
func (s *Session) broadcastPresence(matchID string) {
	members := s.table.Members(matchID)
	payload := PresencePayload{MatchID: matchID, Count: len(members)}
	for _, connID := range members {
		if err := s.deliver.Deliver(connID, EventViewersUpdate, payload); err != nil {
			zap.L().Warn("rooms.presence_deliver_failed",
				zap.String("conn_id", connID),
				zap.String("match_id", matchID),
				zap.Error(err),
			)
		}
	}
}
