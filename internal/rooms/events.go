package rooms

// Kind classifies an application event handed to Relay.
type Kind string

const (
	KindMessage  Kind = "message"
	KindReaction Kind = "reaction"
	KindScore    Kind = "score"
	KindStatus   Kind = "status"
)

// Wire event names pushed to clients.
const (
	EventChatMessage   = "chat:message"
	EventChatReaction  = "chat:reaction"
	EventMatchScore    = "match:score"
	EventMatchUpdate   = "match:update"
	EventViewersUpdate = "viewers:update"
)

// Event is the transient relay envelope: produced by a collaborator,
// fanned out to the room, then discarded.
type Event struct {
	MatchID string
	Kind    Kind
	Payload any
}

// WireName maps an event kind to the name delivered on the socket.
func (e Event) WireName() string {
	switch e.Kind {
	case KindMessage:
		return EventChatMessage
	case KindReaction:
		return EventChatReaction
	case KindScore:
		return EventMatchScore
	case KindStatus:
		return EventMatchUpdate
	}
	return string(e.Kind)
}

// PresencePayload is the body of every viewers:update push.
type PresencePayload struct {
	MatchID string `json:"matchId"`
	Count   int    `json:"count"`
}

// Deliverer is the transport's outbound push primitive. Implementations
// must not block on network I/O; hand the frame off and return.
type Deliverer interface {
	Deliver(connID, event string, payload any) error
}

// Publisher forwards relay events to sibling instances.
type Publisher interface {
	Publish(ev Event)
}

// Relayer is the slice of the facade that application-layer producers
// (chat handlers, match sync) depend on.
type Relayer interface {
	Relay(ev Event)
}
