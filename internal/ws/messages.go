package ws

import "encoding/json"

// Envelope wraps every inbound WS frame.
type Envelope struct {
	Event string          `json:"event"`          // e.g. "room:join"
	Body  json.RawMessage `json:"body,omitempty"` // arbitrary JSON object
}

// pushFrame is the outbound counterpart.
type pushFrame struct {
	Event string `json:"event"`
	Body  any    `json:"body,omitempty"`
}

// ──────────────────────────── Request / Response DTOs ─────────────────────────

// JoinRoomBody is the body for "room:join".
type JoinRoomBody struct {
	MatchID string `json:"matchId" validate:"required"`
}

// LeaveRoomBody is the body for "room:leave".
type LeaveRoomBody struct {
	MatchID string `json:"matchId" validate:"required"`
}

// ChatSendBody is the body for "chat:send".
type ChatSendBody struct {
	MatchID         string `json:"matchId" validate:"required"`
	Message         string `json:"message" validate:"required,max=500"`
	ParentMessageID string `json:"parentMessageId,omitempty"`
}

// ChatReactBody is the body for "chat:react".
type ChatReactBody struct {
	MessageID string `json:"messageId" validate:"required"`
	Emoji     string `json:"emoji"     validate:"required"`
}

// JoinAck reports the viewer count the joiner landed on.
type JoinAck struct {
	MatchID string `json:"matchId"`
	Count   int    `json:"count"`
}

// Empty ACK body (useful for many handlers).
type AckBody struct{}

// ErrorBody is returned for failures.
type ErrorBody struct {
	Error string `json:"error"`
}
