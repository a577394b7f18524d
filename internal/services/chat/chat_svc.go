package chat

import (
	"context"
	"database/sql"
	"errors"
	"time"
	"unicode/utf8"

	"matchpulsego/internal/rooms"

	"github.com/google/uuid"
)

const maxMessageLen = 500

var (
	ErrEmptyMessage    = errors.New("message is empty")
	ErrMessageTooLong  = errors.New("message exceeds 500 characters")
	ErrMessageNotFound = errors.New("message not found")
	ErrParentNotFound  = errors.New("parent message not found")
)

type MessageDTO struct {
	ID              string    `json:"id"`
	MatchID         string    `json:"match_id"`
	UserID          string    `json:"user_id"`
	UserName        string    `json:"user_name"`
	Message         string    `json:"message"`
	ParentMessageID string    `json:"parent_message_id,omitempty"`
	ReplyCount      int       `json:"reply_count"`
	CreatedAt       time.Time `json:"created_at"`
}

type ReactionDTO struct {
	Emoji string   `json:"emoji"`
	Users []string `json:"users"`
	Count int      `json:"count"`
}

// ReactionUpdateDTO is the relay payload for a reaction change: the full
// updated reaction list for one message.
type ReactionUpdateDTO struct {
	MessageID string        `json:"message_id"`
	MatchID   string        `json:"match_id"`
	Reactions []ReactionDTO `json:"reactions"`
}

type PostMessageInput struct {
	MatchID         string
	UserID          string
	UserName        string
	Message         string
	ParentMessageID string
}

type IChatService interface {
	PostMessage(ctx context.Context, in PostMessageInput) (*MessageDTO, error)
	ToggleReaction(ctx context.Context, messageID, userID, emoji string) (*ReactionUpdateDTO, error)
}

type chatService struct {
	db    *sql.DB
	relay rooms.Relayer
}

func NewChatService(db *sql.DB, relay rooms.Relayer) IChatService {
	return &chatService{db: db, relay: relay}
}

const bumpReplyCountQ = `UPDATE messages SET reply_count = reply_count + 1
	 WHERE id = $1 AND match_id = $2`

const insertMessageQ = `INSERT INTO messages
	(id, match_id, user_id, user_name, body, parent_message_id, created_at)
	 VALUES ($1, $2, $3, $4, $5, NULLIF($6,''), $7)`

// PostMessage commits the message (bumping the parent's reply counter
// for threaded replies), then relays chat:message to the room.
func (svc *chatService) PostMessage(ctx context.Context, in PostMessageInput) (*MessageDTO, error) {
	if in.Message == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(in.Message) > maxMessageLen {
		return nil, ErrMessageTooLong
	}

	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if in.ParentMessageID != "" {
		res, err := tx.ExecContext(ctx, bumpReplyCountQ, in.ParentMessageID, in.MatchID)
		if err != nil {
			return nil, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, ErrParentNotFound
		}
	}

	dto := &MessageDTO{
		ID:              uuid.NewString(),
		MatchID:         in.MatchID,
		UserID:          in.UserID,
		UserName:        in.UserName,
		Message:         in.Message,
		ParentMessageID: in.ParentMessageID,
		CreatedAt:       time.Now().UTC(),
	}
	if _, err := tx.ExecContext(ctx, insertMessageQ,
		dto.ID, dto.MatchID, dto.UserID, dto.UserName,
		dto.Message, dto.ParentMessageID, dto.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	svc.relay.Relay(rooms.Event{
		MatchID: dto.MatchID,
		Kind:    rooms.KindMessage,
		Payload: dto,
	})
	return dto, nil
}

const messageMatchQ = `SELECT match_id FROM messages WHERE id = $1`

const deleteReactionQ = `DELETE FROM reactions
	 WHERE message_id = $1 AND user_id = $2 AND emoji = $3`

const insertReactionQ = `INSERT INTO reactions (message_id, user_id, emoji)
	 VALUES ($1, $2, $3)`

const listReactionsQ = `SELECT emoji, user_id FROM reactions
	 WHERE message_id = $1 ORDER BY emoji, user_id`

// ToggleReaction adds the user's reaction, or removes it when it was
// already present, and relays the message's full updated reaction list.
func (svc *chatService) ToggleReaction(ctx context.Context, messageID, userID, emoji string) (*ReactionUpdateDTO, error) {
	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var matchID string
	if err := tx.QueryRowContext(ctx, messageMatchQ, messageID).Scan(&matchID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}

	res, err := tx.ExecContext(ctx, deleteReactionQ, messageID, userID, emoji)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := tx.ExecContext(ctx, insertReactionQ, messageID, userID, emoji); err != nil {
			return nil, err
		}
	}

	reactions, err := loadReactions(ctx, tx, messageID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	dto := &ReactionUpdateDTO{
		MessageID: messageID,
		MatchID:   matchID,
		Reactions: reactions,
	}
	svc.relay.Relay(rooms.Event{
		MatchID: matchID,
		Kind:    rooms.KindReaction,
		Payload: dto,
	})
	return dto, nil
}

func loadReactions(ctx context.Context, tx *sql.Tx, messageID string) ([]ReactionDTO, error) {
	rows, err := tx.QueryContext(ctx, listReactionsQ, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ReactionDTO{}
	for rows.Next() {
		var emoji, user string
		if err := rows.Scan(&emoji, &user); err != nil {
			return nil, err
		}
		if n := len(out); n > 0 && out[n-1].Emoji == emoji {
			out[n-1].Users = append(out[n-1].Users, user)
			out[n-1].Count++
			continue
		}
		out = append(out, ReactionDTO{Emoji: emoji, Users: []string{user}, Count: 1})
	}
	return out, rows.Err()
}
