package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"matchpulsego/internal/rooms"
	"matchpulsego/internal/services/chat"
	"matchpulsego/internal/services/match"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 12 * time.Second
	pingPeriod   = 3 * time.Second // must be < pongWait
	maxFrameSize = 2048

	dispatchTimeout = 1900 * time.Millisecond
)

var errInvalidMatchID = errors.New("invalid_match_id")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // dev-only
}

type WsServer struct {
	session  *rooms.Session
	conns    *ConnTable
	fanout   *Fanout
	router   *Router
	rdc      *redis.Client
	chatSvc  chat.IChatService
	matchSvc match.IMatchService

	sendBuffer int
}

func NewWsServer(
	session *rooms.Session,
	conns *ConnTable,
	fanout *Fanout,
	rdc *redis.Client,
	chatSvc chat.IChatService,
	matchSvc match.IMatchService,
	sendBuffer int,
) *WsServer {
	srv := &WsServer{
		session:    session,
		conns:      conns,
		fanout:     fanout,
		router:     NewRouter(),
		rdc:        rdc,
		chatSvc:    chatSvc,
		matchSvc:   matchSvc,
		sendBuffer: sendBuffer,
	}
	srv.registerHandlers() // ← all WS endpoints configured here
	return srv
}

// ---------------------------------------------------------------------------
//  Public: Gin entry-point
// ---------------------------------------------------------------------------

func (s *WsServer) Handle(ginCtx *gin.Context) {
	userID := ginCtx.Query("user_id")
	userName := ginCtx.Query("user_name")
	if userID == "" {
		ginCtx.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	if userName == "" {
		userName = userID
	}

	rawConn, err := upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.upgrade", zap.Error(err))
		return
	}

	// ─────────────────── Client connected ────────────────────────
	conn := newClientConn(uuid.NewString(), rawConn, s.sendBuffer)
	s.conns.add(conn)
	s.session.Register(conn.id)

	go conn.writePump()
	go s.reader(conn, userID, userName)
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) registerHandlers() {
	// 🔹 room:join ------------------------------------------------------------
	Register(
		s.router,
		"room:join",
		func(ctx context.Context, cc *ConnContext, req JoinRoomBody) (JoinAck, error) {
			if req.MatchID == "" {
				return JoinAck{}, errInvalidMatchID
			}
			size, joined, err := s.session.Join(req.MatchID, cc.ConnID)
			if err != nil {
				return JoinAck{}, err
			}
			if joined && s.fanout != nil {
				s.fanout.Subscribe(req.MatchID)
			}
			if err := s.pushMatchSnapshot(ctx, req.MatchID, cc.ConnID); err != nil &&
				!strings.Contains(err.Error(), "not found") {
				zap.L().Warn("ws.snapshot", zap.Error(err))
			}
			return JoinAck{MatchID: req.MatchID, Count: size}, nil
		},
	)

	// 🔹 room:leave -----------------------------------------------------------
	Register(
		s.router,
		"room:leave",
		func(ctx context.Context, cc *ConnContext, req LeaveRoomBody) (AckBody, error) {
			if req.MatchID == "" {
				return AckBody{}, errInvalidMatchID
			}
			_, left, err := s.session.Leave(req.MatchID, cc.ConnID)
			if err != nil {
				return AckBody{}, err
			}
			if left && s.fanout != nil {
				s.fanout.Unsubscribe(req.MatchID)
			}
			return AckBody{}, nil
		},
	)

	// 🔹 chat:send ------------------------------------------------------------
	Register(
		s.router,
		"chat:send",
		func(ctx context.Context, cc *ConnContext, req ChatSendBody) (AckBody, error) {
			_, err := s.chatSvc.PostMessage(ctx, chat.PostMessageInput{
				MatchID:         req.MatchID,
				UserID:          cc.UserID,
				UserName:        cc.UserName,
				Message:         req.Message,
				ParentMessageID: req.ParentMessageID,
			})
			return AckBody{}, err
		},
	)

	// 🔹 chat:react -----------------------------------------------------------
	Register(
		s.router,
		"chat:react",
		func(ctx context.Context, cc *ConnContext, req ChatReactBody) (AckBody, error) {
			_, err := s.chatSvc.ToggleReaction(ctx, req.MessageID, cc.UserID, req.Emoji)
			return AckBody{}, err
		},
	)
}

// pushMatchSnapshot sends the current match state to a single joiner:
// the Redis live hash when the match is on, the DB row otherwise.
func (s *WsServer) pushMatchSnapshot(ctx context.Context, matchID, connID string) error {
	ctx, cancel := context.WithTimeout(ctx, 4*time.Second)
	defer cancel()

	if snap, _ := s.rdc.HGetAll(ctx, "match:"+matchID).Result(); len(snap) != 0 {
		return s.conns.Deliver(connID, rooms.EventMatchUpdate, snap)
	}

	dto, err := s.matchSvc.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}
	return s.conns.Deliver(connID, rooms.EventMatchUpdate, dto)
}

func (s *WsServer) reader(conn *clientConn, userID, userName string) {
	defer func() {
		affected := s.session.Disconnect(conn.id)
		if s.fanout != nil {
			for _, matchID := range affected {
				s.fanout.Unsubscribe(matchID)
			}
		}
		s.conns.remove(conn.id)
		conn.close()
	}()

	conn.rawConn.SetReadLimit(maxFrameSize)
	_ = conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	conn.rawConn.SetPongHandler(func(string) error {
		return conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	cc := &ConnContext{ConnID: conn.id, UserID: userID, UserName: userName, Server: s}

	for {
		var env Envelope
		if err := conn.rawConn.ReadJSON(&env); err != nil {
			return // client closed, errored, or missed its pongs
		}

		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		res, err := s.router.dispatch(ctx, cc, env)
		cancel()

		// ---- error -> {"event":"error", "body":{...}} ---------------
		if err != nil {
			_ = conn.enqueueJSON(pushFrame{
				Event: "error",
				Body:  ErrorBody{Error: err.Error()},
			})
			continue
		}

		// ---- success -> {"event":"<evt>-ack", "body":{...}} --------
		reply := pushFrame{Event: env.Event + "-ack"}
		if res != nil {
			reply.Body = res
		}
		_ = conn.enqueueJSON(reply)
	}
}
