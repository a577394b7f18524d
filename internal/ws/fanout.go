package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"matchpulsego/internal/rooms"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const publishTimeout = 2 * time.Second

// busFrame is what travels on the per-match Redis channel. Origin lets
// the subscriber skip frames this instance published itself, since those
// were already delivered locally by the session.
type busFrame struct {
	Origin  string          `json:"origin"`
	Kind    rooms.Kind      `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Fanout bridges relay events between instances over Redis Pub/Sub.
// It guarantees **exactly one** subscription per "match:<id>:events"
// channel no matter how many local connections join the same room.
type Fanout struct {
	rdc        *redis.Client
	session    *rooms.Session
	instanceID string

	mu   sync.Mutex
	subs map[string]*subEntry // matchID ➜ subscription data
}

type subEntry struct {
	refCnt int
	cancel context.CancelFunc
}

func NewFanout(rdc *redis.Client, session *rooms.Session) *Fanout {
	return &Fanout{
		rdc:        rdc,
		session:    session,
		instanceID: uuid.NewString(),
		subs:       make(map[string]*subEntry),
	}
}

// Publish implements rooms.Publisher: relay events go out tagged with
// this instance's id so siblings deliver them and we do not.
func (f *Fanout) Publish(ev rooms.Event) {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		zap.L().Warn("ws.fanout_marshal", zap.Error(err))
		return
	}
	frame, err := json.Marshal(busFrame{Origin: f.instanceID, Kind: ev.Kind, Payload: payload})
	if err != nil {
		zap.L().Warn("ws.fanout_marshal", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := f.rdc.Publish(ctx, channelFor(ev.MatchID), frame).Err(); err != nil {
		zap.L().Warn("ws.fanout_publish", zap.String("match_id", ev.MatchID), zap.Error(err))
	}
}

// Subscribe ensures the process is subscribed to the match's channel;
// subsequent calls for the same match only increment the ref-counter.
func (f *Fanout) Subscribe(matchID string) {
	f.mu.Lock()
	if e, ok := f.subs[matchID]; ok {
		e.refCnt++
		f.mu.Unlock()
		return
	}

	// First local viewer → create Redis SUB and fan-out loop.
	ctx, cancel := context.WithCancel(context.Background())
	ps := f.rdc.Subscribe(ctx, channelFor(matchID))

	f.subs[matchID] = &subEntry{refCnt: 1, cancel: cancel}
	f.mu.Unlock()

	go func() {
		defer ps.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ps.Channel():
				if !ok { // Redis connection closed.
					return
				}

				var frame busFrame
				if err := json.Unmarshal([]byte(m.Payload), &frame); err != nil {
					zap.L().Warn("ws.fanout_decode", zap.Error(err))
					continue
				}
				if frame.Origin == f.instanceID {
					continue // already delivered locally by the session
				}

				f.session.DeliverLocal(rooms.Event{
					MatchID: matchID,
					Kind:    frame.Kind,
					Payload: frame.Payload,
				})
			}
		}
	}()
}

// Unsubscribe decrements the ref-counter and tears the Redis SUB down
// when the last local viewer leaves the room.
func (f *Fanout) Unsubscribe(matchID string) {
	f.mu.Lock()
	e, ok := f.subs[matchID]
	if !ok {
		f.mu.Unlock()
		return
	}
	e.refCnt--
	if e.refCnt > 0 {
		f.mu.Unlock()
		return
	}
	delete(f.subs, matchID)
	f.mu.Unlock()

	// Outside the lock → stop the fan-out goroutine.
	e.cancel()
}

func channelFor(matchID string) string { return "match:" + matchID + ":events" }
