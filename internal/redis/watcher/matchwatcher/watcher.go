package matchwatcher

import (
	"context"
	"strings"

	"matchpulsego/internal/services/match"

	"github.com/redis/go-redis/v9"
)

// Run listens to key-expiry events and finishes matches whose live TTL
// ran out without an explicit status update.
// Run must be started once at service boot.
func Run(ctx context.Context, rdb *redis.Client, svc match.IMatchService) {
	_ = rdb.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err()
	ps := rdb.PSubscribe(ctx, "__keyevent@*__:expired")
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-ps.Channel():
			if !strings.HasPrefix(m.Payload, "match_live:") {
				continue
			}
			id := strings.TrimPrefix(m.Payload, "match_live:")
			_ = svc.FinishMatch(ctx, id) // errors already logged in svc
		}
	}
}
