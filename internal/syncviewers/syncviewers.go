package syncviewers

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	countsKey   = "viewers:counts"
	pipeTimeout = 1500 * time.Millisecond
)

// Sizer is the slice of the realtime facade this job reads.
type Sizer interface {
	Sizes() map[string]int
}

// Run mirrors this instance's live viewer counts into Redis on a fixed
// cadence, so counts survive a REST query landing on another instance.
func Run(ctx context.Context, rdc *redis.Client, rooms Sizer, every time.Duration) {
	tk := time.NewTicker(every)
	go func() {
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				syncOnce(ctx, rdc, rooms)
			}
		}
	}()
}

// Lookup reads one match's mirrored count. 0 when no instance has
// reported a viewer for it (or the mirror is unreachable).
func Lookup(ctx context.Context, rdc *redis.Client, matchID string) int {
	v, err := rdc.HGet(ctx, countsKey, matchID).Result()
	if err != nil {
		return 0
	}
	n, _ := strconv.Atoi(v)
	return n
}

func syncOnce(ctx context.Context, rdc *redis.Client, rooms Sizer) {
	sizes := rooms.Sizes()

	ctx, cancel := context.WithTimeout(ctx, pipeTimeout)
	defer cancel()

	// one pipelined round-trip: drop stale fields, write fresh counts
	pipe := rdc.Pipeline()
	pipe.Del(ctx, countsKey)
	if len(sizes) > 0 {
		fields := make([]any, 0, len(sizes)*2)
		for matchID, n := range sizes {
			fields = append(fields, matchID, strconv.Itoa(n))
		}
		pipe.HSet(ctx, countsKey, fields...)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		zap.L().Error("syncviewers.pipeline", zap.Error(err))
	}
}
