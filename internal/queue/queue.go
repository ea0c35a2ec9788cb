// internal/queue/queue.go
package queue

import (
	"context"
	"time"

	"tender-alerts/internal/common/errors"

	"github.com/redis/go-redis/v9"
)

const defaultKey = "inbound:events"

// appendScript performs append, cap eviction and TTL refresh in one atomic
// step, so concurrent webhook requests can never race the cap-and-evict
// policy. LTRIM keeps the newest ARGV[2] entries; the oldest are dropped
// first. The TTL is refreshed on every write.
var appendScript = redis.NewScript(`
redis.call('RPUSH', KEYS[1], ARGV[1])
redis.call('LTRIM', KEYS[1], -tonumber(ARGV[2]), -1)
redis.call('EXPIRE', KEYS[1], tonumber(ARGV[3]))
return redis.call('LLEN', KEYS[1])
`)

// InboundQueue is the shared bounded FIFO of raw inbound payloads. Webhook
// requests append; an independent consumer drains.
type InboundQueue struct {
	rdb *redis.Client
	key string
	cap int
	ttl time.Duration
}

func NewInboundQueue(rdb *redis.Client, cap int, ttl time.Duration) *InboundQueue {
	return &InboundQueue{
		rdb: rdb,
		key: defaultKey,
		cap: cap,
		ttl: ttl,
	}
}

// Append adds a raw payload, evicting the oldest entry when the cap is
// exceeded. Returns the queue length after the append.
func (q *InboundQueue) Append(ctx context.Context, payload []byte) (int64, error) {
	res, err := appendScript.Run(ctx, q.rdb,
		[]string{q.key}, payload, q.cap, int(q.ttl.Seconds())).Int64()
	if err != nil {
		return 0, errors.NewQueueAppendError(err)
	}
	return res, nil
}

// Pop removes and returns the oldest payload. ok is false on an empty
// queue.
func (q *InboundQueue) Pop(ctx context.Context) (payload []byte, ok bool, err error) {
	val, err := q.rdb.LPop(ctx, q.key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Len returns the current queue depth.
func (q *InboundQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.key).Result()
}
