// Package dispatch is the hand-off point between the decision core and
// whatever delivers messages. Payloads are pushed onto a Redis list as JSON
// and popped in FIFO order by delivery workers.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/engagement-agent/internal/domain"
)

// DefaultKey is the Redis list payloads are pushed to.
const DefaultKey = "engagement:dispatch"

// Queue is a Redis list of pending payloads.
type Queue struct {
	rdb *redis.Client
	key string
}

// NewQueue returns a queue on key, or DefaultKey when key is empty.
func NewQueue(rdb *redis.Client, key string) *Queue {
	if key == "" {
		key = DefaultKey
	}
	return &Queue{rdb: rdb, key: key}
}

// Enqueue appends payloads in order with a single RPUSH.
func (q *Queue) Enqueue(ctx context.Context, payloads ...domain.Payload) error {
	if len(payloads) == 0 {
		return nil
	}
	values := make([]interface{}, len(payloads))
	for i, p := range payloads {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal payload for user %s: %w", p.UserID, err)
		}
		values[i] = data
	}
	if err := q.rdb.RPush(ctx, q.key, values...).Err(); err != nil {
		return fmt.Errorf("push to %s: %w", q.key, err)
	}
	return nil
}

// Dequeue pops the oldest payload, waiting up to timeout. It returns nil, nil
// when nothing arrived in time. A zero timeout does not wait.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*domain.Payload, error) {
	var raw string
	if timeout <= 0 {
		v, err := q.rdb.LPop(ctx, q.key).Result()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("pop from %s: %w", q.key, err)
		}
		raw = v
	} else {
		res, err := q.rdb.BLPop(ctx, timeout, q.key).Result()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("pop from %s: %w", q.key, err)
		}
		raw = res[1]
	}

	var p domain.Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &p, nil
}

// Len is the number of payloads waiting.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.key).Result()
}
