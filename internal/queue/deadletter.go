package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Valecer/market-sub000/internal"
)

// DeadLetter is a durable sink for tasks that exhausted all retries, keyed
// by task id so a task lands there at most once.
type DeadLetter interface {
	Push(ctx context.Context, task internal.Task, cause error) error
	List(ctx context.Context, limit int) ([]DeadLetterEntry, error)
}

type DeadLetterEntry struct {
	Task     internal.Task `json:"task"`
	Error    string        `json:"error"`
	FailedAt time.Time     `json:"failedAt"`
}

const deadLetterPrefix = "dlq:task:"

type RedisDeadLetter struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisDeadLetter(rdb *redis.Client, ttl time.Duration) *RedisDeadLetter {
	return &RedisDeadLetter{rdb: rdb, ttl: ttl}
}

func (d *RedisDeadLetter) Push(ctx context.Context, task internal.Task, cause error) error {
	entry := DeadLetterEntry{Task: task, Error: cause.Error(), FailedAt: time.Now().UTC()}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal dead letter %s: %w", task.TaskID, err)
	}
	// SetNX keys the sink by task id: re-routing the same terminal failure is
	// a no-op, never a duplicate.
	if err := d.rdb.SetNX(ctx, deadLetterPrefix+task.TaskID, data, d.ttl).Err(); err != nil {
		return fmt.Errorf("push dead letter %s: %w", task.TaskID, err)
	}
	return nil
}

func (d *RedisDeadLetter) List(ctx context.Context, limit int) ([]DeadLetterEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	out := make([]DeadLetterEntry, 0, limit)
	var cursor uint64
	for {
		keys, next, err := d.rdb.Scan(ctx, cursor, deadLetterPrefix+"*", int64(limit)).Result()
		if err != nil {
			return nil, fmt.Errorf("scan dead letters: %w", err)
		}
		for _, key := range keys {
			raw, err := d.rdb.Get(ctx, key).Result()
			if err != nil {
				continue // expired between scan and get
			}
			var entry DeadLetterEntry
			if err := json.Unmarshal([]byte(raw), &entry); err != nil {
				continue
			}
			out = append(out, entry)
			if len(out) >= limit {
				return out, nil
			}
		}
		cursor = next
		if cursor == 0 {
			return out, nil
		}
	}
}
