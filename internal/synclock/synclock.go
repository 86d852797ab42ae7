// Package synclock provides the single-holder distributed mutex that gates
// whole orchestration runs. The TTL is the second line of defense: even if
// a crashed holder never releases, the lock cannot outlive it.
package synclock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const lockKey = "pricesync:sync:lock"

// releaseScript deletes the lock only when the caller still holds it, so a
// slow holder cannot release a lock that already expired and moved on.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Lock struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

func New(rdb *redis.Client, ttl time.Duration) *Lock {
	return &Lock{rdb: rdb, key: lockKey, ttl: ttl}
}

// Acquire grants the lock iff no other non-expired holder exists. On a
// failed acquisition the current holder id is returned for diagnostics.
func (l *Lock) Acquire(ctx context.Context, holderID string) (bool, string, error) {
	ok, err := l.rdb.SetNX(ctx, l.key, holderID, l.ttl).Result()
	if err != nil {
		return false, "", fmt.Errorf("acquire sync lock: %w", err)
	}
	if ok {
		return true, "", nil
	}
	holder, err := l.rdb.Get(ctx, l.key).Result()
	if err == redis.Nil {
		// Holder expired between SetNX and Get; report contention anyway,
		// the caller retries on the next run.
		return false, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("read sync lock holder: %w", err)
	}
	return false, holder, nil
}

// Release drops the lock if holderID still owns it.
func (l *Lock) Release(ctx context.Context, holderID string) error {
	if err := releaseScript.Run(ctx, l.rdb, []string{l.key}, holderID).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release sync lock: %w", err)
	}
	return nil
}

func (l *Lock) IsHeld(ctx context.Context) (bool, string, error) {
	holder, err := l.rdb.Get(ctx, l.key).Result()
	if err == redis.Nil {
		return false, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("read sync lock: %w", err)
	}
	return true, holder, nil
}
