package syncer

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const statusKey = "pricesync:sync:status"

// RedisStatus publishes the orchestrator's phase progress as a Redis hash
// so operators (and other processes) can watch a run move.
type RedisStatus struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStatus(rdb *redis.Client, ttl time.Duration) *RedisStatus {
	return &RedisStatus{rdb: rdb, ttl: ttl}
}

func (s *RedisStatus) SetPhase(ctx context.Context, runID, phase string) error {
	if err := s.rdb.HSet(ctx, statusKey,
		"run_id", runID,
		"phase", phase,
		"in_progress", "1",
		"updated_at", time.Now().UTC().Format(time.RFC3339),
	).Err(); err != nil {
		return err
	}
	return s.rdb.Expire(ctx, statusKey, s.ttl).Err()
}

func (s *RedisStatus) Clear(ctx context.Context, runID string) error {
	return s.rdb.HSet(ctx, statusKey,
		"run_id", runID,
		"in_progress", "0",
		"updated_at", time.Now().UTC().Format(time.RFC3339),
	).Err()
}
