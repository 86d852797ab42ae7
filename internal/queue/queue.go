// Package queue implements the durable task queue on Redis Streams: a
// consumer group for at-least-once delivery, a sorted set for scheduled
// retries, and a dead letter sink for tasks that exhausted their tries.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Valecer/market-sub000/internal"
)

type Queue struct {
	rdb      *redis.Client
	stream   string
	group    string
	consumer string
	delayed  string
	log      zerolog.Logger
}

func New(rdb *redis.Client, stream, group, consumer string, log zerolog.Logger) *Queue {
	return &Queue{
		rdb:      rdb,
		stream:   stream,
		group:    group,
		consumer: consumer,
		delayed:  stream + ":delayed",
		log:      log,
	}
}

func (q *Queue) Enqueue(ctx context.Context, task internal.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task %s: %w", task.TaskID, err)
	}
	err = q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		ID:     "*",
		Values: map[string]interface{}{"data": string(data)},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", q.stream, err)
	}
	return nil
}

// EnqueueAfter schedules the task onto the delayed set; the promote loop
// moves it back to the stream once due.
func (q *Queue) EnqueueAfter(ctx context.Context, task internal.Task, delay time.Duration) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task %s: %w", task.TaskID, err)
	}
	due := float64(time.Now().Add(delay).UnixMilli())
	if err := q.rdb.ZAdd(ctx, q.delayed, redis.Z{Score: due, Member: string(data)}).Err(); err != nil {
		return fmt.Errorf("schedule task %s: %w", task.TaskID, err)
	}
	return nil
}

func (q *Queue) ensureGroup(ctx context.Context) {
	err := q.rdb.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		q.log.Warn().Err(err).Str("stream", q.stream).Msg("error creating consumer group")
	}
}

func (q *Queue) promoteDue(ctx context.Context) {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	members, err := q.rdb.ZRangeByScore(ctx, q.delayed, &redis.ZRangeBy{
		Min: "-inf", Max: now, Count: 100,
	}).Result()
	if err != nil {
		if err != redis.Nil {
			q.log.Error().Err(err).Msg("error reading delayed tasks")
		}
		return
	}

	for _, member := range members {
		// Remove first so two promoters cannot both publish the same task.
		removed, err := q.rdb.ZRem(ctx, q.delayed, member).Result()
		if err != nil || removed == 0 {
			continue
		}
		err = q.rdb.XAdd(ctx, &redis.XAddArgs{
			Stream: q.stream,
			ID:     "*",
			Values: map[string]interface{}{"data": member},
		}).Err()
		if err != nil {
			q.log.Error().Err(err).Msg("error promoting delayed task")
			// Put it back so the retry is not lost.
			_ = q.rdb.ZAdd(ctx, q.delayed, redis.Z{Score: float64(time.Now().UnixMilli()), Member: member}).Err()
		}
	}
}

func (q *Queue) read(ctx context.Context, count int64) ([]redis.XMessage, error) {
	result, err := q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: q.consumer,
		Streams:  []string{q.stream, ">"},
		Count:    count,
		Block:    5 * time.Second,
	}).Result()
	if err != nil {
		return nil, err
	}
	var out []redis.XMessage
	for _, s := range result {
		out = append(out, s.Messages...)
	}
	return out, nil
}

func (q *Queue) ack(ctx context.Context, msgID string) {
	if err := q.rdb.XAck(ctx, q.stream, q.group, msgID).Err(); err != nil {
		q.log.Error().Err(err).Str("id", msgID).Msg("error acknowledging message")
	}
}

func parseTask(msg redis.XMessage) (internal.Task, error) {
	data, ok := msg.Values["data"]
	if !ok {
		return internal.Task{}, fmt.Errorf("message %s: missing data field", msg.ID)
	}
	raw, ok := data.(string)
	if !ok {
		return internal.Task{}, fmt.Errorf("message %s: data is not a string", msg.ID)
	}
	var task internal.Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		return internal.Task{}, fmt.Errorf("message %s: %w", msg.ID, err)
	}
	return task, nil
}
