package queue

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Valecer/market-sub000/internal/errs"
)

// Pool pulls tasks from the queue with a fixed number of workers, a per-task
// timeout, and the retry engine deciding what happens to failures.
type Pool struct {
	queue    *Queue
	retry    *RetryEngine
	handlers map[string]Handler
	workers  int
	timeout  time.Duration
	maxTries int
	log      zerolog.Logger

	reclaimInterval time.Duration
	reclaimIdle     time.Duration
}

func NewPool(queue *Queue, retry *RetryEngine, workers int, timeout time.Duration, maxTries int, log zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		queue:           queue,
		retry:           retry,
		handlers:        map[string]Handler{},
		workers:         workers,
		timeout:         timeout,
		maxTries:        maxTries,
		log:             log,
		reclaimInterval: 30 * time.Second,
		reclaimIdle:     2 * time.Minute,
	}
}

func (p *Pool) Register(kind string, h Handler) {
	p.handlers[kind] = h
}

func (p *Pool) Run(ctx context.Context) error {
	p.queue.ensureGroup(ctx)
	p.log.Info().
		Int("workers", p.workers).
		Dur("task_timeout", p.timeout).
		Str("stream", p.queue.stream).
		Msg("starting worker pool")

	jobs := make(chan redis.XMessage)
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for msg := range jobs {
				p.process(ctx, msg)
			}
		}()
	}

	go p.promoteLoop(ctx)
	go p.reclaimLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return ctx.Err()
		default:
		}

		msgs, err := p.queue.read(ctx, int64(p.workers))
		if err != nil {
			if err == redis.Nil {
				continue
			}
			if ctx.Err() != nil {
				close(jobs)
				wg.Wait()
				return ctx.Err()
			}
			p.log.Error().Err(err).Msg("error reading from stream")
			time.Sleep(time.Second)
			continue
		}
		for _, msg := range msgs {
			select {
			case jobs <- msg:
			case <-ctx.Done():
				close(jobs)
				wg.Wait()
				return ctx.Err()
			}
		}
	}
}

func (p *Pool) process(ctx context.Context, msg redis.XMessage) {
	task, err := parseTask(msg)
	if err != nil {
		// Malformed payloads can never succeed; ack so they do not loop.
		p.log.Error().Err(err).Str("id", msg.ID).Msg("dropping malformed task message")
		p.queue.ack(ctx, msg.ID)
		return
	}

	handler, ok := p.handlers[task.Kind]
	if !ok {
		p.log.Error().Str("task_id", task.TaskID).Str("kind", task.Kind).Msg("no handler for task kind")
		p.queue.ack(ctx, msg.ID)
		return
	}

	taskCtx, cancel := context.WithTimeout(ctx, p.timeout)
	res := p.retry.Execute(taskCtx, task, handler)
	cancel()

	switch res.Outcome {
	case OutcomeDone:
		p.queue.ack(ctx, msg.ID)
	case OutcomeRetry:
		retry := task
		retry.TryCount++
		if err := p.queue.EnqueueAfter(ctx, retry, res.Delay); err != nil {
			// Leave the message pending; the reclaim loop redelivers it.
			p.log.Error().Err(err).Str("task_id", task.TaskID).Msg("error scheduling retry, leaving message pending")
			return
		}
		p.queue.ack(ctx, msg.ID)
	case OutcomeFailed:
		p.queue.ack(ctx, msg.ID)
	}
}

func (p *Pool) promoteLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.queue.promoteDue(ctx)
		}
	}
}

// reclaimLoop is the completion hook of last resort: if a worker died
// mid-task, the message sits pending until it is either redelivered or,
// past the try budget, dead lettered here.
func (p *Pool) reclaimLoop(ctx context.Context) {
	ticker := time.NewTicker(p.reclaimInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.reclaimPending(ctx)
		}
	}
}

func (p *Pool) reclaimPending(ctx context.Context) {
	pending, err := p.queue.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: p.queue.stream,
		Group:  p.queue.group,
		Start:  "-",
		End:    "+",
		Count:  100,
	}).Result()
	if err != nil {
		if err != redis.Nil {
			p.log.Error().Err(err).Msg("error listing pending messages")
		}
		return
	}

	for _, pm := range pending {
		if pm.Idle < p.reclaimIdle {
			continue
		}

		if int(pm.RetryCount) > p.maxTries {
			p.deadLetterPending(ctx, pm.ID)
			continue
		}

		claimed, err := p.queue.rdb.XClaim(ctx, &redis.XClaimArgs{
			Stream:   p.queue.stream,
			Group:    p.queue.group,
			Consumer: p.queue.consumer,
			MinIdle:  p.reclaimIdle,
			Messages: []string{pm.ID},
		}).Result()
		if err != nil {
			p.log.Error().Err(err).Str("id", pm.ID).Msg("error claiming pending message")
			continue
		}
		for _, msg := range claimed {
			p.log.Info().Str("id", msg.ID).Dur("idle", pm.Idle).Msg("reprocessing stuck pending message")
			p.process(ctx, msg)
		}
	}
}

func (p *Pool) deadLetterPending(ctx context.Context, msgID string) {
	msgs, err := p.queue.rdb.XRange(ctx, p.queue.stream, msgID, msgID).Result()
	if err != nil || len(msgs) == 0 {
		p.log.Error().Err(err).Str("id", msgID).Msg("error reading pending message for dead letter")
		return
	}
	task, err := parseTask(msgs[0])
	if err == nil {
		cause := errsDeliveryExceeded(task.MaxTries)
		if dlqErr := p.retry.dlq.Push(ctx, task, cause); dlqErr != nil {
			p.log.Error().Err(dlqErr).Str("task_id", task.TaskID).Msg("dead letter routing failed for stuck message")
		} else {
			p.log.Warn().Str("task_id", task.TaskID).Msg("stuck message exceeded delivery budget, dead lettered")
		}
	}
	p.queue.ack(ctx, msgID)
}

func errsDeliveryExceeded(maxTries int) error {
	return errs.Infra(nil, "delivery count exceeded %d tries without completion", maxTries)
}
