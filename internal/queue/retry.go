package queue

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Valecer/market-sub000/internal"
	"github.com/Valecer/market-sub000/internal/errs"
)

type Outcome int

const (
	// OutcomeDone: the task succeeded, acknowledge it.
	OutcomeDone Outcome = iota
	// OutcomeRetry: re-enqueue the task after Result.Delay.
	OutcomeRetry
	// OutcomeFailed: terminal failure; the original error is in Result.Err.
	OutcomeFailed
)

type Result struct {
	Outcome Outcome
	Delay   time.Duration
	Err     error
}

// RetryEngine wraps task execution with classified-error retry policy:
// validation failures never retry, everything else retries on a fixed
// backoff table until the try budget runs out, then lands in the dead
// letter sink.
type RetryEngine struct {
	delays []time.Duration
	dlq    DeadLetter
	log    zerolog.Logger
}

func NewRetryEngine(delays []time.Duration, dlq DeadLetter, log zerolog.Logger) *RetryEngine {
	if len(delays) == 0 {
		delays = []time.Duration{time.Second, 5 * time.Second, 25 * time.Second}
	}
	return &RetryEngine{delays: delays, dlq: dlq, log: log}
}

// Delay returns the backoff for the given zero-based attempt. Indexes past
// the table reuse the last entry, so the delay never grows unbounded.
func (r *RetryEngine) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= len(r.delays) {
		return r.delays[len(r.delays)-1]
	}
	return r.delays[attempt]
}

func (r *RetryEngine) Execute(ctx context.Context, task internal.Task, h Handler) Result {
	err := h.Handle(ctx, task)
	if err == nil {
		return Result{Outcome: OutcomeDone}
	}

	if !errs.Retryable(err) {
		r.log.Error().
			Err(err).
			Str("task_id", task.TaskID).
			Str("kind", task.Kind).
			Msg("permanent task failure, not retrying")
		return Result{Outcome: OutcomeFailed, Err: err}
	}

	if task.TryCount+1 < task.MaxTries {
		delay := r.Delay(task.TryCount)
		r.log.Warn().
			Err(err).
			Str("task_id", task.TaskID).
			Str("kind", task.Kind).
			Int("try", task.TryCount).
			Dur("retry_in", delay).
			Msg("task failed, scheduling retry")
		return Result{Outcome: OutcomeRetry, Delay: delay, Err: err}
	}

	// Retries exhausted: dead-letter AND surface the original failure. A
	// broken DLQ store is logged but never masks the task error.
	if dlqErr := r.dlq.Push(ctx, task, err); dlqErr != nil {
		r.log.Error().
			Err(dlqErr).
			Str("task_id", task.TaskID).
			Msg("dead letter routing failed")
	} else {
		r.log.Error().
			Err(err).
			Str("task_id", task.TaskID).
			Str("kind", task.Kind).
			Int("tries", task.TryCount+1).
			Msg("task exhausted retries, dead lettered")
	}
	return Result{Outcome: OutcomeFailed, Err: err}
}
