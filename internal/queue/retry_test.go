package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Valecer/market-sub000/internal"
	"github.com/Valecer/market-sub000/internal/errs"
)

type memDeadLetter struct {
	pushed map[string]error
}

func newMemDeadLetter() *memDeadLetter {
	return &memDeadLetter{pushed: map[string]error{}}
}

func (m *memDeadLetter) Push(_ context.Context, task internal.Task, cause error) error {
	// Keyed by task id, matching the SetNX semantics of the real sink.
	if _, ok := m.pushed[task.TaskID]; ok {
		return nil
	}
	m.pushed[task.TaskID] = cause
	return nil
}

func (m *memDeadLetter) List(_ context.Context, _ int) ([]DeadLetterEntry, error) {
	return nil, nil
}

func failingHandler(err error) Handler {
	return HandlerFunc(func(context.Context, internal.Task) error { return err })
}

func testTask(tryCount, maxTries int) internal.Task {
	return internal.Task{TaskID: "task-1", Kind: KindMatchSupplier, TryCount: tryCount, MaxTries: maxTries}
}

func TestDelayTableClampsToLastEntry(t *testing.T) {
	engine := NewRetryEngine([]time.Duration{time.Second, 5 * time.Second, 25 * time.Second}, newMemDeadLetter(), zerolog.Nop())

	assert.Equal(t, time.Second, engine.Delay(0))
	assert.Equal(t, 5*time.Second, engine.Delay(1))
	assert.Equal(t, 25*time.Second, engine.Delay(2))
	assert.Equal(t, 25*time.Second, engine.Delay(3))
	assert.Equal(t, 25*time.Second, engine.Delay(99))
	assert.Equal(t, time.Second, engine.Delay(-1))
}

func TestExecuteSuccess(t *testing.T) {
	engine := NewRetryEngine(nil, newMemDeadLetter(), zerolog.Nop())
	ok := HandlerFunc(func(context.Context, internal.Task) error { return nil })

	res := engine.Execute(context.Background(), testTask(0, 3), ok)
	assert.Equal(t, OutcomeDone, res.Outcome)
	assert.NoError(t, res.Err)
}

func TestExecuteRetriesInfrastructureFailure(t *testing.T) {
	engine := NewRetryEngine([]time.Duration{time.Second, 5 * time.Second, 25 * time.Second}, newMemDeadLetter(), zerolog.Nop())
	cause := errs.Infra(errors.New("connection refused"), "load products")

	res := engine.Execute(context.Background(), testTask(0, 3), failingHandler(cause))
	require.Equal(t, OutcomeRetry, res.Outcome)
	assert.Equal(t, time.Second, res.Delay)

	res = engine.Execute(context.Background(), testTask(1, 3), failingHandler(cause))
	require.Equal(t, OutcomeRetry, res.Outcome)
	assert.Equal(t, 5*time.Second, res.Delay)
}

func TestExecuteExhaustedGoesToDeadLetter(t *testing.T) {
	dlq := newMemDeadLetter()
	engine := NewRetryEngine(nil, dlq, zerolog.Nop())
	cause := errs.Infra(errors.New("connection refused"), "load products")

	// TryCount 2 of MaxTries 3 is the final attempt.
	res := engine.Execute(context.Background(), testTask(2, 3), failingHandler(cause))

	require.Equal(t, OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, cause, "the original error must surface, not a DLQ artifact")
	assert.Len(t, dlq.pushed, 1)
}

func TestExecuteValidationFailureNeverRetries(t *testing.T) {
	dlq := newMemDeadLetter()
	engine := NewRetryEngine(nil, dlq, zerolog.Nop())
	cause := errs.Validation("supplier id must be positive")

	res := engine.Execute(context.Background(), testTask(0, 3), failingHandler(cause))

	require.Equal(t, OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, cause)
	assert.Empty(t, dlq.pushed, "permanent failures are not dead lettered")
}

func TestExecuteUnclassifiedErrorIsRetryable(t *testing.T) {
	engine := NewRetryEngine(nil, newMemDeadLetter(), zerolog.Nop())
	cause := errors.New("something transient")

	res := engine.Execute(context.Background(), testTask(0, 3), failingHandler(cause))
	assert.Equal(t, OutcomeRetry, res.Outcome)
}

func TestDeadLetterPushKeyedByTaskID(t *testing.T) {
	dlq := newMemDeadLetter()
	engine := NewRetryEngine(nil, dlq, zerolog.Nop())
	cause := errs.Infra(errors.New("boom"), "load products")

	// Routing the same exhausted task twice must not duplicate the entry.
	_ = engine.Execute(context.Background(), testTask(2, 3), failingHandler(cause))
	_ = engine.Execute(context.Background(), testTask(2, 3), failingHandler(cause))

	assert.Len(t, dlq.pushed, 1)
}
