package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Valecer/market-sub000/internal"
)

const KindMatchSupplier = "match:supplier"

type MatchSupplierPayload struct {
	SupplierID int64 `json:"supplierId"`
}

type Handler interface {
	Handle(ctx context.Context, task internal.Task) error
}

type HandlerFunc func(ctx context.Context, task internal.Task) error

func (f HandlerFunc) Handle(ctx context.Context, task internal.Task) error { return f(ctx, task) }

func NewTask(kind string, payload any, maxTries int) (internal.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return internal.Task{}, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return internal.Task{
		TaskID:     uuid.NewString(),
		Kind:       kind,
		Payload:    data,
		TryCount:   0,
		MaxTries:   maxTries,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}
