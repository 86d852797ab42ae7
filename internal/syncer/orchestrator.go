// Package syncer drives a full ingestion/matching cycle: one global lock,
// supplier reconciliation against the external configuration set, and one
// matching task enqueued per active supplier.
package syncer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Valecer/market-sub000/internal"
	"github.com/Valecer/market-sub000/internal/queue"
)

type Locker interface {
	Acquire(ctx context.Context, holderID string) (bool, string, error)
	Release(ctx context.Context, holderID string) error
}

type ConfigProvider interface {
	FetchSupplierConfigs(ctx context.Context) ([]internal.SupplierConfig, error)
}

type SupplierStore interface {
	ListSuppliers(ctx context.Context) ([]internal.Supplier, error)
	ListActiveSuppliers(ctx context.Context) ([]internal.Supplier, error)
	CreateSupplier(ctx context.Context, cfg internal.SupplierConfig) (internal.Supplier, error)
	UpdateSupplier(ctx context.Context, id int64, cfg internal.SupplierConfig) error
	DeactivateSupplier(ctx context.Context, id int64) error
}

type Enqueuer interface {
	Enqueue(ctx context.Context, task internal.Task) error
}

// StatusStore exposes the run's per-phase progress signal and the
// in-progress flag that must be cleared even when a run dies.
type StatusStore interface {
	SetPhase(ctx context.Context, runID, phase string) error
	Clear(ctx context.Context, runID string) error
}

type Orchestrator struct {
	lock     Locker
	provider ConfigProvider
	store    SupplierStore
	enqueuer Enqueuer
	status   StatusStore
	maxTries int
	log      zerolog.Logger
}

func NewOrchestrator(lock Locker, provider ConfigProvider, store SupplierStore, enqueuer Enqueuer, status StatusStore, maxTries int, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		lock:     lock,
		provider: provider,
		store:    store,
		enqueuer: enqueuer,
		status:   status,
		maxTries: maxTries,
		log:      log,
	}
}

// Run executes one orchestration cycle. The lock release and the
// in-progress flag reset share the deferred cleanup path, so a failed run
// never leaves the system locked.
func (o *Orchestrator) Run(ctx context.Context) (internal.RunSummary, error) {
	runID := uuid.NewString()
	summary := internal.RunSummary{RunID: runID}

	granted, holder, err := o.lock.Acquire(ctx, runID)
	if err != nil {
		return summary, err
	}
	if !granted {
		return summary, fmt.Errorf("sync already running, held by %q", holder)
	}
	defer func() {
		if err := o.status.Clear(ctx, runID); err != nil {
			o.log.Error().Err(err).Str("run_id", runID).Msg("error clearing sync status")
		}
		if err := o.lock.Release(ctx, runID); err != nil {
			o.log.Error().Err(err).Str("run_id", runID).Msg("error releasing sync lock")
		}
	}()

	o.phase(ctx, runID, "reconcile_suppliers")
	o.reconcileSuppliers(ctx, &summary)

	o.phase(ctx, runID, "enqueue_tasks")
	o.enqueueMatchTasks(ctx, &summary)

	o.phase(ctx, runID, "finalize")
	summary.Status = summary.Overall()
	o.log.Info().
		Str("run_id", runID).
		Str("status", string(summary.Status)).
		Int("created", summary.Created).
		Int("updated", summary.Updated).
		Int("deactivated", summary.Deactivated).
		Int("enqueued", summary.Enqueued).
		Int("failed", summary.Failed).
		Int("errors", len(summary.Errors)).
		Msg("sync run complete")
	return summary, nil
}

func (o *Orchestrator) phase(ctx context.Context, runID, name string) {
	o.log.Info().Str("run_id", runID).Str("phase", name).Msg("sync phase")
	if err := o.status.SetPhase(ctx, runID, name); err != nil {
		o.log.Warn().Err(err).Str("phase", name).Msg("error publishing sync phase")
	}
}

// reconcileSuppliers creates new suppliers, updates changed ones and
// soft-deactivates suppliers absent from the latest configuration.
func (o *Orchestrator) reconcileSuppliers(ctx context.Context, summary *internal.RunSummary) {
	configs, err := o.provider.FetchSupplierConfigs(ctx)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("fetch supplier configs: %v", err))
		return
	}

	existing, err := o.store.ListSuppliers(ctx)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("list suppliers: %v", err))
		return
	}
	byCode := make(map[string]internal.Supplier, len(existing))
	for _, sup := range existing {
		byCode[sup.Code] = sup
	}

	seen := map[string]struct{}{}
	for _, cfg := range configs {
		if cfg.Code == "" {
			summary.Errors = append(summary.Errors, fmt.Sprintf("supplier config without code (name=%q)", cfg.Name))
			continue
		}
		seen[cfg.Code] = struct{}{}

		current, ok := byCode[cfg.Code]
		switch {
		case !ok:
			if _, err := o.store.CreateSupplier(ctx, cfg); err != nil {
				summary.Errors = append(summary.Errors, fmt.Sprintf("create supplier %s: %v", cfg.Code, err))
				continue
			}
			summary.Created++
		case current.Name != cfg.Name || current.CategoryHint != cfg.CategoryHint || !current.Active:
			if err := o.store.UpdateSupplier(ctx, current.ID, cfg); err != nil {
				summary.Errors = append(summary.Errors, fmt.Sprintf("update supplier %s: %v", cfg.Code, err))
				continue
			}
			summary.Updated++
		}
	}

	for _, sup := range existing {
		if _, ok := seen[sup.Code]; ok || !sup.Active {
			continue
		}
		if err := o.store.DeactivateSupplier(ctx, sup.ID); err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("deactivate supplier %s: %v", sup.Code, err))
			continue
		}
		summary.Deactivated++
	}
}

// enqueueMatchTasks schedules one matching task per active supplier. A
// failed enqueue is tallied and the run continues with the next supplier.
func (o *Orchestrator) enqueueMatchTasks(ctx context.Context, summary *internal.RunSummary) {
	suppliers, err := o.store.ListActiveSuppliers(ctx)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("list active suppliers: %v", err))
		return
	}

	for _, sup := range suppliers {
		task, err := queue.NewTask(queue.KindMatchSupplier, queue.MatchSupplierPayload{SupplierID: sup.ID}, o.maxTries)
		if err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("build task for supplier %s: %v", sup.Code, err))
			continue
		}
		if err := o.enqueuer.Enqueue(ctx, task); err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("enqueue supplier %s: %v", sup.Code, err))
			continue
		}
		summary.Enqueued++
	}
}
