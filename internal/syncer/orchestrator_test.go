package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Valecer/market-sub000/internal"
)

type fakeLock struct {
	held      bool
	holder    string
	acquired  int
	released  int
	acquireBy string
}

func (f *fakeLock) Acquire(_ context.Context, holderID string) (bool, string, error) {
	f.acquired++
	if f.held {
		return false, f.holder, nil
	}
	f.held = true
	f.acquireBy = holderID
	return true, "", nil
}

func (f *fakeLock) Release(_ context.Context, holderID string) error {
	if f.held && f.acquireBy == holderID {
		f.held = false
		f.released++
	}
	return nil
}

type fakeProvider struct {
	configs []internal.SupplierConfig
	err     error
}

func (f *fakeProvider) FetchSupplierConfigs(context.Context) ([]internal.SupplierConfig, error) {
	return f.configs, f.err
}

type fakeSupplierStore struct {
	suppliers   []internal.Supplier
	nextID      int64
	createErr   error
	updated     []int64
	deactivated []int64
}

func (f *fakeSupplierStore) ListSuppliers(context.Context) ([]internal.Supplier, error) {
	return f.suppliers, nil
}

func (f *fakeSupplierStore) ListActiveSuppliers(context.Context) ([]internal.Supplier, error) {
	var out []internal.Supplier
	for _, s := range f.suppliers {
		if s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSupplierStore) CreateSupplier(_ context.Context, cfg internal.SupplierConfig) (internal.Supplier, error) {
	if f.createErr != nil {
		return internal.Supplier{}, f.createErr
	}
	f.nextID++
	sup := internal.Supplier{ID: f.nextID, Code: cfg.Code, Name: cfg.Name, CategoryHint: cfg.CategoryHint, Active: true}
	f.suppliers = append(f.suppliers, sup)
	return sup, nil
}

func (f *fakeSupplierStore) UpdateSupplier(_ context.Context, id int64, cfg internal.SupplierConfig) error {
	f.updated = append(f.updated, id)
	for i := range f.suppliers {
		if f.suppliers[i].ID == id {
			f.suppliers[i].Name = cfg.Name
			f.suppliers[i].CategoryHint = cfg.CategoryHint
			f.suppliers[i].Active = true
		}
	}
	return nil
}

func (f *fakeSupplierStore) DeactivateSupplier(_ context.Context, id int64) error {
	f.deactivated = append(f.deactivated, id)
	for i := range f.suppliers {
		if f.suppliers[i].ID == id {
			f.suppliers[i].Active = false
		}
	}
	return nil
}

type fakeEnqueuer struct {
	tasks   []internal.Task
	failFor map[int64]bool
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, task internal.Task) error {
	var payload struct {
		SupplierID int64 `json:"supplierId"`
	}
	_ = json.Unmarshal(task.Payload, &payload)
	if f.failFor[payload.SupplierID] {
		return errors.New("redis unavailable")
	}
	f.tasks = append(f.tasks, task)
	return nil
}

type fakeStatus struct {
	phases  []string
	cleared int
}

func (f *fakeStatus) SetPhase(_ context.Context, _, phase string) error {
	f.phases = append(f.phases, phase)
	return nil
}

func (f *fakeStatus) Clear(context.Context, string) error {
	f.cleared++
	return nil
}

func newTestOrchestrator(lock *fakeLock, provider *fakeProvider, store *fakeSupplierStore, enq *fakeEnqueuer, status *fakeStatus) *Orchestrator {
	return NewOrchestrator(lock, provider, store, enq, status, 3, zerolog.Nop())
}

func TestRunHappyPath(t *testing.T) {
	lock := &fakeLock{}
	store := &fakeSupplierStore{
		nextID: 2,
		suppliers: []internal.Supplier{
			{ID: 1, Code: "acme", Name: "Acme", Active: true},
			{ID: 2, Code: "gone", Name: "Gone Wholesale", Active: true},
		},
	}
	provider := &fakeProvider{configs: []internal.SupplierConfig{
		{Code: "acme", Name: "Acme Renamed"},
		{Code: "fresh", Name: "Fresh Trade", CategoryHint: "smartphones"},
	}}
	enq := &fakeEnqueuer{}
	status := &fakeStatus{}

	summary, err := newTestOrchestrator(lock, provider, store, enq, status).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, internal.RunSuccess, summary.Status)
	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, summary.Deactivated)
	assert.Equal(t, 2, summary.Enqueued, "one task per active supplier after reconcile")
	assert.Empty(t, summary.Errors)

	assert.False(t, lock.held, "lock must be released after the run")
	assert.Equal(t, 1, lock.released)
	assert.Equal(t, 1, status.cleared, "in-progress flag must be reset")
	assert.Equal(t, []string{"reconcile_suppliers", "enqueue_tasks", "finalize"}, status.phases)
}

func TestRunAbortsWhenLockHeld(t *testing.T) {
	lock := &fakeLock{held: true, holder: "other-run"}
	enq := &fakeEnqueuer{}

	_, err := newTestOrchestrator(lock, &fakeProvider{}, &fakeSupplierStore{}, enq, &fakeStatus{}).Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "other-run")
	assert.Empty(t, enq.tasks, "a concurrent run must not enqueue anything")
}

func TestRunProviderFailureIsErrorStatusAndReleasesLock(t *testing.T) {
	lock := &fakeLock{}
	provider := &fakeProvider{err: errors.New("sheets quota exceeded")}
	status := &fakeStatus{}

	summary, err := newTestOrchestrator(lock, provider, &fakeSupplierStore{}, &fakeEnqueuer{}, status).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, internal.RunError, summary.Status)
	assert.NotEmpty(t, summary.Errors)
	assert.False(t, lock.held, "lock released even when the run made no progress")
	assert.Equal(t, 1, status.cleared)
}

func TestRunPartialSuccessOnEnqueueFailure(t *testing.T) {
	lock := &fakeLock{}
	store := &fakeSupplierStore{
		nextID: 2,
		suppliers: []internal.Supplier{
			{ID: 1, Code: "acme", Name: "Acme", Active: true},
			{ID: 2, Code: "beta", Name: "Beta", Active: true},
		},
	}
	provider := &fakeProvider{configs: []internal.SupplierConfig{
		{Code: "acme", Name: "Acme"},
		{Code: "beta", Name: "Beta"},
	}}
	enq := &fakeEnqueuer{failFor: map[int64]bool{2: true}}

	summary, err := newTestOrchestrator(lock, provider, store, enq, &fakeStatus{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, internal.RunPartialSuccess, summary.Status)
	assert.Equal(t, 1, summary.Enqueued)
	assert.Equal(t, 1, summary.Failed)
	assert.Len(t, summary.Errors, 1)
	assert.False(t, lock.held)
}

func TestRunSkipsConfigWithoutCode(t *testing.T) {
	lock := &fakeLock{}
	provider := &fakeProvider{configs: []internal.SupplierConfig{
		{Code: "", Name: "Nameless"},
		{Code: "acme", Name: "Acme"},
	}}
	store := &fakeSupplierStore{}

	summary, err := newTestOrchestrator(lock, provider, store, &fakeEnqueuer{}, &fakeStatus{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Created)
	assert.Len(t, summary.Errors, 1)
	assert.Equal(t, internal.RunPartialSuccess, summary.Status)
}

func TestRunUnchangedSupplierNotCountedAsUpdate(t *testing.T) {
	lock := &fakeLock{}
	store := &fakeSupplierStore{
		nextID:    1,
		suppliers: []internal.Supplier{{ID: 1, Code: "acme", Name: "Acme", CategoryHint: "laptops", Active: true}},
	}
	provider := &fakeProvider{configs: []internal.SupplierConfig{
		{Code: "acme", Name: "Acme", CategoryHint: "laptops"},
	}}

	summary, err := newTestOrchestrator(lock, provider, store, &fakeEnqueuer{}, &fakeStatus{}).Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, summary.Updated)
	assert.Empty(t, store.updated)
	assert.Equal(t, internal.RunSuccess, summary.Status)
}
