package match

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Valecer/market-sub000/internal"
)

type fakeItemStore struct {
	items    map[int64]internal.Item
	drafts   []internal.Product
	nextID   int64
	linked   map[int64]int64
	statuses map[int64]internal.MatchStatus
}

func newFakeItemStore() *fakeItemStore {
	return &fakeItemStore{
		items:    map[int64]internal.Item{},
		nextID:   1000,
		linked:   map[int64]int64{},
		statuses: map[int64]internal.MatchStatus{},
	}
}

func (f *fakeItemStore) GetItem(_ context.Context, id int64) (internal.Item, error) {
	return f.items[id], nil
}

func (f *fakeItemStore) LinkItem(_ context.Context, itemID, productID int64, status internal.MatchStatus, _ *float64) error {
	f.linked[itemID] = productID
	f.statuses[itemID] = status
	return nil
}

func (f *fakeItemStore) MarkPotential(_ context.Context, itemID int64, _ float64) error {
	f.statuses[itemID] = internal.MatchPotential
	return nil
}

func (f *fakeItemStore) UnlinkItem(_ context.Context, itemID int64) error {
	delete(f.linked, itemID)
	f.statuses[itemID] = internal.MatchUnmatched
	return nil
}

func (f *fakeItemStore) CreateDraftProduct(_ context.Context, name string) (internal.Product, error) {
	f.nextID++
	p := internal.Product{ID: f.nextID, Name: name, Status: internal.ProductDraft}
	f.drafts = append(f.drafts, p)
	return p, nil
}

type fakeReviewQueue struct {
	entries map[int64]internal.ReviewEntry
	nextID  int64
}

func newFakeReviewQueue() *fakeReviewQueue {
	return &fakeReviewQueue{entries: map[int64]internal.ReviewEntry{}}
}

func (f *fakeReviewQueue) Create(_ context.Context, itemID int64, candidates []internal.MatchCandidate) (internal.ReviewEntry, error) {
	f.nextID++
	entry := internal.ReviewEntry{ID: f.nextID, ItemID: itemID, Candidates: candidates, Status: internal.ReviewPending}
	f.entries[entry.ID] = entry
	return entry, nil
}

func (f *fakeReviewQueue) Approve(_ context.Context, entryID int64) (internal.ReviewEntry, error) {
	entry := f.entries[entryID]
	entry.Status = internal.ReviewApproved
	f.entries[entryID] = entry
	return entry, nil
}

func (f *fakeReviewQueue) Reject(_ context.Context, entryID int64) (internal.ReviewEntry, error) {
	entry := f.entries[entryID]
	entry.Status = internal.ReviewRejected
	f.entries[entryID] = entry
	return entry, nil
}

func result(status internal.MatchStatus, candidates ...internal.MatchCandidate) internal.MatchResult {
	res := internal.MatchResult{ItemID: 1, Status: status, Candidates: candidates}
	if len(candidates) > 0 {
		res.Best = &candidates[0]
		res.Score = &candidates[0].Score
	}
	return res
}

func TestApplyAutoMatchLinksItem(t *testing.T) {
	store := newFakeItemStore()
	reviews := newFakeReviewQueue()
	engine := NewEngine(store, reviews, 70, zerolog.Nop())
	item := internal.Item{ID: 1, Name: "Samsung Galaxy A54"}

	decision, err := engine.Apply(context.Background(), item,
		result(internal.MatchAuto, internal.MatchCandidate{ProductID: 42, Score: 97}))

	require.NoError(t, err)
	assert.Equal(t, internal.DecisionAuto, decision)
	assert.Equal(t, int64(42), store.linked[1])
	assert.Equal(t, internal.MatchAuto, store.statuses[1])
	assert.Empty(t, reviews.entries, "auto match must not open a review")
}

func TestApplyPotentialMatchOpensReview(t *testing.T) {
	store := newFakeItemStore()
	reviews := newFakeReviewQueue()
	engine := NewEngine(store, reviews, 70, zerolog.Nop())
	item := internal.Item{ID: 1, Name: "Samsung Galaxy A54"}

	decision, err := engine.Apply(context.Background(), item,
		result(internal.MatchPotential,
			internal.MatchCandidate{ProductID: 42, Score: 85},
			internal.MatchCandidate{ProductID: 43, Score: 72}))

	require.NoError(t, err)
	assert.Equal(t, internal.DecisionReview, decision)
	assert.Len(t, reviews.entries, 1)
	assert.Equal(t, internal.MatchPotential, store.statuses[1])
	assert.NotContains(t, store.linked, int64(1), "review must not link the item yet")
}

func TestApplyLowConfidenceRejected(t *testing.T) {
	store := newFakeItemStore()
	reviews := newFakeReviewQueue()
	engine := NewEngine(store, reviews, 70, zerolog.Nop())
	item := internal.Item{ID: 1, Name: "Concrete Mixer"}

	decision, err := engine.Apply(context.Background(), item,
		result(internal.MatchUnmatched, internal.MatchCandidate{ProductID: 42, Score: 30}))

	require.NoError(t, err)
	assert.Equal(t, internal.DecisionRejected, decision)
	assert.NotContains(t, store.linked, int64(1))
	assert.Empty(t, reviews.entries)
}

func TestApplyNoCandidates(t *testing.T) {
	store := newFakeItemStore()
	engine := NewEngine(store, newFakeReviewQueue(), 70, zerolog.Nop())
	item := internal.Item{ID: 1, Name: "Concrete Mixer"}

	decision, err := engine.Apply(context.Background(), item, result(internal.MatchUnmatched))

	require.NoError(t, err)
	assert.Equal(t, internal.DecisionNoMatch, decision)
}

func TestApplySkipsVerifiedItem(t *testing.T) {
	store := newFakeItemStore()
	engine := NewEngine(store, newFakeReviewQueue(), 70, zerolog.Nop())
	item := internal.Item{ID: 1, Name: "Samsung Galaxy A54", MatchStatus: internal.MatchVerified}

	decision, err := engine.Apply(context.Background(), item,
		result(internal.MatchAuto, internal.MatchCandidate{ProductID: 42, Score: 99}))

	require.NoError(t, err)
	assert.Equal(t, internal.DecisionNoMatch, decision)
	assert.NotContains(t, store.linked, int64(1), "verified items must never be re-linked")
}

func TestApproveMatchDefaultsToBestCandidate(t *testing.T) {
	store := newFakeItemStore()
	reviews := newFakeReviewQueue()
	engine := NewEngine(store, reviews, 70, zerolog.Nop())

	entry, err := reviews.Create(context.Background(), 1, []internal.MatchCandidate{
		{ProductID: 42, Score: 85},
		{ProductID: 43, Score: 72},
	})
	require.NoError(t, err)

	require.NoError(t, engine.ApproveMatch(context.Background(), entry.ID, 0))
	assert.Equal(t, int64(42), store.linked[1])
	assert.Equal(t, internal.MatchVerified, store.statuses[1])
}

func TestApproveMatchHonorsExplicitProduct(t *testing.T) {
	store := newFakeItemStore()
	reviews := newFakeReviewQueue()
	engine := NewEngine(store, reviews, 70, zerolog.Nop())

	entry, err := reviews.Create(context.Background(), 1, []internal.MatchCandidate{
		{ProductID: 42, Score: 85},
		{ProductID: 43, Score: 72},
	})
	require.NoError(t, err)

	require.NoError(t, engine.ApproveMatch(context.Background(), entry.ID, 43))
	assert.Equal(t, int64(43), store.linked[1])
}

func TestRejectMatchCreatesDraftProduct(t *testing.T) {
	store := newFakeItemStore()
	reviews := newFakeReviewQueue()
	engine := NewEngine(store, reviews, 70, zerolog.Nop())
	store.items[1] = internal.Item{ID: 1, Name: "Samsung Galaxy A54 Special Edition"}

	entry, err := reviews.Create(context.Background(), 1, []internal.MatchCandidate{{ProductID: 42, Score: 85}})
	require.NoError(t, err)

	require.NoError(t, engine.RejectMatch(context.Background(), entry.ID))
	require.Len(t, store.drafts, 1)
	assert.Equal(t, "Samsung Galaxy A54 Special Edition", store.drafts[0].Name)
	assert.Equal(t, store.drafts[0].ID, store.linked[1], "item must link to the new draft")
	assert.Equal(t, internal.MatchVerified, store.statuses[1])
}

func TestLinkAndUnlink(t *testing.T) {
	store := newFakeItemStore()
	engine := NewEngine(store, newFakeReviewQueue(), 70, zerolog.Nop())

	require.NoError(t, engine.Link(context.Background(), 1, 42))
	assert.Equal(t, internal.MatchVerified, store.statuses[1])

	require.NoError(t, engine.Unlink(context.Background(), 1))
	assert.Equal(t, internal.MatchUnmatched, store.statuses[1])
	assert.NotContains(t, store.linked, int64(1))
}
