// Package review holds medium-confidence matches until a human decides.
// Entries leave pending exactly once; approved, rejected and expired are
// terminal. Entries are never deleted, they are the audit trail.
package review

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Valecer/market-sub000/internal"
)

type Store interface {
	CreateReviewEntry(ctx context.Context, entry internal.ReviewEntry) (internal.ReviewEntry, error)
	GetReviewEntry(ctx context.Context, id int64) (internal.ReviewEntry, error)
	// TransitionReviewEntry moves the entry to the given status only while it
	// is still pending and reports whether a row changed.
	TransitionReviewEntry(ctx context.Context, id int64, to internal.ReviewStatus, reviewedAt time.Time) (bool, error)
	ExpirePendingEntries(ctx context.Context, cutoff time.Time) (int64, error)
}

type Queue struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
	log   zerolog.Logger
}

func NewQueue(store Store, ttl time.Duration, log zerolog.Logger) *Queue {
	return &Queue{store: store, ttl: ttl, now: time.Now, log: log}
}

func (q *Queue) Create(ctx context.Context, itemID int64, candidates []internal.MatchCandidate) (internal.ReviewEntry, error) {
	entry := internal.ReviewEntry{
		ItemID:     itemID,
		Candidates: candidates,
		Status:     internal.ReviewPending,
		ExpiresAt:  q.now().Add(q.ttl),
	}
	created, err := q.store.CreateReviewEntry(ctx, entry)
	if err != nil {
		return internal.ReviewEntry{}, fmt.Errorf("create review entry for item %d: %w", itemID, err)
	}
	q.log.Info().
		Int64("entry_id", created.ID).
		Int64("item_id", itemID).
		Int("candidates", len(candidates)).
		Time("expires_at", created.ExpiresAt).
		Msg("review entry created")
	return created, nil
}

func (q *Queue) Approve(ctx context.Context, entryID int64) (internal.ReviewEntry, error) {
	return q.decide(ctx, entryID, internal.ReviewApproved)
}

func (q *Queue) Reject(ctx context.Context, entryID int64) (internal.ReviewEntry, error) {
	return q.decide(ctx, entryID, internal.ReviewRejected)
}

func (q *Queue) decide(ctx context.Context, entryID int64, to internal.ReviewStatus) (internal.ReviewEntry, error) {
	reviewedAt := q.now()
	moved, err := q.store.TransitionReviewEntry(ctx, entryID, to, reviewedAt)
	if err != nil {
		return internal.ReviewEntry{}, err
	}
	entry, err := q.store.GetReviewEntry(ctx, entryID)
	if err != nil {
		return internal.ReviewEntry{}, err
	}
	if !moved {
		return internal.ReviewEntry{}, fmt.Errorf("review entry %d is %s, only pending entries can transition", entryID, entry.Status)
	}
	return entry, nil
}

// Sweep expires every pending entry past its deadline. Terminal entries are
// excluded by the store query, so running the sweep twice is a no-op the
// second time.
func (q *Queue) Sweep(ctx context.Context) (int64, error) {
	expired, err := q.store.ExpirePendingEntries(ctx, q.now())
	if err != nil {
		return 0, fmt.Errorf("expire pending review entries: %w", err)
	}
	if expired > 0 {
		q.log.Info().Int64("expired", expired).Msg("review entries expired")
	}
	return expired, nil
}
