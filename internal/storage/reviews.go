package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Valecer/market-sub000/internal"
)

func (s *Store) CreateReviewEntry(ctx context.Context, entry internal.ReviewEntry) (internal.ReviewEntry, error) {
	candidates, err := json.Marshal(entry.Candidates)
	if err != nil {
		return internal.ReviewEntry{}, fmt.Errorf("marshal candidates: %w", err)
	}
	err = s.q.QueryRow(ctx, `
INSERT INTO review_entries (item_id, candidates, status, expires_at)
VALUES ($1, $2, $3, $4)
RETURNING id
`, entry.ItemID, candidates, entry.Status, entry.ExpiresAt).Scan(&entry.ID)
	if err != nil {
		return internal.ReviewEntry{}, err
	}
	return entry, nil
}

func (s *Store) GetReviewEntry(ctx context.Context, id int64) (internal.ReviewEntry, error) {
	var entry internal.ReviewEntry
	var candidates []byte
	err := s.q.QueryRow(ctx, `
SELECT id, item_id, candidates, status, expires_at, reviewed_at
FROM review_entries WHERE id = $1
`, id).Scan(&entry.ID, &entry.ItemID, &candidates, &entry.Status, &entry.ExpiresAt, &entry.ReviewedAt)
	if err != nil {
		return internal.ReviewEntry{}, fmt.Errorf("get review entry %d: %w", id, err)
	}
	_ = json.Unmarshal(candidates, &entry.Candidates)
	return entry, nil
}

// TransitionReviewEntry guards the state machine in SQL: only a pending row
// moves, terminal rows match zero rows and stay as they are.
func (s *Store) TransitionReviewEntry(ctx context.Context, id int64, to internal.ReviewStatus, reviewedAt time.Time) (bool, error) {
	tag, err := s.q.Exec(ctx, `
UPDATE review_entries SET status = $2, reviewed_at = $3
WHERE id = $1 AND status = $4
`, id, to, reviewedAt, internal.ReviewPending)
	if err != nil {
		return false, fmt.Errorf("transition review entry %d: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) ExpirePendingEntries(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.q.Exec(ctx, `
UPDATE review_entries SET status = $1
WHERE status = $2 AND expires_at <= $3
`, internal.ReviewExpired, internal.ReviewPending, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) ListReviewEntries(ctx context.Context, status internal.ReviewStatus, limit int) ([]internal.ReviewEntry, error) {
	rows, err := s.q.Query(ctx, `
SELECT id, item_id, candidates, status, expires_at, reviewed_at
FROM review_entries WHERE status = $1 ORDER BY id LIMIT $2
`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ReviewEntry
	for rows.Next() {
		var entry internal.ReviewEntry
		var candidates []byte
		if err := rows.Scan(&entry.ID, &entry.ItemID, &candidates, &entry.Status, &entry.ExpiresAt, &entry.ReviewedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(candidates, &entry.Candidates)
		out = append(out, entry)
	}
	return out, rows.Err()
}
