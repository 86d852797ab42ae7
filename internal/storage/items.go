package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Valecer/market-sub000/internal"
)

// claimQuery is the concurrency-safe batch claim: rows locked by another
// in-flight transaction are skipped, never awaited, so concurrent workers
// partition the unmatched set without duplicates.
const claimQuery = `
SELECT id, supplier_id, name, current_price, characteristics, product_id, match_status, match_score
FROM items
WHERE supplier_id = $1 AND match_status = 'unmatched'
ORDER BY id
LIMIT $2
FOR UPDATE SKIP LOCKED`

// ClaimUnmatchedBatch must run inside WithTx: the row locks hold until the
// surrounding transaction commits or rolls back. An item whose processing
// fails is simply not written, so the next claim sees it again.
func (s *Store) ClaimUnmatchedBatch(ctx context.Context, supplierID int64, limit int) ([]internal.Item, error) {
	rows, err := s.q.Query(ctx, claimQuery, supplierID, limit)
	if err != nil {
		return nil, fmt.Errorf("claim unmatched batch: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

func (s *Store) GetItem(ctx context.Context, id int64) (internal.Item, error) {
	row := s.q.QueryRow(ctx, `
SELECT id, supplier_id, name, current_price, characteristics, product_id, match_status, match_score
FROM items WHERE id = $1`, id)
	item, err := scanItem(row)
	if err != nil {
		return internal.Item{}, fmt.Errorf("get item %d: %w", id, err)
	}
	return item, nil
}

func (s *Store) InsertItems(ctx context.Context, supplierID int64, items []internal.Item) (int, error) {
	inserted := 0
	for _, item := range items {
		chars, _ := json.Marshal(item.Characteristics)
		_, err := s.q.Exec(ctx, `
INSERT INTO items (supplier_id, name, current_price, characteristics)
VALUES ($1, $2, $3, $4)
`, supplierID, item.Name, item.CurrentPrice, chars)
		if err != nil {
			return inserted, fmt.Errorf("insert item %q: %w", item.Name, err)
		}
		inserted++
	}
	return inserted, nil
}

// LinkItem is an idempotent upsert keyed by item id: re-applying the same
// link leaves the row unchanged.
func (s *Store) LinkItem(ctx context.Context, itemID, productID int64, status internal.MatchStatus, score *float64) error {
	_, err := s.q.Exec(ctx, `
UPDATE items SET product_id = $2, match_status = $3, match_score = $4, updated_at = now()
WHERE id = $1
`, itemID, productID, status, score)
	return err
}

func (s *Store) MarkPotential(ctx context.Context, itemID int64, score float64) error {
	_, err := s.q.Exec(ctx, `
UPDATE items SET match_status = $2, match_score = $3, updated_at = now()
WHERE id = $1
`, itemID, internal.MatchPotential, score)
	return err
}

func (s *Store) UnlinkItem(ctx context.Context, itemID int64) error {
	_, err := s.q.Exec(ctx, `
UPDATE items SET product_id = NULL, match_status = $2, match_score = NULL, updated_at = now()
WHERE id = $1
`, itemID, internal.MatchUnmatched)
	return err
}

func scanItems(rows pgx.Rows) ([]internal.Item, error) {
	var out []internal.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func scanItem(row pgx.Row) (internal.Item, error) {
	var item internal.Item
	var chars []byte
	if err := row.Scan(&item.ID, &item.SupplierID, &item.Name, &item.CurrentPrice,
		&chars, &item.ProductID, &item.MatchStatus, &item.MatchScore); err != nil {
		return internal.Item{}, err
	}
	if len(chars) > 0 {
		_ = json.Unmarshal(chars, &item.Characteristics)
	}
	return item, nil
}
