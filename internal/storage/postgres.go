package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Valecer/market-sub000/internal"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so every Store
// method works inside or outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *pgxpool.Pool
	q    querier
}

func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool, q: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// WithTx runs fn against a transactional view of the store; all writes
// commit together or not at all.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&Store{pool: s.pool, q: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) InitSchema(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS suppliers (
  id BIGSERIAL PRIMARY KEY,
  code TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  category_hint TEXT NOT NULL DEFAULT '',
  active BOOLEAN NOT NULL DEFAULT TRUE,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS categories (
  id BIGSERIAL PRIMARY KEY,
  key TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS products (
  id BIGSERIAL PRIMARY KEY,
  internal_sku TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  category_id BIGINT REFERENCES categories(id),
  status TEXT NOT NULL DEFAULT 'active',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_products_category ON products(category_id);

CREATE TABLE IF NOT EXISTS items (
  id BIGSERIAL PRIMARY KEY,
  supplier_id BIGINT NOT NULL REFERENCES suppliers(id),
  name TEXT NOT NULL,
  current_price NUMERIC(12,2) NOT NULL DEFAULT 0,
  characteristics JSONB NOT NULL DEFAULT '{}',
  product_id BIGINT REFERENCES products(id),
  match_status TEXT NOT NULL DEFAULT 'unmatched',
  match_score DOUBLE PRECISION,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_items_claim ON items(supplier_id, match_status);

CREATE TABLE IF NOT EXISTS review_entries (
  id BIGSERIAL PRIMARY KEY,
  item_id BIGINT NOT NULL REFERENCES items(id),
  candidates JSONB NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  expires_at TIMESTAMPTZ NOT NULL,
  reviewed_at TIMESTAMPTZ,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_review_entries_sweep ON review_entries(status, expires_at);
`
	if _, err := s.q.Exec(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *Store) ListSuppliers(ctx context.Context) ([]internal.Supplier, error) {
	rows, err := s.q.Query(ctx, `SELECT id, code, name, category_hint, active FROM suppliers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.Supplier
	for rows.Next() {
		var sup internal.Supplier
		if err := rows.Scan(&sup.ID, &sup.Code, &sup.Name, &sup.CategoryHint, &sup.Active); err != nil {
			return nil, err
		}
		out = append(out, sup)
	}
	return out, rows.Err()
}

func (s *Store) ListActiveSuppliers(ctx context.Context) ([]internal.Supplier, error) {
	rows, err := s.q.Query(ctx, `SELECT id, code, name, category_hint, active FROM suppliers WHERE active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.Supplier
	for rows.Next() {
		var sup internal.Supplier
		if err := rows.Scan(&sup.ID, &sup.Code, &sup.Name, &sup.CategoryHint, &sup.Active); err != nil {
			return nil, err
		}
		out = append(out, sup)
	}
	return out, rows.Err()
}

func (s *Store) GetSupplier(ctx context.Context, id int64) (internal.Supplier, error) {
	var sup internal.Supplier
	err := s.q.QueryRow(ctx,
		`SELECT id, code, name, category_hint, active FROM suppliers WHERE id = $1`, id,
	).Scan(&sup.ID, &sup.Code, &sup.Name, &sup.CategoryHint, &sup.Active)
	if err != nil {
		return internal.Supplier{}, fmt.Errorf("get supplier %d: %w", id, err)
	}
	return sup, nil
}

func (s *Store) GetSupplierByCode(ctx context.Context, code string) (*internal.Supplier, error) {
	var sup internal.Supplier
	err := s.q.QueryRow(ctx,
		`SELECT id, code, name, category_hint, active FROM suppliers WHERE code = $1`, code,
	).Scan(&sup.ID, &sup.Code, &sup.Name, &sup.CategoryHint, &sup.Active)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sup, nil
}

func (s *Store) CreateSupplier(ctx context.Context, cfg internal.SupplierConfig) (internal.Supplier, error) {
	var sup internal.Supplier
	err := s.q.QueryRow(ctx, `
INSERT INTO suppliers (code, name, category_hint, active)
VALUES ($1, $2, $3, TRUE)
RETURNING id, code, name, category_hint, active
`, cfg.Code, cfg.Name, cfg.CategoryHint).Scan(&sup.ID, &sup.Code, &sup.Name, &sup.CategoryHint, &sup.Active)
	if err != nil {
		return internal.Supplier{}, fmt.Errorf("create supplier %s: %w", cfg.Code, err)
	}
	return sup, nil
}

func (s *Store) UpdateSupplier(ctx context.Context, id int64, cfg internal.SupplierConfig) error {
	_, err := s.q.Exec(ctx, `
UPDATE suppliers SET name = $2, category_hint = $3, active = TRUE, updated_at = now()
WHERE id = $1
`, id, cfg.Name, cfg.CategoryHint)
	return err
}

// DeactivateSupplier soft-deletes: the row stays, only the flag flips.
func (s *Store) DeactivateSupplier(ctx context.Context, id int64) error {
	_, err := s.q.Exec(ctx, `UPDATE suppliers SET active = FALSE, updated_at = now() WHERE id = $1`, id)
	return err
}

func (s *Store) ListActiveProducts(ctx context.Context) ([]internal.Product, error) {
	rows, err := s.q.Query(ctx,
		`SELECT id, internal_sku, name, category_id, status FROM products WHERE status = 'active' ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.Product
	for rows.Next() {
		var p internal.Product
		if err := rows.Scan(&p.ID, &p.InternalSKU, &p.Name, &p.CategoryID, &p.Status); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) CreateDraftProduct(ctx context.Context, name string) (internal.Product, error) {
	sku := "DRAFT-" + uuid.NewString()[:8]
	var p internal.Product
	err := s.q.QueryRow(ctx, `
INSERT INTO products (internal_sku, name, status)
VALUES ($1, $2, 'draft')
RETURNING id, internal_sku, name, category_id, status
`, sku, name).Scan(&p.ID, &p.InternalSKU, &p.Name, &p.CategoryID, &p.Status)
	if err != nil {
		return internal.Product{}, fmt.Errorf("create draft product: %w", err)
	}
	return p, nil
}

// CategoryKeyByID returns the categoryId -> categoryKey mapping consumed by
// candidate blocking.
func (s *Store) CategoryKeyByID(ctx context.Context) (map[int64]string, error) {
	rows, err := s.q.Query(ctx, `SELECT id, key FROM categories`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[int64]string{}
	for rows.Next() {
		var id int64
		var key string
		if err := rows.Scan(&id, &key); err != nil {
			return nil, err
		}
		out[id] = key
	}
	return out, rows.Err()
}
