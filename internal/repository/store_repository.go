package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/go_marketplace/internal/domain"
)

const storeColumns = `id, owner_id, name, description, address, phone, email, logo, is_verified, created_at, updated_at`

func scanStore(row rowScanner) (*domain.Store, error) {
	var s domain.Store
	err := row.Scan(
		&s.ID,
		&s.OwnerID,
		&s.Name,
		&s.Description,
		&s.Address,
		&s.Phone,
		&s.Email,
		&s.Logo,
		&s.IsVerified,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repository) ListStores(ctx context.Context) ([]*domain.Store, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+storeColumns+" FROM stores ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("query stores: %w", err)
	}
	defer rows.Close()

	var stores []*domain.Store
	for rows.Next() {
		s, err := scanStore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan store row: %w", err)
		}
		stores = append(stores, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return stores, nil
}

func (r *Repository) GetStore(ctx context.Context, id int64) (*domain.Store, error) {
	return r.getStore(ctx, "SELECT "+storeColumns+" FROM stores WHERE id = $1", id)
}

func (r *Repository) GetStoreByOwner(ctx context.Context, ownerID int64) (*domain.Store, error) {
	return r.getStore(ctx, "SELECT "+storeColumns+" FROM stores WHERE owner_id = $1", ownerID)
}

func (r *Repository) getStore(ctx context.Context, query string, arg int64) (*domain.Store, error) {
	s, err := scanStore(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStoreNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query store: %w", err)
	}
	return s, nil
}

func (r *Repository) CreateStore(ctx context.Context, s *domain.Store) error {
	query := `INSERT INTO stores (owner_id, name, description, address, phone, email, logo)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          RETURNING id, is_verified, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		s.OwnerID,
		s.Name,
		s.Description,
		s.Address,
		s.Phone,
		s.Email,
		s.Logo,
	).Scan(&s.ID, &s.IsVerified, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateStore
		}
		return fmt.Errorf("insert store: %w", err)
	}
	return nil
}

func (r *Repository) UpdateStore(ctx context.Context, s *domain.Store) error {
	query := `UPDATE stores
	          SET name = $2, description = $3, address = $4, phone = $5, email = $6, logo = $7, updated_at = NOW()
	          WHERE id = $1
	          RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query,
		s.ID,
		s.Name,
		s.Description,
		s.Address,
		s.Phone,
		s.Email,
		s.Logo,
	).Scan(&s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrStoreNotFound
	}
	if err != nil {
		return fmt.Errorf("update store: %w", err)
	}
	return nil
}

// StoreStats counts the store's active products and the orders touching it, per status.
func (r *Repository) StoreStats(ctx context.Context, storeID int64) (int, map[domain.OrderStatus]int, error) {
	var products int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products WHERE store_id = $1 AND is_active`, storeID).Scan(&products)
	if err != nil {
		return 0, nil, fmt.Errorf("count products: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT o.status, COUNT(DISTINCT o.id)
		FROM orders o
		JOIN order_items oi ON oi.order_id = o.id
		WHERE oi.store_id = $1
		GROUP BY o.status`, storeID)
	if err != nil {
		return 0, nil, fmt.Errorf("count orders by status: %w", err)
	}
	defer rows.Close()

	byStatus := make(map[domain.OrderStatus]int, len(domain.OrderStatuses))
	for _, s := range domain.OrderStatuses {
		byStatus[s] = 0
	}
	for rows.Next() {
		var status domain.OrderStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return 0, nil, fmt.Errorf("scan status count: %w", err)
		}
		byStatus[status] = n
	}

	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("row iteration error: %w", err)
	}
	return products, byStatus, nil
}
