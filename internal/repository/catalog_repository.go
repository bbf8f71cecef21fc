package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/go_marketplace/internal/domain"
)

const productColumns = `p.id, p.store_id, s.name, p.category_id, COALESCE(c.name, ''), p.name, p.description,
	p.price, p.stock, p.is_active, p.image, p.created_at, p.updated_at
	FROM products p
	JOIN stores s ON s.id = p.store_id
	LEFT JOIN categories c ON c.id = p.category_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	var categoryID sql.NullInt64
	if err := row.Scan(
		&p.ID,
		&p.StoreID,
		&p.StoreName,
		&categoryID,
		&p.CategoryName,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.Stock,
		&p.IsActive,
		&p.Image,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if categoryID.Valid {
		p.CategoryID = &categoryID.Int64
	}
	return &p, nil
}

func (r *Repository) queryProducts(ctx context.Context, query string, args ...any) ([]*domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return products, nil
}

func (r *Repository) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error) {
	conds := []string{"p.is_active"}
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.CategoryID != nil {
		conds = append(conds, "p.category_id = "+arg(*filter.CategoryID))
	}
	if filter.StoreID != nil {
		conds = append(conds, "p.store_id = "+arg(*filter.StoreID))
	}
	if filter.MinPrice != nil {
		conds = append(conds, "p.price >= "+arg(*filter.MinPrice))
	}
	if filter.MaxPrice != nil {
		conds = append(conds, "p.price <= "+arg(*filter.MaxPrice))
	}

	query := "SELECT " + productColumns + " WHERE " + strings.Join(conds, " AND ") + " ORDER BY " + orderBy(filter.Sort)
	return r.queryProducts(ctx, query, args...)
}

func orderBy(sort domain.ProductSort) string {
	switch sort {
	case domain.SortPriceLow:
		return "p.price ASC, p.id ASC"
	case domain.SortPriceHigh:
		return "p.price DESC, p.id ASC"
	case domain.SortName:
		return "p.name ASC, p.id ASC"
	default:
		return "p.created_at DESC, p.id DESC"
	}
}

func (r *Repository) SearchProducts(ctx context.Context, q string) ([]*domain.Product, error) {
	query := "SELECT " + productColumns + `
	WHERE p.is_active AND (
		p.name ILIKE '%' || $1 || '%' ESCAPE '\'
		OR p.description ILIKE '%' || $1 || '%' ESCAPE '\'
		OR c.name ILIKE '%' || $1 || '%' ESCAPE '\'
	)
	ORDER BY p.created_at DESC, p.id DESC`
	return r.queryProducts(ctx, query, escapeLike(q))
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// GetProduct returns the product regardless of its active flag.
func (r *Repository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+productColumns+" WHERE p.id = $1", id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product by id: %w", err)
	}
	return p, nil
}

func (r *Repository) CreateProduct(ctx context.Context, p *domain.Product) error {
	query := `INSERT INTO products (store_id, category_id, name, description, price, stock, is_active, image)
	          VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7)
	          RETURNING id, is_active, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		p.StoreID,
		p.CategoryID,
		p.Name,
		p.Description,
		p.Price,
		p.Stock,
		p.Image,
	).Scan(&p.ID, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrCategoryNotFound
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *Repository) UpdateProduct(ctx context.Context, p *domain.Product) error {
	query := `UPDATE products
	          SET category_id = $2, name = $3, description = $4, price = $5, stock = $6, image = $7, updated_at = NOW()
	          WHERE id = $1
	          RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query,
		p.ID,
		p.CategoryID,
		p.Name,
		p.Description,
		p.Price,
		p.Stock,
		p.Image,
	).Scan(&p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrProductNotFound
	}
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrCategoryNotFound
		}
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

func (r *Repository) DeactivateProduct(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE products SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate product: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *Repository) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var categories []*domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category row: %w", err)
		}
		categories = append(categories, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return categories, nil
}

// CreateCategory is used by seeding and tests; categories have no API write path.
func (r *Repository) CreateCategory(ctx context.Context, c *domain.Category) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO categories (name, description) VALUES ($1, $2) RETURNING id, created_at`,
		c.Name, c.Description,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}
