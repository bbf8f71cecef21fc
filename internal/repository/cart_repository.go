package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/go_marketplace/internal/domain"
)

func (r *Repository) GetCart(ctx context.Context, userID int64) (*domain.Cart, error) {
	var cart domain.Cart
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id = $1`, userID,
	).Scan(&cart.ID, &cart.UserID, &cart.CreatedAt, &cart.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query cart: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT ci.id, ci.product_id, p.name, p.price, ci.quantity, ci.added_at
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.added_at, ci.id`, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("query cart items: %w", err)
	}
	defer rows.Close()

	cart.Items = []domain.CartItem{}
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(
			&item.ID,
			&item.ProductID,
			&item.ProductName,
			&item.UnitPrice,
			&item.Quantity,
			&item.AddedAt,
		); err != nil {
			return nil, fmt.Errorf("scan cart item row: %w", err)
		}
		cart.Items = append(cart.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return &cart, nil
}

// AddItem creates the cart on first use and merges quantities for a product already in it.
// The merged quantity is checked against stock while the product row is share-locked.
func (r *Repository) AddItem(ctx context.Context, userID, productID int64, quantity int) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		stock, err := lockProductForCart(ctx, tx, productID)
		if err != nil {
			return err
		}

		var cartID int64
		err = tx.QueryRowContext(ctx, `
			INSERT INTO carts (user_id) VALUES ($1)
			ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
			RETURNING id`, userID).Scan(&cartID)
		if err != nil {
			return fmt.Errorf("upsert cart: %w", err)
		}

		var existing int
		err = tx.QueryRowContext(ctx,
			`SELECT quantity FROM cart_items WHERE cart_id = $1 AND product_id = $2`,
			cartID, productID).Scan(&existing)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("query cart item: %w", err)
		}

		if existing+quantity > stock {
			return ErrInsufficientStock
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO cart_items (cart_id, product_id, quantity) VALUES ($1, $2, $3)
			ON CONFLICT (cart_id, product_id) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`,
			cartID, productID, quantity)
		if err != nil {
			return fmt.Errorf("upsert cart item: %w", err)
		}
		return nil
	})
}

func lockProductForCart(ctx context.Context, tx *sql.Tx, productID int64) (int, error) {
	var stock int
	var active bool
	err := tx.QueryRowContext(ctx,
		`SELECT stock, is_active FROM products WHERE id = $1 FOR SHARE`, productID,
	).Scan(&stock, &active)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !active) {
		return 0, ErrProductNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("query product stock: %w", err)
	}
	return stock, nil
}

func (r *Repository) UpdateItemQuantity(ctx context.Context, userID, itemID int64, quantity int) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var productID int64
		err := tx.QueryRowContext(ctx, `
			SELECT ci.product_id
			FROM cart_items ci
			JOIN carts c ON c.id = ci.cart_id
			WHERE ci.id = $1 AND c.user_id = $2
			FOR UPDATE OF ci`, itemID, userID).Scan(&productID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrItemNotFound
		}
		if err != nil {
			return fmt.Errorf("query cart item: %w", err)
		}

		stock, err := lockProductForCart(ctx, tx, productID)
		if err != nil {
			return err
		}
		if quantity > stock {
			return ErrInsufficientStock
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE cart_items SET quantity = $2 WHERE id = $1`, itemID, quantity); err != nil {
			return fmt.Errorf("update cart item: %w", err)
		}
		return touchCart(ctx, tx, userID)
	})
}

func (r *Repository) RemoveItem(ctx context.Context, userID, itemID int64) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items ci
		USING carts c
		WHERE ci.cart_id = c.id AND ci.id = $1 AND c.user_id = $2`, itemID, userID)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *Repository) ClearCart(ctx context.Context, userID int64) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var cartID int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM carts WHERE user_id = $1`, userID).Scan(&cartID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrCartNotFound
		}
		if err != nil {
			return fmt.Errorf("query cart: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
			return fmt.Errorf("delete cart items: %w", err)
		}
		return touchCart(ctx, tx, userID)
	})
}

func touchCart(ctx context.Context, tx *sql.Tx, userID int64) error {
	if _, err := tx.ExecContext(ctx, `UPDATE carts SET updated_at = NOW() WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("touch cart: %w", err)
	}
	return nil
}
