package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/go_marketplace/internal/domain"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const orderColumns = `id, customer_id, order_number, status, total_amount, shipping_address, payment_status,
	payment_reference, idempotency_key, created_at, updated_at FROM orders`

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	var key sql.NullString
	if err := row.Scan(
		&o.ID,
		&o.CustomerID,
		&o.OrderNumber,
		&o.Status,
		&o.TotalAmount,
		&o.ShippingAddress,
		&o.PaymentStatus,
		&o.PaymentReference,
		&key,
		&o.CreatedAt,
		&o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if key.Valid {
		o.IdempotencyKey = &key.String
	}
	return &o, nil
}

func getOrder(ctx context.Context, q queryer, query string, args ...any) (*domain.Order, error) {
	o, err := scanOrder(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	if err := loadOrderItems(ctx, q, []*domain.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func listOrders(ctx context.Context, q queryer, query string, args ...any) ([]*domain.Order, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	if err := loadOrderItems(ctx, q, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func loadOrderItems(ctx context.Context, q queryer, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[int64]*domain.Order, len(orders))
	ids := make([]int64, len(orders))
	for i, o := range orders {
		byID[o.ID] = o
		ids[i] = o.ID
		o.Items = []domain.OrderItem{}
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, store_id, quantity, price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY id`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.ProductName,
			&item.StoreID,
			&item.Quantity,
			&item.Price,
		); err != nil {
			return fmt.Errorf("scan order item row: %w", err)
		}
		o := byID[item.OrderID]
		o.Items = append(o.Items, item)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("row iteration error: %w", err)
	}
	return nil
}

func (r *Repository) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	return getOrder(ctx, r.db, "SELECT "+orderColumns+" WHERE id = $1", id)
}

func (r *Repository) GetOrderByIdempotencyKey(ctx context.Context, customerID int64, key string) (*domain.Order, error) {
	return getOrder(ctx, r.db, "SELECT "+orderColumns+" WHERE customer_id = $1 AND idempotency_key = $2", customerID, key)
}

func (r *Repository) ListOrdersByCustomer(ctx context.Context, customerID int64) ([]*domain.Order, error) {
	return listOrders(ctx, r.db, "SELECT "+orderColumns+" WHERE customer_id = $1 ORDER BY created_at DESC, id DESC", customerID)
}

// ListOrdersByStore returns each order containing at least one of the store's products once.
func (r *Repository) ListOrdersByStore(ctx context.Context, storeID int64) ([]*domain.Order, error) {
	return listOrders(ctx, r.db, "SELECT "+orderColumns+`
		WHERE id IN (SELECT order_id FROM order_items WHERE store_id = $1)
		ORDER BY created_at DESC, id DESC`, storeID)
}

func (r *Repository) ListAllOrders(ctx context.Context) ([]*domain.Order, error) {
	return listOrders(ctx, r.db, "SELECT "+orderColumns+" ORDER BY created_at DESC, id DESC")
}

func (r *Repository) RunInTx(ctx context.Context, fn func(tx OrderTx) error) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		return fn(&orderTx{tx: tx})
	})
}

type orderTx struct {
	tx *sql.Tx
}

// LockCartLines locks the customer's cart items and their products in product id order.
func (t *orderTx) LockCartLines(ctx context.Context, customerID int64) ([]domain.CheckoutLine, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT ci.id, p.id, p.name, p.store_id, p.price, ci.quantity, p.stock, p.is_active
		FROM cart_items ci
		JOIN carts c ON c.id = ci.cart_id
		JOIN products p ON p.id = ci.product_id
		WHERE c.user_id = $1
		ORDER BY p.id
		FOR UPDATE OF p, ci`, customerID)
	if err != nil {
		return nil, fmt.Errorf("lock cart lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.CheckoutLine
	for rows.Next() {
		var l domain.CheckoutLine
		if err := rows.Scan(
			&l.CartItemID,
			&l.ProductID,
			&l.ProductName,
			&l.StoreID,
			&l.UnitPrice,
			&l.Quantity,
			&l.Stock,
			&l.IsActive,
		); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return lines, nil
}

func (t *orderTx) FindOrderByIdempotencyKey(ctx context.Context, customerID int64, key string) (*domain.Order, error) {
	return getOrder(ctx, t.tx, "SELECT "+orderColumns+" WHERE customer_id = $1 AND idempotency_key = $2", customerID, key)
}

func (t *orderTx) InsertOrder(ctx context.Context, o *domain.Order) error {
	query := `INSERT INTO orders (customer_id, order_number, status, total_amount, shipping_address,
	                              payment_status, payment_reference, idempotency_key)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          RETURNING id, created_at, updated_at`

	err := t.tx.QueryRowContext(ctx, query,
		o.CustomerID,
		o.OrderNumber,
		o.Status,
		o.TotalAmount,
		o.ShippingAddress,
		o.PaymentStatus,
		o.PaymentReference,
		o.IdempotencyKey,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range o.Items {
		item := &o.Items[i]
		item.OrderID = o.ID
		err := t.tx.QueryRowContext(ctx, `
			INSERT INTO order_items (order_id, product_id, product_name, store_id, quantity, price)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			item.OrderID,
			item.ProductID,
			item.ProductName,
			item.StoreID,
			item.Quantity,
			item.Price,
		).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

// DecrementStock only succeeds while the remaining stock covers the quantity.
func (t *orderTx) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND is_active AND stock >= $2`, productID, quantity)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func (t *orderTx) ClearCart(ctx context.Context, customerID int64) error {
	_, err := t.tx.ExecContext(ctx, `
		DELETE FROM cart_items ci
		USING carts c
		WHERE ci.cart_id = c.id AND c.user_id = $1`, customerID)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (t *orderTx) GetOrderForUpdate(ctx context.Context, orderID int64) (*domain.Order, error) {
	return getOrder(ctx, t.tx, "SELECT "+orderColumns+" WHERE id = $1 FOR UPDATE", orderID)
}

func (t *orderTx) SetOrderStatus(ctx context.Context, orderID int64, status domain.OrderStatus) error {
	return t.execOrder(ctx,
		`UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`, orderID, status)
}

func (t *orderTx) execOrder(ctx context.Context, query string, args ...any) error {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (t *orderTx) CompletePaymentSession(ctx context.Context, sessionID string, orderID int64) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE payment_sessions SET status = $3, order_id = $2, updated_at = NOW()
		WHERE id = $1 AND status = $4`,
		sessionID, orderID, domain.PaymentSessionCompleted, domain.PaymentSessionOpen)
	if err != nil {
		return fmt.Errorf("complete payment session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrPaymentSessionNotFound
	}
	return nil
}

func (t *orderTx) EnqueueEvent(ctx context.Context, aggregateID, eventType string, payload []byte) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO outbox_events (id, aggregate_id, event_type, payload) VALUES ($1, $2, $3, $4)`,
		uuid.New(), aggregateID, eventType, payload)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}
