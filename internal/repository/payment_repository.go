package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/go_marketplace/internal/domain"
)

func (r *Repository) CreatePaymentSession(ctx context.Context, s *domain.PaymentSession) error {
	query := `INSERT INTO payment_sessions (id, customer_id, shipping_address, amount_minor, currency, status)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		s.ID,
		s.CustomerID,
		s.ShippingAddress,
		s.AmountMinor,
		s.Currency,
		s.Status,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert payment session: %w", err)
	}
	return nil
}

func (r *Repository) GetPaymentSession(ctx context.Context, id string) (*domain.PaymentSession, error) {
	query := `SELECT id, customer_id, shipping_address, amount_minor, currency, status, order_id, created_at, updated_at
	          FROM payment_sessions WHERE id = $1`

	var s domain.PaymentSession
	var orderID sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID,
		&s.CustomerID,
		&s.ShippingAddress,
		&s.AmountMinor,
		&s.Currency,
		&s.Status,
		&orderID,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query payment session: %w", err)
	}
	if orderID.Valid {
		s.OrderID = &orderID.Int64
	}
	return &s, nil
}

// UpdatePaymentSessionStatus moves a session from one status to another and fails
// with ErrPaymentSessionNotFound when the session is not currently in from.
func (r *Repository) UpdatePaymentSessionStatus(ctx context.Context, id string, from, to domain.PaymentSessionStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payment_sessions SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`,
		id, from, to)
	if err != nil {
		return fmt.Errorf("update payment session: %w", err)
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
