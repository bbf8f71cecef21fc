package payment

import (
	"context"
	"errors"
)

var (
	ErrUnavailable     = errors.New("payment processor unavailable")
	ErrSessionNotFound = errors.New("checkout session not found")
)

type CreateSessionParams struct {
	AmountMinor   int64
	Currency      string
	Description   string
	SuccessURL    string
	CancelURL     string
	CustomerEmail string
	// ClientReference is echoed back by the processor; we send the customer id.
	ClientReference string
}

type CheckoutSession struct {
	ID               string
	URL              string
	AmountMinor      int64
	Paid             bool
	PaymentReference string
}

type Gateway interface {
	CreateCheckoutSession(ctx context.Context, p CreateSessionParams) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error)
}

// Disabled is used when no processor is configured; every call fails with ErrUnavailable.
type Disabled struct{}

func (Disabled) CreateCheckoutSession(context.Context, CreateSessionParams) (*CheckoutSession, error) {
	return nil, ErrUnavailable
}

func (Disabled) GetCheckoutSession(context.Context, string) (*CheckoutSession, error) {
	return nil, ErrUnavailable
}
