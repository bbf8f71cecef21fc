package domain

import "time"

type PaymentSessionStatus string

const (
	PaymentSessionOpen      PaymentSessionStatus = "open"
	PaymentSessionCompleted PaymentSessionStatus = "completed"
	PaymentSessionCancelled PaymentSessionStatus = "cancelled"
)

func (s PaymentSessionStatus) IsTerminal() bool {
	return s == PaymentSessionCompleted || s == PaymentSessionCancelled
}

func (s PaymentSessionStatus) CanTransitionTo(next PaymentSessionStatus) bool {
	return s == PaymentSessionOpen && next.IsTerminal()
}

// String representation (for logging)
func (s PaymentSessionStatus) String() string {
	return string(s)
}

// PaymentSession tracks a checkout session opened with the payment processor.
type PaymentSession struct {
	ID              string
	CustomerID      int64
	ShippingAddress string
	AmountMinor     int64
	Currency        string
	Status          PaymentSessionStatus
	OrderID         *int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
