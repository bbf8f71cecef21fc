package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerGateway bounds every processor call with a timeout and stops calling
// the processor after repeated failures until the breaker half-opens again.
type BreakerGateway struct {
	next    Gateway
	cb      *gobreaker.CircuitBreaker[*CheckoutSession]
	timeout time.Duration
}

type BreakerSettings struct {
	Timeout             time.Duration
	ConsecutiveFailures uint32
	OpenFor             time.Duration
}

func DefaultBreakerSettings(callTimeout time.Duration) BreakerSettings {
	return BreakerSettings{
		Timeout:             callTimeout,
		ConsecutiveFailures: 5,
		OpenFor:             30 * time.Second,
	}
}

func NewBreakerGateway(next Gateway, s BreakerSettings) *BreakerGateway {
	cb := gobreaker.NewCircuitBreaker[*CheckoutSession](gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     s.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrSessionNotFound)
		},
	})
	return &BreakerGateway{next: next, cb: cb, timeout: s.Timeout}
}

func (b *BreakerGateway) CreateCheckoutSession(ctx context.Context, p CreateSessionParams) (*CheckoutSession, error) {
	return b.call(ctx, func(ctx context.Context) (*CheckoutSession, error) {
		return b.next.CreateCheckoutSession(ctx, p)
	})
}

func (b *BreakerGateway) GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	return b.call(ctx, func(ctx context.Context) (*CheckoutSession, error) {
		return b.next.GetCheckoutSession(ctx, id)
	})
}

func (b *BreakerGateway) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerGateway) call(ctx context.Context, fn func(ctx context.Context) (*CheckoutSession, error)) (*CheckoutSession, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	s, err := b.cb.Execute(func() (*CheckoutSession, error) {
		return fn(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return s, err
}
