package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/fjod/go_marketplace/internal/domain"
	"github.com/fjod/go_marketplace/internal/payment"
	"github.com/fjod/go_marketplace/internal/repository"
	"github.com/rs/zerolog"
)

type PaymentConfig struct {
	SuccessURL string
	CancelURL  string
	Currency   string
}

// CustomerLookup supplies the email the processor prefills on its payment page.
type CustomerLookup interface {
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
}

type PaymentService struct {
	sessions  repository.PaymentSessionRepository
	carts     repository.CartRepository
	customers CustomerLookup
	orders   *OrderService
	gateway  payment.Gateway
	cfg      PaymentConfig
	log      zerolog.Logger
}

func NewPaymentService(
	sessions repository.PaymentSessionRepository,
	carts repository.CartRepository,
	customers CustomerLookup,
	orders *OrderService,
	gateway payment.Gateway,
	cfg PaymentConfig,
	log zerolog.Logger,
) *PaymentService {
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	return &PaymentService{
		sessions:  sessions,
		carts:     carts,
		customers: customers,
		orders:    orders,
		gateway:   gateway,
		cfg:       cfg,
		log:       log.With().Str("component", "payment").Logger(),
	}
}

type CheckoutStart struct {
	SessionID   string `json:"session_id"`
	URL         string `json:"url"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
}

// StartCheckout opens a processor session for the current cart total.
func (s *PaymentService) StartCheckout(ctx context.Context, p domain.Principal, shippingAddress string) (*CheckoutStart, error) {
	if err := requireCustomer(p); err != nil {
		return nil, err
	}
	address := strings.TrimSpace(shippingAddress)
	if address == "" {
		return nil, ErrShippingAddressRequired
	}

	cart, err := s.carts.GetCart(ctx, p.UserID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return nil, ErrEmptyCart
	}
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	amount := toMinorUnits(cart.Total())
	gs, err := s.gateway.CreateCheckoutSession(ctx, payment.CreateSessionParams{
		AmountMinor:     amount,
		Currency:        s.cfg.Currency,
		Description:     "Order Payment",
		SuccessURL:      s.cfg.SuccessURL,
		CancelURL:       s.cfg.CancelURL,
		CustomerEmail:   s.customerEmail(ctx, p.UserID),
		ClientReference: strconv.FormatInt(p.UserID, 10),
	})
	if err != nil {
		return nil, err
	}

	ps := &domain.PaymentSession{
		ID:              gs.ID,
		CustomerID:      p.UserID,
		ShippingAddress: address,
		AmountMinor:     amount,
		Currency:        s.cfg.Currency,
		Status:          domain.PaymentSessionOpen,
	}
	if err := s.sessions.CreatePaymentSession(ctx, ps); err != nil {
		return nil, err
	}

	s.log.Info().Str("session_id", gs.ID).Int64("customer_id", p.UserID).Int64("amount_minor", amount).Msg("checkout started")
	return &CheckoutStart{SessionID: gs.ID, URL: gs.URL, AmountMinor: amount, Currency: s.cfg.Currency}, nil
}

// customerEmail is best effort; without it the processor asks the customer.
func (s *PaymentService) customerEmail(ctx context.Context, userID int64) string {
	u, err := s.customers.GetUserByID(ctx, userID)
	if err != nil {
		s.log.Warn().Err(err).Int64("customer_id", userID).Msg("customer email lookup failed")
		return ""
	}
	return u.Email
}

// CompleteCheckout handles the processor's success redirect. The session id doubles
// as the idempotency key, so a repeated callback yields the same order.
func (s *PaymentService) CompleteCheckout(ctx context.Context, p domain.Principal, sessionID string) (*domain.Order, error) {
	ps, err := s.ownedSession(ctx, p, sessionID)
	if err != nil {
		return nil, err
	}

	switch ps.Status {
	case domain.PaymentSessionCompleted:
		if ps.OrderID != nil {
			return s.orders.GetOrder(ctx, p, *ps.OrderID)
		}
		return nil, ErrPaymentSessionClosed
	case domain.PaymentSessionCancelled:
		return nil, ErrPaymentSessionClosed
	}

	gs, err := s.gateway.GetCheckoutSession(ctx, sessionID)
	if errors.Is(err, payment.ErrSessionNotFound) {
		return nil, repository.ErrPaymentSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	if !gs.Paid {
		return nil, ErrPaymentNotCompleted
	}

	order, _, err := s.orders.PlaceOrder(ctx, p.UserID, PlaceOrderInput{
		ShippingAddress:     ps.ShippingAddress,
		IdempotencyKey:      sessionID,
		PaymentReference:    gs.PaymentReference,
		PaymentSessionID:    sessionID,
		ExpectedAmountMinor: ps.AmountMinor,
	})
	if err != nil {
		// the customer has paid at this point; the operator needs to see this
		s.log.Error().Err(err).Str("session_id", sessionID).Str("payment_reference", gs.PaymentReference).
			Msg("paid checkout could not be converted into an order")
		return nil, err
	}
	return order, nil
}

// CancelCheckout closes an open session. The cart and stock are untouched.
func (s *PaymentService) CancelCheckout(ctx context.Context, p domain.Principal, sessionID string) error {
	ps, err := s.ownedSession(ctx, p, sessionID)
	if err != nil {
		return err
	}
	if !ps.Status.CanTransitionTo(domain.PaymentSessionCancelled) {
		return ErrPaymentSessionClosed
	}

	err = s.sessions.UpdatePaymentSessionStatus(ctx, sessionID, domain.PaymentSessionOpen, domain.PaymentSessionCancelled)
	if errors.Is(err, repository.ErrPaymentSessionNotFound) {
		return ErrPaymentSessionClosed
	}
	if err != nil {
		return err
	}

	s.log.Info().Str("session_id", sessionID).Msg("checkout cancelled")
	return nil
}

func (s *PaymentService) ownedSession(ctx context.Context, p domain.Principal, sessionID string) (*domain.PaymentSession, error) {
	if err := requireCustomer(p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrSessionRequired
	}

	ps, err := s.sessions.GetPaymentSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if ps.CustomerID != p.UserID {
		return nil, repository.ErrPaymentSessionNotFound
	}
	return ps, nil
}
