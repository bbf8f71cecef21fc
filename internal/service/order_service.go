package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fjod/go_marketplace/internal/domain"
	"github.com/fjod/go_marketplace/internal/repository"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type CartInvalidator interface {
	InvalidateCart(userID int64)
}

type OrderService struct {
	repo  repository.OrderRepository
	carts CartInvalidator
	log   zerolog.Logger
}

func NewOrderService(repo repository.OrderRepository, carts CartInvalidator, log zerolog.Logger) *OrderService {
	return &OrderService{
		repo:  repo,
		carts: carts,
		log:   log.With().Str("component", "orders").Logger(),
	}
}

type PlaceOrderInput struct {
	ShippingAddress string
	// IdempotencyKey deduplicates retries of the same checkout per customer. Optional.
	IdempotencyKey   string
	PaymentReference string
	PaymentSessionID string
	// ExpectedAmountMinor, when set, must equal the cart total in minor units.
	ExpectedAmountMinor int64
}

// CreateOrder converts the caller's cart into a pending order. The bool result is
// false when an earlier order with the same idempotency key was returned instead.
func (s *OrderService) CreateOrder(ctx context.Context, p domain.Principal, shippingAddress, idempotencyKey string) (*domain.Order, bool, error) {
	if err := requireCustomer(p); err != nil {
		return nil, false, err
	}
	return s.PlaceOrder(ctx, p.UserID, PlaceOrderInput{
		ShippingAddress: shippingAddress,
		IdempotencyKey:  strings.TrimSpace(idempotencyKey),
	})
}

// PlaceOrder runs the whole checkout in one transaction: lock the cart lines and
// their products, snapshot prices into the order, decrement stock, empty the cart
// and enqueue the order.created event.
func (s *OrderService) PlaceOrder(ctx context.Context, customerID int64, in PlaceOrderInput) (*domain.Order, bool, error) {
	address := strings.TrimSpace(in.ShippingAddress)
	if address == "" {
		return nil, false, ErrShippingAddressRequired
	}

	var order *domain.Order
	replayed := false
	err := s.repo.RunInTx(ctx, func(tx repository.OrderTx) error {
		lines, err := tx.LockCartLines(ctx, customerID)
		if err != nil {
			return err
		}

		// checked after the lock so a concurrent retry sees the committed order
		if in.IdempotencyKey != "" {
			existing, err := tx.FindOrderByIdempotencyKey(ctx, customerID, in.IdempotencyKey)
			if err == nil {
				order, replayed = existing, true
				return nil
			}
			if !errors.Is(err, repository.ErrOrderNotFound) {
				return err
			}
		}

		if len(lines) == 0 {
			return ErrEmptyCart
		}
		for _, l := range lines {
			if !l.IsActive || l.Stock < l.Quantity {
				return fmt.Errorf("%w: %s (available %d, requested %d)",
					repository.ErrInsufficientStock, l.ProductName, l.Stock, l.Quantity)
			}
		}

		order = domain.NewOrder(customerID, address, lines)
		if in.ExpectedAmountMinor > 0 && toMinorUnits(order.TotalAmount) != in.ExpectedAmountMinor {
			return ErrCartChanged
		}
		if in.IdempotencyKey != "" {
			key := in.IdempotencyKey
			order.IdempotencyKey = &key
		}
		if in.PaymentReference != "" {
			order.PaymentStatus = true
			order.PaymentReference = in.PaymentReference
		}

		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}
		for _, l := range lines {
			if err := tx.DecrementStock(ctx, l.ProductID, l.Quantity); err != nil {
				return fmt.Errorf("%w: %s", err, l.ProductName)
			}
		}
		if err := tx.ClearCart(ctx, customerID); err != nil {
			return err
		}
		if in.PaymentSessionID != "" {
			if err := tx.CompletePaymentSession(ctx, in.PaymentSessionID, order.ID); err != nil {
				return err
			}
		}
		return enqueueOrderEvent(ctx, tx, domain.EventOrderCreated, order)
	})

	if errors.Is(err, repository.ErrDuplicateOrder) && in.IdempotencyKey != "" {
		existing, findErr := s.repo.GetOrderByIdempotencyKey(ctx, customerID, in.IdempotencyKey)
		if findErr == nil {
			return existing, false, nil
		}
	}
	if err != nil {
		return nil, false, err
	}

	if replayed {
		s.log.Info().Int64("order_id", order.ID).Str("idempotency_key", in.IdempotencyKey).Msg("checkout replayed")
		return order, false, nil
	}

	s.carts.InvalidateCart(customerID)
	s.log.Info().
		Int64("order_id", order.ID).
		Str("order_number", order.OrderNumber).
		Int64("customer_id", customerID).
		Str("total", order.TotalAmount.StringFixed(2)).
		Msg("order created")
	return order, true, nil
}

func enqueueOrderEvent(ctx context.Context, tx repository.OrderTx, eventType string, o *domain.Order) error {
	payload, err := json.Marshal(domain.NewOrderEvent(o))
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}
	return tx.EnqueueEvent(ctx, strconv.FormatInt(o.ID, 10), eventType, payload)
}

func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// UpdateStatus lets the owner of a store with at least one line item in the order
// set any of the five statuses; no ordering between statuses is enforced.
func (s *OrderService) UpdateStatus(ctx context.Context, p domain.Principal, orderID int64, status string) (*domain.Order, error) {
	storeID, err := requireStore(p)
	if err != nil {
		return nil, err
	}

	next, err := domain.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}

	var order *domain.Order
	err = s.repo.RunInTx(ctx, func(tx repository.OrderTx) error {
		o, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !o.HasStoreItem(storeID) {
			return ErrForbidden
		}
		if err := tx.SetOrderStatus(ctx, orderID, next); err != nil {
			return err
		}
		o.Status = next
		order = o
		return enqueueOrderEvent(ctx, tx, domain.EventOrderStatusChanged, o)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Int64("order_id", orderID).Str("status", next.String()).Int64("store_id", storeID).Msg("order status updated")
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, p domain.Principal) ([]*domain.Order, error) {
	switch r := p.Role.(type) {
	case domain.Customer:
		return s.repo.ListOrdersByCustomer(ctx, p.UserID)
	case domain.StoreOwner:
		if r.StoreID == 0 {
			return []*domain.Order{}, nil
		}
		return s.repo.ListOrdersByStore(ctx, r.StoreID)
	case domain.Admin:
		return s.repo.ListAllOrders(ctx)
	default:
		return nil, ErrForbidden
	}
}

// GetOrder hides orders outside the caller's scope as not found.
func (s *OrderService) GetOrder(ctx context.Context, p domain.Principal, id int64) (*domain.Order, error) {
	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSeeOrder(p, o) {
		return nil, repository.ErrOrderNotFound
	}
	return o, nil
}
