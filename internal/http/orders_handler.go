package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_marketplace/internal/domain"
	"github.com/fjod/go_marketplace/internal/service"
)

type OrderService interface {
	CreateOrder(ctx context.Context, p domain.Principal, shippingAddress, idempotencyKey string) (*domain.Order, bool, error)
	UpdateStatus(ctx context.Context, p domain.Principal, orderID int64, status string) (*domain.Order, error)
	ListOrders(ctx context.Context, p domain.Principal) ([]*domain.Order, error)
	GetOrder(ctx context.Context, p domain.Principal, id int64) (*domain.Order, error)
}

type PaymentService interface {
	StartCheckout(ctx context.Context, p domain.Principal, shippingAddress string) (*service.CheckoutStart, error)
	CompleteCheckout(ctx context.Context, p domain.Principal, sessionID string) (*domain.Order, error)
	CancelCheckout(ctx context.Context, p domain.Principal, sessionID string) error
}

type OrdersHandler struct {
	orders   OrderService
	payments PaymentService
	timeout  time.Duration
}

func NewOrdersHandler(orders OrderService, payments PaymentService, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:   orders,
		payments: payments,
		timeout:  timeout,
	}
}

type CreateOrderRequestDTO struct {
	ShippingAddress string `json:"shipping_address"`
}

type UpdateStatusRequestDTO struct {
	Status string `json:"status"`
}

// GET /api/orders/
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, _ := principalFrom(r.Context())
	orders, err := h.orders.ListOrders(ctx, p)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// POST /api/orders/create/
// A retry carrying the same Idempotency-Key header gets the original order with 200.
func (h *OrdersHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, _ := principalFrom(r.Context())

	var req CreateOrderRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	order, created, err := h.orders.CreateOrder(ctx, p, req.ShippingAddress, r.Header.Get("Idempotency-Key"))
	if err != nil {
		handleError(w, r, err)
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	respondJSON(w, status, order)
}

// GET /api/orders/{id}/
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, _ := principalFrom(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order id must be a positive integer")
		return
	}

	order, err := h.orders.GetOrder(ctx, p, id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// PUT /api/orders/{id}/update-status/
func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, _ := principalFrom(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order id must be a positive integer")
		return
	}

	var req UpdateStatusRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	order, err := h.orders.UpdateStatus(ctx, p, id, req.Status)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// POST /api/orders/payment/
func (h *OrdersHandler) StartPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, _ := principalFrom(r.Context())

	var req CreateOrderRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	start, err := h.payments.StartCheckout(ctx, p, req.ShippingAddress)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, start)
}

// GET /api/orders/payment/success/?session_id=
func (h *OrdersHandler) PaymentSuccess(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, _ := principalFrom(r.Context())
	order, err := h.payments.CompleteCheckout(ctx, p, r.URL.Query().Get("session_id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// GET /api/orders/payment/cancel/?session_id=
func (h *OrdersHandler) PaymentCancel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, _ := principalFrom(r.Context())
	if err := h.payments.CancelCheckout(ctx, p, r.URL.Query().Get("session_id")); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "payment cancelled"})
}
