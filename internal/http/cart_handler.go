package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_marketplace/internal/domain"
	"github.com/shopspring/decimal"
)

type CartService interface {
	GetCart(ctx context.Context, userID int64) (*domain.Cart, error)
	AddItem(ctx context.Context, userID, productID int64, quantity int) error
	UpdateQuantity(ctx context.Context, userID, itemID int64, quantity int) error
	RemoveItem(ctx context.Context, userID, itemID int64) error
	ClearCart(ctx context.Context, userID int64) error
}

type CartHandler struct {
	carts   CartService
	timeout time.Duration
}

func NewCartHandler(carts CartService, timeout time.Duration) *CartHandler {
	return &CartHandler{
		carts:   carts,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  *int  `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartItemDTO struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type CartResponseDTO struct {
	Items      []CartItemDTO   `json:"items"`
	TotalItems int             `json:"total_items"`
	Total      decimal.Decimal `json:"total"`
}

func toCartDTO(c *domain.Cart) CartResponseDTO {
	items := make([]CartItemDTO, len(c.Items))
	for i, it := range c.Items {
		items[i] = CartItemDTO{
			ID:          it.ID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
			Subtotal:    it.Subtotal(),
		}
	}
	return CartResponseDTO{
		Items:      items,
		TotalItems: c.TotalItems(),
		Total:      c.Total().Round(2),
	}
}

// GET /api/cart/
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, _ := principalFrom(r.Context())
	h.respondCart(ctx, w, r, p.UserID, http.StatusOK)
}

// POST /api/cart/add/
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, _ := principalFrom(r.Context())

	var req AddItemRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	if err := h.carts.AddItem(ctx, p.UserID, req.ProductID, quantity); err != nil {
		handleError(w, r, err)
		return
	}
	h.respondCart(ctx, w, r, p.UserID, http.StatusCreated)
}

// PUT /api/cart/update/{id}/
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, _ := principalFrom(r.Context())
	itemID, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_item_id", "item id must be a positive integer")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := h.carts.UpdateQuantity(ctx, p.UserID, itemID, req.Quantity); err != nil {
		handleError(w, r, err)
		return
	}
	h.respondCart(ctx, w, r, p.UserID, http.StatusOK)
}

// DELETE /api/cart/remove/{id}/
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, _ := principalFrom(r.Context())
	itemID, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_item_id", "item id must be a positive integer")
		return
	}

	if err := h.carts.RemoveItem(ctx, p.UserID, itemID); err != nil {
		handleError(w, r, err)
		return
	}
	h.respondCart(ctx, w, r, p.UserID, http.StatusOK)
}

// DELETE /api/cart/clear/
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, _ := principalFrom(r.Context())
	if err := h.carts.ClearCart(ctx, p.UserID); err != nil {
		handleError(w, r, err)
		return
	}
	h.respondCart(ctx, w, r, p.UserID, http.StatusOK)
}

func (h *CartHandler) respondCart(ctx context.Context, w http.ResponseWriter, r *http.Request, userID int64, status int) {
	cart, err := h.carts.GetCart(ctx, userID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, status, toCartDTO(cart))
}
