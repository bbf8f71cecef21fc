package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_marketplace/internal/domain"
)

type StoreService interface {
	ListStores(ctx context.Context) ([]*domain.Store, error)
	GetStore(ctx context.Context, id int64) (*domain.Store, error)
	CreateStore(ctx context.Context, p domain.Principal, in domain.StoreInput) (*domain.Store, error)
	UpdateStore(ctx context.Context, p domain.Principal, id int64, in domain.StoreInput) (*domain.Store, error)
	Dashboard(ctx context.Context, p domain.Principal) (*domain.StoreDashboard, error)
}

type StoreHandler struct {
	stores  StoreService
	timeout time.Duration
}

func NewStoreHandler(stores StoreService, timeout time.Duration) *StoreHandler {
	return &StoreHandler{
		stores:  stores,
		timeout: timeout,
	}
}

type StoreRequestDTO struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Address     *string `json:"address"`
	Phone       *string `json:"phone"`
	Email       *string `json:"email"`
	Logo        *string `json:"logo"`
}

func (d StoreRequestDTO) input() domain.StoreInput {
	return domain.StoreInput(d)
}

// GET /api/stores/
func (h *StoreHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	stores, err := h.stores.ListStores(ctx)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(stores))
}

// GET /api/stores/{id}/
func (h *StoreHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_store_id", "store id must be a positive integer")
		return
	}

	store, err := h.stores.GetStore(ctx, id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, store)
}

// POST /api/stores/
func (h *StoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, _ := principalFrom(r.Context())
	var req StoreRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	store, err := h.stores.CreateStore(ctx, p, req.input())
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, store)
}

// PUT /api/stores/{id}/
func (h *StoreHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, _ := principalFrom(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_store_id", "store id must be a positive integer")
		return
	}
	var req StoreRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	store, err := h.stores.UpdateStore(ctx, p, id, req.input())
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, store)
}

// GET /api/stores/dashboard/
func (h *StoreHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, _ := principalFrom(r.Context())
	d, err := h.stores.Dashboard(ctx, p)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}
