package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/fjod/go_marketplace/internal/domain"
	"github.com/fjod/go_marketplace/internal/repository"
	"github.com/rs/zerolog"
)

const dashboardRecentOrders = 5

type StoreService struct {
	stores repository.StoreRepository
	orders repository.OrderRepository
	log    zerolog.Logger
}

func NewStoreService(stores repository.StoreRepository, orders repository.OrderRepository, log zerolog.Logger) *StoreService {
	return &StoreService{
		stores: stores,
		orders: orders,
		log:    log.With().Str("component", "stores").Logger(),
	}
}

func (s *StoreService) ListStores(ctx context.Context) ([]*domain.Store, error) {
	return s.stores.ListStores(ctx)
}

func (s *StoreService) GetStore(ctx context.Context, id int64) (*domain.Store, error) {
	return s.stores.GetStore(ctx, id)
}

// CreateStore is open to store owners only; each owner gets exactly one store.
func (s *StoreService) CreateStore(ctx context.Context, p domain.Principal, in domain.StoreInput) (*domain.Store, error) {
	switch p.Role.(type) {
	case domain.StoreOwner:
	case domain.Customer, domain.Admin:
		return nil, ErrForbidden
	default:
		return nil, ErrForbidden
	}

	store := &domain.Store{OwnerID: p.UserID}
	applyStoreInput(store, in)
	if store.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	if err := s.stores.CreateStore(ctx, store); err != nil {
		return nil, err
	}
	s.log.Info().Int64("store_id", store.ID).Int64("owner_id", p.UserID).Msg("store created")
	return store, nil
}

func (s *StoreService) UpdateStore(ctx context.Context, p domain.Principal, id int64, in domain.StoreInput) (*domain.Store, error) {
	store, err := s.stores.GetStore(ctx, id)
	if err != nil {
		return nil, err
	}
	if store.OwnerID != p.UserID {
		return nil, ErrForbidden
	}

	applyStoreInput(store, in)
	if store.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	if err := s.stores.UpdateStore(ctx, store); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *StoreService) Dashboard(ctx context.Context, p domain.Principal) (*domain.StoreDashboard, error) {
	storeID, err := requireStore(p)
	if err != nil {
		return nil, err
	}

	store, err := s.stores.GetStore(ctx, storeID)
	if err != nil {
		return nil, err
	}
	products, byStatus, err := s.stores.StoreStats(ctx, storeID)
	if err != nil {
		return nil, err
	}
	orders, err := s.orders.ListOrdersByStore(ctx, storeID)
	if err != nil {
		return nil, err
	}

	recent := orders
	if len(recent) > dashboardRecentOrders {
		recent = recent[:dashboardRecentOrders]
	}

	return &domain.StoreDashboard{
		Store:          store,
		TotalProducts:  products,
		TotalOrders:    len(orders),
		OrdersByStatus: byStatus,
		RecentOrders:   recent,
	}, nil
}

func applyStoreInput(s *domain.Store, in domain.StoreInput) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	set(&s.Name, in.Name)
	set(&s.Description, in.Description)
	set(&s.Address, in.Address)
	set(&s.Phone, in.Phone)
	set(&s.Email, in.Email)
	set(&s.Logo, in.Logo)
}
