package http

import (
	"context"
	"sync"

	"github.com/fjod/go_marketplace/internal/domain"
	"github.com/fjod/go_marketplace/internal/repository"
	"github.com/fjod/go_marketplace/internal/service"
)

type mockCartService struct {
	m         sync.Mutex
	cart      *domain.Cart
	err       error
	lastQty   int
	lastItem  int64
	lastUser  int64
	addCalled bool
}

func (m *mockCartService) GetCart(_ context.Context, userID int64) (*domain.Cart, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.lastUser = userID
	if m.cart == nil {
		return &domain.Cart{UserID: userID, Items: []domain.CartItem{}}, nil
	}
	return m.cart, nil
}

func (m *mockCartService) AddItem(_ context.Context, userID, _ int64, quantity int) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.addCalled = true
	m.lastUser = userID
	m.lastQty = quantity
	return m.err
}

func (m *mockCartService) UpdateQuantity(_ context.Context, _, itemID int64, quantity int) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.lastItem = itemID
	m.lastQty = quantity
	return m.err
}

func (m *mockCartService) RemoveItem(_ context.Context, _, itemID int64) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.lastItem = itemID
	return m.err
}

func (m *mockCartService) ClearCart(context.Context, int64) error {
	return m.err
}

type mockOrderService struct {
	m       sync.Mutex
	order   *domain.Order
	created bool
	err     error
	lastKey string
	lastArg string
}

func (m *mockOrderService) CreateOrder(_ context.Context, _ domain.Principal, addr, key string) (*domain.Order, bool, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.lastKey = key
	m.lastArg = addr
	return m.order, m.created, m.err
}

func (m *mockOrderService) UpdateStatus(_ context.Context, _ domain.Principal, _ int64, status string) (*domain.Order, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.lastArg = status
	return m.order, m.err
}

func (m *mockOrderService) ListOrders(context.Context, domain.Principal) ([]*domain.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []*domain.Order{m.order}, nil
}

func (m *mockOrderService) GetOrder(context.Context, domain.Principal, int64) (*domain.Order, error) {
	return m.order, m.err
}

type mockPaymentService struct {
	m       sync.Mutex
	start   *service.CheckoutStart
	order   *domain.Order
	err     error
	session string
}

func (m *mockPaymentService) StartCheckout(context.Context, domain.Principal, string) (*service.CheckoutStart, error) {
	return m.start, m.err
}

func (m *mockPaymentService) CompleteCheckout(_ context.Context, _ domain.Principal, sessionID string) (*domain.Order, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.session = sessionID
	return m.order, m.err
}

func (m *mockPaymentService) CancelCheckout(_ context.Context, _ domain.Principal, sessionID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.session = sessionID
	return m.err
}

type mockCatalogService struct {
	products []*domain.Product
	filter   domain.ProductFilter
	err      error
}

func (m *mockCatalogService) ListProducts(_ context.Context, f domain.ProductFilter) ([]*domain.Product, error) {
	m.filter = f
	return m.products, m.err
}

func (m *mockCatalogService) SearchProducts(context.Context, string) ([]*domain.Product, error) {
	return m.products, m.err
}

func (m *mockCatalogService) GetProduct(context.Context, int64) (*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.products[0], nil
}

func (m *mockCatalogService) ListCategories(context.Context) ([]*domain.Category, error) {
	return nil, m.err
}

func (m *mockCatalogService) CreateProduct(context.Context, domain.Principal, domain.ProductInput) (*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.products[0], nil
}

func (m *mockCatalogService) UpdateProduct(context.Context, domain.Principal, int64, domain.ProductInput) (*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.products[0], nil
}

func (m *mockCatalogService) DeleteProduct(context.Context, domain.Principal, int64) error {
	return m.err
}

type mockStoreService struct {
	err error
}

func (m *mockStoreService) ListStores(context.Context) ([]*domain.Store, error) {
	return nil, m.err
}

func (m *mockStoreService) GetStore(_ context.Context, id int64) (*domain.Store, error) {
	return &domain.Store{ID: id, Name: "Corner Shop"}, m.err
}

func (m *mockStoreService) CreateStore(_ context.Context, p domain.Principal, in domain.StoreInput) (*domain.Store, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Store{ID: 1, OwnerID: p.UserID, Name: *in.Name}, nil
}

func (m *mockStoreService) UpdateStore(_ context.Context, _ domain.Principal, id int64, _ domain.StoreInput) (*domain.Store, error) {
	return &domain.Store{ID: id}, m.err
}

func (m *mockStoreService) Dashboard(context.Context, domain.Principal) (*domain.StoreDashboard, error) {
	return &domain.StoreDashboard{Store: &domain.Store{ID: 1}}, m.err
}

type mockUserService struct {
	user  *domain.User
	token string
	err   error
}

func (m *mockUserService) Register(context.Context, service.RegisterInput) (*domain.User, error) {
	return m.user, m.err
}

func (m *mockUserService) Login(context.Context, string, string) (string, *domain.User, error) {
	return m.token, m.user, m.err
}

func (m *mockUserService) VerifyEmail(context.Context, string) error {
	return m.err
}

func (m *mockUserService) ResendVerification(context.Context, string) error {
	return m.err
}

func (m *mockUserService) Profile(context.Context, domain.Principal) (*domain.User, error) {
	return m.user, m.err
}

func (m *mockUserService) UpdateProfile(context.Context, domain.Principal, domain.ProfileInput) (*domain.User, error) {
	return m.user, m.err
}

// mockResolver maps user ids to principals.
type mockResolver struct {
	principals map[int64]domain.Principal
}

func (m *mockResolver) ResolvePrincipal(_ context.Context, userID int64) (domain.Principal, error) {
	p, ok := m.principals[userID]
	if !ok {
		return domain.Principal{}, repository.ErrUserNotFound
	}
	return p, nil
}
