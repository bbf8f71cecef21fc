package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fjod/go_marketplace/internal/cache"
	"github.com/fjod/go_marketplace/internal/domain"
	mailer "github.com/fjod/go_marketplace/internal/mail"
	"github.com/fjod/go_marketplace/internal/payment"
	"github.com/fjod/go_marketplace/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var testLog = zerolog.Nop()

// fakeDB is an in-memory stand-in for the Postgres repository. RunInTx holds the
// lock for the whole transaction and restores a snapshot when fn fails.
type fakeDB struct {
	mu          sync.Mutex
	products    map[int64]*domain.Product
	carts       map[int64][]domain.CartItem
	orders      map[int64]*domain.Order
	sessions    map[string]*domain.PaymentSession
	events      []repository.OutboxEvent
	nextItemID  int64
	nextOrderID int64

	getCartCalls  int
	failClearCart error
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		products: make(map[int64]*domain.Product),
		carts:    make(map[int64][]domain.CartItem),
		orders:   make(map[int64]*domain.Order),
		sessions: make(map[string]*domain.PaymentSession),
	}
}

func (f *fakeDB) addProduct(id, storeID int64, name, price string, stock int) *domain.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &domain.Product{
		ID:       id,
		StoreID:  storeID,
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		IsActive: true,
	}
	f.products[id] = p
	return p
}

func (f *fakeDB) stock(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[id].Stock
}

func (f *fakeDB) setPrice(id int64, price string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products[id].Price = decimal.RequireFromString(price)
}

func (f *fakeDB) orderCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

func (f *fakeDB) eventTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var types []string
	for _, e := range f.events {
		types = append(types, e.EventType)
	}
	return types
}

// CartRepository

func (f *fakeDB) GetCart(_ context.Context, userID int64) (*domain.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCartCalls++

	items, ok := f.carts[userID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	cart := &domain.Cart{ID: userID, UserID: userID, Items: []domain.CartItem{}}
	for _, it := range items {
		p := f.products[it.ProductID]
		it.ProductName = p.Name
		it.UnitPrice = p.Price
		cart.Items = append(cart.Items, it)
	}
	return cart, nil
}

func (f *fakeDB) AddItem(_ context.Context, userID, productID int64, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.products[productID]
	if !ok || !p.IsActive {
		return repository.ErrProductNotFound
	}

	items := f.carts[userID]
	for i := range items {
		if items[i].ProductID == productID {
			if items[i].Quantity+quantity > p.Stock {
				return repository.ErrInsufficientStock
			}
			items[i].Quantity += quantity
			return nil
		}
	}
	if quantity > p.Stock {
		return repository.ErrInsufficientStock
	}
	f.nextItemID++
	f.carts[userID] = append(items, domain.CartItem{ID: f.nextItemID, ProductID: productID, Quantity: quantity})
	return nil
}

func (f *fakeDB) UpdateItemQuantity(_ context.Context, userID, itemID int64, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	items := f.carts[userID]
	for i := range items {
		if items[i].ID == itemID {
			if quantity > f.products[items[i].ProductID].Stock {
				return repository.ErrInsufficientStock
			}
			items[i].Quantity = quantity
			return nil
		}
	}
	return repository.ErrItemNotFound
}

func (f *fakeDB) RemoveItem(_ context.Context, userID, itemID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	items := f.carts[userID]
	for i := range items {
		if items[i].ID == itemID {
			f.carts[userID] = append(items[:i:i], items[i+1:]...)
			return nil
		}
	}
	return repository.ErrItemNotFound
}

func (f *fakeDB) ClearCart(_ context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.carts[userID]; !ok {
		return repository.ErrCartNotFound
	}
	f.carts[userID] = nil
	return nil
}

// OrderRepository

type fakeSnapshot struct {
	products    map[int64]domain.Product
	carts       map[int64][]domain.CartItem
	orders      map[int64]domain.Order
	sessions    map[string]domain.PaymentSession
	events      []repository.OutboxEvent
	nextOrderID int64
}

func (f *fakeDB) snapshot() fakeSnapshot {
	s := fakeSnapshot{
		products:    make(map[int64]domain.Product),
		carts:       make(map[int64][]domain.CartItem),
		orders:      make(map[int64]domain.Order),
		sessions:    make(map[string]domain.PaymentSession),
		events:      append([]repository.OutboxEvent(nil), f.events...),
		nextOrderID: f.nextOrderID,
	}
	for id, p := range f.products {
		s.products[id] = *p
	}
	for id, items := range f.carts {
		s.carts[id] = append([]domain.CartItem(nil), items...)
	}
	for id, o := range f.orders {
		s.orders[id] = *o
	}
	for id, ps := range f.sessions {
		s.sessions[id] = *ps
	}
	return s
}

func (f *fakeDB) restore(s fakeSnapshot) {
	for id, p := range s.products {
		p := p
		f.products[id] = &p
	}
	f.carts = s.carts
	f.orders = make(map[int64]*domain.Order)
	for id, o := range s.orders {
		o := o
		f.orders[id] = &o
	}
	f.sessions = make(map[string]*domain.PaymentSession)
	for id, ps := range s.sessions {
		ps := ps
		f.sessions[id] = &ps
	}
	f.events = s.events
	f.nextOrderID = s.nextOrderID
}

func (f *fakeDB) RunInTx(_ context.Context, fn func(tx repository.OrderTx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	snap := f.snapshot()
	if err := fn(&fakeTx{f}); err != nil {
		f.restore(snap)
		return err
	}
	return nil
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = append([]domain.OrderItem(nil), o.Items...)
	return &c
}

func (f *fakeDB) GetOrder(_ context.Context, id int64) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (f *fakeDB) GetOrderByIdempotencyKey(_ context.Context, customerID int64, key string) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&fakeTx{f}).FindOrderByIdempotencyKey(context.Background(), customerID, key)
}

func (f *fakeDB) listOrders(match func(*domain.Order) bool) []*domain.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	orders := []*domain.Order{}
	for _, o := range f.orders {
		if match(o) {
			orders = append(orders, cloneOrder(o))
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID > orders[j].ID })
	return orders
}

func (f *fakeDB) ListOrdersByCustomer(_ context.Context, customerID int64) ([]*domain.Order, error) {
	return f.listOrders(func(o *domain.Order) bool { return o.CustomerID == customerID }), nil
}

func (f *fakeDB) ListOrdersByStore(_ context.Context, storeID int64) ([]*domain.Order, error) {
	return f.listOrders(func(o *domain.Order) bool { return o.HasStoreItem(storeID) }), nil
}

func (f *fakeDB) ListAllOrders(_ context.Context) ([]*domain.Order, error) {
	return f.listOrders(func(*domain.Order) bool { return true }), nil
}

type fakeTx struct {
	db *fakeDB
}

func (t *fakeTx) LockCartLines(_ context.Context, customerID int64) ([]domain.CheckoutLine, error) {
	var lines []domain.CheckoutLine
	for _, it := range t.db.carts[customerID] {
		p := t.db.products[it.ProductID]
		lines = append(lines, domain.CheckoutLine{
			CartItemID:  it.ID,
			ProductID:   p.ID,
			ProductName: p.Name,
			StoreID:     p.StoreID,
			UnitPrice:   p.Price,
			Quantity:    it.Quantity,
			Stock:       p.Stock,
			IsActive:    p.IsActive,
		})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines, nil
}

func (t *fakeTx) FindOrderByIdempotencyKey(_ context.Context, customerID int64, key string) (*domain.Order, error) {
	for _, o := range t.db.orders {
		if o.CustomerID == customerID && o.IdempotencyKey != nil && *o.IdempotencyKey == key {
			return cloneOrder(o), nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (t *fakeTx) InsertOrder(ctx context.Context, o *domain.Order) error {
	if o.IdempotencyKey != nil {
		if _, err := t.FindOrderByIdempotencyKey(ctx, o.CustomerID, *o.IdempotencyKey); err == nil {
			return repository.ErrDuplicateOrder
		}
	}
	t.db.nextOrderID++
	o.ID = t.db.nextOrderID
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	for i := range o.Items {
		o.Items[i].ID = int64(i + 1)
		o.Items[i].OrderID = o.ID
	}
	t.db.orders[o.ID] = cloneOrder(o)
	return nil
}

func (t *fakeTx) DecrementStock(_ context.Context, productID int64, quantity int) error {
	p := t.db.products[productID]
	if p == nil || !p.IsActive || p.Stock < quantity {
		return repository.ErrInsufficientStock
	}
	p.Stock -= quantity
	return nil
}

func (t *fakeTx) ClearCart(_ context.Context, customerID int64) error {
	if t.db.failClearCart != nil {
		return t.db.failClearCart
	}
	t.db.carts[customerID] = nil
	return nil
}

func (t *fakeTx) CompletePaymentSession(_ context.Context, sessionID string, orderID int64) error {
	s, ok := t.db.sessions[sessionID]
	if !ok || s.Status != domain.PaymentSessionOpen {
		return repository.ErrPaymentSessionNotFound
	}
	s.Status = domain.PaymentSessionCompleted
	s.OrderID = &orderID
	return nil
}

func (t *fakeTx) GetOrderForUpdate(_ context.Context, orderID int64) (*domain.Order, error) {
	o, ok := t.db.orders[orderID]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (t *fakeTx) SetOrderStatus(_ context.Context, orderID int64, status domain.OrderStatus) error {
	o, ok := t.db.orders[orderID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.Status = status
	return nil
}

func (t *fakeTx) EnqueueEvent(_ context.Context, aggregateID, eventType string, payload []byte) error {
	t.db.events = append(t.db.events, repository.OutboxEvent{
		ID:          uuid.New(),
		AggregateId: aggregateID,
		EventType:   eventType,
		Payload:     payload,
	})
	return nil
}

// PaymentSessionRepository

func (f *fakeDB) CreatePaymentSession(_ context.Context, s *domain.PaymentSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *s
	f.sessions[s.ID] = &c
	return nil
}

func (f *fakeDB) GetPaymentSession(_ context.Context, id string) (*domain.PaymentSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, repository.ErrPaymentSessionNotFound
	}
	c := *s
	return &c, nil
}

func (f *fakeDB) UpdatePaymentSessionStatus(_ context.Context, id string, from, to domain.PaymentSessionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok || s.Status != from {
		return repository.ErrPaymentSessionNotFound
	}
	s.Status = to
	return nil
}

// MockCache implements cache.CartCache
type MockCache struct {
	mu      sync.RWMutex
	carts   map[int64]*domain.Cart
	getErr  error
	deletes int
}

func NewMockCache() *MockCache {
	return &MockCache{carts: make(map[int64]*domain.Cart)}
}

func (m *MockCache) Get(_ context.Context, userID int64) (*domain.Cart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	c, ok := m.carts[userID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return c, nil
}

func (m *MockCache) Set(_ context.Context, userID int64, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[userID] = cart
	return nil
}

func (m *MockCache) Delete(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, userID)
	m.deletes++
	return nil
}

func (m *MockCache) has(userID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.carts[userID]
	return ok
}

func (m *MockCache) deleteCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.deletes
}

// MockGateway implements payment.Gateway
type MockGateway struct {
	mu        sync.Mutex
	created   []payment.CreateSessionParams
	paid      map[string]string
	createErr error
	nextID    int
}

func NewMockGateway() *MockGateway {
	return &MockGateway{paid: make(map[string]string)}
}

func (m *MockGateway) CreateCheckoutSession(_ context.Context, p payment.CreateSessionParams) (*payment.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.created = append(m.created, p)
	m.nextID++
	id := fmt.Sprintf("cs_test_%d", m.nextID)
	return &payment.CheckoutSession{ID: id, URL: "https://pay.example/" + id, AmountMinor: p.AmountMinor}, nil
}

func (m *MockGateway) GetCheckoutSession(_ context.Context, id string) (*payment.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref, paid := m.paid[id]
	return &payment.CheckoutSession{ID: id, Paid: paid, PaymentReference: ref}, nil
}

func (m *MockGateway) markPaid(id, ref string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paid[id] = ref
}

// MockUserRepository implements repository.UserRepository
type MockUserRepository struct {
	mu     sync.Mutex
	users  map[int64]*domain.User
	nextID int64
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[int64]*domain.User)}
}

func (m *MockUserRepository) CreateUser(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email || existing.Username == u.Username {
			return repository.ErrDuplicateUser
		}
	}
	m.nextID++
	u.ID = m.nextID
	c := *u
	m.users[u.ID] = &c
	return nil
}

func (m *MockUserRepository) find(match func(*domain.User) bool) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			c := *u
			return &c, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *MockUserRepository) GetUserByID(_ context.Context, id int64) (*domain.User, error) {
	return m.find(func(u *domain.User) bool { return u.ID == id })
}

func (m *MockUserRepository) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	return m.find(func(u *domain.User) bool { return u.Email == email })
}

func (m *MockUserRepository) GetUserByVerificationToken(_ context.Context, token uuid.UUID) (*domain.User, error) {
	return m.find(func(u *domain.User) bool { return u.VerificationToken != nil && *u.VerificationToken == token })
}

func (m *MockUserRepository) update(id int64, fn func(u *domain.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	fn(u)
	return nil
}

func (m *MockUserRepository) SetVerificationToken(_ context.Context, userID int64, token uuid.UUID, createdAt time.Time) error {
	return m.update(userID, func(u *domain.User) {
		u.VerificationToken = &token
		u.TokenCreatedAt = &createdAt
	})
}

func (m *MockUserRepository) MarkEmailVerified(_ context.Context, userID int64) error {
	return m.update(userID, func(u *domain.User) {
		u.EmailVerified = true
		u.VerificationToken = nil
		u.TokenCreatedAt = nil
	})
}

func (m *MockUserRepository) UpdateProfile(_ context.Context, in *domain.User) error {
	return m.update(in.ID, func(u *domain.User) {
		u.FirstName, u.LastName, u.Phone, u.Address = in.FirstName, in.LastName, in.Phone, in.Address
	})
}

// MockMailer implements VerificationMailer
type MockMailer struct {
	mu   sync.Mutex
	sent []mailer.VerificationData
	err  error
}

func (m *MockMailer) SendVerificationEmail(_ context.Context, data mailer.VerificationData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, data)
	return nil
}

func (m *MockMailer) last() mailer.VerificationData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[len(m.sent)-1]
}

var errBoom = errors.New("boom")
