package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_marketplace/internal/domain"
	"github.com/google/uuid"
)

var (
	ErrProductNotFound        = errors.New("product not found")
	ErrCategoryNotFound       = errors.New("category not found")
	ErrStoreNotFound          = errors.New("store not found")
	ErrDuplicateStore         = errors.New("user already owns a store")
	ErrUserNotFound           = errors.New("user not found")
	ErrDuplicateUser          = errors.New("user with this email or username already exists")
	ErrCartNotFound           = errors.New("cart not found")
	ErrItemNotFound           = errors.New("cart item not found")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrOrderNotFound          = errors.New("order not found")
	ErrDuplicateOrder         = errors.New("order for this idempotency key already exists")
	ErrPaymentSessionNotFound = errors.New("payment session not found")
	ErrEventNotFound          = errors.New("outbox event not found")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

type CatalogRepository interface {
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error)
	SearchProducts(ctx context.Context, query string) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	CreateProduct(ctx context.Context, p *domain.Product) error
	UpdateProduct(ctx context.Context, p *domain.Product) error
	DeactivateProduct(ctx context.Context, id int64) error
	ListCategories(ctx context.Context) ([]*domain.Category, error)
}

type StoreRepository interface {
	ListStores(ctx context.Context) ([]*domain.Store, error)
	GetStore(ctx context.Context, id int64) (*domain.Store, error)
	GetStoreByOwner(ctx context.Context, ownerID int64) (*domain.Store, error)
	CreateStore(ctx context.Context, s *domain.Store) error
	UpdateStore(ctx context.Context, s *domain.Store) error
	StoreStats(ctx context.Context, storeID int64) (products int, byStatus map[domain.OrderStatus]int, err error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, u *domain.User) error
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByVerificationToken(ctx context.Context, token uuid.UUID) (*domain.User, error)
	SetVerificationToken(ctx context.Context, userID int64, token uuid.UUID, createdAt time.Time) error
	MarkEmailVerified(ctx context.Context, userID int64) error
	UpdateProfile(ctx context.Context, u *domain.User) error
}

type CartRepository interface {
	GetCart(ctx context.Context, userID int64) (*domain.Cart, error)
	AddItem(ctx context.Context, userID, productID int64, quantity int) error
	UpdateItemQuantity(ctx context.Context, userID, itemID int64, quantity int) error
	RemoveItem(ctx context.Context, userID, itemID int64) error
	ClearCart(ctx context.Context, userID int64) error
}

// OrderTx is the set of operations available inside a single order transaction.
// Everything done through one OrderTx commits or rolls back together.
type OrderTx interface {
	LockCartLines(ctx context.Context, customerID int64) ([]domain.CheckoutLine, error)
	FindOrderByIdempotencyKey(ctx context.Context, customerID int64, key string) (*domain.Order, error)
	InsertOrder(ctx context.Context, o *domain.Order) error
	DecrementStock(ctx context.Context, productID int64, quantity int) error
	ClearCart(ctx context.Context, customerID int64) error
	CompletePaymentSession(ctx context.Context, sessionID string, orderID int64) error
	GetOrderForUpdate(ctx context.Context, orderID int64) (*domain.Order, error)
	SetOrderStatus(ctx context.Context, orderID int64, status domain.OrderStatus) error
	EnqueueEvent(ctx context.Context, aggregateID, eventType string, payload []byte) error
}

type OrderRepository interface {
	RunInTx(ctx context.Context, fn func(tx OrderTx) error) error
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, customerID int64, key string) (*domain.Order, error)
	ListOrdersByCustomer(ctx context.Context, customerID int64) ([]*domain.Order, error)
	ListOrdersByStore(ctx context.Context, storeID int64) ([]*domain.Order, error)
	ListAllOrders(ctx context.Context) ([]*domain.Order, error)
}

type PaymentSessionRepository interface {
	CreatePaymentSession(ctx context.Context, s *domain.PaymentSession) error
	GetPaymentSession(ctx context.Context, id string) (*domain.PaymentSession, error)
	UpdatePaymentSessionStatus(ctx context.Context, id string, from, to domain.PaymentSessionStatus) error
}

type OutboxEvent struct {
	ID          uuid.UUID
	AggregateId string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

type OutboxRepository interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id uuid.UUID) error
}
