package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var ErrInvalidOrderStatus = errors.New("invalid order status")

// OrderStatuses lists every status in display order.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidOrderStatus, s)
	}
	return status, nil
}

func (s OrderStatus) IsValid() bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}

type OrderItem struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	StoreID     int64           `json:"store_id"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Order struct {
	ID               int64           `json:"id"`
	CustomerID       int64           `json:"customer_id"`
	OrderNumber      string          `json:"order_number"`
	Status           OrderStatus     `json:"status"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	ShippingAddress  string          `json:"shipping_address"`
	PaymentStatus    bool            `json:"payment_status"`
	PaymentReference string          `json:"payment_reference,omitempty"`
	IdempotencyKey   *string         `json:"-"`
	Items            []OrderItem     `json:"items"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// CheckoutLine is a cart line joined with the product row it was locked with.
type CheckoutLine struct {
	CartItemID  int64
	ProductID   int64
	ProductName string
	StoreID     int64
	UnitPrice   decimal.Decimal
	Quantity    int
	Stock       int
	IsActive    bool
}

// NewOrderNumber returns the first block of a random UUID in upper case, e.g. "9F3A1C2B".
func NewOrderNumber() string {
	id := uuid.NewString()
	return strings.ToUpper(id[:strings.IndexByte(id, '-')])
}

// NewOrder snapshots the given lines into a pending order. Prices are copied so later
// product changes never touch the stored total.
func NewOrder(customerID int64, shippingAddress string, lines []CheckoutLine) *Order {
	items := make([]OrderItem, len(lines))
	total := decimal.Zero
	for i, line := range lines {
		items[i] = OrderItem{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			StoreID:     line.StoreID,
			Quantity:    line.Quantity,
			Price:       line.UnitPrice,
		}
		total = total.Add(items[i].Subtotal())
	}

	return &Order{
		CustomerID:      customerID,
		OrderNumber:     NewOrderNumber(),
		Status:          OrderStatusPending,
		TotalAmount:     total.Round(2),
		ShippingAddress: strings.TrimSpace(shippingAddress),
		Items:           items,
	}
}

// HasStoreItem reports whether any line item belongs to the given store.
func (o *Order) HasStoreItem(storeID int64) bool {
	for _, item := range o.Items {
		if item.StoreID == storeID {
			return true
		}
	}
	return false
}
