package domain

import "time"

type Store struct {
	ID          int64     `json:"id"`
	OwnerID     int64     `json:"owner_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Address     string    `json:"address"`
	Phone       string    `json:"phone"`
	Email       string    `json:"email"`
	Logo        string    `json:"logo,omitempty"`
	IsVerified  bool      `json:"is_verified"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type StoreInput struct {
	Name        *string
	Description *string
	Address     *string
	Phone       *string
	Email       *string
	Logo        *string
}

// StoreDashboard summarises a store's catalogue and the orders that touch it.
type StoreDashboard struct {
	Store          *Store              `json:"store"`
	TotalProducts  int                 `json:"total_products"`
	TotalOrders    int                 `json:"total_orders"`
	OrdersByStatus map[OrderStatus]int `json:"orders_by_status"`
	RecentOrders   []*Order            `json:"recent_orders"`
}
