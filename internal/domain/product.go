package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type Product struct {
	ID           int64           `json:"id"`
	StoreID      int64           `json:"store_id"`
	StoreName    string          `json:"store_name,omitempty"`
	CategoryID   *int64          `json:"category_id,omitempty"`
	CategoryName string          `json:"category_name,omitempty"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	Stock        int             `json:"stock"`
	IsActive     bool            `json:"is_active"`
	Image        string          `json:"image,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// InStock reports whether qty units can currently be sold.
func (p *Product) InStock(qty int) bool {
	return p.IsActive && qty > 0 && p.Stock >= qty
}

type ProductSort string

const (
	SortNewest    ProductSort = "newest"
	SortPriceLow  ProductSort = "price_low"
	SortPriceHigh ProductSort = "price_high"
	SortName      ProductSort = "name"
)

// ParseProductSort falls back to SortNewest for empty or unknown values.
func ParseProductSort(s string) ProductSort {
	switch ProductSort(s) {
	case SortPriceLow, SortPriceHigh, SortName, SortNewest:
		return ProductSort(s)
	default:
		return SortNewest
	}
}

type ProductFilter struct {
	CategoryID *int64
	StoreID    *int64
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Sort       ProductSort
}

// ProductInput carries the writable fields of a product. Nil fields are left untouched on update.
type ProductInput struct {
	CategoryID  *int64
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int
	Image       *string
}
