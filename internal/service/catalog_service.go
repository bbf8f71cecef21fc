package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/fjod/go_marketplace/internal/domain"
	"github.com/fjod/go_marketplace/internal/repository"
	"github.com/rs/zerolog"
)

type CatalogService struct {
	products repository.CatalogRepository
	log      zerolog.Logger
}

func NewCatalogService(products repository.CatalogRepository, log zerolog.Logger) *CatalogService {
	return &CatalogService{
		products: products,
		log:      log.With().Str("component", "catalog").Logger(),
	}
}

func (s *CatalogService) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error) {
	if filter.MinPrice != nil && filter.MaxPrice != nil && filter.MinPrice.GreaterThan(*filter.MaxPrice) {
		return nil, fmt.Errorf("%w: min_price is greater than max_price", ErrInvalidInput)
	}
	return s.products.ListProducts(ctx, filter)
}

func (s *CatalogService) SearchProducts(ctx context.Context, query string) ([]*domain.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrQueryRequired
	}
	return s.products.SearchProducts(ctx, query)
}

// GetProduct hides soft-deleted products.
func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := s.products.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, repository.ErrProductNotFound
	}
	return p, nil
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	return s.products.ListCategories(ctx)
}

func (s *CatalogService) CreateProduct(ctx context.Context, p domain.Principal, in domain.ProductInput) (*domain.Product, error) {
	storeID, err := requireStore(p)
	if err != nil {
		return nil, err
	}
	if in.Name == nil || in.Price == nil {
		return nil, fmt.Errorf("%w: name and price are required", ErrInvalidInput)
	}

	product := &domain.Product{StoreID: storeID}
	applyProductInput(product, in)
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	if err := s.products.CreateProduct(ctx, product); err != nil {
		return nil, err
	}
	s.log.Info().Int64("product_id", product.ID).Int64("store_id", storeID).Msg("product created")
	return product, nil
}

func (s *CatalogService) UpdateProduct(ctx context.Context, p domain.Principal, id int64, in domain.ProductInput) (*domain.Product, error) {
	product, err := s.ownedProduct(ctx, p, id)
	if err != nil {
		return nil, err
	}

	applyProductInput(product, in)
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	if err := s.products.UpdateProduct(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// DeleteProduct is a soft delete; order history keeps referencing the row.
func (s *CatalogService) DeleteProduct(ctx context.Context, p domain.Principal, id int64) error {
	if _, err := s.ownedProduct(ctx, p, id); err != nil {
		return err
	}
	if err := s.products.DeactivateProduct(ctx, id); err != nil {
		return err
	}
	s.log.Info().Int64("product_id", id).Msg("product deactivated")
	return nil
}

func (s *CatalogService) ownedProduct(ctx context.Context, p domain.Principal, id int64) (*domain.Product, error) {
	storeID, err := requireStore(p)
	if err != nil {
		return nil, err
	}
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if product.StoreID != storeID {
		return nil, ErrForbidden
	}
	return product, nil
}

func applyProductInput(p *domain.Product, in domain.ProductInput) {
	if in.CategoryID != nil {
		p.CategoryID = in.CategoryID
	}
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Price != nil {
		p.Price = in.Price.Round(2)
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
	if in.Image != nil {
		p.Image = *in.Image
	}
}

func validateProduct(p *domain.Product) error {
	switch {
	case p.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	case p.Price.IsNegative():
		return fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	case p.Stock < 0:
		return fmt.Errorf("%w: stock must not be negative", ErrInvalidInput)
	}
	return nil
}
