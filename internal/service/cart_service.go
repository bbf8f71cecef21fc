package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/fjod/go_marketplace/internal/cache"
	"github.com/fjod/go_marketplace/internal/domain"
	"github.com/fjod/go_marketplace/internal/repository"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

type CartService struct {
	repo  repository.CartRepository
	cache cache.CartCache
	sfg   singleflight.Group // Prevents cache stampede
	log   zerolog.Logger

	// gens counts invalidations per user. A cache fill that raced with an
	// invalidation removes what it wrote.
	mu   sync.Mutex
	gens map[int64]uint64
}

func NewCartService(repo repository.CartRepository, cache cache.CartCache, log zerolog.Logger) *CartService {
	return &CartService{
		repo:  repo,
		cache: cache,
		log:   log.With().Str("component", "cart").Logger(),
		gens:  make(map[int64]uint64),
	}
}

func (s *CartService) GetCart(ctx context.Context, userID int64) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(strconv.FormatInt(userID, 10), func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn().Err(err).Int64("user_id", userID).Msg("cache get failed")
		}

		gen := s.generation(userID)
		cart, err = s.repo.GetCart(ctx, userID)
		if errors.Is(err, repository.ErrCartNotFound) {
			return emptyCart(userID), nil
		}
		if err != nil {
			return nil, err
		}

		go s.fillCache(userID, cart, gen)

		return cart, nil
	})

	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

func (s *CartService) fillCache(userID int64, cart *domain.Cart, gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Set(ctx, userID, cart); err != nil {
		s.log.Warn().Err(err).Int64("user_id", userID).Msg("cache set failed")
		return
	}
	// The generation is bumped before the invalidating Delete, so checking it after
	// Set catches an invalidation that ran at any point since the load.
	if s.generation(userID) != gen {
		if err := s.cache.Delete(ctx, userID); err != nil {
			s.log.Warn().Err(err).Int64("user_id", userID).Msg("stale cache entry not removed")
		}
	}
}

func (s *CartService) generation(userID int64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[userID]
}

func emptyCart(userID int64) *domain.Cart {
	now := time.Now()
	return &domain.Cart{
		UserID:    userID,
		Items:     []domain.CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *CartService) AddItem(ctx context.Context, userID, productID int64, quantity int) error {
	if productID <= 0 {
		return ErrProductRequired
	}
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	if err := s.repo.AddItem(ctx, userID, productID, quantity); err != nil {
		s.log.Debug().Err(err).Int64("user_id", userID).Int64("product_id", productID).Msg("add item rejected")
		return err
	}

	s.InvalidateCart(userID)
	return nil
}

func (s *CartService) UpdateQuantity(ctx context.Context, userID, itemID int64, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	if err := s.repo.UpdateItemQuantity(ctx, userID, itemID, quantity); err != nil {
		s.log.Debug().Err(err).Int64("user_id", userID).Int64("item_id", itemID).Msg("update item rejected")
		return err
	}

	s.InvalidateCart(userID)
	return nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, itemID int64) error {
	if err := s.repo.RemoveItem(ctx, userID, itemID); err != nil {
		return err
	}

	s.InvalidateCart(userID)
	return nil
}

func (s *CartService) ClearCart(ctx context.Context, userID int64) error {
	if err := s.repo.ClearCart(ctx, userID); err != nil {
		return err
	}

	s.InvalidateCart(userID)
	return nil
}

// InvalidateCart drops the cached cart; the next read goes to the database.
func (s *CartService) InvalidateCart(userID int64) {
	s.mu.Lock()
	s.gens[userID]++
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.log.Warn().Err(err).Int64("user_id", userID).Msg("cache invalidate failed")
	}
}
