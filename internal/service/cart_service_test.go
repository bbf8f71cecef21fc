package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_marketplace/internal/domain"
	"github.com/fjod/go_marketplace/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCartFixture(t *testing.T) (*CartService, *fakeDB, *MockCache) {
	t.Helper()
	db := newFakeDB()
	db.addProduct(1, 100, "Mug", "12.50", 10)
	db.addProduct(2, 100, "Tea", "3.00", 2)
	mc := NewMockCache()
	return NewCartService(db, mc, testLog), db, mc
}

func TestGetCart_Success(t *testing.T) {
	sut, db, mc := newCartFixture(t)
	ctx := context.Background()
	require.NoError(t, db.AddItem(ctx, 7, 1, 2))
	require.NoError(t, db.AddItem(ctx, 7, 2, 1))

	cart, err := sut.GetCart(ctx, 7)
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, "Mug", cart.Items[0].ProductName)
	assert.Equal(t, "28.00", cart.Total().StringFixed(2))
	assert.Equal(t, 3, cart.TotalItems())

	require.Eventually(t, func() bool {
		return mc.has(7)
	}, 100*time.Millisecond, 10*time.Millisecond, "cart was not set in cache")
}

func TestGetCart_CacheHit(t *testing.T) {
	sut, db, mc := newCartFixture(t)
	cached := &domain.Cart{UserID: 7, Items: []domain.CartItem{{ProductID: 1, Quantity: 3}}}
	require.NoError(t, mc.Set(context.Background(), 7, cached))

	cart, err := sut.GetCart(context.Background(), 7)
	require.NoError(t, err)
	assert.Same(t, cached, cart)
	assert.Zero(t, db.getCartCalls, "repository should not be queried on a cache hit")
}

func TestGetCart_CacheErrorFallsBackToRepository(t *testing.T) {
	sut, db, mc := newCartFixture(t)
	mc.getErr = errBoom
	require.NoError(t, db.AddItem(context.Background(), 7, 1, 1))

	cart, err := sut.GetCart(context.Background(), 7)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
}

func TestGetCart_NoCartReturnsEmpty(t *testing.T) {
	sut, _, _ := newCartFixture(t)

	cart, err := sut.GetCart(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), cart.UserID)
	assert.True(t, cart.IsEmpty())
	assert.Equal(t, "0.00", cart.Total().StringFixed(2))
}

func TestGetCart_ConcurrentMissesShareOneLoad(t *testing.T) {
	sut, db, _ := newCartFixture(t)
	require.NoError(t, db.AddItem(context.Background(), 7, 1, 1))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cart, err := sut.GetCart(context.Background(), 7)
			assert.NoError(t, err)
			assert.Len(t, cart.Items, 1)
		}()
	}
	wg.Wait()

	db.mu.Lock()
	defer db.mu.Unlock()
	assert.LessOrEqual(t, db.getCartCalls, 20)
	assert.GreaterOrEqual(t, db.getCartCalls, 1)
}

func TestAddItem_MergesExistingLine(t *testing.T) {
	sut, db, mc := newCartFixture(t)
	ctx := context.Background()

	require.NoError(t, sut.AddItem(ctx, 7, 1, 2))
	require.NoError(t, sut.AddItem(ctx, 7, 1, 3))

	cart, err := db.GetCart(ctx, 7)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.Equal(t, 2, mc.deleteCount())
}

func TestAddItem_InvalidInput(t *testing.T) {
	sut, _, mc := newCartFixture(t)

	assert.ErrorIs(t, sut.AddItem(context.Background(), 7, 0, 1), ErrProductRequired)
	assert.ErrorIs(t, sut.AddItem(context.Background(), 7, 1, 0), ErrInvalidQuantity)
	assert.ErrorIs(t, sut.AddItem(context.Background(), 7, 1, -2), ErrInvalidQuantity)
	assert.Zero(t, mc.deleteCount())
}

func TestAddItem_RepositoryErrors(t *testing.T) {
	sut, _, mc := newCartFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, sut.AddItem(ctx, 7, 99, 1), repository.ErrProductNotFound)
	assert.ErrorIs(t, sut.AddItem(ctx, 7, 2, 3), repository.ErrInsufficientStock)

	require.NoError(t, sut.AddItem(ctx, 7, 2, 2))
	assert.ErrorIs(t, sut.AddItem(ctx, 7, 2, 1), repository.ErrInsufficientStock, "merged quantity must respect stock")
	assert.Equal(t, 1, mc.deleteCount())
}

func TestUpdateQuantity_Success(t *testing.T) {
	sut, db, mc := newCartFixture(t)
	ctx := context.Background()
	require.NoError(t, db.AddItem(ctx, 7, 1, 1))
	cart, _ := db.GetCart(ctx, 7)
	require.NoError(t, mc.Set(ctx, 7, cart))

	require.NoError(t, sut.UpdateQuantity(ctx, 7, cart.Items[0].ID, 4))

	cart, _ = db.GetCart(ctx, 7)
	assert.Equal(t, 4, cart.Items[0].Quantity)
	assert.False(t, mc.has(7), "cache was not invalidated")
}

func TestUpdateQuantity_Errors(t *testing.T) {
	sut, db, _ := newCartFixture(t)
	ctx := context.Background()
	require.NoError(t, db.AddItem(ctx, 7, 2, 1))
	cart, _ := db.GetCart(ctx, 7)
	itemID := cart.Items[0].ID

	assert.ErrorIs(t, sut.UpdateQuantity(ctx, 7, itemID, 0), ErrInvalidQuantity)
	assert.ErrorIs(t, sut.UpdateQuantity(ctx, 7, itemID, 3), repository.ErrInsufficientStock)
	assert.ErrorIs(t, sut.UpdateQuantity(ctx, 8, itemID, 1), repository.ErrItemNotFound, "item of another user")
}

func TestRemoveItem(t *testing.T) {
	sut, db, _ := newCartFixture(t)
	ctx := context.Background()
	require.NoError(t, db.AddItem(ctx, 7, 1, 1))
	require.NoError(t, db.AddItem(ctx, 7, 2, 1))
	cart, _ := db.GetCart(ctx, 7)

	require.NoError(t, sut.RemoveItem(ctx, 7, cart.Items[0].ID))
	assert.ErrorIs(t, sut.RemoveItem(ctx, 7, cart.Items[0].ID), repository.ErrItemNotFound)

	cart, _ = db.GetCart(ctx, 7)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, int64(2), cart.Items[0].ProductID)
}

func TestClearCart(t *testing.T) {
	sut, db, mc := newCartFixture(t)
	ctx := context.Background()
	require.NoError(t, db.AddItem(ctx, 7, 1, 1))

	require.NoError(t, sut.ClearCart(ctx, 7))
	cart, err := sut.GetCart(ctx, 7)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
	assert.Equal(t, 1, mc.deleteCount())

	err = sut.ClearCart(ctx, 99)
	assert.True(t, errors.Is(err, repository.ErrCartNotFound))
}

// gatedCache holds every Set until release is closed.
type gatedCache struct {
	*MockCache
	entered chan struct{}
	release chan struct{}
	setDone chan struct{}
}

func (g *gatedCache) Set(ctx context.Context, userID int64, cart *domain.Cart) error {
	signal(g.entered)
	<-g.release
	err := g.MockCache.Set(ctx, userID, cart)
	signal(g.setDone)
	return err
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func TestGetCart_LateFillAfterClearDoesNotResurrectCart(t *testing.T) {
	db := newFakeDB()
	db.addProduct(1, 100, "Mug", "12.50", 10)
	gc := &gatedCache{
		MockCache: NewMockCache(),
		entered:   make(chan struct{}, 1),
		release:   make(chan struct{}),
		setDone:   make(chan struct{}, 1),
	}
	sut := NewCartService(db, gc, testLog)
	ctx := context.Background()
	require.NoError(t, db.AddItem(ctx, 7, 1, 2))

	cart, err := sut.GetCart(ctx, 7)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	<-gc.entered

	require.NoError(t, sut.ClearCart(ctx, 7))
	close(gc.release)
	<-gc.setDone

	require.Eventually(t, func() bool {
		return !gc.has(7)
	}, 100*time.Millisecond, 5*time.Millisecond, "stale cart left in cache")

	cart, err = sut.GetCart(ctx, 7)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}
