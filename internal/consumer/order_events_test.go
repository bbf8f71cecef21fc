package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fjod/go_marketplace/internal/domain"
	"github.com/fjod/go_marketplace/internal/mail"
	"github.com/fjod/go_marketplace/internal/repository"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockOrders struct {
	orders map[int64]*domain.Order
}

func (m *mockOrders) GetOrder(_ context.Context, id int64) (*domain.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return o, nil
}

type mockUsers struct{}

func (mockUsers) GetUserByID(_ context.Context, id int64) (*domain.User, error) {
	if id != 7 {
		return nil, repository.ErrUserNotFound
	}
	return &domain.User{ID: 7, Username: "ann", Email: "ann@example.com", Role: domain.Customer{}}, nil
}

type mockMailer struct {
	mu   sync.Mutex
	sent []mail.OrderConfirmationData
	err  error
}

func (m *mockMailer) SendOrderConfirmation(_ context.Context, data mail.OrderConfirmationData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, data)
	return nil
}

func (m *mockMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// mockReader hands out queued messages, then blocks until the context ends.
type mockReader struct {
	msgs   chan kafka.Message
	closed bool
	err    error
	reads  atomic.Int32
}

func (r *mockReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	r.reads.Add(1)
	if r.err != nil {
		return kafka.Message{}, r.err
	}
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *mockReader) Close() error {
	r.closed = true
	return nil
}

func testOrder() *domain.Order {
	return &domain.Order{
		ID:          5,
		CustomerID:  7,
		OrderNumber: "ABCD1234",
		TotalAmount: decimal.RequireFromString("28.00"),
		Items: []domain.OrderItem{
			{ProductName: "Mug", Quantity: 2, Price: decimal.RequireFromString("12.50")},
			{ProductName: "Tea", Quantity: 1, Price: decimal.RequireFromString("3.00")},
		},
	}
}

func eventMessage(t *testing.T, eventType string, o *domain.Order) kafka.Message {
	t.Helper()
	payload, err := json.Marshal(domain.NewOrderEvent(o))
	require.NoError(t, err)
	return kafka.Message{
		Key:     []byte("5"),
		Value:   payload,
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(eventType)}},
	}
}

func newTestConsumer(m *mockMailer, r *mockReader) *Consumer {
	orders := &mockOrders{orders: map[int64]*domain.Order{5: testOrder()}}
	return newConsumer(orders, mockUsers{}, m, r, zerolog.Nop())
}

func TestHandle_OrderCreatedSendsConfirmation(t *testing.T) {
	m := &mockMailer{}
	c := newTestConsumer(m, &mockReader{})

	require.NoError(t, c.handle(context.Background(), eventMessage(t, domain.EventOrderCreated, testOrder())))

	require.Len(t, m.sent, 1)
	sent := m.sent[0]
	assert.Equal(t, "ann@example.com", sent.Email)
	assert.Equal(t, "ann", sent.Username)
	assert.Equal(t, "ABCD1234", sent.OrderNumber)
	assert.Equal(t, "28.00", sent.TotalAmount)
	require.Len(t, sent.Items, 2)
	assert.Equal(t, mail.OrderLine{Name: "Mug", Quantity: 2, Subtotal: "25.00"}, sent.Items[0])
}

func TestHandle_StatusChangedSendsNothing(t *testing.T) {
	m := &mockMailer{}
	c := newTestConsumer(m, &mockReader{})

	require.NoError(t, c.handle(context.Background(), eventMessage(t, domain.EventOrderStatusChanged, testOrder())))
	assert.Empty(t, m.sent)
}

func TestHandle_Errors(t *testing.T) {
	m := &mockMailer{}
	c := newTestConsumer(m, &mockReader{})

	err := c.handle(context.Background(), kafka.Message{Value: []byte("{oops")})
	assert.ErrorContains(t, err, "parse message")

	missing := testOrder()
	missing.ID = 99
	err = c.handle(context.Background(), eventMessage(t, domain.EventOrderCreated, missing))
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)

	m.err = errors.New("smtp down")
	err = c.handle(context.Background(), eventMessage(t, domain.EventOrderCreated, testOrder()))
	assert.ErrorContains(t, err, "smtp down")
}

func TestRun_ProcessesUntilCancelled(t *testing.T) {
	m := &mockMailer{}
	r := &mockReader{msgs: make(chan kafka.Message, 2)}
	r.msgs <- eventMessage(t, domain.EventOrderCreated, testOrder())
	r.msgs <- kafka.Message{Value: []byte("not json")}
	c := newTestConsumer(m, r)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return m.count() == 1 }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}

	c.Close()
	assert.True(t, r.closed)
}

func TestRun_BacksOffAfterReadErrors(t *testing.T) {
	r := &mockReader{err: errors.New("broker unreachable")}
	c := newTestConsumer(&mockMailer{}, r)
	c.backoff = 50 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	c.Run(ctx)

	assert.LessOrEqual(t, r.reads.Load(), int32(4))
	assert.GreaterOrEqual(t, r.reads.Load(), int32(2))
}
