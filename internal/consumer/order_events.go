package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_marketplace/internal/domain"
	"github.com/fjod/go_marketplace/internal/mail"
	"github.com/fjod/go_marketplace/internal/publisher"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

type OrderLookup interface {
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
}

type UserLookup interface {
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
}

type ConfirmationMailer interface {
	SendOrderConfirmation(ctx context.Context, data mail.OrderConfirmationData) error
}

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer reads order events and emails the customer when an order is created.
type Consumer struct {
	orders OrderLookup
	users  UserLookup
	mailer ConfirmationMailer
	reader MessageReader
	log    zerolog.Logger

	// backoff is the pause after a failed read.
	backoff time.Duration
}

func NewConsumer(orders OrderLookup, users UserLookup, mailer ConfirmationMailer, log zerolog.Logger, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    publisher.OrderEventsTopic,
		GroupID:  "order-notifications",
		MaxBytes: 10e6, // 10MB
	})
	return newConsumer(orders, users, mailer, reader, log)
}

func newConsumer(orders OrderLookup, users UserLookup, mailer ConfirmationMailer, reader MessageReader, log zerolog.Logger) *Consumer {
	return &Consumer{
		orders: orders,
		users:  users,
		mailer: mailer,
		reader:  reader,
		log:     log.With().Str("component", "order_consumer").Logger(),
		backoff: time.Second,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if c.processMessage(ctx) {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.backoff):
		}
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.log.Warn().Err(err).Msg("error closing kafka reader")
	}
}

// processMessage reports false when the read itself failed.
func (c *Consumer) processMessage(ctx context.Context) bool {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			c.log.Error().Err(err).Msg("error reading message")
		}
		return false
	}

	if err := c.handle(ctx, m); err != nil {
		c.log.Error().Err(err).Str("key", string(m.Key)).Int64("offset", m.Offset).Msg("failed to handle order event")
	}
	return true
}

func eventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == "event_type" {
			return string(h.Value)
		}
	}
	return ""
}

func (c *Consumer) handle(ctx context.Context, m kafka.Message) error {
	var event domain.OrderEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return fmt.Errorf("parse message: %w", err)
	}

	switch eventType(m) {
	case domain.EventOrderCreated:
		return c.sendConfirmation(ctx, event)
	case domain.EventOrderStatusChanged:
		c.log.Info().Int64("order_id", event.OrderID).Str("status", event.Status.String()).Msg("order status changed")
		return nil
	default:
		c.log.Debug().Str("event_type", eventType(m)).Msg("ignoring unknown event")
		return nil
	}
}

func (c *Consumer) sendConfirmation(ctx context.Context, event domain.OrderEvent) error {
	order, err := c.orders.GetOrder(ctx, event.OrderID)
	if err != nil {
		return fmt.Errorf("load order %d: %w", event.OrderID, err)
	}
	user, err := c.users.GetUserByID(ctx, order.CustomerID)
	if err != nil {
		return fmt.Errorf("load customer %d: %w", order.CustomerID, err)
	}

	lines := make([]mail.OrderLine, len(order.Items))
	for i, item := range order.Items {
		lines[i] = mail.OrderLine{
			Name:     item.ProductName,
			Quantity: item.Quantity,
			Subtotal: item.Subtotal().StringFixed(2),
		}
	}

	if err := c.mailer.SendOrderConfirmation(ctx, mail.OrderConfirmationData{
		Username:    user.Username,
		Email:       user.Email,
		OrderNumber: order.OrderNumber,
		TotalAmount: order.TotalAmount.StringFixed(2),
		Items:       lines,
	}); err != nil {
		return fmt.Errorf("send confirmation for order %d: %w", order.ID, err)
	}

	c.log.Info().Int64("order_id", order.ID).Str("order_number", order.OrderNumber).Msg("order confirmation sent")
	return nil
}
