package publisher

import (
	"context"
	"time"

	"github.com/fjod/go_marketplace/internal/repository"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const (
	OrderEventsTopic = "order-events"
	batchSize        = 100
)

// MessageWriter is the part of *kafka.Writer the poller uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OutboxPoller publishes rows of the outbox table to Kafka and marks them processed.
// Delivery is at least once: a crash between publish and mark republishes the event.
type OutboxPoller struct {
	eventTick time.Duration
	repo      repository.OutboxRepository
	writer    MessageWriter
	log       zerolog.Logger
}

func NewOutboxPoller(repo repository.OutboxRepository, log zerolog.Logger, brokers ...string) *OutboxPoller {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  OrderEventsTopic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}
	return newOutboxPoller(repo, w, time.Second, log)
}

func newOutboxPoller(repo repository.OutboxRepository, w MessageWriter, tick time.Duration, log zerolog.Logger) *OutboxPoller {
	return &OutboxPoller{
		eventTick: tick,
		repo:      repo,
		writer:    w,
		log:       log.With().Str("component", "outbox_poller").Logger(),
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	defer eventTicker.Stop()
	defer func() {
		if err := p.writer.Close(); err != nil {
			p.log.Warn().Err(err).Msg("failed to close kafka writer")
		}
	}()

	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, batchSize)
	if err != nil {
		p.log.Error().Err(err).Msg("failed to fetch events")
		return
	}

	for _, event := range events {
		if err := p.publishToKafka(ctx, event); err != nil {
			p.log.Error().Err(err).Str("event_id", event.ID.String()).Msg("failed to publish event")
			// keep per-aggregate ordering: later events wait for the next tick
			return
		}

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			p.log.Error().Err(err).Str("event_id", event.ID.String()).Msg("failed to mark event as processed")
			continue
		}
		p.log.Debug().Str("event_id", event.ID.String()).Str("event_type", event.EventType).Msg("event published")
	}
}

func (p *OutboxPoller) publishToKafka(ctx context.Context, event *repository.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateId), // order id, keeps one order's events on one partition
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}

	return p.writer.WriteMessages(ctx, msg)
}
