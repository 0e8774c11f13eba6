package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"tradedeck/internal/metrics"
	"tradedeck/internal/store"
)

// ChangeDispatcher receives decoded change events from the consumer
type ChangeDispatcher interface {
	Dispatch(store.ChangeEvent)
}

// ChangesConsumer reads row-change events from Kafka and feeds them into the
// change feed so entity watchers can react.
type ChangesConsumer struct {
	reader *kafka.Reader
	feed   ChangeDispatcher
	log    zerolog.Logger
}

// NewChangesConsumer creates a Kafka consumer for row-change events
func NewChangesConsumer(brokers []string, topic, groupID string, feed ChangeDispatcher, log zerolog.Logger) *ChangesConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID + "-changes",
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.LastOffset, // Only react to new changes
		CommitInterval: time.Second,
	})

	return &ChangesConsumer{
		reader: reader,
		feed:   feed,
		log:    log.With().Str("component", "kafka-changes-consumer").Logger(),
	}
}

// Start begins consuming messages from Kafka until the context is cancelled
func (c *ChangesConsumer) Start(ctx context.Context) error {
	c.log.Info().Str("topic", c.reader.Config().Topic).Msg("starting changes consumer")

	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("changes consumer shutting down")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil // Context cancelled, normal shutdown
				}
				c.log.Error().Err(err).Msg("error reading change message")
				continue
			}

			if err := c.processMessage(msg); err != nil {
				c.log.Error().Err(err).Msg("error processing change message")
				// Continue processing other messages
			}
		}
	}
}

// processMessage decodes a single Kafka message and dispatches it
func (c *ChangesConsumer) processMessage(msg kafka.Message) error {
	var change ChangeMessage
	if err := json.Unmarshal(msg.Value, &change); err != nil {
		return fmt.Errorf("failed to unmarshal change event: %w", err)
	}

	if change.EventType != "ROW_CHANGED" {
		c.log.Debug().Str("event_type", change.EventType).Msg("ignoring event type")
		return nil
	}
	if change.Data.Table == "" {
		return fmt.Errorf("change event missing table name")
	}

	metrics.ChangeEvents.WithLabelValues(change.Data.Table).Inc()
	c.feed.Dispatch(change.Data)
	return nil
}

// Close closes the Kafka consumer
func (c *ChangesConsumer) Close() error {
	return c.reader.Close()
}
