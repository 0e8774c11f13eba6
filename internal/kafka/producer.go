package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"tradedeck/internal/store"
)

// ChangeMessage is the wire format of a row-change event
type ChangeMessage struct {
	EventType string            `json:"event_type"`
	Source    string            `json:"source"`
	Timestamp string            `json:"timestamp"`
	Data      store.ChangeEvent `json:"data"`
}

// Producer publishes row-change events so every service instance (including
// this one) observes local writes through the same change feed.
type Producer struct {
	writer *kafka.Writer
	log    zerolog.Logger
}

// NewProducer creates a Kafka producer for the changes topic
func NewProducer(brokers []string, topic string, log zerolog.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}
	return &Producer{
		writer: writer,
		log:    log.With().Str("component", "kafka-producer").Logger(),
	}
}

// PublishChange publishes a single row-change event, keyed by table name
func (p *Producer) PublishChange(ctx context.Context, ev store.ChangeEvent) error {
	msg := ChangeMessage{
		EventType: "ROW_CHANGED",
		Source:    "dashboard-service",
		Timestamp: time.Now().Format(time.RFC3339),
		Data:      ev,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.Table),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("failed to publish change event: %w", err)
	}
	p.log.Debug().Str("table", ev.Table).Str("op", ev.Op).Msg("published change event")
	return nil
}

// Close closes the underlying writer
func (p *Producer) Close() error {
	return p.writer.Close()
}
