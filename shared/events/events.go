package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/saaslab/org-management-system/shared/config"
)

// RepairEvent announces that a signup was left in a partial state and a
// repair row has been queued. The reconciler uses it as a prompt; the
// provision_repairs table remains the source of truth.
type RepairEvent struct {
	RepairID         uuid.UUID `json:"repair_id"`
	OrganizationID   uuid.UUID `json:"organization_id"`
	OrganizationName string    `json:"organization_name"`
	DatabaseName     string    `json:"database_name"`
	Reason           string    `json:"reason"`
	FailedAt         time.Time `json:"failed_at"`
}

// RepairPublisher publishes repair events
type RepairPublisher interface {
	PublishRepair(ctx context.Context, event RepairEvent) error
}

// Producer publishes events to Kafka
type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a Kafka producer for the repair topic
func NewProducer(cfg config.KafkaConfig) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Broker),
			Topic:        cfg.RepairTopic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// PublishRepair sends a repair event, keyed by organization name so events
// for one organization stay ordered
func (p *Producer) PublishRepair(ctx context.Context, event RepairEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal repair event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.OrganizationName),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to publish repair event: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer
func (p *Producer) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer: %w", err)
	}
	return nil
}
