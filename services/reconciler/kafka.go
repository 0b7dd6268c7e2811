package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/saaslab/org-management-system/shared/config"
	"github.com/saaslab/org-management-system/shared/events"
)

// KafkaConsumer receives repair events so queued repairs are worked
// promptly instead of waiting for the next poll sweep
type KafkaConsumer struct {
	reader *kafka.Reader
}

// NewKafkaConsumer creates a consumer on the repair topic
func NewKafkaConsumer(cfg config.KafkaConfig) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{cfg.Broker},
		Topic:          cfg.RepairTopic,
		GroupID:        "reconciler-service",
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
	})
	return &KafkaConsumer{reader: reader}
}

// ConsumeRepairEvents reads repair events and hands them to the handler.
// Read timeouts are expected when the topic is idle and are not errors.
func (kc *KafkaConsumer) ConsumeRepairEvents(handler func(events.RepairEvent)) {
	logrus.Info("Starting repair events consumer...")

	for {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		msg, err := kc.reader.ReadMessage(ctx)
		cancel()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logrus.Errorf("Error reading repair event: %v", err)
			time.Sleep(1 * time.Second)
			continue
		}

		var event events.RepairEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logrus.Errorf("Error unmarshaling repair event: %v", err)
			continue
		}

		handler(event)
	}
}

// Close closes the Kafka consumer
func (kc *KafkaConsumer) Close() error {
	if err := kc.reader.Close(); err != nil {
		return fmt.Errorf("failed to close repair reader: %w", err)
	}
	return nil
}
