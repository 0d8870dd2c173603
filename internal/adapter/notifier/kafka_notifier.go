package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"stocktrack/internal/core/domain"
)

// KafkaNotifier publishes stock-change events to a Kafka topic. Messages
// are keyed by storeID:sku so changes to one item land on one partition.
// Delivery is best-effort from the engine's point of view; the caller
// swallows any error returned here.
type KafkaNotifier struct {
	writer *kafka.Writer
}

func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.Hash{},
		},
	}
}

func (n *KafkaNotifier) Notify(ctx context.Context, event domain.StockChangedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal stock event: %w", err)
	}

	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.StoreID + ":" + event.SKU),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("write stock event: %w", err)
	}
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
