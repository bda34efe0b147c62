package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
)

const PaymentConfirmedEventType = "payment.confirmed"

type PaymentConfirmed struct {
	PaymentID    string    `json:"payment_id"`
	OrderID      string    `json:"order_id"`
	UserID       string    `json:"user_id"`
	Amount       int64     `json:"amount"`
	TotalCoins   int64     `json:"total_coins"`
	CurrentCoins int64     `json:"current_coins"`
	ApprovedAt   time.Time `json:"approved_at"`
}

type envelope struct {
	EventType string `json:"event_type"`
	Data      any    `json:"data"`
}

type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

// NewProducer connects a synchronous producer to brokers, waiting for the
// cluster to come up for a bounded number of attempts.
func NewProducer(brokers []string, topic string) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1

	var (
		producer sarama.SyncProducer
		err      error
	)
	for i := 1; i <= 5; i++ {
		producer, err = sarama.NewSyncProducer(brokers, config)
		if err == nil {
			slog.Info("Kafka producer initialized", "brokers", brokers, "topic", topic)
			return NewProducerFrom(producer, topic), nil
		}
		slog.Warn("waiting for Kafka", "attempt", i, "error", err)
		time.Sleep(2 * time.Second)
	}
	return nil, fmt.Errorf("failed to start Kafka producer: %w", err)
}

func NewProducerFrom(producer sarama.SyncProducer, topic string) *Producer {
	return &Producer{producer: producer, topic: topic}
}

// PublishPaymentConfirmed sends the event keyed by user so a consumer sees a
// user's confirmations in commit order.
func (p *Producer) PublishPaymentConfirmed(ctx context.Context, evt PaymentConfirmed) error {
	data, err := json.Marshal(envelope{EventType: PaymentConfirmedEventType, Data: evt})
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", PaymentConfirmedEventType, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(evt.UserID),
		Value: sarama.ByteEncoder(data),
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("failed to send %s event: %w", PaymentConfirmedEventType, err)
	}

	slog.DebugContext(ctx, "published event", "type", PaymentConfirmedEventType, "order_id", evt.OrderID)
	return nil
}

func (p *Producer) Close() error {
	return p.producer.Close()
}
