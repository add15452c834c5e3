package kafka

import (
	"context"
	"encoding/json"

	"order-payment-service/models"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher is what the payment service needs from this package.
type EventPublisher interface {
	SendPaymentEvent(ctx context.Context, event models.PaymentEvent) error
	Close() error
}

type PaymentEventProducer struct {
	writer *kafka.Writer
	topic  string
	logger *zap.Logger
}

func NewPaymentEventProducer(brokers []string, topic string, logger *zap.Logger) *PaymentEventProducer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	logger.Info("Kafka producer initialized",
		zap.String("topic", topic),
		zap.Strings("brokers", brokers),
	)
	return &PaymentEventProducer{writer: w, topic: topic, logger: logger}
}

// SendPaymentEvent publishes a payment event keyed by order id.
func (p *PaymentEventProducer) SendPaymentEvent(ctx context.Context, event models.PaymentEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.OrderID),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish payment event",
			zap.String("order_id", event.OrderID),
			zap.String("type", event.Type),
			zap.Error(err),
		)
		return err
	}

	p.logger.Info("Payment event published",
		zap.String("order_id", event.OrderID),
		zap.String("type", event.Type),
	)
	return nil
}

func (p *PaymentEventProducer) Close() error {
	p.logger.Info("Closing Kafka producer", zap.String("topic", p.topic))
	return p.writer.Close()
}
