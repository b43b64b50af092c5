// Package notify publishes post-checkout events to Kafka. Publishing is
// fire-and-forget: a broker outage never fails the checkout or webhook path.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/canopyhq/canopy/internal/domain/order"
)

// OrderPaidEvent is the message body published when an order is confirmed.
type OrderPaidEvent struct {
	OrderID         string          `json:"order_id"`
	ReferenceNumber string          `json:"reference_number"`
	UserID          string          `json:"user_id"`
	Currency        string          `json:"currency"`
	GrandTotal      decimal.Decimal `json:"grand_total"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
}

// KafkaPublisher writes order events to a Kafka topic, keyed by order id so
// events for the same order land on the same partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			WriteTimeout:           5 * time.Second,
			BatchTimeout:           50 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
	}
}

// OrderPaid publishes an order-paid event. Failures are logged and dropped.
func (p *KafkaPublisher) OrderPaid(ctx context.Context, o *order.Order) {
	lg := zctx.From(ctx)

	body, err := json.Marshal(OrderPaidEvent{
		OrderID:         o.ID,
		ReferenceNumber: o.ReferenceNumber,
		UserID:          o.UserID,
		Currency:        o.Currency,
		GrandTotal:      o.GrandTotal,
		PaidAt:          o.PaidAt,
	})
	if err != nil {
		lg.Error("Marshal order paid event", zap.String("order_id", o.ID), zap.Error(err))
		return
	}

	msg := kafka.Message{
		Key:   []byte(o.ID),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("order.paid")},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		lg.Error("Publish order paid event", zap.String("order_id", o.ID), zap.Error(err))
		return
	}

	lg.Debug("Published order paid event", zap.String("order_id", o.ID))
}

// Close releases the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Noop discards all events. Used when no broker is configured.
type Noop struct{}

func (Noop) OrderPaid(context.Context, *order.Order) {}
