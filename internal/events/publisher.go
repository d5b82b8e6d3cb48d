package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/brybell/backend/internal/model"
)

// Exchange carries order lifecycle notifications. Consumers are external;
// nothing in this repo mutates state from these events.
const Exchange = "order.events"

const (
	KeyOrderCreated   = "order.created"
	KeyStatusChanged  = "order.status_changed"
	KeyPaymentUpdated = "order.payment_updated"
	KeyOrderCancelled = "order.cancelled"
)

type OrderEvent struct {
	Event         string              `json:"event"`
	OrderID       int64               `json:"order_id"`
	UserID        int64               `json:"user_id,omitempty"`
	Status        model.OrderStatus   `json:"status,omitempty"`
	PaymentStatus model.PaymentStatus `json:"payment_status,omitempty"`
	OccurredAt    time.Time           `json:"occurred_at"`
}

// Setup declares the order events exchange.
func Setup(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s exchange: %w", Exchange, err)
	}
	return nil
}

// Publisher is nil-safe: a nil Publisher (or one built from a nil channel)
// drops events, so services run without a broker in tests.
type Publisher struct {
	ch *amqp.Channel
}

func NewPublisher(ch *amqp.Channel) *Publisher {
	return &Publisher{ch: ch}
}

func (p *Publisher) Publish(ctx context.Context, key string, evt OrderEvent) error {
	if p == nil || p.ch == nil {
		return nil
	}

	evt.OccurredAt = time.Now().UTC()
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	return p.ch.PublishWithContext(ctx, Exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
	})
}
