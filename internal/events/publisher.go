package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/premium-entitlement/internal/models"
)

// Kind тип события, он же ключ маршрутизации.
type Kind string

const (
	SubscriptionCreated   Kind = "subscription.created"
	SubscriptionGranted   Kind = "subscription.granted"
	SubscriptionUpdated   Kind = "subscription.updated"
	SubscriptionCancelled Kind = "subscription.cancelled"
	SubscriptionExpired   Kind = "subscription.expired"
	SubscriptionDeleted   Kind = "subscription.deleted"
)

// Event тело сообщения.
type Event struct {
	Kind           Kind        `json:"kind"`
	SubscriptionID string      `json:"subscription_id"`
	UID            string      `json:"uid"`
	Role           models.Role `json:"role"`
	OccurredAt     time.Time   `json:"occurred_at"`
}

// Channel часть *amqp.Channel, нужная для публикации.
type Channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher публикует события в заданный обменник.
type Publisher struct {
	ch       Channel
	exchange string
}

// NewPublisher создаёт Publisher.
func NewPublisher(ch Channel, exchange string) *Publisher {
	return &Publisher{ch: ch, exchange: exchange}
}

// Publish сериализует событие в JSON и отправляет его с ключом, равным типу события.
func (p *Publisher) Publish(ctx context.Context, event Event) error {
	const op = "events.Publish"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = p.ch.Publish(
		p.exchange,
		string(event.Kind),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.OccurredAt,
			Type:         string(event.Kind),
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
