package rabbitmq

import (
	"context"
	"encoding/json"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher writes JSON messages to a single exchange. A channel is not
// safe for concurrent publish, hence the mutex.
type Publisher struct {
	mu       sync.Mutex
	ch       *amqp.Channel
	exchange string
	durable  bool
}

func NewPublisher(conn *amqp.Connection, exchange, kind string, durable bool) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	if err := ch.ExchangeDeclare(exchange, kind, true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, err
	}

	return &Publisher{
		ch:       ch,
		exchange: exchange,
		durable:  durable,
	}, nil
}

func (p *Publisher) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	deliveryMode := amqp.Transient
	if p.durable {
		deliveryMode = amqp.Persistent
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: deliveryMode,
		Body:         body,
	})
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.Close()
}
