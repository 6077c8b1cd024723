package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends mail through RabbitMQ.  It opens a connection per
// message; reset mail is rare enough that a long-lived channel and its
// reconnect handling are not worth having on the request side.
type Publisher struct {
	url   string
	queue string
	now   func() time.Time
}

// NewPublisher returns a Publisher for the broker at url.  An empty queue
// name selects DefaultMailQueue.
func NewPublisher(url, queue string) *Publisher {
	if queue == "" {
		queue = DefaultMailQueue
	}
	return &Publisher{url: url, queue: queue, now: time.Now}
}

// Send publishes one persistent EmailMessage.
func (p *Publisher) Send(ctx context.Context, to, subject, body string) error {
	pub, err := p.publishing(EmailMessage{To: to, Subject: subject, Body: body})
	if err != nil {
		return err
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := declare(ch, p.queue); err != nil {
		return err
	}
	if err := ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		pub,
	); err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}

func (p *Publisher) publishing(m EmailMessage) (amqp.Publishing, error) {
	m.QueuedAt = p.now().UTC()
	body, err := json.Marshal(m)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal email: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    m.QueuedAt,
		Body:         body,
	}, nil
}

// declare makes sure the durable queue exists; it is idempotent.
func declare(ch *amqp.Channel, queue string) error {
	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		return fmt.Errorf("queue declare %s: %w", queue, err)
	}
	return nil
}
