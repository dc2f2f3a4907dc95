// Package service provides the RabbitMQ publisher for activity events.
// Errors are logged and returned so callers can ignore failures without
// interrupting the main request flow.
package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/iliyamo/evo-ticket-ledger/internal/queue"
)

// ActivityPublisher implements queue.Notifier on top of RabbitMQ. Each
// publish opens its own connection; activity volume is a few messages per
// ticket, so there is no pool.
type ActivityPublisher struct {
	URL string
}

// NewActivityPublisher uses url, or the environment when url is empty.
func NewActivityPublisher(url string) *ActivityPublisher {
	if url == "" {
		url = q.BrokerURL()
	}
	return &ActivityPublisher{URL: url}
}

// Publish sends ev to the durable ticket.activity queue as a persistent
// JSON message.
func (p *ActivityPublisher) Publish(ctx context.Context, ev q.ActivityEvent) error {
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		q.ActivityQueueName, // name
		true,                // durable
		false,               // autoDelete
		false,               // exclusive
		false,               // noWait
		nil,                 // args
	); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		log.Printf("rabbitmq: marshal event failed: %v", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", q.ActivityQueueName, false, false, pub); err != nil {
		log.Printf("rabbitmq: publish failed: %v", err)
		return err
	}
	return nil
}
