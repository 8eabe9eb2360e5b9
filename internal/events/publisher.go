// Package events publishes stored interaction logs to RabbitMQ for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"goto-jobdiva-bridge/internal/models"
)

// Event types.
const (
	InteractionCreated = "interaction.created"
	InteractionMerged  = "interaction.merged"
)

// Publisher announces stored interaction logs.
type Publisher interface {
	Publish(ctx context.Context, eventType string, l *models.InteractionLog) error
	Close() error
}

// Envelope is the JSON body of every published message.
type Envelope struct {
	Event     string                 `json:"event"`
	Log       *models.InteractionLog `json:"log"`
	Published time.Time              `json:"published_at"`
}

// NopPublisher drops every event. Used when RabbitMQ is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, eventType string, l *models.InteractionLog) error {
	log.Debug().Str("eventType", eventType).Msg("RabbitMQ publishing is disabled, not sending event")
	return nil
}

func (NopPublisher) Close() error { return nil }

// amqpChannel is the part of *amqp091.Channel we use.
type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// RabbitPublisher publishes to a single durable queue on the default exchange.
type RabbitPublisher struct {
	mu      sync.Mutex
	conn    *amqp091.Connection
	channel amqpChannel
	queue   string
	now     func() time.Time
}

// NewRabbitPublisher dials url and declares queue.
func NewRabbitPublisher(url, queue string) (*RabbitPublisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("could not connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("could not open RabbitMQ channel: %w", err)
	}
	p, err := newRabbitPublisher(ch, queue)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	log.Info().Str("queue", queue).Msg("RabbitMQ connection established.")
	return p, nil
}

func newRabbitPublisher(ch amqpChannel, queue string) (*RabbitPublisher, error) {
	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		return nil, fmt.Errorf("could not declare RabbitMQ queue %s: %w", queue, err)
	}
	return &RabbitPublisher{channel: ch, queue: queue, now: time.Now}, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, eventType string, l *models.InteractionLog) error {
	body, err := json.Marshal(Envelope{Event: eventType, Log: l, Published: p.now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(ctx,
		"",      // exchange (default)
		p.queue, // routing key = queue
		false,   // mandatory
		false,   // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Type:         eventType,
			MessageId:    l.ID,
			Timestamp:    p.now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		log.Error().Err(err).Str("queue", p.queue).Str("eventType", eventType).Msg("Could not publish to RabbitMQ")
		return err
	}
	log.Debug().Str("queue", p.queue).Str("eventType", eventType).Str("logID", l.ID).Msg("Published event to RabbitMQ")
	return nil
}

func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.channel.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
