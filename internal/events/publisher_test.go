package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rabbitmq/amqp091-go"

	"goto-jobdiva-bridge/internal/models"
)

type recordingChannel struct {
	declared   []string
	published  []amqp091.Publishing
	keys       []string
	declareErr error
	publishErr error
	closed     bool
}

func (c *recordingChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error) {
	if !durable {
		panic("queue must be durable")
	}
	c.declared = append(c.declared, name)
	return amqp091.Queue{Name: name}, c.declareErr
}

func (c *recordingChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	if c.publishErr != nil {
		return c.publishErr
	}
	c.keys = append(c.keys, key)
	c.published = append(c.published, msg)
	return nil
}

func (c *recordingChannel) Close() error {
	c.closed = true
	return nil
}

func TestRabbitPublisherPublishesEnvelope(t *testing.T) {
	ch := &recordingChannel{}
	p, err := newRabbitPublisher(ch, "interaction_logs")
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	if len(ch.declared) != 1 || ch.declared[0] != "interaction_logs" {
		t.Fatalf("queue not declared: %v", ch.declared)
	}

	l := &models.InteractionLog{ID: "log-1", Kind: models.KindSMS, Direction: models.DirectionOutbound, Status: "sent"}
	if err := p.Publish(context.Background(), InteractionCreated, l); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(ch.published) != 1 || ch.keys[0] != "interaction_logs" {
		t.Fatalf("expected one message routed to the queue, got %v", ch.keys)
	}
	msg := ch.published[0]
	if msg.Type != InteractionCreated || msg.MessageId != "log-1" || msg.ContentType != "application/json" {
		t.Fatalf("unexpected message properties %+v", msg)
	}
	var env struct {
		Event string `json:"event"`
		Log   struct {
			ID   string `json:"id"`
			Kind string `json:"interaction_type"`
		} `json:"log"`
	}
	if err := json.Unmarshal(msg.Body, &env); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if env.Event != InteractionCreated || env.Log.ID != "log-1" || env.Log.Kind != "sms" {
		t.Fatalf("unexpected envelope %+v", env)
	}

	if err := p.Close(); err != nil || !ch.closed {
		t.Fatalf("close: %v", err)
	}
}

func TestRabbitPublisherErrors(t *testing.T) {
	if _, err := newRabbitPublisher(&recordingChannel{declareErr: errors.New("denied")}, "q"); err == nil {
		t.Fatalf("expected declare error")
	}

	ch := &recordingChannel{publishErr: errors.New("closed")}
	p, _ := newRabbitPublisher(ch, "q")
	if err := p.Publish(context.Background(), InteractionMerged, &models.InteractionLog{ID: "x"}); err == nil {
		t.Fatalf("expected publish error")
	}
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	if err := p.Publish(context.Background(), InteractionCreated, &models.InteractionLog{}); err != nil {
		t.Fatalf("nop publish: %v", err)
	}
}
