package mq

import (
	"context"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

type recordingChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

func (c *recordingChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	c.exchange = exchange
	c.key = key
	c.msg = msg
	return nil
}

func (c *recordingChannel) Close() error { return nil }

func TestPublishSetsPersistentJSONMessage(t *testing.T) {
	ch := &recordingChannel{}
	pub := &Publisher{ch: ch, exchange: "lotus.events"}

	err := pub.Publish(context.Background(), "payment_succeeded", []byte(`{"ok":true}`), map[string]string{
		"event_id":   "evt-1",
		"event_type": "payment_succeeded",
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if ch.exchange != "lotus.events" || ch.key != "payment_succeeded" {
		t.Fatalf("unexpected routing %s/%s", ch.exchange, ch.key)
	}
	if ch.msg.DeliveryMode != amqp.Persistent {
		t.Fatalf("expected persistent delivery")
	}
	if ch.msg.MessageId != "evt-1" {
		t.Fatalf("expected message id from event_id header, got %q", ch.msg.MessageId)
	}
	if ch.msg.Headers["event_type"] != "payment_succeeded" {
		t.Fatalf("missing event_type header: %+v", ch.msg.Headers)
	}
}

func TestPublishRequiresChannel(t *testing.T) {
	var pub *Publisher
	if err := pub.Publish(context.Background(), "k", nil, nil); err == nil {
		t.Fatalf("expected error for nil publisher")
	}
	if err := pub.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping error for nil publisher")
	}
}

func TestNewPublisherValidatesInput(t *testing.T) {
	if _, err := NewPublisher("", "x"); err == nil {
		t.Fatalf("expected url error")
	}
	if _, err := NewPublisher("amqp://localhost", ""); err == nil {
		t.Fatalf("expected exchange error")
	}
}
