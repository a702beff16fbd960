package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/lotusbook/payments-backend/pkg/outbox/registry"
)

const (
	brokerPubSub   = "pubsub"
	brokerRabbitMQ = "rabbitmq"
)

type brokerMessage struct {
	Body       []byte
	Attributes map[string]string
}

// broker delivers one outbox row to a named topic and blocks until it is acknowledged.
type broker interface {
	Name() string
	Ping(context.Context) error
	Publish(ctx context.Context, topic string, msg brokerMessage) error
}

func normalizeBroker(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", brokerPubSub:
		return brokerPubSub, nil
	case brokerRabbitMQ, "amqp":
		return brokerRabbitMQ, nil
	}
	return "", fmt.Errorf("unsupported outbox broker %q", kind)
}

type topicPublisher interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type pubsubBroker struct {
	client topicPublisher
}

func (b *pubsubBroker) Name() string { return brokerPubSub }

func (b *pubsubBroker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx)
}

func (b *pubsubBroker) Publish(ctx context.Context, topic string, msg brokerMessage) error {
	pub := b.client.Publisher(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}
	result := pub.Publish(ctx, &gcppubsub.Message{Data: msg.Body, Attributes: msg.Attributes})
	if result == nil {
		return errors.New("publish result is nil")
	}
	_, err := result.Get(ctx)
	return err
}

type exchangePublisher interface {
	Ping(context.Context) error
	Publish(ctx context.Context, routingKey string, body []byte, headers map[string]string) error
}

// rabbitBroker routes on the topic name so consumers bind queues per topic.
type rabbitBroker struct {
	publisher exchangePublisher
}

func (b *rabbitBroker) Name() string { return brokerRabbitMQ }

func (b *rabbitBroker) Ping(ctx context.Context) error {
	return b.publisher.Ping(ctx)
}

func (b *rabbitBroker) Publish(ctx context.Context, topic string, msg brokerMessage) error {
	return b.publisher.Publish(ctx, topic, msg.Body, msg.Attributes)
}
