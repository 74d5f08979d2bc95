// Package events publishes payment events to Redis, Kafka or nowhere.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/wekeepgrowing/hospital-payment/internal/config"
	"github.com/wekeepgrowing/hospital-payment/internal/domain/event"
	"github.com/wekeepgrowing/hospital-payment/pkg/messaging"
)

// NewPublisher builds the publisher selected by cfg.Driver. redisClient is
// required only for the redis driver.
func NewPublisher(cfg config.EventsConfig, redisClient redis.UniversalClient, logger *zap.Logger) (event.Publisher, error) {
	switch cfg.Driver {
	case config.EventsDriverRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("events driver redis requires redis.addr")
		}
		return NewRedisPublisher(messaging.WrapRedisClient(redisClient), cfg.Channel, logger), nil
	case config.EventsDriverKafka:
		return NewKafkaPublisher(cfg.Brokers, cfg.Topic, logger), nil
	case config.EventsDriverNoop, "":
		return NoopPublisher{}, nil
	default:
		return nil, fmt.Errorf("unsupported events driver %q", cfg.Driver)
	}
}

// NoopPublisher discards events.
type NoopPublisher struct{}

func (NoopPublisher) PublishPaymentStatusChanged(context.Context, *event.PaymentStatusChanged) error {
	return nil
}

func (NoopPublisher) Close() error { return nil }

// RedisPublisher publishes JSON events on a pub/sub channel.
type RedisPublisher struct {
	client  messaging.RedisClient
	channel string
	logger  *zap.Logger
}

func NewRedisPublisher(client messaging.RedisClient, channel string, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{
		client:  client,
		channel: channel,
		logger:  logger,
	}
}

func (p *RedisPublisher) PublishPaymentStatusChanged(ctx context.Context, evt *event.PaymentStatusChanged) error {
	if err := p.client.Publish(ctx, p.channel, evt); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.channel, err)
	}

	p.logger.Debug("Published payment event",
		zap.String("channel", p.channel),
		zap.String("event_id", evt.ID),
		zap.Int64("payment_id", evt.PaymentID))
	return nil
}

// Close leaves the shared connection open; its owner closes it.
func (p *RedisPublisher) Close() error {
	return nil
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// kafkaBatchTimeout keeps a single synchronous write from waiting for a batch
// to fill; callbacks are acknowledged only after the publish returns.
const kafkaBatchTimeout = 10 * time.Millisecond

// KafkaPublisher writes JSON events keyed by payment id.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			BatchTimeout:           kafkaBatchTimeout,
			AllowAutoTopicCreation: true,
		},
		topic:  topic,
		logger: logger,
	}
}

func (p *KafkaPublisher) PublishPaymentStatusChanged(ctx context.Context, evt *event.PaymentStatusChanged) error {
	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(evt.PaymentID, 10)),
		Value: value,
		Time:  evt.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published payment event",
		zap.String("topic", p.topic),
		zap.String("event_id", evt.ID),
		zap.Int64("payment_id", evt.PaymentID))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
