package kafka

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/nkiryanov/pixwallet/internal/logger"
	"github.com/nkiryanov/pixwallet/internal/models"
	"github.com/nkiryanov/pixwallet/internal/service/outbox"
)

const DefaultTopic = "pixwallet.ledger-events"

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool
}

type Config struct {
	Brokers []string
	Topic   string
	Retry   RetryConfig
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher sends ledger events to a Kafka topic keyed by wallet id
type Publisher struct {
	writer messageWriter
	topic  string
	retry  RetryConfig
	logger logger.Logger
}

func NewPublisher(cfg Config, l logger.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are not configured")
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}

	writer := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}

	return newPublisher(writer, cfg.Topic, cfg.Retry, l), nil
}

func newPublisher(writer messageWriter, topic string, retry RetryConfig, l logger.Logger) *Publisher {
	if retry.MaxAttempts == 0 {
		retry.MaxAttempts = 5
	}
	if retry.BaseDelay == 0 {
		retry.BaseDelay = 100 * time.Millisecond
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 10 * time.Second
	}

	return &Publisher{
		writer: writer,
		topic:  topic,
		retry:  retry,
		logger: l.WithGroup("kafka").With("topic", topic),
	}
}

func (p *Publisher) Publish(ctx context.Context, events []models.LedgerEvent) error {
	msgs := make([]kafkago.Message, 0, len(events))
	for _, e := range events {
		key, value, err := outbox.Encode(e)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafkago.Message{
			Key:   key,
			Value: value,
			Headers: []kafkago.Header{
				{Key: "kind", Value: []byte(e.Kind)},
			},
		})
	}

	return p.publishWithRetry(ctx, msgs)
}

func (p *Publisher) publishWithRetry(ctx context.Context, msgs []kafkago.Message) error {
	var lastErr error

	for attempt := 0; attempt < p.retry.MaxAttempts; attempt++ {
		err := p.writer.WriteMessages(ctx, msgs...)
		if err == nil {
			if attempt > 0 {
				p.logger.Info("Events published after retry", "attempts", attempt+1, "count", len(msgs))
			}
			return nil
		}

		lastErr = err

		if attempt == p.retry.MaxAttempts-1 {
			break
		}

		delay := p.backoff(attempt)
		p.logger.Warn("Publish failed, retrying", "attempt", attempt+1, "max_attempts", p.retry.MaxAttempts, "delay", delay, "error", err)

		select {
		case <-time.After(delay):
			continue
		case <-ctx.Done():
			return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
	}

	return fmt.Errorf("failed to publish %d events to topic %q after %d attempts: %w", len(msgs), p.topic, p.retry.MaxAttempts, lastErr)
}

func (p *Publisher) backoff(attempt int) time.Duration {
	delay := time.Duration(math.Pow(2, float64(attempt))) * p.retry.BaseDelay
	if delay > p.retry.MaxDelay {
		delay = p.retry.MaxDelay
	}

	if p.retry.Jitter {
		jitter := time.Duration(rand.Float64() * float64(delay) * 0.3)
		delay = delay + jitter - time.Duration(float64(delay)*0.15)
	}

	return delay
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
