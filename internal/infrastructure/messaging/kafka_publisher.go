package messaging

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"

	"github.com/admissions-hub/admissions-hub/pkg/circuitbreaker"
	"github.com/admissions-hub/admissions-hub/pkg/logger"
	"github.com/admissions-hub/admissions-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// KAFKA PUBLISHER
// ══════════════════════════════════════════════════════════════════════════════

// MessageWriter is the part of kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisherConfig contains configuration for KafkaPublisher.
type KafkaPublisherConfig struct {
	Brokers  []string
	Topic    string
	Username string
	Password string
	UseTLS   bool

	WriteTimeout time.Duration

	// Retrier defaults to retry.BrokerRetrier().
	Retrier *retry.Retrier

	// Breaker defaults to circuitbreaker.BrokerBreaker. It wraps the whole
	// retry loop, so an open circuit skips the retries too.
	Breaker *circuitbreaker.CircuitBreaker

	Logger *logger.Logger
}

// KafkaPublisher writes notification messages to a Kafka topic.
// A nil *KafkaPublisher accepts and drops every message.
type KafkaPublisher struct {
	writer       MessageWriter
	topic        string
	writeTimeout time.Duration
	retrier      *retry.Retrier
	breaker      *circuitbreaker.CircuitBreaker
	logger       *logger.Logger
}

// NewKafkaPublisher creates a publisher with a synchronous kafka.Writer.
func NewKafkaPublisher(config KafkaPublisherConfig) (*KafkaPublisher, error) {
	if len(config.Brokers) == 0 {
		return nil, errors.New("kafka: at least one broker is required")
	}
	if config.Topic == "" {
		return nil, errors.New("kafka: topic is required")
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Second
	}

	transport := &kafka.Transport{}
	if config.Username != "" {
		transport.SASL = plain.Mechanism{
			Username: config.Username,
			Password: config.Password,
		}
	}
	if config.UseTLS {
		transport.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		Transport:    transport,
		WriteTimeout: config.WriteTimeout,
	}

	return NewKafkaPublisherWithWriter(writer, config), nil
}

// NewKafkaPublisherWithWriter wraps an existing writer.
func NewKafkaPublisherWithWriter(writer MessageWriter, config KafkaPublisherConfig) *KafkaPublisher {
	if config.Logger == nil {
		config.Logger = logger.Default()
	}
	if config.Retrier == nil {
		config.Retrier = retry.BrokerRetrier()
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Second
	}
	log := config.Logger.With(logger.Component("kafka_publisher"), logger.String("topic", config.Topic))
	if config.Breaker == nil {
		config.Breaker = circuitbreaker.BrokerBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		})
	}
	return &KafkaPublisher{
		writer:       writer,
		topic:        config.Topic,
		writeTimeout: config.WriteTimeout,
		retrier:      config.Retrier,
		breaker:      config.Breaker,
		logger:       log,
	}
}

// Publish writes one message. The key keeps messages for the same
// application on the same partition, preserving their order.
func (p *KafkaPublisher) Publish(ctx context.Context, key string, value []byte, headers map[string]string) error {
	if p == nil || p.writer == nil {
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  time.Now().UTC(),
	}
	for k, v := range headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	err := p.breaker.Execute(ctx, func(ctx context.Context) error {
		return p.retrier.Do(ctx, func(ctx context.Context) error {
			writeCtx, cancel := context.WithTimeout(ctx, p.writeTimeout)
			defer cancel()
			return p.writer.WriteMessages(writeCtx, msg)
		})
	})
	if errors.Is(err, circuitbreaker.ErrOpen) || errors.Is(err, circuitbreaker.ErrProbeInFlight) {
		p.logger.Warn("broker circuit open, notification dropped", logger.String("key", key))
		return fmt.Errorf("kafka publish to %s: %w", p.topic, err)
	}
	if err != nil {
		p.logger.Error("failed to publish message", logger.String("key", key), logger.Err(err))
		return fmt.Errorf("kafka publish to %s: %w", p.topic, err)
	}

	p.logger.Debug("message published", logger.String("key", key))
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
