package kafka

import (
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/miladsoleymani/eventgate/core"
)

// Option configures the Kafka producer.
type Option func(*options)

type options struct {
	balancer     kafka.Balancer
	batchSize    int
	batchTimeout time.Duration
	maxAttempts  int
	writeTimeout time.Duration
	requiredAcks kafka.RequiredAcks
	autoCreate   bool

	clientID string
	dialer   *kafka.Dialer
	codec    core.Codec
	logg     *slog.Logger
}

func defaults() options {
	return options{
		// Hash keeps every event with the same key on one partition.
		balancer:     &kafka.Hash{},
		batchSize:    100,
		batchTimeout: 10 * time.Millisecond,
		maxAttempts:  3,
		writeTimeout: 10 * time.Second,
		requiredAcks: kafka.RequireAll,
		codec:        core.JSONCodec{},
		logg:         slog.Default(),
	}
}

// WithBalancer sets the partition balancer for the writer.
func WithBalancer(b kafka.Balancer) Option {
	return func(o *options) { o.balancer = b }
}

// WithBatchSize sets the maximum batch size for writes.
func WithBatchSize(n int) Option {
	return func(o *options) { o.batchSize = n }
}

// WithBatchTimeout sets how long the writer waits to fill a batch.
func WithBatchTimeout(d time.Duration) Option {
	return func(o *options) { o.batchTimeout = d }
}

// WithMaxAttempts sets how often the writer retries a batch before failing it.
func WithMaxAttempts(n int) Option {
	return func(o *options) { o.maxAttempts = n }
}

// WithWriteTimeout bounds a single produce request.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) { o.writeTimeout = d }
}

// WithRequiredAcks sets the ack level the broker must reach.
func WithRequiredAcks(acks kafka.RequiredAcks) Option {
	return func(o *options) { o.requiredAcks = acks }
}

// WithAutoCreateTopics lets the broker create unknown topics on first write.
func WithAutoCreateTopics(enabled bool) Option {
	return func(o *options) { o.autoCreate = enabled }
}

// WithClientID names the producer to the cluster.
func WithClientID(id string) Option {
	return func(o *options) { o.clientID = id }
}

// WithDialer sets a custom dialer for TLS/SASL connections.
func WithDialer(d *kafka.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithCodec sets the event encoding.
func WithCodec(c core.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithLogger sets the logger for writer errors.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logg = l
		}
	}
}
