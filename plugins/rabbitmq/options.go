package rabbitmq

import (
	"log/slog"
	"time"

	"github.com/miladsoleymani/eventgate/core"
)

// Option configures the RabbitMQ producer.
type Option func(*options)

type options struct {
	// Exchange settings
	exchange     string
	exchangeType string
	routingKey   string

	// Queue settings, used when declareQueues is set
	declareQueues bool
	durable       bool
	autoDelete    bool

	drainTimeout time.Duration
	codec        core.Codec
	logg         *slog.Logger
}

func defaults() options {
	return options{
		exchange:     "",       // default exchange, routes by queue name
		exchangeType: "direct", // direct, fanout, topic, headers
		durable:      true,
		drainTimeout: 5 * time.Second,
		codec:        core.JSONCodec{},
		logg:         slog.Default(),
	}
}

// WithExchange sets the exchange name and type.
func WithExchange(name, kind string) Option {
	return func(o *options) {
		o.exchange = name
		o.exchangeType = kind
	}
}

// WithRoutingKey publishes every topic under one fixed routing key.
func WithRoutingKey(key string) Option {
	return func(o *options) { o.routingKey = key }
}

// WithDeclareQueues declares a queue named after each topic on first use.
// Without it, publishing to a topic with no bound queue fails as not found.
func WithDeclareQueues(declare bool) Option {
	return func(o *options) { o.declareQueues = declare }
}

// WithDurable controls whether declared queues survive broker restart.
func WithDurable(d bool) Option {
	return func(o *options) { o.durable = d }
}

// WithAutoDelete causes declared queues to be deleted when the last consumer disconnects.
func WithAutoDelete(d bool) Option {
	return func(o *options) { o.autoDelete = d }
}

// WithDrainTimeout bounds how long Close waits for outstanding confirms.
func WithDrainTimeout(d time.Duration) Option {
	return func(o *options) { o.drainTimeout = d }
}

// WithCodec sets the event encoding.
func WithCodec(c core.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logg = l
		}
	}
}
