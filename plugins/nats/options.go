package nats

import (
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/miladsoleymani/eventgate/core"
)

// Option configures the NATS producer.
type Option func(*options)

type options struct {
	// Stream, created or updated on start when stream is set.
	stream    string
	subjects  []string
	maxMsgs   int64
	maxBytes  int64
	maxAge    time.Duration
	replicas  int
	retention jetstream.RetentionPolicy
	storage   jetstream.StorageType

	// Publishing
	ackTimeout   time.Duration
	maxPending   int
	drainTimeout time.Duration

	clientID string
	codec    core.Codec
	logg     *slog.Logger
}

func defaults() options {
	return options{
		maxMsgs:      -1, // unlimited
		maxBytes:     -1,
		maxAge:       0,
		replicas:     1,
		retention:    jetstream.LimitsPolicy,
		storage:      jetstream.FileStorage,
		ackTimeout:   30 * time.Second,
		maxPending:   4000,
		drainTimeout: 5 * time.Second,
		codec:        core.JSONCodec{},
		logg:         slog.Default(),
	}
}

// WithStream makes the producer create or update a stream capturing
// subjects on start. With no subjects the stream captures name.>.
func WithStream(name string, subjects ...string) Option {
	return func(o *options) {
		o.stream = name
		o.subjects = subjects
	}
}

// WithMaxMessages sets the maximum number of messages per stream.
func WithMaxMessages(n int64) Option {
	return func(o *options) { o.maxMsgs = n }
}

// WithMaxBytes sets the maximum total size of a stream.
func WithMaxBytes(n int64) Option {
	return func(o *options) { o.maxBytes = n }
}

// WithMaxAge sets the maximum age of messages in the stream.
func WithMaxAge(d time.Duration) Option {
	return func(o *options) { o.maxAge = d }
}

// WithReplicas sets the stream replication factor.
func WithReplicas(n int) Option {
	return func(o *options) { o.replicas = n }
}

// WithRetention sets the stream retention policy.
func WithRetention(r jetstream.RetentionPolicy) Option {
	return func(o *options) { o.retention = r }
}

// WithStorage sets the stream storage type (file or memory).
func WithStorage(s jetstream.StorageType) Option {
	return func(o *options) { o.storage = s }
}

// WithAckTimeout bounds how long a send waits for its publish ack.
func WithAckTimeout(d time.Duration) Option {
	return func(o *options) { o.ackTimeout = d }
}

// WithMaxPending caps the number of unacknowledged async publishes.
func WithMaxPending(n int) Option {
	return func(o *options) { o.maxPending = n }
}

// WithDrainTimeout bounds how long Close waits for pending acks.
func WithDrainTimeout(d time.Duration) Option {
	return func(o *options) { o.drainTimeout = d }
}

// WithClientID sets the connection name.
func WithClientID(id string) Option {
	return func(o *options) { o.clientID = id }
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
