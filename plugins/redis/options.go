package redis

import (
	"log/slog"
	"time"

	"github.com/miladsoleymani/eventgate/core"
)

// Option configures the Redis Streams producer.
type Option func(*options)

type options struct {
	workers     int
	queueSize   int
	maxAttempts int
	backoff     time.Duration
	maxLen      int64
	autoCreate  bool

	codec core.Codec
	logg  *slog.Logger
}

func defaults() options {
	return options{
		workers:     16,
		queueSize:   1024,
		maxAttempts: 3,
		backoff:     50 * time.Millisecond,
		autoCreate:  true,
		codec:       core.JSONCodec{},
		logg:        slog.Default(),
	}
}

// WithWorkers sets how many XADD calls run concurrently.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithQueueSize bounds the number of sends in flight. Sends beyond it fail
// immediately with core.ErrBufferFull.
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithMaxAttempts sets how often a failed XADD is tried before giving up.
func WithMaxAttempts(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithBackoff sets the pause between attempts.
func WithBackoff(d time.Duration) Option {
	return func(o *options) { o.backoff = d }
}

// WithMaxLen trims each stream to about n entries. Zero disables trimming.
func WithMaxLen(n int64) Option {
	return func(o *options) { o.maxLen = n }
}

// WithAutoCreate controls whether XADD may create missing streams. When
// disabled, sends to a missing stream fail as TopicNotFound.
func WithAutoCreate(enabled bool) Option {
	return func(o *options) { o.autoCreate = enabled }
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
