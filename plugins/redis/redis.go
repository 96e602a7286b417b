// Package redis implements core.Producer on Redis Streams.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/redis/go-redis/v9"

	"github.com/miladsoleymani/eventgate/broker"
	"github.com/miladsoleymani/eventgate/core"
)

// Stream entry fields.
const (
	FieldID    = "id"
	FieldKey   = "key"
	FieldType  = "content_type"
	FieldEvent = "event"
)

func init() {
	broker.Register("redis", func(cfg broker.Config) (core.Producer, error) {
		if len(cfg.Brokers) == 0 {
			return nil, fmt.Errorf("eventgate/redis: a server address is required")
		}
		ro := &redis.Options{Addr: cfg.Brokers[0]}
		if v, ok := cfg.String("password"); ok {
			ro.Password = v
		}
		if v, ok := cfg.Int("db"); ok {
			ro.DB = v
		}
		return New(ro, optsFromConfig(cfg)...), nil
	})
}

// Producer appends events to a stream named after the topic.
//
// XADD is a blocking round trip, so sends run on a bounded pond worker pool
// and resolve their future when the entry id comes back. Ack.ID is the entry
// id and Ack.Offset its millisecond part.
type Producer struct {
	client   *redis.Client
	pool     pond.Pool
	opts     options
	inflight atomic.Int64

	mu     sync.RWMutex
	closed bool
}

// New creates a Redis Streams Producer.
func New(ro *redis.Options, fns ...Option) *Producer {
	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}
	return &Producer{
		client: redis.NewClient(ro),
		pool:   pond.NewPool(opts.workers),
		opts:   opts,
	}
}

// Send queues an XADD of ev to stream topic.
func (p *Producer) Send(ctx context.Context, topic, key string, ev core.PageEvent) *core.Future {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return core.Failed(core.ErrProducerClosed)
	}

	value, err := core.Encode(p.opts.codec, ev)
	if err != nil {
		return core.Failed(err)
	}

	if p.inflight.Add(1) > int64(p.opts.queueSize) {
		p.inflight.Add(-1)
		return core.Failed(core.ErrBufferFull)
	}

	args := &redis.XAddArgs{
		Stream:     topic,
		NoMkStream: !p.opts.autoCreate,
		Values: []any{
			FieldID, ev.ID,
			FieldKey, key,
			FieldType, p.opts.codec.ContentType(),
			FieldEvent, value,
		},
	}
	if p.opts.maxLen > 0 {
		args.MaxLen = p.opts.maxLen
		args.Approx = true
	}

	fut := core.NewFuture()
	sendCtx := context.WithoutCancel(ctx)
	p.pool.Submit(func() {
		defer p.inflight.Add(-1)
		ack, err := p.add(sendCtx, args)
		if err != nil {
			fut.Fail(err)
			return
		}
		fut.Resolve(ack)
	})
	return fut
}

func (p *Producer) add(ctx context.Context, args *redis.XAddArgs) (core.Ack, error) {
	var err error
	for attempt := 1; attempt <= p.opts.maxAttempts; attempt++ {
		var id string
		id, err = p.client.XAdd(ctx, args).Result()
		if err == nil {
			return ackFromID(id), nil
		}
		if !retryable(err) {
			break
		}
		if attempt < p.opts.maxAttempts {
			p.opts.logg.Debug("xadd retry", "stream", args.Stream, "attempt", attempt, "error", err)
			time.Sleep(p.opts.backoff)
		}
	}
	return core.Ack{}, classify(args.Stream, err)
}

// Ping round-trips to the server.
func (p *Producer) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Pending returns the number of sends not yet resolved.
func (p *Producer) Pending() int64 {
	return p.inflight.Load()
}

// Close waits for queued sends and closes the client.
func (p *Producer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.pool.StopAndWait()
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("eventgate/redis: close client: %w", err)
	}
	return nil
}

// ackFromID splits a stream entry id of the form <ms>-<seq>.
func ackFromID(id string) core.Ack {
	ack := core.Ack{ID: id}
	ms, _, _ := strings.Cut(id, "-")
	if n, err := strconv.ParseInt(ms, 10, 64); err == nil {
		ack.Offset = n
	}
	return ack
}

func retryable(err error) bool {
	if errors.Is(err, redis.Nil) {
		return false
	}
	var re redis.Error
	if errors.As(err, &re) {
		// Server replies are final; only transport errors are retried.
		return false
	}
	return true
}

// classify maps go-redis errors onto the publish error kinds.
func classify(stream string, err error) error {
	var re redis.Error
	switch {
	case errors.Is(err, redis.Nil):
		return core.NewError(core.KindTopicNotFound, "redis: stream %q does not exist", stream)
	case errors.Is(err, context.DeadlineExceeded):
		return core.WrapError(core.KindTimeout, "redis", err)
	case errors.As(err, &re) && strings.HasPrefix(re.Error(), "WRONGTYPE"):
		return core.WrapError(core.KindTopicNotFound, "redis: key "+stream+" is not a stream", err)
	default:
		return core.WrapError(core.KindBrokerUnavailable, "redis", err)
	}
}

// optsFromConfig extracts options from broker.Config.Extra.
func optsFromConfig(cfg broker.Config) []Option {
	if cfg.Extra == nil {
		return nil
	}
	var opts []Option
	if v, ok := cfg.Int("workers"); ok {
		opts = append(opts, WithWorkers(v))
	}
	if v, ok := cfg.Int("queue_size"); ok {
		opts = append(opts, WithQueueSize(v))
	}
	if v, ok := cfg.Int("max_attempts"); ok {
		opts = append(opts, WithMaxAttempts(v))
	}
	if v, ok := cfg.Duration("backoff"); ok {
		opts = append(opts, WithBackoff(v))
	}
	if v, ok := cfg.Int("max_len"); ok {
		opts = append(opts, WithMaxLen(int64(v)))
	}
	if v, ok := cfg.Bool("auto_create"); ok {
		opts = append(opts, WithAutoCreate(v))
	}
	return opts
}
