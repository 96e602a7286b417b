package nats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/miladsoleymani/eventgate/broker"
	"github.com/miladsoleymani/eventgate/core"
)

// HeaderKey carries the partition key. JetStream has no partitions, so the
// key travels as a header for consumers that want it.
const HeaderKey = "event-key"

func init() {
	broker.Register("nats", func(cfg broker.Config) (core.Producer, error) {
		if len(cfg.Brokers) == 0 {
			return nil, fmt.Errorf("eventgate/nats: at least one broker URL is required")
		}
		return New(strings.Join(cfg.Brokers, ","), optsFromConfig(cfg)...)
	})
}

// Producer implements core.Producer for NATS JetStream.
//
// Sends use PublishMsgAsync with the event id as Nats-Msg-Id, so the stream
// deduplicates retried events. One goroutine per in-flight send waits for
// the publish ack and resolves the future. Ack.Offset is the stream
// sequence and Ack.ID the stream name.
type Producer struct {
	conn *nats.Conn
	js   jetstream.JetStream
	opts options

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// New creates a NATS JetStream Producer. url is a standard NATS URL
// (nats://host:port), or several separated by commas.
func New(url string, fns ...Option) (*Producer, error) {
	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}

	connOpts := []nats.Option{}
	if opts.clientID != "" {
		connOpts = append(connOpts, nats.Name(opts.clientID))
	}
	nc, err := nats.Connect(url, connOpts...)
	if err != nil {
		return nil, fmt.Errorf("eventgate/nats: connect to %q: %w", url, err)
	}

	js, err := jetstream.New(nc, jetstream.WithPublishAsyncMaxPending(opts.maxPending))
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("eventgate/nats: init jetstream: %w", err)
	}

	p := &Producer{conn: nc, js: js, opts: opts, done: make(chan struct{})}
	if opts.stream != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := p.ensureStream(ctx); err != nil {
			nc.Close()
			return nil, err
		}
	}
	return p, nil
}

func (p *Producer) ensureStream(ctx context.Context) error {
	subjects := p.opts.subjects
	if len(subjects) == 0 {
		subjects = []string{p.opts.stream + ".>"}
	}
	name := sanitizeStreamName(p.opts.stream)
	_, err := p.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      name,
		Subjects:  subjects,
		MaxMsgs:   p.opts.maxMsgs,
		MaxBytes:  p.opts.maxBytes,
		MaxAge:    p.opts.maxAge,
		Replicas:  p.opts.replicas,
		Retention: p.opts.retention,
		Storage:   p.opts.storage,
	})
	if err != nil {
		return fmt.Errorf("eventgate/nats: create stream %q: %w", name, err)
	}
	return nil
}

// Send publishes ev on subject topic without waiting for the ack.
func (p *Producer) Send(_ context.Context, topic, key string, ev core.PageEvent) *core.Future {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return core.Failed(core.ErrProducerClosed)
	}

	value, err := core.Encode(p.opts.codec, ev)
	if err != nil {
		return core.Failed(err)
	}

	headers := nats.Header{}
	for k, v := range core.Headers(p.opts.codec, ev) {
		headers.Set(k, v)
	}
	if key != "" {
		headers.Set(HeaderKey, key)
	}

	paf, err := p.js.PublishMsgAsync(&nats.Msg{
		Subject: topic,
		Data:    value,
		Header:  headers,
	}, jetstream.WithMsgID(ev.ID))
	if err != nil {
		return core.Failed(classify(err))
	}

	fut := core.NewFuture()
	p.wg.Add(1)
	go p.await(paf, fut)
	return fut
}

func (p *Producer) await(paf jetstream.PubAckFuture, fut *core.Future) {
	defer p.wg.Done()

	timer := time.NewTimer(p.opts.ackTimeout)
	defer timer.Stop()

	select {
	case ack := <-paf.Ok():
		fut.Resolve(core.Ack{Offset: int64(ack.Sequence), ID: ack.Stream})
	case err := <-paf.Err():
		fut.Fail(classify(err))
	case <-timer.C:
		fut.Fail(core.WrapError(core.KindTimeout, "nats: no publish ack", nats.ErrTimeout))
	case <-p.done:
		fut.Fail(core.WrapError(core.KindBrokerUnavailable, "nats", core.ErrProducerClosed))
	}
}

// Ping round-trips to the server.
func (p *Producer) Ping(ctx context.Context) error {
	if st := p.conn.Status(); st != nats.CONNECTED {
		return fmt.Errorf("eventgate/nats: connection %s", st)
	}
	return p.conn.FlushWithContext(ctx)
}

// Close waits up to the drain timeout for pending acks, fails what is left
// and closes the connection.
func (p *Producer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	select {
	case <-p.js.PublishAsyncComplete():
	case <-time.After(p.opts.drainTimeout):
		p.opts.logg.Warn("nats producer closed with pending acks", "pending", p.js.PublishAsyncPending())
	}
	close(p.done)
	p.wg.Wait()
	p.conn.Close()
	return nil
}

// classify maps JetStream publish errors onto the publish error kinds.
func classify(err error) error {
	switch {
	case errors.Is(err, jetstream.ErrNoStreamResponse), errors.Is(err, nats.ErrNoResponders):
		return core.WrapError(core.KindTopicNotFound, "nats: no stream for subject", err)
	case errors.Is(err, nats.ErrMaxPayload), errors.Is(err, nats.ErrBadSubject):
		return core.WrapError(core.KindSerializationError, "nats", err)
	case errors.Is(err, nats.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return core.WrapError(core.KindTimeout, "nats", err)
	case errors.Is(err, jetstream.ErrTooManyStalledMsgs):
		return core.WrapError(core.KindBrokerUnavailable, "nats", errors.Join(core.ErrBufferFull, err))
	default:
		return core.WrapError(core.KindBrokerUnavailable, "nats", err)
	}
}

// sanitizeStreamName converts a subject pattern to a valid stream name
// by replacing special characters.
func sanitizeStreamName(topic string) string {
	buf := make([]byte, len(topic))
	for i := 0; i < len(topic); i++ {
		c := topic[i]
		if c == '.' || c == '*' || c == '>' {
			buf[i] = '-'
		} else {
			buf[i] = c
		}
	}
	return string(buf)
}

// optsFromConfig extracts options from broker.Config.Extra.
func optsFromConfig(cfg broker.Config) []Option {
	opts := []Option{WithClientID(cfg.ClientID)}
	if cfg.Extra == nil {
		return opts
	}
	if v, ok := cfg.String("stream"); ok {
		opts = append(opts, WithStream(v, stringList(cfg.Extra["subjects"])...))
	}
	if v, ok := cfg.Int("replicas"); ok {
		opts = append(opts, WithReplicas(v))
	}
	if v, ok := cfg.Duration("max_age"); ok {
		opts = append(opts, WithMaxAge(v))
	}
	if v, ok := cfg.String("storage"); ok && v == "memory" {
		opts = append(opts, WithStorage(jetstream.MemoryStorage))
	}
	if v, ok := cfg.Duration("ack_timeout"); ok {
		opts = append(opts, WithAckTimeout(v))
	}
	if v, ok := cfg.Int("max_pending"); ok {
		opts = append(opts, WithMaxPending(v))
	}
	return opts
}

func stringList(v any) []string {
	switch l := v.(type) {
	case []string:
		return l
	case []any:
		out := make([]string, 0, len(l))
		for _, s := range l {
			if str, ok := s.(string); ok {
				out = append(out, str)
			}
		}
		return out
	case string:
		return strings.Split(l, ",")
	}
	return nil
}
