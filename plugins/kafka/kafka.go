package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/miladsoleymani/eventgate/broker"
	"github.com/miladsoleymani/eventgate/core"
)

func init() {
	broker.Register("kafka", func(cfg broker.Config) (core.Producer, error) {
		return New(cfg.Brokers, optsFromConfig(cfg)...)
	})
}

// Producer implements core.Producer for Apache Kafka using segmentio/kafka-go.
//
// One async kafka.Writer is shared by all Send calls. Each record carries its
// future in WriterData, and the writer's Completion callback resolves it once
// the batch holding the record is acknowledged or finally fails. Close
// flushes pending batches, so in-flight futures still resolve.
type Producer struct {
	brokers []string
	opts    options
	writer  *kafka.Writer

	mu     sync.RWMutex
	closed bool
}

// New creates a Kafka Producer.
func New(brokers []string, fns ...Option) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("eventgate/kafka: at least one broker address is required")
	}

	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}

	p := &Producer{brokers: brokers, opts: opts}
	p.writer = &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               opts.balancer,
		BatchSize:              opts.batchSize,
		BatchTimeout:           opts.batchTimeout,
		MaxAttempts:            opts.maxAttempts,
		WriteTimeout:           opts.writeTimeout,
		RequiredAcks:           opts.requiredAcks,
		AllowAutoTopicCreation: opts.autoCreate,
		Async:                  true,
		Completion:             p.complete,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			opts.logg.Error(fmt.Sprintf(msg, args...), "broker", "kafka")
		}),
	}
	if opts.dialer != nil || opts.clientID != "" {
		t := &kafka.Transport{ClientID: opts.clientID}
		if opts.dialer != nil {
			t.TLS = opts.dialer.TLS
			t.SASL = opts.dialer.SASLMechanism
		}
		p.writer.Transport = t
	}
	return p, nil
}

// Send encodes ev and queues it on the writer. The record is keyed by key
// and timestamped with the event time.
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

	fut := core.NewFuture()
	km := kafka.Message{
		Topic:      topic,
		Value:      value,
		Headers:    toHeaders(core.Headers(p.opts.codec, ev)),
		Time:       ev.Timestamp,
		WriterData: fut,
	}
	if key != "" {
		km.Key = []byte(key)
	}
	// The record outlives the request, so caller cancellation must not reach the writer.
	if err := p.writer.WriteMessages(context.WithoutCancel(ctx), km); err != nil {
		fut.Fail(classify(err))
	}
	return fut
}

// complete is the writer's Completion callback.
func (p *Producer) complete(messages []kafka.Message, err error) {
	for i := range messages {
		fut, ok := messages[i].WriterData.(*core.Future)
		if !ok {
			continue
		}
		if err != nil {
			fut.Fail(classify(messageError(err, i)))
			continue
		}
		fut.Resolve(core.Ack{
			Partition: messages[i].Partition,
			Offset:    messages[i].Offset,
		})
	}
}

// Ping dials the first reachable broker.
func (p *Producer) Ping(ctx context.Context) error {
	var errs []error
	for _, addr := range p.brokers {
		conn, err := kafka.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn.Close()
		}
		errs = append(errs, err)
	}
	return fmt.Errorf("eventgate/kafka: no broker reachable: %w", errors.Join(errs...))
}

// Close flushes pending batches and closes the writer.
func (p *Producer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("eventgate/kafka: close writer: %w", err)
	}
	return nil
}

// messageError picks the error for the i-th record when the writer reports
// one error per record.
func messageError(err error, i int) error {
	var we kafka.WriteErrors
	if errors.As(err, &we) && i < len(we) {
		if we[i] == nil {
			return err
		}
		return we[i]
	}
	return err
}

// classify maps writer errors onto the publish error kinds.
func classify(err error) error {
	var (
		tooLarge kafka.MessageTooLargeError
		netErr   net.Error
	)
	switch {
	case errors.Is(err, kafka.UnknownTopicOrPartition):
		return core.WrapError(core.KindTopicNotFound, "kafka", err)
	case errors.Is(err, kafka.MessageSizeTooLarge),
		errors.Is(err, kafka.InvalidMessage),
		errors.Is(err, kafka.InvalidRecord),
		errors.As(err, &tooLarge):
		return core.WrapError(core.KindSerializationError, "kafka", err)
	case errors.Is(err, kafka.RequestTimedOut),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return core.WrapError(core.KindTimeout, "kafka", err)
	default:
		return core.WrapError(core.KindBrokerUnavailable, "kafka", err)
	}
}

// toHeaders converts a string map to Kafka headers, sorted by key.
func toHeaders(h map[string]string) []kafka.Header {
	if len(h) == 0 {
		return nil
	}
	headers := make([]kafka.Header, 0, len(h))
	for k, v := range h {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	sort.Slice(headers, func(i, j int) bool { return headers[i].Key < headers[j].Key })
	return headers
}

// optsFromConfig extracts options from the broker.Config.Extra map.
func optsFromConfig(cfg broker.Config) []Option {
	opts := []Option{WithClientID(cfg.ClientID)}
	if cfg.Extra == nil {
		return opts
	}
	if v, ok := cfg.Int("batch_size"); ok {
		opts = append(opts, WithBatchSize(v))
	}
	if v, ok := cfg.Duration("batch_timeout"); ok {
		opts = append(opts, WithBatchTimeout(v))
	}
	if v, ok := cfg.Int("max_attempts"); ok {
		opts = append(opts, WithMaxAttempts(v))
	}
	if v, ok := cfg.Duration("write_timeout"); ok {
		opts = append(opts, WithWriteTimeout(v))
	}
	if v, ok := cfg.Bool("auto_create_topics"); ok {
		opts = append(opts, WithAutoCreateTopics(v))
	}
	if v, ok := cfg.String("balancer"); ok {
		switch v {
		case "least_bytes":
			opts = append(opts, WithBalancer(&kafka.LeastBytes{}))
		case "round_robin":
			opts = append(opts, WithBalancer(&kafka.RoundRobin{}))
		case "hash":
			opts = append(opts, WithBalancer(&kafka.Hash{}))
		}
	}
	return opts
}
