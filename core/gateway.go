package core

import (
	"context"
	"log/slog"
	"time"
)

// DefaultTimeout bounds how long Publish waits for an ack.
const DefaultTimeout = 5 * time.Second

// State is a step of one publish request.
type State int

const (
	StateReceived State = iota
	StateValidated
	StateSent
	StateAcknowledged
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateValidated:
		return "validated"
	case StateSent:
		return "sent"
	case StateAcknowledged:
		return "acknowledged"
	case StateFailed:
		return "failed"
	}
	return "invalid"
}

// Request is one publish call.
type Request struct {
	Topic string
	Name  string
}

// Receipt is the success half of a publish outcome.
type Receipt struct {
	Event PageEvent
	Ack   Ack
}

// PublishFunc is the signature of the publish pipeline.
type PublishFunc func(ctx context.Context, req Request) (Receipt, error)

// Middleware wraps a PublishFunc to add cross-cutting behavior.
//
//	func Timing() core.Middleware {
//	    return func(next core.PublishFunc) core.PublishFunc {
//	        return func(ctx context.Context, req core.Request) (core.Receipt, error) {
//	            start := time.Now()
//	            rcpt, err := next(ctx, req)
//	            log.Println(req.Topic, time.Since(start))
//	            return rcpt, err
//	        }
//	    }
//	}
type Middleware func(PublishFunc) PublishFunc

// Gateway bridges synchronous publish calls to an asynchronous Producer.
//
// Each Publish call validates input, builds a PageEvent, sends it once and
// waits for the ack, bounded by the configured timeout and by ctx. A timed
// out or cancelled wait never retracts the send.
type Gateway struct {
	producer Producer
	factory  *EventFactory
	opts     options
	publish  PublishFunc
}

// New creates a Gateway publishing through p.
func New(p Producer, fns ...Option) *Gateway {
	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}
	g := &Gateway{
		producer: p,
		factory:  NewEventFactory(opts.clock),
		opts:     opts,
	}
	g.publish = applyMiddleware(g.send, opts.middlewares)
	return g
}

// Publish publishes one page event for name on topic. On success the
// receipt carries the event and the broker ack; on failure the error is a
// *Error and the receipt is zero.
func (g *Gateway) Publish(ctx context.Context, topic, name string) (Receipt, error) {
	return g.publish(ctx, Request{Topic: topic, Name: name})
}

// Ping reports producer reachability when the producer supports it.
func (g *Gateway) Ping(ctx context.Context) error {
	if g.producer == nil {
		return ErrNoProducer
	}
	if p, ok := g.producer.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (g *Gateway) send(ctx context.Context, req Request) (Receipt, error) {
	logg := g.opts.logg.With("topic", req.Topic, "name", req.Name)
	logg.Debug("publish state", "state", StateReceived)

	if err := g.validate(req); err != nil {
		logg.Debug("publish state", "state", StateFailed, "error", err)
		return Receipt{}, err
	}
	logg.Debug("publish state", "state", StateValidated)

	if g.producer == nil {
		return Receipt{}, WrapError(KindBrokerUnavailable, "", ErrNoProducer)
	}
	if err := ctx.Err(); err != nil {
		logg.Debug("publish state", "state", StateFailed, "kind", KindCanceled)
		return Receipt{}, &Error{Kind: KindCanceled, Detail: "caller went away before send", Err: err}
	}
	ev, err := g.factory.Build(req.Topic, req.Name)
	if err != nil {
		return Receipt{}, err
	}

	fut := g.producer.Send(ctx, ev.Topic, g.opts.keys.Key(ev), ev)
	logg = logg.With("event_id", ev.ID)
	logg.Debug("publish state", "state", StateSent)

	timer := time.NewTimer(g.opts.timeout)
	defer timer.Stop()

	var waitErr *Error
	select {
	case <-fut.Done():
	case <-timer.C:
		waitErr = &Error{
			Kind:    KindTimeout,
			Detail:  "no ack within " + g.opts.timeout.String() + ", delivery may still complete",
			EventID: ev.ID,
		}
	case <-ctx.Done():
		waitErr = &Error{
			Kind:    KindCanceled,
			Detail:  "caller stopped waiting, delivery may still complete",
			EventID: ev.ID,
			Err:     ctx.Err(),
		}
	}

	// A future that settled by now wins over the timer and ctx.
	select {
	case <-fut.Done():
		return g.settled(logg, ev, fut)
	default:
	}
	logg.Debug("publish state", "state", StateFailed, "kind", waitErr.Kind)
	return Receipt{}, waitErr
}

func (g *Gateway) settled(logg *slog.Logger, ev PageEvent, fut *Future) (Receipt, error) {
	ack, err := fut.Result()
	if err != nil {
		ge := AsError(err)
		if ge.EventID == "" {
			cp := *ge
			cp.EventID = ev.ID
			ge = &cp
		}
		logg.Debug("publish state", "state", StateFailed, "kind", ge.Kind)
		return Receipt{}, ge
	}
	logg.Debug("publish state", "state", StateAcknowledged, "partition", ack.Partition, "offset", ack.Offset)
	return Receipt{Event: ev, Ack: ack}, nil
}

func (g *Gateway) validate(req Request) error {
	if err := ValidateTopic(req.Topic); err != nil {
		return err
	}
	if err := ValidateName(req.Name); err != nil {
		return err
	}
	if !g.opts.topics.Allowed(req.Topic) {
		return NewError(KindTopicNotFound, "topic %q is not published by this gateway", req.Topic)
	}
	return nil
}

// applyMiddleware wraps a PublishFunc with middleware in reverse order.
// Given middleware [A, B, C], the call order is A -> B -> C -> fn.
func applyMiddleware(fn PublishFunc, mws []Middleware) PublishFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		fn = mws[i](fn)
	}
	return fn
}

// Option configures a Gateway.
type Option func(*options)

type options struct {
	timeout     time.Duration
	clock       Clock
	keys        KeyPolicy
	topics      *TopicAllowlist
	logg        *slog.Logger
	middlewares []Middleware
}

func defaults() options {
	return options{
		timeout: DefaultTimeout,
		clock:   SystemClock,
		keys:    NameKey,
		logg:    slog.Default(),
	}
}

// WithTimeout sets how long Publish waits for an ack. Non-positive values
// keep the default.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithClock sets the timestamp source.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithKeyPolicy sets how partition keys are derived.
func WithKeyPolicy(k KeyPolicy) Option {
	return func(o *options) {
		if k != nil {
			o.keys = k
		}
	}
}

// WithAllowedTopics restricts publishing to topics matching patterns.
func WithAllowedTopics(patterns ...string) Option {
	return func(o *options) { o.topics = NewTopicAllowlist(patterns...) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logg = l
		}
	}
}

// WithMiddleware appends publish middleware. The first registered runs outermost.
func WithMiddleware(mws ...Middleware) Option {
	return func(o *options) { o.middlewares = append(o.middlewares, mws...) }
}
