package mock

import (
	"context"
	"sync"

	"github.com/miladsoleymani/eventgate/core"
)

// Producer is a test double for core.Producer.
type Producer struct {
	mu     sync.Mutex
	sent   []Sent
	closed bool

	// Respond decides how each send resolves. It runs synchronously inside
	// Send; nil leaves every future pending.
	Respond func(s Sent)

	PingErr error
}

// Sent records one call to Send.
type Sent struct {
	Topic  string
	Key    string
	Event  core.PageEvent
	Future *core.Future
}

// NewProducer returns a producer whose futures stay pending.
func NewProducer() *Producer { return &Producer{} }

// NewAcking returns a producer that acks every send immediately.
func NewAcking(ack core.Ack) *Producer {
	return &Producer{Respond: func(s Sent) { s.Future.Resolve(ack) }}
}

// NewFailing returns a producer that fails every send immediately.
func NewFailing(err error) *Producer {
	return &Producer{Respond: func(s Sent) { s.Future.Fail(err) }}
}

func (p *Producer) Send(_ context.Context, topic, key string, ev core.PageEvent) *core.Future {
	s := Sent{Topic: topic, Key: key, Event: ev, Future: core.NewFuture()}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return core.Failed(core.ErrProducerClosed)
	}
	p.sent = append(p.sent, s)
	respond := p.Respond
	p.mu.Unlock()

	if respond != nil {
		respond(s)
	}
	return s.Future
}

func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *Producer) Ping(context.Context) error { return p.PingErr }

// Sent returns all recorded sends.
func (p *Producer) Sent() []Sent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Sent, len(p.sent))
	copy(out, p.sent)
	return out
}

// Pending returns the number of sends whose future has not resolved.
func (p *Producer) Pending() int {
	n := 0
	for _, s := range p.Sent() {
		select {
		case <-s.Future.Done():
		default:
			n++
		}
	}
	return n
}

// IsClosed reports whether Close was called.
func (p *Producer) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
