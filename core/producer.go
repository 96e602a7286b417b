package core

import (
	"context"
	"sync"
)

// Producer is the contract for asynchronous broker clients.
// Each broker plugin implements it; implementations must be safe for
// concurrent Send calls.
type Producer interface {
	// Send hands ev to the producer's send buffer and returns immediately.
	// The returned future resolves once the broker acks or the producer
	// gives up. An empty key lets the broker pick the partition.
	// Cancelling ctx after Send returned does not retract the record.
	Send(ctx context.Context, topic, key string, ev PageEvent) *Future
	Close() error
}

// Pinger is implemented by producers that can report broker reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ack is a broker acknowledgment.
type Ack struct {
	Partition int
	Offset    int64

	// ID is the broker-native position, when the broker has one
	// (stream entry id, stream name).
	ID string
}

// Future is the handle to one in-flight send. It resolves exactly once.
type Future struct {
	once sync.Once
	done chan struct{}
	ack  Ack
	err  error
}

// NewFuture returns an unresolved future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Failed returns a future that already failed with err.
func Failed(err error) *Future {
	f := NewFuture()
	f.Fail(err)
	return f
}

// Resolve completes the future with ack. It reports false if the future was
// already resolved.
func (f *Future) Resolve(ack Ack) bool {
	return f.complete(ack, nil)
}

// Fail completes the future with err. It reports false if the future was
// already resolved.
func (f *Future) Fail(err error) bool {
	return f.complete(Ack{}, err)
}

func (f *Future) complete(ack Ack, err error) bool {
	won := false
	f.once.Do(func() {
		f.ack, f.err = ack, err
		won = true
		close(f.done)
	})
	return won
}

// Done is closed once the future resolves.
func (f *Future) Done() <-chan struct{} { return f.done }

// Result returns the outcome. It must only be called after Done is closed.
func (f *Future) Result() (Ack, error) {
	<-f.done
	return f.ack, f.err
}

// Wait blocks until the future resolves or ctx ends.
func (f *Future) Wait(ctx context.Context) (Ack, error) {
	select {
	case <-f.done:
		return f.ack, f.err
	case <-ctx.Done():
		return Ack{}, ctx.Err()
	}
}
