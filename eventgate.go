// Package eventgate provides the top-level API for the eventgate library.
// It re-exports core types for convenience, so users can write:
//
//	p, _ := broker.Create("kafka", broker.Config{Brokers: []string{"localhost:9092"}})
//	g := eventgate.New(p, eventgate.WithTimeout(2*time.Second))
//	rcpt, err := g.Publish(ctx, "page-views", "home")
package eventgate

import (
	"github.com/miladsoleymani/eventgate/core"
)

// Re-export core types at the package level for ergonomic usage.
type (
	Gateway    = core.Gateway
	Producer   = core.Producer
	PageEvent  = core.PageEvent
	Receipt    = core.Receipt
	Ack        = core.Ack
	Error      = core.Error
	Kind       = core.Kind
	Middleware = core.Middleware
	Option     = core.Option
)

// Re-export gateway options.
var (
	WithTimeout       = core.WithTimeout
	WithClock         = core.WithClock
	WithKeyPolicy     = core.WithKeyPolicy
	WithAllowedTopics = core.WithAllowedTopics
	WithLogger        = core.WithLogger
	WithMiddleware    = core.WithMiddleware
)

// New creates a Gateway publishing through p.
func New(p Producer, opts ...Option) *Gateway {
	return core.New(p, opts...)
}
