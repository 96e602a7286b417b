package middleware

import (
	"context"
	"time"

	"github.com/miladsoleymani/eventgate/core"
)

// MetricsCollector is the interface that metrics backends must implement.
// This keeps the middleware decoupled from any specific metrics library.
type MetricsCollector interface {
	// PublishObserved records one publish call. err is nil on success.
	PublishObserved(topic string, duration time.Duration, err error)
}

// Metrics returns middleware that reports publish metrics to the given collector.
func Metrics(collector MetricsCollector) core.Middleware {
	return func(next core.PublishFunc) core.PublishFunc {
		return func(ctx context.Context, req core.Request) (core.Receipt, error) {
			start := time.Now()
			rcpt, err := next(ctx, req)
			collector.PublishObserved(req.Topic, time.Since(start), err)
			return rcpt, err
		}
	}
}
