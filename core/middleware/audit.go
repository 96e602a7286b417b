package middleware

import (
	"context"

	"github.com/miladsoleymani/eventgate/core"
)

// OutcomeRecorder receives every terminal publish outcome.
// RecordOutcome must not block.
type OutcomeRecorder interface {
	RecordOutcome(req core.Request, rcpt core.Receipt, err error)
}

// Audit returns middleware that hands each outcome to rec. Validation
// failures are skipped since no event was built for them.
func Audit(rec OutcomeRecorder) core.Middleware {
	return func(next core.PublishFunc) core.PublishFunc {
		return func(ctx context.Context, req core.Request) (core.Receipt, error) {
			rcpt, err := next(ctx, req)
			if core.KindOf(err) != core.KindInvalidArgument {
				rec.RecordOutcome(req, rcpt, err)
			}
			return rcpt, err
		}
	}
}
