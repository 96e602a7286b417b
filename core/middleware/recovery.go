package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/miladsoleymani/eventgate/core"
)

// Recovery returns middleware that recovers from panics further down the
// chain, logs the stack trace, and reports the panic as a failed publish.
// The panic may have happened after the send, so its outcome is unknown.
func Recovery(logg *slog.Logger) core.Middleware {
	if logg == nil {
		logg = slog.Default()
	}
	return func(next core.PublishFunc) core.PublishFunc {
		return func(ctx context.Context, req core.Request) (rcpt core.Receipt, err error) {
			defer func() {
				if r := recover(); r != nil {
					buf := make([]byte, 4096)
					n := runtime.Stack(buf, false)
					logg.Error("panic recovered", "panic", r, "topic", req.Topic, "stack", string(buf[:n]))
					rcpt = core.Receipt{}
					err = core.WrapError(core.KindUnknown, "internal error", fmt.Errorf("eventgate: panic recovered: %v", r))
				}
			}()
			return next(ctx, req)
		}
	}
}
