package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/miladsoleymani/eventgate/core"
)

// Logging returns middleware that logs each publish outcome and its duration.
func Logging(logg *slog.Logger) core.Middleware {
	if logg == nil {
		logg = slog.Default()
	}
	return func(next core.PublishFunc) core.PublishFunc {
		return func(ctx context.Context, req core.Request) (core.Receipt, error) {
			start := time.Now()
			rcpt, err := next(ctx, req)
			elapsed := time.Since(start)

			if err != nil {
				ge := core.AsError(err)
				kind := ge.Kind
				level := slog.LevelWarn
				if kind == core.KindInvalidArgument {
					level = slog.LevelInfo
				}
				logg.Log(ctx, level, "publish failed",
					"topic", req.Topic,
					"name", req.Name,
					"kind", kind,
					"outcome_unknown", ge.OutcomeUnknown(),
					"elapsed", elapsed,
					"error", err,
				)
				return rcpt, err
			}
			logg.Info("publish acknowledged",
				"topic", req.Topic,
				"name", req.Name,
				"event_id", rcpt.Event.ID,
				"partition", rcpt.Ack.Partition,
				"offset", rcpt.Ack.Offset,
				"elapsed", elapsed,
			)
			return rcpt, nil
		}
	}
}
