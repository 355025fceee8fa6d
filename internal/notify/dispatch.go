package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/campusride/rideshare/internal/domain"
	"github.com/campusride/rideshare/internal/observability"
)

// DefaultTimeout bounds a single emit so a slow broker cannot hold up the
// request that triggered it.
const DefaultTimeout = 2 * time.Second

// FireAndForget emits the event detached from the caller's cancellation. A
// failure is logged and counted, never returned.
func FireAndForget(ctx context.Context, emitter Emitter, logger *slog.Logger, event domain.RideEvent) {
	if emitter == nil {
		return
	}
	emitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultTimeout)
	defer cancel()

	if err := emitter.Emit(emitCtx, event); err != nil {
		observability.NotificationFailures.Inc()
		logger.WarnContext(ctx, "notification failed",
			"type", event.Type,
			"ride_id", event.RideID,
			"recipient", event.Recipient,
			"error", err,
		)
	}
}
