package workers

import (
	"context"
	"log/slog"
	"time"

	"qna-live/contract"
	"qna-live/domain/event"
)

// EventFanout delivers sanitized messages to the active sessions of
// their room, plus the permanent sinks (durable log, projections).
//
// Best-effort fan-out: each recipient delivery is an independent
// non-blocking enqueue into a bounded buffer, so a slow member never
// delays the others. The membership set is snapshotted per event;
// sends to sessions removed mid-fan-out are discarded.
//
// It is the single consumer of the sanitized channel, which makes the
// delivery order per room total.
type EventFanout struct {
	log            *slog.Logger
	registry       contract.IRegistry
	permanentSinks []contract.EventSink
	sanitized      chan event.DomainEvent
	sinkTimeout    time.Duration
}

func NewEventFanout(log *slog.Logger, registry contract.IRegistry,
	permanentSinks []contract.EventSink, sanitized chan event.DomainEvent,
	sinkTimeout time.Duration) *EventFanout {
	return &EventFanout{
		log:            log,
		registry:       registry,
		permanentSinks: permanentSinks,
		sanitized:      sanitized,
		sinkTimeout:    sinkTimeout,
	}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping fanout")
			return ctx.Err()
		case evt, ok := <-w.sanitized:
			if !ok {
				return nil
			}
			w.Fanout(ctx, evt)
		}
	}
}

// Fanout pushes one event through the permanent sinks and to the
// room's currently connected sessions, publisher excluded.
func (w *EventFanout) Fanout(ctx context.Context, evt event.DomainEvent) {
	timeoutCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
	defer cancel()

	for _, sink := range w.permanentSinks {
		if err := sink.Consume(timeoutCtx, evt); err != nil {
			w.log.Error("Permanent sink failed", "error", err)
		}
	}

	origin := ""
	if m, ok := evt.(event.MessageSanitized); ok {
		origin = m.Origin
	}
	for _, sink := range w.registry.SinksForRoomExcept(evt.RoomID(), origin) {
		if err := sink.Consume(timeoutCtx, evt); err != nil {
			w.log.Warn("Session delivery skipped", "error", err)
		}
	}
}
