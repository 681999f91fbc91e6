package sink

import (
	"context"
	"log/slog"
	"sync"

	"qna-live/domain/event"
)

// SessionSink is the bounded delivery buffer of one connected session.
// Consume is called by the fan-out pipeline and never blocks: a full
// buffer drops the event for this recipient only. Sustained overflow
// trips the Kick channel so the transport can shed the slow session
// instead of letting it grow an unbounded queue.
type SessionSink struct {
	Events chan event.DomainEvent

	log           *slog.Logger
	kickThreshold int

	mu               sync.Mutex
	consecutiveDrops int
	kicked           bool
	kick             chan struct{}
}

func NewSessionSink(log *slog.Logger, bufferSize, kickThreshold int) *SessionSink {
	return &SessionSink{
		Events:        make(chan event.DomainEvent, bufferSize),
		log:           log,
		kickThreshold: kickThreshold,
		kick:          make(chan struct{}),
	}
}

// Consume redirects the event to the owning connection's write loop.
// Best effort: delivery to this session is at-most-once, and a slow
// recipient never delays the rest of the room.
func (s *SessionSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case s.Events <- e:
		s.mu.Lock()
		s.consecutiveDrops = 0
		s.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		s.recordDrop()
		return nil
	}
}

// Kick is closed once the sink has dropped kickThreshold events in a
// row. The write loop treats it as a forced disconnect.
func (s *SessionSink) Kick() <-chan struct{} {
	return s.kick
}

func (s *SessionSink) recordDrop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.consecutiveDrops++
	s.log.Warn("Session buffer full, dropping event",
		"consecutive_drops", s.consecutiveDrops)
	if !s.kicked && s.kickThreshold > 0 && s.consecutiveDrops >= s.kickThreshold {
		s.kicked = true
		close(s.kick)
	}
}
