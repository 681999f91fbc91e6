// Package projection builds local read models from observed events.
// It does not emit events or interact with the transport directly.
package projection

import (
	"context"
	"sync"

	"qna-live/domain"
	"qna-live/domain/event"
)

// Timeline keeps the most recent sanitized messages per room, in
// delivery order. It is a permanent sink on the fan-out pipeline, used
// for observability and as an ordering witness in tests.
type Timeline struct {
	mu       sync.Mutex
	capacity int
	rooms    map[domain.RoomID][]domain.Message
}

func NewTimeline(capacity int) *Timeline {
	return &Timeline{
		capacity: capacity,
		rooms:    make(map[domain.RoomID][]domain.Message),
	}
}

func (t *Timeline) Consume(_ context.Context, e event.DomainEvent) error {
	evt, ok := e.(event.MessageSanitized)
	if !ok {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	messages := append(t.rooms[evt.Room], fromEvent(evt))
	if t.capacity > 0 && len(messages) > t.capacity {
		messages = messages[len(messages)-t.capacity:]
	}
	t.rooms[evt.Room] = messages
	return nil
}

// Messages returns a copy of the room's retained tail.
func (t *Timeline) Messages(roomID domain.RoomID) []domain.Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	tail := t.rooms[roomID]
	out := make([]domain.Message, len(tail))
	copy(out, tail)
	return out
}

func fromEvent(evt event.MessageSanitized) domain.Message {
	return domain.Message{
		ID:        evt.ID,
		Room:      evt.Room,
		SenderID:  evt.Author,
		Content:   evt.Content,
		Lang:      evt.Lang,
		CreatedAt: evt.At,
	}
}
