package runtime

import (
	"context"
	"sync"
	"time"

	"qna-live/domain"
)

// TypingTracker holds short-lived "user X is typing" facts per room.
// Nothing is persisted, acknowledged, or retried: a fact older than the
// window is treated as absent, and there is no explicit stop event.
type TypingTracker struct {
	mu     sync.Mutex
	window time.Duration
	facts  map[domain.RoomID]map[string]time.Time
}

func NewTypingTracker(window time.Duration) *TypingTracker {
	if window <= 0 {
		window = domain.DefaultTypingWindow
	}
	return &TypingTracker{
		window: window,
		facts:  make(map[domain.RoomID]map[string]time.Time),
	}
}

// Signal records or refreshes a typing fact.
func (t *TypingTracker) Signal(roomID domain.RoomID, userID string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.facts[roomID]; !ok {
		t.facts[roomID] = make(map[string]time.Time)
	}
	t.facts[roomID][userID] = now
}

// ActiveTypers returns the users whose last signal is still inside the
// window at the given instant. Expired facts are skipped, not evicted;
// eviction is the sweeper's job.
func (t *TypingTracker) ActiveTypers(roomID domain.RoomID, now time.Time) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var typers []string
	for userID, issuedAt := range t.facts[roomID] {
		if now.Sub(issuedAt) < t.window {
			typers = append(typers, userID)
		}
	}
	return typers
}

// Sweep evicts expired facts so rooms with no typing activity don't
// accumulate entries.
func (t *TypingTracker) Sweep(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for roomID, users := range t.facts {
		for userID, issuedAt := range users {
			if now.Sub(issuedAt) >= t.window {
				delete(users, userID)
			}
		}
		if len(users) == 0 {
			delete(t.facts, roomID)
		}
	}
}

// Run makes the tracker a supervised worker: periodic sweeps until the
// context is canceled.
func (t *TypingTracker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			t.Sweep(now)
		}
	}
}
