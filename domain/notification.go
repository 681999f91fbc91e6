package domain

import (
	"time"

	"github.com/google/uuid"
)

// Notification is created server-side in reaction to domain events
// (new answer, mention). The realtime layer only observes it; the read
// flag is mutated through the durable store, never in memory.
type Notification struct {
	ID          uuid.UUID
	RecipientID string
	Type        string
	Content     string
	Link        string
	Read        bool
	CreatedAt   time.Time
}
